package model

// ScoredMovie 带相似度分数的电影（诊断用，不进缓存）
type ScoredMovie struct {
	Movie      Movie   `json:"movie"`
	Similarity float64 `json:"similarity"`
}

// SearchPage 全文检索分页结果
type SearchPage struct {
	Query string  `json:"query"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Items []Movie `json:"items"`
}
