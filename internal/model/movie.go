package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Movie 电影模型（主存储 movies 表）
// Embedding 由向量流水线生成，不参与 JSON 序列化，也不会从数据集文件读入
type Movie struct {
	ID           int              `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title        string           `json:"title"`
	Overview     string           `json:"overview"`
	ReleaseDate  string           `json:"release_date" validate:"required"`
	VoteAverage  float64          `json:"vote_average"`
	Popularity   float64          `json:"popularity" gorm:"index"`
	PosterPath   string           `json:"poster_path,omitempty"`
	BackdropPath string           `json:"backdrop_path,omitempty"`
	GenreIDs     pq.Int64Array    `json:"genre_ids" gorm:"column:genre_ids;type:integer[]"`
	Embedding    *pgvector.Vector `json:"-" gorm:"type:vector"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

// TableName 固定表名
func (Movie) TableName() string {
	return "movies"
}

// HasEmbedding 是否已生成向量
func (m *Movie) HasEmbedding() bool {
	return m.Embedding != nil && len(m.Embedding.Slice()) > 0
}

// EmbeddingSlice 返回向量，未生成时为 nil
func (m *Movie) EmbeddingSlice() []float32 {
	if m.Embedding == nil {
		return nil
	}
	return m.Embedding.Slice()
}

// Touch 记录写入时间
func (m *Movie) Touch(now time.Time) {
	m.UpdatedAt = &now
}

// SetEmbedding 覆盖向量
func (m *Movie) SetEmbedding(vec []float32) {
	v := pgvector.NewVector(vec)
	m.Embedding = &v
}

// WithoutEmbedding 返回去掉向量的副本，对外输出一律走这里
func (m Movie) WithoutEmbedding() Movie {
	m.Embedding = nil
	if m.GenreIDs != nil {
		m.GenreIDs = append(pq.Int64Array(nil), m.GenreIDs...)
	}
	return m
}
