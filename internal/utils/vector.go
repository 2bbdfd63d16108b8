package utils

import "math"

// CosineSimilarity dot(a,b) / (|a|·|b|)
// 维度不一致、空向量或任一向量模为 0 时返回 NaN，由调用方决定如何处理
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}
