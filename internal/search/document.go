package search

import (
	"github.com/lib/pq"
	"github.com/user/cinematch/internal/model"
)

// EmbeddingField 索引中向量字段名
const EmbeddingField = "combinedEmbedding"

// Document 索引中的电影投影
type Document struct {
	ID                int       `json:"id"`
	Title             string    `json:"title,omitempty"`
	Overview          string    `json:"overview,omitempty"`
	ReleaseDate       string    `json:"release_date,omitempty"`
	VoteAverage       float64   `json:"vote_average"`
	Popularity        float64   `json:"popularity"`
	PosterPath        string    `json:"poster_path,omitempty"`
	BackdropPath      string    `json:"backdrop_path,omitempty"`
	GenreIDs          []int64   `json:"genre_ids,omitempty"`
	CombinedEmbedding []float32 `json:"combinedEmbedding,omitempty"`
}

// NewDocument 由主存储记录生成索引文档
func NewDocument(m *model.Movie) Document {
	return Document{
		ID:                m.ID,
		Title:             m.Title,
		Overview:          m.Overview,
		ReleaseDate:       m.ReleaseDate,
		VoteAverage:       m.VoteAverage,
		Popularity:        m.Popularity,
		PosterPath:        m.PosterPath,
		BackdropPath:      m.BackdropPath,
		GenreIDs:          m.GenreIDs,
		CombinedEmbedding: m.EmbeddingSlice(),
	}
}

// Movie 转回电影记录，不带向量
func (d Document) Movie() model.Movie {
	var genres pq.Int64Array
	if d.GenreIDs != nil {
		genres = append(pq.Int64Array(nil), d.GenreIDs...)
	}
	return model.Movie{
		ID:           d.ID,
		Title:        d.Title,
		Overview:     d.Overview,
		ReleaseDate:  d.ReleaseDate,
		VoteAverage:  d.VoteAverage,
		Popularity:   d.Popularity,
		PosterPath:   d.PosterPath,
		BackdropPath: d.BackdropPath,
		GenreIDs:     genres,
	}
}

// MovieMapping movies 索引的显式字段类型
func MovieMapping() map[string]any {
	field := func(t string) map[string]any { return map[string]any{"type": t} }
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":            field("integer"),
				"title":         field("text"),
				"overview":      field("text"),
				"release_date":  field("date"),
				"vote_average":  field("float"),
				"popularity":    field("float"),
				"poster_path":   field("text"),
				"backdrop_path": field("text"),
				"genre_ids":     field("integer"),
				EmbeddingField:  field("float"),
			},
		},
	}
}
