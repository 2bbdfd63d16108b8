package service

import (
	"context"

	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/search"
)

// Pinger 可做存活检查的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// CanonicalStore 主存储，由 repository.MovieRepository 实现
type CanonicalStore interface {
	Pinger
	FindByID(ctx context.Context, id int) (*model.Movie, error)
	FindAll(ctx context.Context) ([]model.Movie, error)
	FindAllExcept(ctx context.Context, id int) ([]model.Movie, error)
	Upsert(ctx context.Context, movie *model.Movie) error
	SaveEmbedding(ctx context.Context, id int, vec []float32) error
	Create(ctx context.Context, movie *model.Movie) error
	Drop(ctx context.Context) error
	Migrate(ctx context.Context) error
}

// SearchIndex 检索索引，由 search.Index 实现
type SearchIndex interface {
	Pinger
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, mapping map[string]any) error
	Delete(ctx context.Context) error
	Update(ctx context.Context, id int, partial map[string]any) error
	Put(ctx context.Context, id int, doc any) error
	Refresh(ctx context.Context) error
	Bulk(ctx context.Context, ops []search.BulkOperation) (*search.BulkResponse, error)
	Search(ctx context.Context, query string, from, size int) ([]search.Document, error)
}
