package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/search"
	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// MovieService 检索、详情和新建电影
type MovieService struct {
	store    CanonicalStore
	index    SearchIndex
	validate *validator.Validate
	log      zerolog.Logger
}

func NewMovieService(store CanonicalStore, index SearchIndex) *MovieService {
	return &MovieService{
		store:    store,
		index:    index,
		validate: validator.New(),
		log:      logging.Component("MovieService"),
	}
}

// SearchMovies 在标题和简介上做全文检索
func (s *MovieService) SearchMovies(ctx context.Context, query string, page, limit int) (*model.SearchPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	docs, err := s.index.Search(ctx, query, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}

	items := make([]model.Movie, len(docs))
	for i, d := range docs {
		items[i] = d.Movie()
	}
	return &model.SearchPage{Query: query, Page: page, Limit: limit, Items: items}, nil
}

// GetMovieByID 主存储详情，不带向量
func (s *MovieService) GetMovieByID(ctx context.Context, id int) (*model.Movie, error) {
	movie, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", id, err)
	}
	if movie == nil {
		return nil, fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	out := movie.WithoutEmbedding()
	return &out, nil
}

// CreateMovie 写入主存储后把投影写入索引
// 索引失败时主存储中的记录保留，下次 EmbedAll 会补齐索引文档
func (s *MovieService) CreateMovie(ctx context.Context, movie *model.Movie) (*model.Movie, error) {
	if movie.ID <= 0 {
		return nil, fmt.Errorf("id must be positive: %w", ErrValidation)
	}
	if err := s.validate.Struct(movie); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}
	movie.Embedding = nil

	existing, err := s.store.FindByID(ctx, movie.ID)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", movie.ID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("movie %d: %w", movie.ID, ErrConflict)
	}

	if err := s.store.Create(ctx, movie); err != nil {
		// 并发创建同一 id 时由唯一约束兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("movie %d: %w", movie.ID, ErrConflict)
		}
		return nil, fmt.Errorf("create movie %d: %w", movie.ID, err)
	}
	if err := s.index.Put(ctx, movie.ID, search.NewDocument(movie)); err != nil {
		s.log.Error().Err(err).Int("movie_id", movie.ID).Msg("新电影写入索引失败")
		return nil, fmt.Errorf("index movie %d: %w", movie.ID, err)
	}
	// 新建后立即可检索；刷新失败只影响可见时间
	if err := s.index.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Int("movie_id", movie.ID).Msg("刷新索引失败")
	}

	out := movie.WithoutEmbedding()
	return &out, nil
}
