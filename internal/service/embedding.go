package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/cinematch/internal/embedding"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/metrics"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/search"
)

// EmbedFailure 宽松模式下单部电影的失败记录
type EmbedFailure struct {
	MovieID int    `json:"movie_id"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// EmbedReport 一次全量向量生成的结果
type EmbedReport struct {
	Total    int            `json:"total"`
	Embedded int            `json:"embedded"`
	Failures []EmbedFailure `json:"failures,omitempty"`
}

// EmbeddingService 为每部电影生成向量并同步到主存储和检索索引
type EmbeddingService struct {
	store  CanonicalStore
	index  SearchIndex
	model  embedding.Model
	strict bool
	log    zerolog.Logger
}

// NewEmbeddingService strict=true 时任一失败即中止整次运行
func NewEmbeddingService(store CanonicalStore, index SearchIndex, m embedding.Model, strict bool) *EmbeddingService {
	return &EmbeddingService{
		store:  store,
		index:  index,
		model:  m,
		strict: strict,
		log:    logging.Component("EmbeddingService"),
	}
}

// BuildEmbeddingText 标题、简介、类型 id（空格连接）、上映日期，单空格分隔
// 字段顺序和分隔符一旦改变，所有向量都会变化
func BuildEmbeddingText(m *model.Movie) string {
	genres := make([]string, len(m.GenreIDs))
	for i, g := range m.GenreIDs {
		genres[i] = strconv.FormatInt(g, 10)
	}
	return m.Title + " " + m.Overview + " " + strings.Join(genres, " ") + " " + m.ReleaseDate
}

// EmbedAll 对主存储当前快照中的每部电影生成向量
func (s *EmbeddingService) EmbedAll(ctx context.Context) (*EmbedReport, error) {
	movies, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load movies: %w", err)
	}

	report := &EmbedReport{Total: len(movies)}
	s.log.Info().Int("total", len(movies)).Bool("strict", s.strict).Msg("开始生成电影向量")

	for i := range movies {
		movie := &movies[i]
		stage, err := s.embedOne(ctx, movie)
		if err != nil {
			metrics.EmbeddingFailures.WithLabelValues(stage).Inc()
			if s.strict {
				return report, fmt.Errorf("embed movie %d (%s): %w", movie.ID, stage, err)
			}
			s.log.Warn().Err(err).Int("movie_id", movie.ID).Str("stage", stage).Msg("电影向量生成失败，跳过")
			report.Failures = append(report.Failures, EmbedFailure{MovieID: movie.ID, Stage: stage, Error: err.Error()})
			continue
		}
		report.Embedded++
		metrics.EmbeddingsGenerated.Inc()
	}

	s.log.Info().
		Int("total", report.Total).
		Int("embedded", report.Embedded).
		Int("failed", len(report.Failures)).
		Msg("电影向量生成完成")
	return report, nil
}

// embedOne 返回失败所在阶段，便于统计
func (s *EmbeddingService) embedOne(ctx context.Context, movie *model.Movie) (string, error) {
	start := time.Now()
	vec, err := s.model.Embed(ctx, BuildEmbeddingText(movie))
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "embed", err
	}

	if err := s.store.SaveEmbedding(ctx, movie.ID, vec); err != nil {
		return "store", err
	}
	movie.SetEmbedding(vec)

	if err := s.UpdateEmbedding(ctx, movie.ID, vec); err != nil {
		return "index", err
	}
	return "", nil
}

// UpdateEmbedding 先局部更新索引文档，文档不存在时写入只含 id 和向量的新文档
// 其他错误原样返回
func (s *EmbeddingService) UpdateEmbedding(ctx context.Context, id int, vec []float32) error {
	err := s.index.Update(ctx, id, map[string]any{search.EmbeddingField: vec})
	if err == nil {
		return nil
	}
	if !errors.Is(err, search.ErrDocumentMissing) {
		return err
	}

	s.log.Debug().Int("movie_id", id).Msg("索引中缺少文档，改为写入")
	metrics.IndexConvergenceFallbacks.Inc()
	return s.index.Put(ctx, id, map[string]any{
		"id":                  id,
		search.EmbeddingField: vec,
	})
}
