package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/service"
	"github.com/user/cinematch/internal/utils"
)

// MovieService 检索、详情、新建
type MovieService interface {
	SearchMovies(ctx context.Context, query string, page, limit int) (*model.SearchPage, error)
	GetMovieByID(ctx context.Context, id int) (*model.Movie, error)
	CreateMovie(ctx context.Context, movie *model.Movie) (*model.Movie, error)
}

// SimilarityService 相似推荐
type SimilarityService interface {
	FindSimilar(ctx context.Context, movieID, limit int) ([]model.Movie, error)
	FindSimilarScored(ctx context.Context, movieID, limit int) ([]model.ScoredMovie, error)
}

// EmbeddingRunner 全量向量生成
type EmbeddingRunner interface {
	EmbedAll(ctx context.Context) (*service.EmbedReport, error)
}

// ImportRunner 全量导入
type ImportRunner interface {
	RunImport(ctx context.Context) (*service.ImportReport, error)
}

// Handler HTTP 处理器
type Handler struct {
	Movies     MovieService
	Similarity SimilarityService
	Embeddings EmbeddingRunner
	Importer   ImportRunner
}

// NewHandler 创建处理器，管理相关依赖可为 nil
func NewHandler(movies MovieService, similarity SimilarityService, embeddings EmbeddingRunner, importer ImportRunner) *Handler {
	return &Handler{
		Movies:     movies,
		Similarity: similarity,
		Embeddings: embeddings,
		Importer:   importer,
	}
}

// respondError 按服务层错误类型映射状态码，500 不向外暴露细节
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, service.ErrValidation):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		utils.Conflict(c, err.Error())
	default:
		_ = c.Error(err)
		logging.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("请求处理失败")
		utils.InternalServerError(c, "")
	}
}
