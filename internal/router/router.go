package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/cinematch/internal/handler"
	"github.com/user/cinematch/internal/middleware"
)

// Options 路由选项
type Options struct {
	// AdminToken 为空时不注册 /admin
	AdminToken string
}

// New 创建 gin 引擎并注册全部路由
func New(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	RegisterRoutes(r, h, opts)
	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler, opts Options) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== 电影 API ====================
	api := r.Group("/api")
	{
		api.GET("/movies/search", h.SearchMovies)
		api.GET("/movies/:id", h.GetMovie)
		api.GET("/movies/:id/similar", h.SimilarMovies)
		api.POST("/movies", h.CreateMovie)
	}

	// ==================== 管理接口 ====================
	if opts.AdminToken == "" {
		return
	}
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAdminToken(opts.AdminToken))
	{
		admin.POST("/embeddings", h.AdminEmbed)
		admin.POST("/import", h.AdminImport)
		admin.GET("/movies/:id/similar/scored", h.AdminSimilarScored)
	}
}
