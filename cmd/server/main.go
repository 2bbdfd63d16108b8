package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/cinematch/internal/cache"
	"github.com/user/cinematch/internal/config"
	"github.com/user/cinematch/internal/embedding"
	"github.com/user/cinematch/internal/handler"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/repository"
	"github.com/user/cinematch/internal/router"
	"github.com/user/cinematch/internal/search"
	"github.com/user/cinematch/internal/service"
)

func main() {
	// 加载环境变量
	envErr := godotenv.Load()

	// 加载配置
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logging.Info().Msg("未找到 .env 文件，使用系统环境变量")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库（不立即连接，由导入流程等待就绪）
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("数据库初始化失败")
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	repos := repository.NewRepositories(db)

	index, err := search.NewIndex(cfg.ElasticsearchURL, cfg.MovieIndex)
	if err != nil {
		logging.Fatal().Err(err).Msg("Elasticsearch 初始化失败")
	}
	logging.Info().Str("url", cfg.ElasticsearchURL).Str("index", index.Name()).Msg("Elasticsearch 客户端已创建")

	vectorCache, err := cache.New(cache.Options{Driver: cfg.CacheDriver, Size: cfg.CacheSize, RedisURL: cfg.RedisURL})
	if err != nil {
		logging.Fatal().Err(err).Msg("缓存初始化失败")
	}
	if closer, ok := vectorCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	model, err := embedding.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("向量模型配置错误")
	}

	importer := service.NewImportService(repos.Movie, index, service.ImportOptions{
		DatasetPath:   cfg.DatasetPath,
		MaxRetries:    cfg.ImportMaxRetries,
		RetryInterval: cfg.ImportRetryInterval,
	})
	embedder := service.NewEmbeddingService(repos.Movie, index, model, cfg.EmbedStrict)
	similarity := service.NewSimilarityService(repos.Movie, vectorCache, cfg.SimilarityTTL).WithDefaultLimit(cfg.SimilarityTopK)
	movies := service.NewMovieService(repos.Movie, index)

	// 启动流程：导入 → 初始化模型 → 生成向量
	if cfg.SkipImport {
		logging.Info().Msg("跳过数据导入")
	} else if _, err := importer.RunImport(ctx); err != nil {
		logging.Fatal().Err(err).Msg("数据导入失败")
	}

	if err := model.Initialize(ctx); err != nil {
		logging.Fatal().Err(err).Str("provider", cfg.EmbeddingProvider).Msg("向量模型初始化失败")
	}
	logging.Info().Str("provider", cfg.EmbeddingProvider).Int("dimension", model.Dimension()).Msg("向量模型已就绪")

	if cfg.SkipEmbeddings {
		logging.Info().Msg("跳过向量生成")
	} else if _, err := embedder.EmbedAll(ctx); err != nil {
		logging.Fatal().Err(err).Msg("向量生成失败")
	}

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(movies, similarity, embedder, importer)
	r := router.New(h, router.Options{AdminToken: cfg.AdminToken})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Minute, // 管理接口会跑完整个流水线
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("服务器启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("服务器强制关闭")
		os.Exit(1)
	}
	logging.Info().Msg("服务器已退出")
}
