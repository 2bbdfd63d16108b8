package embedding

import (
	"fmt"

	"github.com/user/cinematch/internal/config"
)

// New 按 EMBEDDING_PROVIDER 创建模型，EMBED_BREAKER_FAILURES>0 时带熔断
func New(cfg *config.Config) (Model, error) {
	var m Model
	switch cfg.EmbeddingProvider {
	case "", "ollama":
		m = NewOllamaModel(cfg.OllamaHost, cfg.OllamaModel)
	case "gemini":
		m = NewGeminiModel(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return WithBreaker(m, "embedding", BreakerOptions{
		MaxFailures: cfg.EmbedBreakerFailures,
		Cooldown:    cfg.EmbedBreakerCooldown,
	}), nil
}
