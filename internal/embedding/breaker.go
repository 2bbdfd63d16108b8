package embedding

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/metrics"
)

// BreakerOptions 熔断参数
type BreakerOptions struct {
	// MaxFailures 连续失败多少次后熔断，<=0 不启用
	MaxFailures int
	// Cooldown 熔断后多久放行一次试探请求
	Cooldown time.Duration
}

// BreakerModel 后端连续失败后 Embed 直接返回 gobreaker.ErrOpenState，不再请求后端
type BreakerModel struct {
	Model
	name string
	cb   *gobreaker.CircuitBreaker[[]float32]
}

// WithBreaker 给模型套上熔断；MaxFailures<=0 时原样返回
func WithBreaker(m Model, name string, opts BreakerOptions) Model {
	if opts.MaxFailures <= 0 {
		return m
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	threshold := uint32(opts.MaxFailures)

	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	cb := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 调用方取消不算后端故障
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrNotInitialized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("向量模型熔断状态变化")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &BreakerModel{Model: m, name: name, cb: cb}
}

func (b *BreakerModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := b.cb.Execute(func() ([]float32, error) {
		return b.Model.Embed(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRejected.WithLabelValues(b.name).Inc()
	}
	return vec, err
}
