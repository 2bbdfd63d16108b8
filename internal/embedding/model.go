package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotInitialized Initialize 之前调用 Embed
	ErrNotInitialized = errors.New("embedding model not initialized")
	// ErrDimensionMismatch 模型返回的维度与初始化时探测的不一致
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// probeText 初始化时用来探测输出维度的文本
const probeText = "dimension probe"

// Model 文本 -> 定长向量
type Model interface {
	Initialize(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// embedFunc 实际请求后端的函数
type embedFunc func(ctx context.Context, text string) ([]float32, error)

// state 各实现共用的初始化状态与维度校验
type state struct {
	mu        sync.RWMutex
	ready     bool
	dimension int
}

// initialize 幂等；失败不缓存结果，但调用方不应重试
func (s *state) initialize(ctx context.Context, fn embedFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	vec, err := fn(ctx, probeText)
	if err != nil {
		return fmt.Errorf("load embedding model: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("load embedding model: backend returned an empty vector")
	}
	s.dimension = len(vec)
	s.ready = true
	return nil
}

func (s *state) embed(ctx context.Context, text string, fn embedFunc) ([]float32, error) {
	s.mu.RLock()
	ready, dim := s.ready, s.dimension
	s.mu.RUnlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	vec, err := fn(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)
	}
	return vec, nil
}

func (s *state) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}
