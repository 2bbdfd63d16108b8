package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/user/cinematch/internal/cache"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/metrics"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSimilarLimit 未指定数量时返回的条数
	DefaultSimilarLimit = 10
	// DefaultSimilarityTTL 相似结果缓存时间
	DefaultSimilarityTTL = 3600 * time.Second
)

// SimilarityService 基于向量余弦相似度的相似电影推荐
// 缓存只按 TTL 过期，重新生成向量后旧结果最多保留一个 TTL
type SimilarityService struct {
	store CanonicalStore
	cache cache.VectorCache
	ttl   time.Duration
	topK  int
	sf    singleflight.Group
	log   zerolog.Logger
}

// NewSimilarityService ttl<=0 时使用 3600 秒
func NewSimilarityService(store CanonicalStore, c cache.VectorCache, ttl time.Duration) *SimilarityService {
	if ttl <= 0 {
		ttl = DefaultSimilarityTTL
	}
	return &SimilarityService{
		store: store,
		cache: c,
		ttl:   ttl,
		topK:  DefaultSimilarLimit,
		log:   logging.Component("SimilarityService"),
	}
}

// WithDefaultLimit 修改 limit<=0 时的返回条数
func (s *SimilarityService) WithDefaultLimit(n int) *SimilarityService {
	if n > 0 {
		s.topK = n
	}
	return s
}

// SimilarCacheKey 缓存键
func SimilarCacheKey(movieID, limit int) string {
	return fmt.Sprintf("similar_movies:%d:%d", movieID, limit)
}

// FindSimilar 返回与指定电影最相似的 limit 部电影（不含自身、不含向量）
// 源电影不存在或没有向量时返回 ErrNotFound
func (s *SimilarityService) FindSimilar(ctx context.Context, movieID, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = s.topK
	}
	key := SimilarCacheKey(movieID, limit)

	if movies, ok := s.fromCache(ctx, key); ok {
		metrics.SimilarityCacheHits.Inc()
		return movies, nil
	}
	metrics.SimilarityCacheMisses.Inc()

	// 同一个 key 的并发未命中只计算一次
	// 共享的计算不跟随任何一个调用方取消，每个调用方只按自己的 ctx 放弃等待
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		scored, err := s.rank(shared, movieID, limit)
		if err != nil {
			return nil, err
		}
		movies := make([]model.Movie, len(scored))
		for i, sm := range scored {
			movies[i] = sm.Movie
		}
		s.save(shared, key, movies)
		return movies, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Movie), nil
	}
}

// FindSimilarScored 同 FindSimilar 但附带分数，不读写缓存
func (s *SimilarityService) FindSimilarScored(ctx context.Context, movieID, limit int) ([]model.ScoredMovie, error) {
	if limit <= 0 {
		limit = s.topK
	}
	return s.rank(ctx, movieID, limit)
}

func (s *SimilarityService) fromCache(ctx context.Context, key string) ([]model.Movie, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("读取相似度缓存失败，按未命中处理")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var movies []model.Movie
	if err := json.Unmarshal([]byte(raw), &movies); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("相似度缓存内容无法解析，重新计算")
		return nil, false
	}
	return movies, true
}

func (s *SimilarityService) save(ctx context.Context, key string, movies []model.Movie) {
	raw, err := json.Marshal(movies)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("序列化相似结果失败")
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("写入相似度缓存失败")
	}
}

// rank 暴力扫描全部候选
// 没有向量、维度不一致或相似度为 NaN 的候选不参与排序；同分保持存储顺序
func (s *SimilarityService) rank(ctx context.Context, movieID, limit int) ([]model.ScoredMovie, error) {
	start := time.Now()
	defer func() { metrics.SimilarityDuration.Observe(time.Since(start).Seconds()) }()

	source, err := s.store.FindByID(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", movieID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("movie %d: %w", movieID, ErrNotFound)
	}
	if !source.HasEmbedding() {
		return nil, fmt.Errorf("embedding for movie %d: %w", movieID, ErrNotFound)
	}
	sourceVec := source.EmbeddingSlice()

	candidates, err := s.store.FindAllExcept(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	scored := make([]model.ScoredMovie, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.ID == movieID {
			continue
		}
		if !c.HasEmbedding() {
			metrics.SimilarityCandidatesSkipped.WithLabelValues("no_embedding").Inc()
			continue
		}
		vec := c.EmbeddingSlice()
		if len(vec) != len(sourceVec) {
			metrics.SimilarityCandidatesSkipped.WithLabelValues("dimension").Inc()
			continue
		}
		sim := utils.CosineSimilarity(sourceVec, vec)
		if math.IsNaN(sim) {
			metrics.SimilarityCandidatesSkipped.WithLabelValues("nan").Inc()
			continue
		}
		scored = append(scored, model.ScoredMovie{Movie: c.WithoutEmbedding(), Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
