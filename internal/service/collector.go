package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/model"
	"golang.org/x/time/rate"
)

// DefaultTMDBBaseURL TMDB v3 接口地址
const DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

// defaultTMDBRate 每秒请求数
const defaultTMDBRate = 4

type tmdbDiscoverResponse struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Results    []model.Movie `json:"results"`
}

// Collector 从 TMDB 热门列表生成导入用的数据集文件
type Collector struct {
	token   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewCollector(token string) *Collector {
	return &Collector{
		token:   token,
		baseURL: DefaultTMDBBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(defaultTMDBRate), 1),
		log:     logging.Component("TMDB"),
	}
}

// WithBaseURL 替换接口地址（测试用）
func (c *Collector) WithBaseURL(u string) *Collector {
	c.baseURL = u
	return c
}

// WithRateLimit 每秒最多 perSecond 个请求，<=0 时不限速
func (c *Collector) WithRateLimit(perSecond int) *Collector {
	if perSecond <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return c
}

// Collect 按热度抓取 pages 页电影
func (c *Collector) Collect(ctx context.Context, pages int) ([]model.Movie, error) {
	if c.token == "" {
		return nil, fmt.Errorf("TMDB_API_TOKEN is empty: %w", ErrValidation)
	}
	if pages < 1 {
		pages = 1
	}

	var all []model.Movie
	for page := 1; page <= pages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("discover page %d: %w", page, err)
		}
		resp, err := c.discover(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("discover page %d: %w", page, err)
		}
		all = append(all, resp.Results...)
		c.log.Info().Int("page", page).Int("count", len(resp.Results)).Msg("已抓取")
		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}
	return all, nil
}

// CollectToFile 抓取后以缩进 JSON 写入 path
func (c *Collector) CollectToFile(ctx context.Context, pages int, path string) (int, error) {
	movies, err := c.Collect(ctx, pages)
	if err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode dataset: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write dataset %s: %w", path, err)
	}
	c.log.Info().Int("total", len(movies)).Str("path", path).Msg("数据集已保存")
	return len(movies), nil
}

func (c *Collector) discover(ctx context.Context, page int) (*tmdbDiscoverResponse, error) {
	q := url.Values{}
	q.Set("sort_by", "popularity.desc")
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/discover/movie?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDB returned status %d", resp.StatusCode)
	}

	var out tmdbDiscoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
