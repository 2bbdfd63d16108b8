package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/metrics"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/search"
	"golang.org/x/sync/errgroup"
)

// ImportOptions 导入流水线参数
type ImportOptions struct {
	DatasetPath   string
	MaxRetries    int
	RetryInterval time.Duration
}

// BulkFailure bulk 中单条失败
type BulkFailure struct {
	Document  int    `json:"document"`
	Operation string `json:"operation"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
}

// BulkReport 批量写入索引的结果
type BulkReport struct {
	Indexed  int           `json:"indexed"`
	Failures []BulkFailure `json:"failures,omitempty"`
}

// Failed 是否有部分文档写入失败
func (r *BulkReport) Failed() bool {
	return len(r.Failures) > 0
}

// ImportReport 一次完整导入的统计
type ImportReport struct {
	Loaded   int `json:"loaded"`
	Skipped  int `json:"skipped"`
	Upserted int `json:"upserted"`
	Indexed  int `json:"indexed"`
	Failed   int `json:"failed"`
}

// ImportService 冷启动时把数据集同时写入主存储和检索索引
type ImportService struct {
	store    CanonicalStore
	index    SearchIndex
	validate *validator.Validate
	opts     ImportOptions
	log      zerolog.Logger
}

func NewImportService(store CanonicalStore, index SearchIndex, opts ImportOptions) *ImportService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}
	return &ImportService{
		store:    store,
		index:    index,
		validate: validator.New(),
		opts:     opts,
		log:      logging.Component("Importer"),
	}
}

// WaitForReady 最多尝试 maxRetries 次，每次失败后等待 interval
func (s *ImportService) WaitForReady(ctx context.Context, name string, p Pinger, maxRetries int, interval time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = p.Ping(ctx)
		if lastErr == nil {
			s.log.Info().Str("store", name).Int("attempt", attempt).Msg("存储已就绪")
			return nil
		}
		s.log.Warn().Err(lastErr).Str("store", name).
			Int("attempt", attempt).Int("max", maxRetries).
			Msg("存储未就绪，稍后重试")
		if attempt == maxRetries {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w (last error: %v)", name, maxRetries, ErrUnavailable, lastErr)
}

// ResetDatasets 删除并重建两个存储
// 删除失败只记录警告，重建失败直接返回
func (s *ImportService) ResetDatasets(ctx context.Context) error {
	if err := s.store.Drop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("删除 movies 表失败，继续")
	}
	if err := s.store.Migrate(ctx); err != nil {
		return fmt.Errorf("recreate canonical schema: %w", err)
	}

	exists, err := s.index.Exists(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("检查索引是否存在失败，继续")
	}
	if exists {
		if err := s.index.Delete(ctx); err != nil {
			s.log.Warn().Err(err).Msg("删除索引失败，继续")
		}
	}
	if err := s.index.Create(ctx, search.MovieMapping()); err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	return nil
}

// LoadDataset 整体读取 JSON 数组，校验失败的记录丢弃
func (s *ImportService) LoadDataset(path string) ([]model.Movie, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read dataset %s: %w", path, err)
	}

	var records []model.Movie
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, 0, fmt.Errorf("parse dataset %s: %w", path, err)
	}

	kept := records[:0]
	skipped := 0
	for _, m := range records {
		// 数据集里的向量字段一律忽略
		m.Embedding = nil
		if err := s.validate.Struct(&m); err != nil {
			skipped++
			metrics.ImportRecords.WithLabelValues("skipped").Inc()
			s.log.Warn().Int("movie_id", m.ID).Str("title", m.Title).Err(err).Msg("记录校验失败，跳过")
			continue
		}
		kept = append(kept, m)
	}
	metrics.ImportRecords.WithLabelValues("loaded").Add(float64(len(kept)))
	return kept, skipped, nil
}

// UpsertCanonical 逐条写入主存储，遇到第一个失败即中止
func (s *ImportService) UpsertCanonical(ctx context.Context, records []model.Movie) (int, error) {
	for i := range records {
		if err := s.store.Upsert(ctx, &records[i]); err != nil {
			return i, fmt.Errorf("upsert movie %d: %w", records[i].ID, err)
		}
		metrics.ImportRecords.WithLabelValues("upserted").Inc()
	}
	return len(records), nil
}

// BulkIndex 一次 bulk 写入全部投影；单条失败汇总后作为一批警告输出
func (s *ImportService) BulkIndex(ctx context.Context, records []model.Movie) (*BulkReport, error) {
	ops := make([]search.BulkOperation, len(records))
	for i := range records {
		ops[i] = search.BulkOperation{
			Action:   "index",
			ID:       records[i].ID,
			Document: search.NewDocument(&records[i]),
		}
	}

	resp, err := s.index.Bulk(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("bulk index: %w", err)
	}

	report := &BulkReport{}
	for i, item := range resp.Items {
		for action, result := range item {
			if result.Error == nil {
				report.Indexed++
				continue
			}
			f := BulkFailure{Operation: action, Status: result.Status, Error: result.Error.Type + ": " + result.Error.Reason}
			if i < len(records) {
				f.Document = records[i].ID
			}
			report.Failures = append(report.Failures, f)
		}
	}
	metrics.ImportRecords.WithLabelValues("indexed").Add(float64(report.Indexed))
	metrics.ImportRecords.WithLabelValues("index_failed").Add(float64(len(report.Failures)))

	if report.Failed() {
		arr := zerolog.Arr()
		for _, f := range report.Failures {
			arr.Dict(zerolog.Dict().
				Int("document", f.Document).
				Str("operation", f.Operation).
				Int("status", f.Status).
				Str("error", f.Error))
		}
		s.log.Warn().Array("failures", arr).Int("failed", len(report.Failures)).Msg("部分文档写入索引失败")
	}
	return report, nil
}

// RunImport 等待 → 重置 → 读取 → 写主存储 → 写索引
func (s *ImportService) RunImport(ctx context.Context) (*ImportReport, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.WaitForReady(gctx, "postgres", s.store, s.opts.MaxRetries, s.opts.RetryInterval)
	})
	g.Go(func() error {
		return s.WaitForReady(gctx, "elasticsearch", s.index, s.opts.MaxRetries, s.opts.RetryInterval)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.ResetDatasets(ctx); err != nil {
		return nil, err
	}

	records, skipped, err := s.LoadDataset(s.opts.DatasetPath)
	if err != nil {
		return nil, err
	}
	report := &ImportReport{Loaded: len(records), Skipped: skipped}
	if len(records) == 0 {
		s.log.Warn().Str("path", s.opts.DatasetPath).Msg("数据集中没有可导入的记录")
		return report, nil
	}

	report.Upserted, err = s.UpsertCanonical(ctx, records)
	if err != nil {
		return report, err
	}

	bulk, err := s.BulkIndex(ctx, records)
	if err != nil {
		return report, err
	}
	report.Indexed = bulk.Indexed
	report.Failed = len(bulk.Failures)

	s.log.Info().
		Int("loaded", report.Loaded).
		Int("skipped", report.Skipped).
		Int("upserted", report.Upserted).
		Int("indexed", report.Indexed).
		Int("failed", report.Failed).
		Msg("数据导入完成")
	return report, nil
}

