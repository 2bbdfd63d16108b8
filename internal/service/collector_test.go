package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorWritesDataset(t *testing.T) {
	var pages []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/movie", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		assert.Equal(t, "popularity.desc", r.URL.Query().Get("sort_by"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_pages": 2,
			"results": []map[string]any{
				{"id": len(pages), "title": "Movie " + page, "release_date": "2020-01-0" + page, "genre_ids": []int{18}},
			},
		})
	}))
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "data", "movies.json")
	n, err := NewCollector("tkn").WithBaseURL(ts.URL).WithRateLimit(0).CollectToFile(context.Background(), 5, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "2"}, pages)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	// 生成的文件可以直接被导入流水线读取
	records, skipped, err := NewImportService(newMemStore(), newMemIndex(), ImportOptions{}).LoadDataset(out)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "Movie 2", records[1].Title)
	assert.Contains(t, string(raw), "\n  ")
}

func TestCollectorRequiresToken(t *testing.T) {
	_, err := NewCollector("").Collect(context.Background(), 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCollectorRateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"total_pages": 10, "results": []map[string]any{}})
	}))
	defer ts.Close()

	// 每秒 1 个请求，第二页必须等待，超时后放弃
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := NewCollector("tkn").WithBaseURL(ts.URL).WithRateLimit(1).Collect(ctx, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover page 2")
	assert.EqualValues(t, 1, calls.Load())
}
