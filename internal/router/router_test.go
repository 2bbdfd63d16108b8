package router_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinematch/internal/handler"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/router"
	"github.com/user/cinematch/internal/service"
)

type stubMovies struct {
	movies  map[int]model.Movie
	created []model.Movie
}

func (s *stubMovies) SearchMovies(ctx context.Context, query string, page, limit int) (*model.SearchPage, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", service.ErrValidation)
	}
	return &model.SearchPage{Query: query, Page: page, Limit: limit, Items: []model.Movie{s.movies[1]}}, nil
}

func (s *stubMovies) GetMovieByID(ctx context.Context, id int) (*model.Movie, error) {
	m, ok := s.movies[id]
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", id, service.ErrNotFound)
	}
	return &m, nil
}

func (s *stubMovies) CreateMovie(ctx context.Context, movie *model.Movie) (*model.Movie, error) {
	if movie.ReleaseDate == "" {
		return nil, fmt.Errorf("release_date: %w", service.ErrValidation)
	}
	if _, ok := s.movies[movie.ID]; ok {
		return nil, fmt.Errorf("movie %d: %w", movie.ID, service.ErrConflict)
	}
	s.created = append(s.created, *movie)
	return movie, nil
}

type stubSimilarity struct {
	lastLimit int
	err       error
}

func (s *stubSimilarity) FindSimilar(ctx context.Context, movieID, limit int) ([]model.Movie, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []model.Movie{{ID: movieID + 1, Title: "next"}}, nil
}

func (s *stubSimilarity) FindSimilarScored(ctx context.Context, movieID, limit int) ([]model.ScoredMovie, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []model.ScoredMovie{{Movie: model.Movie{ID: movieID + 1, Title: "next"}, Similarity: 0.75}}, nil
}

type stubAdmin struct {
	embeds, imports int
}

func (s *stubAdmin) EmbedAll(ctx context.Context) (*service.EmbedReport, error) {
	s.embeds++
	return &service.EmbedReport{Total: 3, Embedded: 3}, nil
}

func (s *stubAdmin) RunImport(ctx context.Context) (*service.ImportReport, error) {
	s.imports++
	return &service.ImportReport{Loaded: 2, Upserted: 2, Indexed: 2}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

func setup(t *testing.T, token string) (*gin.Engine, *stubMovies, *stubSimilarity, *stubAdmin) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	movies := &stubMovies{movies: map[int]model.Movie{1: {ID: 1, Title: "Heat", ReleaseDate: "1995-12-15"}}}
	sim := &stubSimilarity{}
	admin := &stubAdmin{}
	h := handler.NewHandler(movies, sim, admin, admin)
	return router.New(h, router.Options{AdminToken: token}), movies, sim, admin
}

func do(t *testing.T, r http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthAndMetrics(t *testing.T) {
	r, _, _, _ := setup(t, "")

	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetMovie(t *testing.T) {
	r, _, _, _ := setup(t, "")

	w, env := do(t, r, http.MethodGet, "/api/movies/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var m model.Movie
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, "Heat", m.Title)
	assert.NotContains(t, string(env.Data), "embedding")

	w, env = do(t, r, http.MethodGet, "/api/movies/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)

	w, _ = do(t, r, http.MethodGet, "/api/movies/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchMovies(t *testing.T) {
	r, _, _, _ := setup(t, "")

	w, env := do(t, r, http.MethodGet, "/api/movies/search?query=heat&page=2&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page model.SearchPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.Limit)

	w, _ = do(t, r, http.MethodGet, "/api/movies/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimilarMovies(t *testing.T) {
	r, _, sim, _ := setup(t, "")

	w, env := do(t, r, http.MethodGet, "/api/movies/1/similar?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, sim.lastLimit)
	var movies []model.Movie
	require.NoError(t, json.Unmarshal(env.Data, &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, 2, movies[0].ID)

	sim.err = fmt.Errorf("embedding for movie 1: %w", service.ErrNotFound)
	w, _ = do(t, r, http.MethodGet, "/api/movies/1/similar", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	sim.err = errors.New("connection reset")
	w, env = do(t, r, http.MethodGet, "/api/movies/1/similar", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, env.Message, "connection reset")
}

func TestCreateMovie(t *testing.T) {
	r, movies, _, _ := setup(t, "")

	w, _ := do(t, r, http.MethodPost, "/api/movies", `{"id": 9, "title": "New", "release_date": "2024-01-01"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, movies.created, 1)
	assert.Equal(t, 9, movies.created[0].ID)

	w, _ = do(t, r, http.MethodPost, "/api/movies", `{"id": 10, "title": "No date"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/movies", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/movies", `{"id": 1, "title": "Heat again", "release_date": "1995-12-15"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _, _, admin := setup(t, "s3cret")

	w, _ := do(t, r, http.MethodPost, "/admin/embeddings", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodPost, "/admin/embeddings", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, admin.embeds)

	w, env := do(t, r, http.MethodPost, "/admin/embeddings", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, admin.embeds)
	var report service.EmbedReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.Embedded)

	w, _ = do(t, r, http.MethodPost, "/admin/import", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, admin.imports)
}

func TestAdminSimilarScored(t *testing.T) {
	r, _, sim, _ := setup(t, "s3cret")

	w, _ := do(t, r, http.MethodGet, "/admin/movies/1/similar/scored", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(t, r, http.MethodGet, "/admin/movies/1/similar/scored?limit=4", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, sim.lastLimit)
	var scored []model.ScoredMovie
	require.NoError(t, json.Unmarshal(env.Data, &scored))
	require.Len(t, scored, 1)
	assert.Equal(t, 2, scored[0].Movie.ID)
	assert.InDelta(t, 0.75, scored[0].Similarity, 1e-9)

	sim.err = fmt.Errorf("movie 1: %w", service.ErrNotFound)
	w, _ = do(t, r, http.MethodGet, "/admin/movies/1/similar/scored", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesAbsentWithoutToken(t *testing.T) {
	r, _, _, admin := setup(t, "")

	w, _ := do(t, r, http.MethodPost, "/admin/import", "", "Authorization", "Bearer ")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, admin.imports)
}
