package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/search"
	"gorm.io/gorm"
)

// memStore 内存版主存储
type memStore struct {
	mu      sync.Mutex
	movies  map[int]model.Movie
	reads   int
	pingErr error

	// block 非 nil 时 FindByID 先等它关闭（或 ctx 取消）
	block   chan struct{}
	entered chan struct{}

	failUpsert   map[int]error
	failEmbed    map[int]error
	createErr    error
	dropErr      error
	migrateErr   error
	dropped      bool
	migrateCalls int
}

func newMemStore(movies ...model.Movie) *memStore {
	s := &memStore{movies: map[int]model.Movie{}, failUpsert: map[int]error{}, failEmbed: map[int]error{}}
	for _, m := range movies {
		s.movies[m.ID] = m
	}
	return s
}

func movieWithVec(id int, title string, vec ...float32) model.Movie {
	m := model.Movie{ID: id, Title: title, ReleaseDate: "2020-01-01"}
	if vec != nil {
		m.SetEmbedding(vec)
	}
	return m
}

func moviesFor(ids ...int) []model.Movie {
	out := make([]model.Movie, len(ids))
	for i, id := range ids {
		out[i] = movieWithVec(id, "m"+strconv.Itoa(id))
	}
	return out
}

func (s *memStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *memStore) get(id int) (model.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	return m, ok
}

func (s *memStore) FindByID(ctx context.Context, id int) (*model.Movie, error) {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	m, ok := s.movies[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memStore) sorted(skip int) []model.Movie {
	out := make([]model.Movie, 0, len(s.movies))
	for id, m := range s.movies {
		if id == skip {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) FindAll(ctx context.Context) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.sorted(0), nil
}

func (s *memStore) FindAllExcept(ctx context.Context, id int) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.sorted(id), nil
}

func (s *memStore) Upsert(ctx context.Context, movie *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpsert[movie.ID]; err != nil {
		return err
	}
	m := *movie
	if old, ok := s.movies[movie.ID]; ok {
		m.Embedding = old.Embedding
	} else {
		m.Embedding = nil
	}
	s.movies[movie.ID] = m
	return nil
}

func (s *memStore) SaveEmbedding(ctx context.Context, id int, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failEmbed[id]; err != nil {
		return err
	}
	m, ok := s.movies[id]
	if !ok {
		return errors.New("record not found")
	}
	m.SetEmbedding(vec)
	s.movies[id] = m
	return nil
}

func (s *memStore) Create(ctx context.Context, movie *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.movies[movie.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	s.movies[movie.ID] = *movie
	return nil
}

func (s *memStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropErr != nil {
		return s.dropErr
	}
	s.dropped = true
	s.movies = map[int]model.Movie{}
	return nil
}

func (s *memStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateCalls++
	return s.migrateErr
}

// memIndex 内存版检索索引
type memIndex struct {
	mu        sync.Mutex
	docs      map[int]map[string]any
	exists    bool
	updateErr error
	putErr    error
	updates   int
	puts      int
	refreshes int
}

func newMemIndex() *memIndex {
	return &memIndex{docs: map[int]map[string]any{}, exists: true}
}

func (x *memIndex) Ping(ctx context.Context) error { return nil }

func (x *memIndex) Exists(ctx context.Context) (bool, error) { return x.exists, nil }

func (x *memIndex) Create(ctx context.Context, mapping map[string]any) error {
	x.exists = true
	return nil
}

func (x *memIndex) Delete(ctx context.Context) error {
	x.exists = false
	x.docs = map[int]map[string]any{}
	return nil
}

func (x *memIndex) Update(ctx context.Context, id int, partial map[string]any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.updates++
	if x.updateErr != nil {
		return x.updateErr
	}
	doc, ok := x.docs[id]
	if !ok {
		return search.ErrDocumentMissing
	}
	for k, v := range partial {
		doc[k] = v
	}
	return nil
}

func (x *memIndex) Put(ctx context.Context, id int, doc any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.puts++
	if x.putErr != nil {
		return x.putErr
	}
	switch d := doc.(type) {
	case map[string]any:
		x.docs[id] = d
	case search.Document:
		x.docs[id] = map[string]any{"id": d.ID, "title": d.Title}
	default:
		x.docs[id] = map[string]any{"id": id}
	}
	return nil
}

func (x *memIndex) Refresh(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.refreshes++
	return nil
}

func (x *memIndex) Bulk(ctx context.Context, ops []search.BulkOperation) (*search.BulkResponse, error) {
	resp := &search.BulkResponse{}
	for _, op := range ops {
		x.docs[op.ID] = map[string]any{"id": op.ID}
		resp.Items = append(resp.Items, map[string]search.BulkItemResult{op.Action: {Status: 201}})
	}
	return resp, nil
}

func (x *memIndex) Search(ctx context.Context, query string, from, size int) ([]search.Document, error) {
	return nil, nil
}

func (x *memIndex) doc(id int) (map[string]any, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	d, ok := x.docs[id]
	return d, ok
}

// fakeModel 按文本返回预设向量
type fakeModel struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	calls   int
}

func (m *fakeModel) Initialize(ctx context.Context) error { return nil }

func (m *fakeModel) Dimension() int { return 2 }

func (m *fakeModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.fail[text]; err != nil {
		return nil, err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 1}, nil
}

// mapCache 记录读写次数的缓存
type mapCache struct {
	mu     sync.Mutex
	items  map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
	sets   int
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = value
	c.ttls[key] = ttl
	return nil
}
