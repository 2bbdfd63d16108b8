// Package estest 提供内存版 Elasticsearch HTTP 服务，只实现本项目用到的接口
package estest

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// Server 内存索引，Docs 以 _id 为键保存 _source
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	indices map[string]map[string]map[string]any
	mapping map[string]json.RawMessage

	// FailBulkIDs 中的文档在 bulk 时返回单条错误
	FailBulkIDs map[string]bool
	// FailCreate 为 true 时创建索引返回 500
	FailCreate bool
	// Down 为 true 时所有请求返回 503
	Down bool

	Requests []string
}

// NewServer 启动服务并在测试结束时关闭
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		indices:     map[string]map[string]map[string]any{},
		mapping:     map[string]json.RawMessage{},
		FailBulkIDs: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Doc 读取文档 _source
func (s *Server) Doc(index, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.indices[index][id]
	return doc, ok
}

// Count 索引中的文档数
func (s *Server) Count(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indices[index])
}

// Mapping 创建索引时提交的 body
func (s *Server) Mapping(index string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping[index]
}

// Seed 直接写入文档
func (s *Server) Seed(index, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indices[index] == nil {
		s.indices[index] = map[string]map[string]any{}
	}
	s.indices[index][id] = doc
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, r.Method+" "+r.URL.Path)

	if s.Down {
		writeError(w, http.StatusServiceUnavailable, "cluster_unavailable", "down")
		return
	}

	body, _ := io.ReadAll(r.Body)
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]any{"version": map[string]any{"number": "8.15.0"}})
	case len(parts) == 1 && parts[0] == "_bulk":
		s.bulk(w, "", body)
	case len(parts) == 1:
		s.indexAdmin(w, r.Method, parts[0], body)
	case len(parts) == 2 && parts[1] == "_bulk":
		s.bulk(w, parts[0], body)
	case len(parts) == 2 && parts[1] == "_search":
		s.search(w, parts[0], body)
	case len(parts) == 2 && parts[1] == "_refresh":
		writeJSON(w, http.StatusOK, map[string]any{})
	case len(parts) == 3 && parts[1] == "_doc":
		s.doc(w, r.Method, parts[0], parts[2], body)
	case len(parts) == 3 && parts[1] == "_update":
		s.update(w, parts[0], parts[2], body)
	default:
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported path "+r.URL.Path)
	}
}

func (s *Server) indexAdmin(w http.ResponseWriter, method, index string, body []byte) {
	_, exists := s.indices[index]
	switch method {
	case http.MethodHead:
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodDelete:
		if !exists {
			writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+index+"]")
			return
		}
		delete(s.indices, index)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	case http.MethodPut:
		if s.FailCreate {
			writeError(w, http.StatusInternalServerError, "exception", "create failed")
			return
		}
		if exists {
			writeError(w, http.StatusBadRequest, "resource_already_exists_exception", "index ["+index+"] already exists")
			return
		}
		s.indices[index] = map[string]map[string]any{}
		s.mapping[index] = append(json.RawMessage(nil), body...)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": index})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", method)
	}
}

func (s *Server) doc(w http.ResponseWriter, method, index, id string, body []byte) {
	switch method {
	case http.MethodGet:
		doc, ok := s.indices[index][id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_index": index, "_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"_index": index, "_id": id, "found": true, "_source": doc})
	case http.MethodPut, http.MethodPost:
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			writeError(w, http.StatusBadRequest, "mapper_parsing_exception", err.Error())
			return
		}
		if s.indices[index] == nil {
			s.indices[index] = map[string]map[string]any{}
		}
		s.indices[index][id] = doc
		writeJSON(w, http.StatusCreated, map[string]any{"_index": index, "_id": id, "result": "created"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", method)
	}
}

func (s *Server) update(w http.ResponseWriter, index, id string, body []byte) {
	doc, ok := s.indices[index][id]
	if !ok {
		writeError(w, http.StatusNotFound, "document_missing_exception", "["+id+"]: document missing")
		return
	}
	var req struct {
		Doc map[string]any `json:"doc"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "x_content_parse_exception", err.Error())
		return
	}
	for k, v := range req.Doc {
		doc[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"_index": index, "_id": id, "result": "updated"})
}

func (s *Server) bulk(w http.ResponseWriter, defaultIndex string, body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)

	var items []map[string]any
	hasErrors := false
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var meta map[string]struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		}
		if err := json.Unmarshal(line, &meta); err != nil {
			writeError(w, http.StatusBadRequest, "illegal_argument_exception", err.Error())
			return
		}
		if !sc.Scan() {
			writeError(w, http.StatusBadRequest, "illegal_argument_exception", "missing source line")
			return
		}
		source := append([]byte(nil), sc.Bytes()...)

		for action, m := range meta {
			index := m.Index
			if index == "" {
				index = defaultIndex
			}
			if s.FailBulkIDs[m.ID] {
				hasErrors = true
				items = append(items, map[string]any{action: map[string]any{
					"_index": index, "_id": m.ID, "status": 400,
					"error": map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse field [release_date]"},
				}})
				continue
			}
			var doc map[string]any
			_ = json.Unmarshal(source, &doc)
			if s.indices[index] == nil {
				s.indices[index] = map[string]map[string]any{}
			}
			s.indices[index][m.ID] = doc
			items = append(items, map[string]any{action: map[string]any{
				"_index": index, "_id": m.ID, "status": 201, "result": "created",
			}})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

func (s *Server) search(w http.ResponseWriter, index string, body []byte) {
	var req struct {
		Query struct {
			MultiMatch struct {
				Query string `json:"query"`
			} `json:"multi_match"`
		} `json:"query"`
		From int `json:"from"`
		Size int `json:"size"`
	}
	_ = json.Unmarshal(body, &req)

	ids := make([]string, 0, len(s.indices[index]))
	for id := range s.indices[index] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})

	q := strings.ToLower(req.Query.MultiMatch.Query)
	var hits []map[string]any
	for _, id := range ids {
		doc := s.indices[index][id]
		title, _ := doc["title"].(string)
		overview, _ := doc["overview"].(string)
		if q != "" && !strings.Contains(strings.ToLower(title+" "+overview), q) {
			continue
		}
		hits = append(hits, map[string]any{"_index": index, "_id": id, "_source": doc})
	}

	from, size := req.From, req.Size
	if size == 0 {
		size = 10
	}
	if from > len(hits) {
		from = len(hits)
	}
	end := from + size
	if end > len(hits) {
		end = len(hits)
	}
	page := hits[from:end]
	if page == nil {
		page = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": page}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	writeJSON(w, status, map[string]any{
		"error":  map[string]any{"type": typ, "reason": reason},
		"status": status,
	})
}
