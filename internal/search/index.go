package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
)

// ErrDocumentMissing 局部更新的目标文档不存在（document_missing_exception）
var ErrDocumentMissing = errors.New("search: document missing")

// ResponseError 非 2xx 响应
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("search: status %d", e.Status)
	}
	return fmt.Sprintf("search: status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// Index 绑定单个 Elasticsearch 索引的客户端
type Index struct {
	es   *elasticsearch.Client
	name string
}

// NewIndex 创建客户端，不会立即连接
func NewIndex(url, name string) (*Index, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return NewIndexWithClient(es, name), nil
}

func NewIndexWithClient(es *elasticsearch.Client, name string) *Index {
	return &Index{es: es, name: name}
}

// Name 索引名
func (i *Index) Name() string {
	return i.name
}

// Ping 检查集群是否可达
func (i *Index) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// Exists 索引是否存在
func (i *Index) Exists(ctx context.Context) (bool, error) {
	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &ResponseError{Status: res.StatusCode}
	}
}

// Create 按给定 mapping 创建索引
func (i *Index) Create(ctx context.Context, mapping map[string]any) error {
	body, err := encode(mapping)
	if err != nil {
		return err
	}
	res, err := i.es.Indices.Create(i.name,
		i.es.Indices.Create.WithBody(body),
		i.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// Delete 删除索引
func (i *Index) Delete(ctx context.Context) error {
	res, err := i.es.Indices.Delete([]string{i.name}, i.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// Update 局部更新文档，文档不存在时返回 ErrDocumentMissing
func (i *Index) Update(ctx context.Context, id int, partial map[string]any) error {
	body, err := encode(map[string]any{"doc": partial})
	if err != nil {
		return err
	}
	res, err := i.es.Update(i.name, strconv.Itoa(id), body, i.es.Update.WithContext(ctx))
	if err != nil {
		return err
	}
	err = checkResponse(res)

	var re *ResponseError
	if errors.As(err, &re) && re.Status == http.StatusNotFound && re.Type == "document_missing_exception" {
		return fmt.Errorf("%w: %d", ErrDocumentMissing, id)
	}
	return err
}

// Put 以指定 id 写入完整文档（存在则覆盖）
func (i *Index) Put(ctx context.Context, id int, doc any) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}
	res, err := i.es.Index(i.name, body,
		i.es.Index.WithDocumentID(strconv.Itoa(id)),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// Refresh 让最近的写入对检索可见
func (i *Index) Refresh(ctx context.Context) error {
	res, err := i.es.Indices.Refresh(
		i.es.Indices.Refresh.WithIndex(i.name),
		i.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// Get 按 id 读取文档，不存在返回 nil, nil
func (i *Index) Get(ctx context.Context, id int) (*Document, error) {
	res, err := i.es.Get(i.name, strconv.Itoa(id), i.es.Get.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, parseError(res)
	}

	var hit struct {
		Source Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hit); err != nil {
		return nil, fmt.Errorf("解析文档失败: %w", err)
	}
	return &hit.Source, nil
}

// Search 在 title / overview 上做 multi_match
func (i *Index) Search(ctx context.Context, query string, from, size int) ([]Document, error) {
	body, err := encode(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title", "overview"},
			},
		},
		"from": from,
		"size": size,
	})
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(body),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, parseError(res)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}

	docs := make([]Document, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}

// checkResponse 关闭 body，非 2xx 转为 ResponseError
func checkResponse(res *esapi.Response) error {
	defer res.Body.Close()
	if res.IsError() {
		return parseError(res)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func parseError(res *esapi.Response) error {
	re := &ResponseError{Status: res.StatusCode}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil || len(payload.Error) == 0 {
		return re
	}

	var cause struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload.Error, &cause); err == nil {
		re.Type, re.Reason = cause.Type, cause.Reason
	} else {
		var msg string
		if json.Unmarshal(payload.Error, &msg) == nil {
			re.Reason = msg
		}
	}
	return re
}

func encode(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}
