package search

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// BulkOperation bulk 请求中的一条操作
type BulkOperation struct {
	Action   string // index | create
	ID       int
	Document any
}

// ErrorCause 单条操作的错误
type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkItemResult 单条操作的结果
type BulkItemResult struct {
	Index  string      `json:"_index"`
	ID     string      `json:"_id"`
	Status int         `json:"status"`
	Error  *ErrorCause `json:"error,omitempty"`
}

// BulkResponse bulk 响应，Items 与请求中的操作一一对应
type BulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]BulkItemResult `json:"items"`
}

// Bulk 一次提交全部操作，refresh=true 保证返回后可检索
// 传输层失败返回 error；单条失败体现在 BulkResponse 里
func (i *Index) Bulk(ctx context.Context, ops []BulkOperation) (*BulkResponse, error) {
	if len(ops) == 0 {
		return &BulkResponse{}, nil
	}

	var buf bytes.Buffer
	for _, op := range ops {
		action := op.Action
		if action == "" {
			action = "index"
		}
		meta := map[string]any{action: map[string]any{"_index": i.name, "_id": strconv.Itoa(op.ID)}}
		if err := writeLine(&buf, meta); err != nil {
			return nil, err
		}
		if err := writeLine(&buf, op.Document); err != nil {
			return nil, err
		}
	}

	res, err := i.es.Bulk(&buf,
		i.es.Bulk.WithIndex(i.name),
		i.es.Bulk.WithRefresh("true"),
		i.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, parseError(res)
	}

	var out BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	return &out, nil
}

func writeLine(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode bulk line: %w", err)
	}
	buf.Write(b)
	buf.WriteByte('\n')
	return nil
}
