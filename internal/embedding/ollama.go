package embedding

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ollamaRequest Ollama embedding API 请求结构
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaResponse Ollama embedding API 响应结构
type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// OllamaModel 调用本地 Ollama 生成向量
type OllamaModel struct {
	state
	host   string
	model  string
	client *http.Client
}

// NewOllamaModel host 形如 http://localhost:11434
func NewOllamaModel(host, model string) *OllamaModel {
	return &OllamaModel{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Initialize 探测一次确认模型已拉取并记录维度
func (m *OllamaModel) Initialize(ctx context.Context) error {
	return m.initialize(ctx, m.request)
}

func (m *OllamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text, m.request)
}

func (m *OllamaModel) request(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(ollamaRequest{Model: m.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request to ollama failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ollama returned error status: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned error status %d: %s", resp.StatusCode, result.Error)
	}

	return result.Embedding, nil
}
