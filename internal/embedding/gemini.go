package embedding

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiRequest Gemini embedContent 请求结构
type geminiRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

// geminiResponse Gemini embedContent 响应结构
type geminiResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiModel 调用 Gemini embedContent 生成向量
type GeminiModel struct {
	state
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiModel(apiKey, model string) *GeminiModel {
	return &GeminiModel{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *GeminiModel) Initialize(ctx context.Context) error {
	if m.apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return m.initialize(ctx, m.request)
}

func (m *GeminiModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text, m.request)
}

func (m *GeminiModel) request(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiRequest{
		Model:   "models/" + m.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent?key=%s", m.baseURL, m.model, url.QueryEscape(m.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request to gemini failed: %w", err)
	}
	defer resp.Body.Close()

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini api error: %s", result.Error.Message)
	}
	if result.Embedding == nil || len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding")
	}
	return result.Embedding.Values, nil
}
