package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultDashScopeModel is the Qwen text embedding model.
	DefaultDashScopeModel = "text-embedding-v3"
	// DefaultDashScopeURL is the native DashScope embedding endpoint.
	DefaultDashScopeURL = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
)

// DashScopeEncoder embeds texts with the Qwen embedding models over the
// DashScope HTTP API.
type DashScopeEncoder struct {
	apiKey string
	Model  string
	URL    string
	client *http.Client
}

var _ Encoder = (*DashScopeEncoder)(nil)

func NewDashScopeEncoder(apiKey, model, url string) (*DashScopeEncoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("dashscope encoder: %w (set DASHSCOPE_API_KEY or QWEN_API_KEY)", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultDashScopeModel
	}
	if url == "" {
		url = DefaultDashScopeURL
	}
	return &DashScopeEncoder{
		apiKey: apiKey,
		Model:  model,
		URL:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Texts []string `json:"texts"`
	} `json:"input"`
}

type dashScopeResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float32 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Embed posts all texts in one request. Vectors are placed by text_index, so
// the response order does not matter.
func (e *DashScopeEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var body dashScopeRequest
	body.Model = e.Model
	body.Input.Texts = texts
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashscope request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dashscope api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dashscope api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result dashScopeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode dashscope response: %w", err)
	}
	if result.Code != "" {
		return nil, fmt.Errorf("dashscope api error: %s - %s", result.Code, result.Message)
	}

	out := make([][]float32, len(texts))
	for _, emb := range result.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			return nil, fmt.Errorf("dashscope returned text_index %d for %d texts", emb.TextIndex, len(texts))
		}
		out[emb.TextIndex] = emb.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("dashscope returned no embedding for text %d", i)
		}
	}
	return out, nil
}

func (e *DashScopeEncoder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
