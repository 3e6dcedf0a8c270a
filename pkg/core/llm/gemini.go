package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the embedding model used when none is configured.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiEncoder embeds texts with the Gemini API through the GenAI SDK.
type GeminiEncoder struct {
	client *genai.Client
	Model  string
}

var _ Encoder = (*GeminiEncoder)(nil)

// NewGeminiEncoder creates the client once; the encoder is reused for the
// whole run.
func NewGeminiEncoder(ctx context.Context, apiKey, model string) (*GeminiEncoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini encoder: %w (set GEMINI_API_KEY)", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiEncoder{client: client, Model: model}, nil
}

// Embed sends all texts in one EmbedContent request.
func (e *GeminiEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedding returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini embedding %d is empty", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// Close is a no-op: the GenAI client holds no connection to release.
func (e *GeminiEncoder) Close() error { return nil }
