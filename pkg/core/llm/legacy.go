package llm

import (
	"context"
	"fmt"

	legacygenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultLegacyModel is the embedding model of the older Gemini SDK.
const DefaultLegacyModel = "text-embedding-004"

// LegacyGeminiEncoder embeds texts with the generative-ai-go SDK. Kept for
// deployments pinned to the older client.
type LegacyGeminiEncoder struct {
	client *legacygenai.Client
	model  *legacygenai.EmbeddingModel
}

var _ Encoder = (*LegacyGeminiEncoder)(nil)

func NewLegacyGeminiEncoder(ctx context.Context, apiKey, model string) (*LegacyGeminiEncoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("legacy gemini encoder: %w (set GEMINI_API_KEY)", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultLegacyModel
	}
	client, err := legacygenai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create legacy Gemini client: %w", err)
	}
	return &LegacyGeminiEncoder{client: client, model: client.EmbeddingModel(model)}, nil
}

// Embed batches all texts into one BatchEmbedContents call.
func (e *LegacyGeminiEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(legacygenai.Text(t))
	}
	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("legacy gemini embedding failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("legacy gemini embedding returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *LegacyGeminiEncoder) Close() error {
	return e.client.Close()
}
