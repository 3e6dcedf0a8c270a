// Package llm provides the embedding encoders used to compare metric names
// semantically during consolidation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrMissingAPIKey is returned when a remote provider is selected without
	// a key in the config or the environment.
	ErrMissingAPIKey = errors.New("embedding api key not set")
	// ErrUnknownProvider is returned for provider names NewEncoderFromConfig
	// does not know.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Encoder turns texts into embedding vectors, one per text, in order.
// Owners must Close it when the consolidation run ends.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// Provider names accepted by NewEncoderFromConfig.
const (
	ProviderNone      = "none"
	ProviderGenAI     = "genai"
	ProviderLegacy    = "legacy"
	ProviderDashScope = "dashscope"
)

// Config selects and configures an encoder.
type Config struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	// Cache wraps the encoder in a CachedEncoder.
	Cache bool `mapstructure:"cache" yaml:"cache"`
}

// NewEncoderFromConfig builds the configured encoder. It returns (nil, nil)
// for the "none" provider (or an empty one): callers then fall back to
// lexical similarity.
func NewEncoderFromConfig(ctx context.Context, cfg Config) (Encoder, error) {
	var (
		enc Encoder
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderGenAI, "gemini":
		enc, err = NewGeminiEncoder(ctx, apiKey(cfg.APIKey, "GEMINI_API_KEY"), cfg.Model)
	case ProviderLegacy:
		enc, err = NewLegacyGeminiEncoder(ctx, apiKey(cfg.APIKey, "GEMINI_API_KEY"), cfg.Model)
	case ProviderDashScope, "qwen":
		enc, err = NewDashScopeEncoder(apiKey(cfg.APIKey, "DASHSCOPE_API_KEY", "QWEN_API_KEY"), cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Cache {
		enc = NewCachedEncoder(enc)
	}
	return enc, nil
}

// apiKey returns the explicit key or the first non-empty environment variable.
func apiKey(explicit string, envs ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, e := range envs {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	return ""
}
