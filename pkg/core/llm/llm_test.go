package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type countingEncoder struct {
	mu     sync.Mutex
	calls  [][]string
	err    error
	short  bool // drop the last vector of every reply
	closed bool
}

func (c *countingEncoder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	if c.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (c *countingEncoder) Close() error {
	c.closed = true
	return nil
}

// ============================================================================
// CachedEncoder
// ============================================================================

func TestCachedEncoder_ForwardsOnlyMisses(t *testing.T) {
	inner := &countingEncoder{}
	enc := NewCachedEncoder(inner)
	ctx := context.Background()

	if _, err := enc.Embed(ctx, []string{"Revenue", "Net income", "Revenue"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	vecs, err := enc.Embed(ctx, []string{"Net income", "Total assets"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(inner.calls) != 2 {
		t.Fatalf("inner calls = %d, want 2", len(inner.calls))
	}
	if len(inner.calls[0]) != 2 {
		t.Errorf("first call should de-duplicate texts, got %v", inner.calls[0])
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "Total assets" {
		t.Errorf("second call should only carry the miss, got %v", inner.calls[1])
	}
	if vecs[0][0] != float32(len("Net income")) || vecs[1][0] != float32(len("Total assets")) {
		t.Errorf("vectors out of order: %v", vecs)
	}
	if enc.Len() != 3 {
		t.Errorf("Len = %d, want 3", enc.Len())
	}
}

func TestCachedEncoder_ErrorNotCached(t *testing.T) {
	inner := &countingEncoder{err: errors.New("quota")}
	enc := NewCachedEncoder(inner)
	if _, err := enc.Embed(context.Background(), []string{"Revenue"}); err == nil {
		t.Fatal("expected error")
	}
	if enc.Len() != 0 {
		t.Errorf("failed texts must not be cached")
	}
	if err := enc.Close(); err != nil || !inner.closed {
		t.Errorf("Close should close the wrapped encoder")
	}
}

func TestCachedEncoder_ShortReplyIsAnError(t *testing.T) {
	inner := &countingEncoder{short: true}
	enc := NewCachedEncoder(inner)
	vecs, err := enc.Embed(context.Background(), []string{"Revenue", "Net income"})
	if err == nil {
		t.Fatalf("expected error, got %v", vecs)
	}
	if enc.Len() != 0 {
		t.Errorf("Len = %d, a short reply must not be cached", enc.Len())
	}
}

func TestCachedEncoder_Concurrent(t *testing.T) {
	enc := NewCachedEncoder(&countingEncoder{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := enc.Embed(context.Background(), []string{"Revenue", "Cash"}); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()
	if enc.Len() != 2 {
		t.Errorf("Len = %d, want 2", enc.Len())
	}
}

// ============================================================================
// DashScopeEncoder
// ============================================================================

func TestDashScopeEncoder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		var req dashScopeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != DefaultDashScopeModel || len(req.Input.Texts) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		// Reversed on purpose: vectors are placed by text_index.
		_, _ = w.Write([]byte(`{"output":{"embeddings":[
			{"text_index":1,"embedding":[0,1]},
			{"text_index":0,"embedding":[1,0]}]}}`))
	}))
	defer srv.Close()

	enc, err := NewDashScopeEncoder("k", "", srv.URL)
	if err != nil {
		t.Fatalf("NewDashScopeEncoder: %v", err)
	}
	defer enc.Close()

	vecs, err := enc.Embed(context.Background(), []string{"Revenue", "Sales"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestDashScopeEncoder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http status", http.StatusUnauthorized, `{"code":"InvalidApiKey"}`},
		{"api code", http.StatusOK, `{"code":"Throttling","message":"slow down"}`},
		{"missing vector", http.StatusOK, `{"output":{"embeddings":[{"text_index":0,"embedding":[1]}]}}`},
		{"bad index", http.StatusOK, `{"output":{"embeddings":[{"text_index":5,"embedding":[1]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			enc, _ := NewDashScopeEncoder("k", "", srv.URL)
			if _, err := enc.Embed(context.Background(), []string{"a", "b"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================================
// NewEncoderFromConfig
// ============================================================================

func TestNewEncoderFromConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("QWEN_API_KEY", "")
	ctx := context.Background()

	enc, err := NewEncoderFromConfig(ctx, Config{Provider: "none"})
	if err != nil || enc != nil {
		t.Errorf("none provider = (%v, %v), want (nil, nil)", enc, err)
	}
	if _, err := NewEncoderFromConfig(ctx, Config{Provider: "word2vec"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider err = %v", err)
	}
	for _, p := range []string{ProviderGenAI, ProviderLegacy, ProviderDashScope} {
		if _, err := NewEncoderFromConfig(ctx, Config{Provider: p}); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("%s without key err = %v", p, err)
		}
	}

	enc, err = NewEncoderFromConfig(ctx, Config{Provider: "DashScope", APIKey: "k", Cache: true})
	if err != nil {
		t.Fatalf("dashscope: %v", err)
	}
	if _, ok := enc.(*CachedEncoder); !ok {
		t.Errorf("Cache=true should wrap the encoder, got %T", enc)
	}
	enc.Close()
}

func TestAPIKeyPrecedence(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("QWEN_API_KEY", "from-qwen")
	if got := apiKey("", "DASHSCOPE_API_KEY", "QWEN_API_KEY"); got != "from-qwen" {
		t.Errorf("apiKey fallback = %q", got)
	}
	if got := apiKey("explicit", "QWEN_API_KEY"); got != "explicit" {
		t.Errorf("explicit key = %q", got)
	}
}
