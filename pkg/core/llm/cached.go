package llm

import (
	"context"
	"fmt"
	"sync"
)

// CachedEncoder memoizes vectors per text. Metric names repeat across every
// filing, so most lookups after the first filing are hits. Safe for
// concurrent use.
type CachedEncoder struct {
	inner Encoder

	mu    sync.Mutex
	cache map[string][]float32
}

var _ Encoder = (*CachedEncoder)(nil)

// NewCachedEncoder wraps inner. Closing the cache closes inner.
func NewCachedEncoder(inner Encoder) *CachedEncoder {
	return &CachedEncoder{inner: inner, cache: make(map[string][]float32)}
}

// Embed serves cached texts and forwards only the misses, de-duplicated, in
// a single call to the wrapped encoder.
func (c *CachedEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	seen := make(map[string]bool)

	c.mu.Lock()
	for i, t := range texts {
		if v, ok := c.cache[t]; ok {
			out[i] = v
			continue
		}
		if !seen[t] {
			seen[t] = true
			missing = append(missing, t)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(missing))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range missing {
		c.cache[t] = vecs[i]
	}
	for i, t := range texts {
		if out[i] == nil {
			out[i] = c.cache[t]
		}
	}
	return out, nil
}

// Len reports the number of cached texts.
func (c *CachedEncoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Close closes the wrapped encoder.
func (c *CachedEncoder) Close() error {
	return c.inner.Close()
}
