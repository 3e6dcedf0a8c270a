package synthesis

import (
	"context"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Encoder turns texts into embedding vectors. Implementations live in the
// llm package; the consolidator only needs this method.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// modifierWords carry no identity in metric names ("Total revenue" is
// "Revenue").
var modifierWords = map[string]bool{
	"total":        true,
	"net":          true,
	"consolidated": true,
	"of":           true,
	"and":          true,
	"the":          true,
}

// normalizeName is the exact-match key: lower-case, single spaces, no
// trailing punctuation.
func normalizeName(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ":;,. ")
}

// nameTokens splits on non-alphanumerics, drops modifiers and stems plurals.
func nameTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if modifierWords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// LexicalSimilarity scores two metric names in [0,1]: the larger of the
// token Jaccard index and the substring containment ratio of the token
// strings.
func LexicalSimilarity(a, b string) float64 {
	ta, tb := nameTokens(a), nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		if normalizeName(a) == normalizeName(b) {
			return 1
		}
		return 0
	}

	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		setB[t] = true
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	jaccard := float64(inter) / float64(union)

	ja, jb := strings.Join(ta, " "), strings.Join(tb, " ")
	short, long := ja, jb
	if len(short) > len(long) {
		short, long = long, short
	}
	containment := 0.0
	if strings.Contains(long, short) {
		containment = float64(len(short)) / float64(len(long))
	}

	return math.Max(jaccard, containment)
}

// CosineSimilarity of two vectors; 0 when either is empty or zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// NameMatcher scores metric name similarity, semantically when an encoder is
// configured and lexically otherwise or when the encoder fails.
type NameMatcher struct {
	encoder Encoder
	logger  *zap.Logger
}

// NewNameMatcher creates a matcher. encoder may be nil.
func NewNameMatcher(encoder Encoder, logger *zap.Logger) *NameMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NameMatcher{encoder: encoder, logger: logger}
}

// Similarity returns a score in [0,1].
func (m *NameMatcher) Similarity(ctx context.Context, a, b string) float64 {
	if normalizeName(a) == normalizeName(b) {
		return 1
	}
	if m.encoder != nil {
		vecs, err := m.encoder.Embed(ctx, []string{a, b})
		if err == nil && len(vecs) == 2 {
			return CosineSimilarity(vecs[0], vecs[1])
		}
		m.logger.Warn("embedding failed, using lexical similarity",
			zap.String("a", a), zap.String("b", b), zap.Error(err))
	}
	return LexicalSimilarity(a, b)
}
