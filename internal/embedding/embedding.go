// Package embedding defines the text embedding function shared by catalog, chunk and query
// embedding, plus an offline embedder that needs no external service.
package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/utils"
)

// Embedder turns text into a fixed-length vector. Implementations must be deterministic
// for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// WithTimeout bounds every Embed call by d. A non-positive d returns e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, text)
}

// DefaultHashDims is the vector length produced by NewHashEmbedder(0).
const DefaultHashDims = 512

// HashEmbedder is a local feature-hashing embedder: lowercased words and character
// trigrams are hashed into a fixed number of buckets and the result is L2-normalized.
// It has no notion of meaning, but shared words and spellings land close together, which
// is enough for course title resolution and keyword-heavy transcript search offline.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Dims() int { return h.dims }

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	for _, word := range tokenize(text) {
		vec[h.bucket("w:"+word)] += 2
		padded := "^" + word + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			vec[h.bucket("t:"+string(runes[i:i+3]))]++
		}
	}
	return utils.Normalize(vec), nil
}

func (h *HashEmbedder) bucket(feature string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(feature))
	return int(hasher.Sum32() % uint32(h.dims))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
