// Package testutil provides deterministic stand-ins for the embedding and
// reasoning providers.
package testutil

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder maps text to a bag-of-words vector by hashing each word into
// one of Dim buckets. Texts sharing words get similar vectors.
type HashEmbedder struct {
	Dim int
	// FailWhen, if set, returns the error to report for a text.
	FailWhen func(text string) error

	mu          sync.Mutex
	batchCalls  int
	singleCalls int
}

// NewHashEmbedder creates an embedder with 64 dimensions.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: 64}
}

// Embed implements index.Embedder.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.singleCalls++
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.FailWhen != nil {
		if err := h.FailWhen(text); err != nil {
			return nil, err
		}
	}
	return h.vector(text), nil
}

// EmbedBatch implements index.Embedder. The whole batch fails if any text
// fails.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.batchCalls++
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if h.FailWhen != nil {
			if err := h.FailWhen(t); err != nil {
				return nil, err
			}
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

// Model implements index.Embedder.
func (h *HashEmbedder) Model() string {
	return "hash-embedder"
}

// Calls returns the number of batch and single embedding calls.
func (h *HashEmbedder) Calls() (batch, single int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.batchCalls, h.singleCalls
}

func (h *HashEmbedder) vector(text string) []float32 {
	dim := h.Dim
	if dim <= 0 {
		dim = 64
	}
	v := make([]float32, dim)
	for _, w := range Words(text) {
		f := fnv.New32a()
		f.Write([]byte(w))
		v[f.Sum32()%uint32(dim)]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum > 0 {
		n := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

// Words splits text into lowercase alphanumeric words.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ScriptedReasoner answers reasoning prompts through Respond and records
// every prompt it sees.
type ScriptedReasoner struct {
	// Respond receives the prompt and the 1-based call number.
	Respond func(prompt string, call int) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete implements the evaluator's reasoning interface.
func (r *ScriptedReasoner) Complete(ctx context.Context, prompt, _ string) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	call := len(r.prompts)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Respond == nil {
		return Verdict("Compliant", "ok", nil, "ok"), nil
	}
	return r.Respond(prompt, call)
}

// Prompts returns a copy of the prompts received so far.
func (r *ScriptedReasoner) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

// Calls returns the number of Complete calls.
func (r *ScriptedReasoner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

// Verdict renders a reasoning response in the expected JSON shape.
func Verdict(status, evidence string, pages []int, remarks string) string {
	if pages == nil {
		pages = []int{}
	}
	b, _ := json.Marshal(map[string]any{
		"status":         status,
		"evidence":       evidence,
		"evidence_pages": pages,
		"remarks":        remarks,
	})
	return string(b)
}
