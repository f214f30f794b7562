package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const embeddingDims = 64

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// get similar vectors.
type HashEmbedder struct {
	mu           sync.Mutex
	DocumentCall int
	QueryCalls   int
	Err          error
}

func (e *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DocumentCall++
	if e.Err != nil {
		return nil, e.Err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.QueryCalls++
	if e.Err != nil {
		return nil, e.Err
	}
	return hashVector(text), nil
}

// Calls reports the total number of embedding requests.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.DocumentCall + e.QueryCalls
}

func hashVector(text string) []float32 {
	vec := make([]float32, embeddingDims)
	vec[0] = 0.1 // never a zero vector
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[1+int(h.Sum32()%(embeddingDims-1))]++
	}
	return vec
}

// FakeLLM answers with Answers in order, repeating the last one, and records
// every request.
type FakeLLM struct {
	mu       sync.Mutex
	Answers  []string
	Err      error
	Requests [][]llms.MessageContent
}

func (f *FakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, messages)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Answers) == 0 {
		return nil, errors.New("fake llm has no answers")
	}
	idx := min(len(f.Requests)-1, len(f.Answers)-1)
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.Answers[idx]}},
	}, nil
}

// Calls reports the number of GenerateContent requests.
func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// LastRequest returns the messages of the most recent request.
func (f *FakeLLM) LastRequest() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return nil
	}
	return f.Requests[len(f.Requests)-1]
}

// Text flattens the text parts of a message.
func Text(m llms.MessageContent) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
