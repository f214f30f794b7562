package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"emprenix/internal/chromemdb"
	"emprenix/internal/config"
	"emprenix/internal/llmservice"
	"emprenix/internal/models"
)

var ErrEmptyQuestion = errors.New("question is empty")

const metadataChunkIndex = "chunk_index"

// RAG is a conversational retrieval chain over one in-memory index. It is
// built once per chat activation; its memory only grows until Close.
type RAG struct {
	mu       sync.Mutex
	index    *chromemdb.VectorDBManager
	embedder embeddings.Embedder
	llm      llmservice.Client
	memory   *memory.ChatMessageHistory
	cfg      *config.Config
}

func NewRAG(index *chromemdb.VectorDBManager, embedder embeddings.Embedder, llm llmservice.Client, cfg *config.Config) *RAG {
	return &RAG{
		index:    index,
		embedder: embedder,
		llm:      llm,
		memory:   memory.NewChatMessageHistory(),
		cfg:      cfg,
	}
}

// Query answers query from the retrieved chunks and the conversation so far,
// then appends the exchange to memory.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuestion
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout())
	defer cancel()

	history, err := r.memory.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	question := query
	if r.cfg.RAG.CondenseQuestion && len(history) > 0 {
		question, err = r.condense(ctx, history, query)
		if err != nil {
			return nil, err
		}
	}

	sources, contextText, err := r.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(models.SystemPromptTemplate, contextText)))
	for _, msg := range history {
		messages = append(messages, llms.TextParts(msg.GetType(), msg.GetContent()))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))

	answer, err := llmservice.GenerateContent(ctx, r.llm, messages)
	if err != nil {
		return nil, err
	}

	if err := r.memory.AddUserMessage(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to store question: %w", err)
	}
	if err := r.memory.AddAIMessage(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}

	updated, err := r.history(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().Str("question", question).Int("sources", len(sources)).Int("turns", len(updated)/2).Msg("Answered question")
	return &models.PromptResponse{
		Query:    query,
		Question: question,
		Answer:   answer,
		Sources:  sources,
		History:  updated,
	}, nil
}

// History returns the conversation so far, oldest first.
func (r *RAG) History(ctx context.Context) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history(ctx)
}

func (r *RAG) history(ctx context.Context) ([]models.Message, error) {
	msgs, err := r.memory.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		role := models.RoleUser
		if m.GetType() == llms.ChatMessageTypeAI {
			role = models.RoleAssistant
		}
		out = append(out, models.Message{Role: role, Content: m.GetContent()})
	}
	return out, nil
}

// Reset clears the conversation memory and keeps the index.
func (r *RAG) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.memory.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// Close discards the index and the conversation memory.
func (r *RAG) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.memory.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return r.index.DeleteCollection()
}

// condense rewrites a follow-up into a standalone question for retrieval.
func (r *RAG) condense(ctx context.Context, history []llms.ChatMessage, query string) (string, error) {
	var sb strings.Builder
	for _, msg := range history {
		if msg.GetType() == llms.ChatMessageTypeAI {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("Human: ")
		}
		sb.WriteString(msg.GetContent())
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(models.CondensePromptTemplate, sb.String(), query)
	standalone, err := llmservice.GenerateContent(ctx, r.llm, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("failed to condense question: %w", err)
	}
	if standalone == "" {
		return query, nil
	}
	log.Debug().Str("query", query).Str("standalone", standalone).Msg("Condensed question")
	return standalone, nil
}

func (r *RAG) retrieve(ctx context.Context, question string) ([]models.Source, string, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, "", fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.index.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       r.cfg.RAG.TopK,
	})
	if err != nil {
		return nil, "", err
	}

	var sources []models.Source
	var contents []string
	for _, res := range results {
		if res.Similarity < r.cfg.RAG.MinSimilarity {
			continue
		}
		idx, _ := strconv.Atoi(res.Metadata[metadataChunkIndex])
		sources = append(sources, models.Source{
			ChunkIndex: idx,
			Similarity: res.Similarity,
			Snippet:    snippet(res.Content),
		})
		contents = append(contents, res.Content)
	}
	return sources, strings.Join(contents, models.ContextSeparator), nil
}

func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= models.SnippetLength {
		return string(runes)
	}
	return string(runes[:models.SnippetLength]) + "..."
}

// ToDocuments turns embedded chunks into chromem documents.
func ToDocuments(collection string, chunkEmbeddings []models.ChunkEmbedding) []chromem.Document {
	docs := make([]chromem.Document, len(chunkEmbeddings))
	for i, ce := range chunkEmbeddings {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d", collection, ce.Index),
			Content:   ce.Content,
			Metadata:  map[string]string{metadataChunkIndex: strconv.Itoa(ce.Index)},
			Embedding: ce.Embedding,
		}
	}
	return docs
}
