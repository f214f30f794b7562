package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"emprenix/internal/chromemdb"
	"emprenix/internal/config"
	"emprenix/internal/embedding"
	"emprenix/internal/llmservice"
	"emprenix/internal/parser"
)

// ClientFactory creates the embedding and chat clients. Build calls it only
// after the document has been loaded and chunked.
type ClientFactory func(cfg *config.Config) (embeddings.Embedder, llmservice.Client, error)

// OpenAIClients builds both clients from the llm and embed_llm settings.
func OpenAIClients(cfg *config.Config) (embeddings.Embedder, llmservice.Client, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}
	llm, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	return embedder, llm, nil
}

// Build runs load, chunk, embed and index for one chat activation and returns
// a chain with empty memory.
func Build(ctx context.Context, cfg *config.Config, newClients ClientFactory) (*RAG, error) {
	text, err := parser.LoadPDFText(cfg.Document.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	chunks := parser.SplitText(text, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.Separator)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no extractable text", cfg.Document.Path)
	}
	log.Info().Str("document", cfg.Document.Path).Int("chunks", len(chunks)).Msg("Chunked document")

	embedder, llm, err := newClients(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	chunkEmbeddings, err := embedding.GenerateEmbeddings(ctx, embedder, chunks)
	if err != nil {
		return nil, err
	}

	index := chromemdb.NewVectorDBManager(cfg.RAG.CollectionName, embedder.EmbedQuery)
	if _, err := index.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	if err := index.CreateDocs(ctx, ToDocuments(cfg.RAG.CollectionName, chunkEmbeddings)); err != nil {
		return nil, err
	}

	log.Info().Int("vectors", index.Count()).Msg("Built retrieval chain")
	return NewRAG(index, embedder, llm, cfg), nil
}
