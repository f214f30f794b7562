package models

// Chunk is a contiguous piece of the document text, in document order.
type Chunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// ChunkEmbedding pairs a chunk with the vector returned by the embedding API.
type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieved chunk that was placed in the prompt.
type Source struct {
	ChunkIndex int     `json:"chunk_index"`
	Similarity float32 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}

type PromptResponse struct {
	Query    string    `json:"query"`
	Question string    `json:"question"` // standalone question used for retrieval
	Answer   string    `json:"answer"`
	Sources  []Source  `json:"sources"`
	History  []Message `json:"history"`
}
