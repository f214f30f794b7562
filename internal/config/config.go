package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 200
	defaultSeparator      = "\n"
	defaultTopK           = 4
	defaultCollection     = "emprenix"
	defaultRequestTimeout = 120
	defaultSessionTTL     = 60
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultEmbedBatchSize = 512
)

type Config struct {
	LogLevel       string         `yaml:"log_level"`
	Server         ServerConfig   `yaml:"server"`
	Document       DocumentConfig `yaml:"document"`
	RAG            RAGConfig      `yaml:"rag"`
	LLM            LLMConfig      `yaml:"llm"`
	EmbedLLM       LLMConfig      `yaml:"embed_llm"`
	SMTP           SMTPConfig     `yaml:"smtp"`
	WhatsAppNumber string         `yaml:"whatsapp_number"`
	// seconds; applies to every embedding and chat-completion call
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

type ServerConfig struct {
	Addr              string `yaml:"addr"`
	AssetsDir         string `yaml:"assets_dir"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type DocumentConfig struct {
	Path string `yaml:"path"`
}

type RAGConfig struct {
	ChunkSize        int     `yaml:"chunk_size"`
	ChunkOverlap     int     `yaml:"chunk_overlap"`
	Separator        string  `yaml:"separator"`
	TopK             int     `yaml:"top_k"`
	MinSimilarity    float32 `yaml:"min_similarity"`
	CondenseQuestion bool    `yaml:"condense_question"`
	CollectionName   string  `yaml:"collection_name"`
}

type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Key       string `yaml:"key"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Recipient string `yaml:"recipient"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// Secrets are taken from the environment when set.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:      ":8080",
			AssetsDir: "./assets",
		},
		Document: DocumentConfig{Path: "./Emprenix.pdf"},
		RAG: RAGConfig{
			CondenseQuestion: true,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	key := firstEnv("OPEN_AI_APIKEY", "OPENAI_API_KEY")
	if key != "" {
		cfg.LLM.Key = key
		cfg.EmbedLLM.Key = key
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.RAG.Separator == "" {
		cfg.RAG.Separator = defaultSeparator
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.CollectionName == "" {
		cfg.RAG.CollectionName = defaultCollection
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultOpenAIBase
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultChatModel
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = defaultOpenAIBase
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultEmbeddingModel
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = defaultEmbedBatchSize
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if cfg.Server.SessionTTLMinutes == 0 {
		cfg.Server.SessionTTLMinutes = defaultSessionTTL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be greater than zero")
	}
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("rag.chunk_overlap must be zero or greater")
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be smaller than rag.chunk_size")
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("rag.top_k must be at least 1")
	}
	if c.RAG.MinSimilarity < -1 || c.RAG.MinSimilarity > 1 {
		return fmt.Errorf("rag.min_similarity must be within [-1, 1]")
	}
	if strings.TrimSpace(c.Document.Path) == "" {
		return fmt.Errorf("document.path is required")
	}
	return nil
}

// RequestTimeout returns the timeout for outbound API calls.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return defaultRequestTimeout * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
