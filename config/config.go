// Package config loads ragline settings from a YAML file, a .env file and
// RAGLINE_* environment variables, in increasing order of precedence, on top
// of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/retry"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "ragline.yaml"

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// SamplingConfig holds model sampling parameters.
type SamplingConfig struct {
	Temperature   float64 `yaml:"temperature"`
	TopK          int     `yaml:"top_k"`
	TopP          float64 `yaml:"top_p"`
	RepeatPenalty float64 `yaml:"repeat_penalty"`
}

// AIConfig selects the model servers and models.
type AIConfig struct {
	EmbeddingHost  string         `yaml:"embedding_host"`
	ChatHost       string         `yaml:"chat_host"`
	EmbeddingModel string         `yaml:"embedding_model"`
	ChatModel      string         `yaml:"chat_model"`
	ExpansionModel string         `yaml:"expansion_model"`
	Primary        SamplingConfig `yaml:"primary"`
	Expansion      SamplingConfig `yaml:"expansion"`
}

// RAGConfig tunes retrieval and answering.
type RAGConfig struct {
	SearchTopK            int     `yaml:"search_top_k"`
	RerankFetchMultiplier int     `yaml:"rerank_fetch_multiplier"`
	SimilarityThreshold   float32 `yaml:"similarity_threshold"`
	OnlyContext           bool    `yaml:"only_context"`
}

// RetryConfig bounds retried index writes.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	DelayMs     int     `yaml:"delay_ms"`
	Multiplier  float64 `yaml:"multiplier"`
}

// IngestionConfig tunes document ingestion.
type IngestionConfig struct {
	ChunkSize int         `yaml:"chunk_size"`
	Retry     RetryConfig `yaml:"retry"`
}

// MemoryConfig tunes conversation memory.
type MemoryConfig struct {
	WindowSize int `yaml:"window_size"`
}

// StorageConfig selects where fragments, documents and conversations live.
type StorageConfig struct {
	Backend          string `yaml:"backend"`
	BadgerPath       string `yaml:"badger_path"`
	PostgresURL      string `yaml:"postgres_url"`
	VectorDimensions int    `yaml:"vector_dimensions"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// KnowledgeConfig points at the shared knowledge base loaded at startup.
type KnowledgeConfig struct {
	Dir string `yaml:"dir"`
}

// Config is the root configuration.
type Config struct {
	AI        AIConfig        `yaml:"ai"`
	RAG       RAGConfig       `yaml:"rag"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Memory    MemoryConfig    `yaml:"memory"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

func fromOptions(o ai.GenerationOptions) SamplingConfig {
	return SamplingConfig{Temperature: o.Temperature, TopK: o.TopK, TopP: o.TopP, RepeatPenalty: o.RepeatPenalty}
}

// Options converts to model generation options.
func (s SamplingConfig) Options() ai.GenerationOptions {
	return ai.GenerationOptions{Temperature: s.Temperature, TopK: s.TopK, TopP: s.TopP, RepeatPenalty: s.RepeatPenalty}
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	retrieval := advisor.DefaultRetrievalSettings()
	policy := retry.DefaultPolicy()

	return &Config{
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			ChatHost:       aiDefaults.ChatHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
			ExpansionModel: aiDefaults.ExpansionModel,
			Primary:        fromOptions(aiDefaults.Primary),
			Expansion:      fromOptions(aiDefaults.Expansion),
		},
		RAG: RAGConfig{
			SearchTopK:            retrieval.SearchTopK,
			RerankFetchMultiplier: retrieval.FetchMultiplier,
			SimilarityThreshold:   retrieval.SimilarityThreshold,
			OnlyContext:           true,
		},
		Ingestion: IngestionConfig{
			ChunkSize: 200,
			Retry: RetryConfig{
				MaxAttempts: policy.MaxAttempts,
				DelayMs:     int(policy.InitialDelay / time.Millisecond),
				Multiplier:  policy.Multiplier,
			},
		},
		Memory: MemoryConfig{WindowSize: 8},
		Storage: StorageConfig{
			Backend:          BackendBadger,
			BadgerPath:       "./data",
			VectorDimensions: 768,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load builds the configuration. A missing file at path is not an error when
// path is DefaultPath or empty; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	explicit := path != "" && path != DefaultPath
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile overlays the YAML file on cfg. Keys absent from the file keep their values.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Save writes cfg to path as YAML, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AIConfig returns the provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithExpansionModel(c.AI.ExpansionModel),
		ai.WithPrimaryOptions(c.AI.Primary.Options()),
		ai.WithExpansionOptions(c.AI.Expansion.Options()),
	)
}

// RetrievalSettings returns the retriever settings.
func (c *Config) RetrievalSettings() advisor.RetrievalSettings {
	return advisor.RetrievalSettings{
		SearchTopK:          c.RAG.SearchTopK,
		FetchMultiplier:     c.RAG.RerankFetchMultiplier,
		SimilarityThreshold: c.RAG.SimilarityThreshold,
	}
}

// RetryPolicy returns the index write retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.Ingestion.Retry.MaxAttempts,
		InitialDelay: time.Duration(c.Ingestion.Retry.DelayMs) * time.Millisecond,
		Multiplier:   c.Ingestion.Retry.Multiplier,
	}
}

// Validate checks that the configuration is complete and in range.
func (c *Config) Validate() error {
	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	if err := c.RetrievalSettings().Validate(); err != nil {
		return fmt.Errorf("rag config: %w", err)
	}
	if c.Ingestion.ChunkSize <= 0 {
		return errors.New("ingestion config: chunk_size must be greater than 0")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("ingestion config: retry: %w", err)
	}
	if c.Memory.WindowSize <= 0 {
		return errors.New("memory config: window_size must be greater than 0")
	}

	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.BadgerPath == "" {
			return errors.New("storage config: badger_path is required")
		}
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage config: postgres_url is required for the postgres backend")
		}
		if c.Storage.VectorDimensions <= 0 {
			return errors.New("storage config: vector_dimensions must be greater than 0")
		}
	default:
		return fmt.Errorf("storage config: unknown backend %q", c.Storage.Backend)
	}

	if c.Server.Addr == "" {
		return errors.New("server config: addr is required")
	}
	return nil
}
