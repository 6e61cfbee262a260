package config

import (
	"fmt"
	"strconv"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(c *Config, value string) error
}

func str(target func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*target(c) = v
		return nil
	}
}

func integer(target func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target(c) = n
		return nil
	}
}

func float(target func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*target(c) = f
		return nil
	}
}

var envBindings = []envBinding{
	{"RAGLINE_EMBEDDING_HOST", str(func(c *Config) *string { return &c.AI.EmbeddingHost })},
	{"RAGLINE_CHAT_HOST", str(func(c *Config) *string { return &c.AI.ChatHost })},
	{"RAGLINE_EMBEDDING_MODEL", str(func(c *Config) *string { return &c.AI.EmbeddingModel })},
	{"RAGLINE_CHAT_MODEL", str(func(c *Config) *string { return &c.AI.ChatModel })},
	{"RAGLINE_EXPANSION_MODEL", str(func(c *Config) *string { return &c.AI.ExpansionModel })},
	{"RAGLINE_PRIMARY_TEMPERATURE", float(func(c *Config) *float64 { return &c.AI.Primary.Temperature })},
	{"RAGLINE_PRIMARY_TOP_K", integer(func(c *Config) *int { return &c.AI.Primary.TopK })},
	{"RAGLINE_PRIMARY_TOP_P", float(func(c *Config) *float64 { return &c.AI.Primary.TopP })},
	{"RAGLINE_SEARCH_TOP_K", integer(func(c *Config) *int { return &c.RAG.SearchTopK })},
	{"RAGLINE_RERANK_FETCH_MULTIPLIER", integer(func(c *Config) *int { return &c.RAG.RerankFetchMultiplier })},
	{"RAGLINE_SIMILARITY_THRESHOLD", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return err
		}
		c.RAG.SimilarityThreshold = float32(f)
		return nil
	}},
	{"RAGLINE_ONLY_CONTEXT", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.RAG.OnlyContext = b
		return nil
	}},
	{"RAGLINE_CHUNK_SIZE", integer(func(c *Config) *int { return &c.Ingestion.ChunkSize })},
	{"RAGLINE_RETRY_MAX_ATTEMPTS", integer(func(c *Config) *int { return &c.Ingestion.Retry.MaxAttempts })},
	{"RAGLINE_RETRY_DELAY_MS", integer(func(c *Config) *int { return &c.Ingestion.Retry.DelayMs })},
	{"RAGLINE_MEMORY_WINDOW_SIZE", integer(func(c *Config) *int { return &c.Memory.WindowSize })},
	{"RAGLINE_STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"RAGLINE_BADGER_PATH", str(func(c *Config) *string { return &c.Storage.BadgerPath })},
	{"DATABASE_URL", str(func(c *Config) *string { return &c.Storage.PostgresURL })},
	{"RAGLINE_POSTGRES_URL", str(func(c *Config) *string { return &c.Storage.PostgresURL })},
	{"RAGLINE_VECTOR_DIMENSIONS", integer(func(c *Config) *int { return &c.Storage.VectorDimensions })},
	{"RAGLINE_SERVER_ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"RAGLINE_KNOWLEDGE_DIR", str(func(c *Config) *string { return &c.Knowledge.Dir })},
}

// ApplyEnv overrides values from the environment. RAGLINE_POSTGRES_URL wins
// over DATABASE_URL when both are set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, b := range envBindings {
		value, ok := lookup(b.key)
		if !ok || value == "" {
			continue
		}
		if err := b.apply(c, value); err != nil {
			return fmt.Errorf("env %s: %w", b.key, err)
		}
	}
	return nil
}
