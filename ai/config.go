// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion API used for answers and query expansion.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "nomic-embed-text", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model that answers questions.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ChatModel string

	// ExpansionModel is the auxiliary model that rewrites search queries.
	// Defaults to the chat model.
	ExpansionModel string

	// Primary holds the sampling options for answers.
	Primary GenerationOptions

	// Expansion holds the sampling options for query expansion.
	Expansion GenerationOptions
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the answering model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithExpansionModel sets the query expansion model identifier.
func WithExpansionModel(model string) ConfigOption {
	return func(c *Config) {
		c.ExpansionModel = model
	}
}

// WithPrimaryOptions sets the sampling options used for answers.
func WithPrimaryOptions(opts GenerationOptions) ConfigOption {
	return func(c *Config) {
		c.Primary = opts
	}
}

// WithExpansionOptions sets the sampling options used for query expansion.
func WithExpansionOptions(opts GenerationOptions) ConfigOption {
	return func(c *Config) {
		c.Expansion = opts
	}
}

// DefaultPrimaryOptions are the answer sampling defaults.
func DefaultPrimaryOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:   0.3,
		TopK:          2,
		TopP:          0.7,
		RepeatPenalty: 1.1,
	}
}

// DefaultExpansionOptions are near-greedy so expansions are reproducible.
func DefaultExpansionOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:   0.0,
		TopK:          1,
		TopP:          0.1,
		RepeatPenalty: 1.0,
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, embeddings and chat use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		EmbeddingModel: "nomic-embed-text",
		ChatModel:      "qwen2.5:3b",
		ExpansionModel: "qwen2.5:3b",
		Primary:        DefaultPrimaryOptions(),
		Expansion:      DefaultExpansionOptions(),
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	if c.ExpansionModel == "" {
		c.ExpansionModel = c.ChatModel
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if err := c.Primary.Validate(); err != nil {
		return fmt.Errorf("ai config: primary options: %w", err)
	}
	if err := c.Expansion.Validate(); err != nil {
		return fmt.Errorf("ai config: expansion options: %w", err)
	}
	return nil
}
