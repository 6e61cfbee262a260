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


package openai

import (
	"log/slog"

	"github.com/poiesic/ragline/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages the embedder and the two chat models.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	chat      *ChatModel
	expansion *ChatModel
	logger    *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. Clients are built once here
// and shared by every request.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	chat, err := newChatModel(config.ChatHost, config.ChatModel)
	if err != nil {
		return nil, err
	}

	expansion := chat
	if config.ExpansionModel != config.ChatModel {
		expansion, err = newChatModel(config.ChatHost, config.ExpansionModel)
		if err != nil {
			return nil, err
		}
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		chat:      chat,
		expansion: expansion,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModel returns the answering model.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// ExpansionModel returns the query expansion model.
func (p *Provider) ExpansionModel() ai.ChatModel {
	return p.expansion
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
