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


package mock

import "github.com/poiesic/ragline/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder and two mock chat models.
type MockProvider struct {
	embedder  *MockEmbedder
	chat      *MockChatModel
	expansion *MockChatModel
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockChatModel()/GetMockExpansionModel() to access concrete types.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		chat:      NewMockChatModel(),
		expansion: NewMockChatModel(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// This allows full control over the behavior of each service.
func NewMockProviderWithServices(embedder *MockEmbedder, chat, expansion *MockChatModel) ai.AIProvider {
	return &MockProvider{
		embedder:  embedder,
		chat:      chat,
		expansion: expansion,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModel returns the mock answering model.
func (p *MockProvider) ChatModel() ai.ChatModel {
	return p.chat
}

// ExpansionModel returns the mock expansion model.
func (p *MockProvider) ExpansionModel() ai.ChatModel {
	return p.expansion
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockChatModel returns the underlying answering model for test assertions.
func (p *MockProvider) GetMockChatModel() *MockChatModel {
	return p.chat
}

// GetMockExpansionModel returns the underlying expansion model for test assertions.
func (p *MockProvider) GetMockExpansionModel() *MockChatModel {
	return p.expansion
}
