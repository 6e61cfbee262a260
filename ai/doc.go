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


// Package ai provides abstractions for the model services used by ragline.
//
// Three interfaces cover everything the pipelines need:
//
//   - Embedder: turns text into vectors for the fragment index
//   - ChatModel: answers questions and rewrites search queries, optionally streaming
//   - AIProvider: bundles the services built from one Config
//
// # Implementation Packages
//
//   - ai/openai: production implementation against OpenAI-compatible APIs (Ollama, vLLM, LocalAI)
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors in ai/openai return interface types. Mock constructors return
// concrete types so tests can inject behavior and read call counts:
//
//	model := mock.NewMockChatModel()
//	model.GenerateFunc = func(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
//	    return "expanded query", nil
//	}
//	count := model.CallCount()
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	reply, err := provider.ChatModel().Generate(ctx, []ai.ChatMessage{ai.UserMessage("hi")}, cfg.Primary)
package ai
