// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ChatModel,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	model := mock.NewMockChatModel()
//	model.GenerateFunc = func(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
//	    return "what is spring framework", nil
//	}
//
//	// Check calls
//	count := model.CallCount()
//	last, _ := model.LastCall()
//
// # Default Behavior
//
//   - MockEmbedder: bag-of-words vectors, so texts sharing words score higher
//   - MockChatModel: replies "echo: <last user message>", streamed word by word
//   - MockProvider: aggregates the above
package mock
