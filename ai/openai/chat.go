package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(host, model string) (*ChatModel, error) {
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "openai-chat", "model", model),
	}, nil
}

// NewChatModel creates the answering model from the configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newChatModel(config.ChatHost, config.ChatModel)
}

// NewExpansionModel creates the query expansion model from the configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewExpansionModel(config *ai.Config) (ai.ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newChatModel(config.ChatHost, config.ExpansionModel)
}

// Generate runs one completion and returns the reply text.
func (m *ChatModel) Generate(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
	m.logger.Debug("generating completion", "messages", len(messages))

	response, err := m.client.GenerateContent(ctx, toMessageContent(messages), callOptions(opts)...)
	if err != nil {
		m.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		m.logger.Debug("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Stream runs one completion and forwards every chunk to fn as it arrives.
func (m *ChatModel) Stream(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions, fn ai.StreamFunc) (string, error) {
	m.logger.Debug("streaming completion", "messages", len(messages))

	options := append(callOptions(opts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return fn(ctx, string(chunk))
	}))

	response, err := m.client.GenerateContent(ctx, toMessageContent(messages), options...)
	if err != nil {
		m.logger.Error("failed to stream content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		return "", nil
	}

	return response.Choices[0].Content, nil
}

// callOptions maps generation options onto langchaingo call options.
func callOptions(opts ai.GenerationOptions) []llms.CallOption {
	options := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.TopK > 0 {
		options = append(options, llms.WithTopK(opts.TopK))
	}
	if opts.TopP > 0 {
		options = append(options, llms.WithTopP(opts.TopP))
	}
	if opts.RepeatPenalty > 0 {
		options = append(options, llms.WithRepetitionPenalty(opts.RepeatPenalty))
	}
	return options
}

// toMessageContent converts prompt messages into langchaingo message content.
func toMessageContent(messages []ai.ChatMessage) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		text := scrubString(msg.Content)
		if text == "" {
			continue
		}
		content = append(content, llms.TextParts(messageType(msg.Role), text))
	}
	return content
}

func messageType(role core.Role) llms.ChatMessageType {
	switch role {
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
