package ai

import (
	"errors"

	"github.com/poiesic/ragline/core"
)

// ChatMessage is one entry of a prompt sent to a ChatModel.
type ChatMessage struct {
	Role    core.Role
	Content string
}

// SystemMessage builds a system prompt entry.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: core.RoleSystem, Content: content}
}

// UserMessage builds a user prompt entry.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: core.RoleUser, Content: content}
}

// AssistantMessage builds an assistant prompt entry.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: core.RoleAssistant, Content: content}
}

// GenerationOptions are the sampling parameters of a single model call.
// Zero TopK or TopP leave the server default in place.
type GenerationOptions struct {
	Temperature   float64
	TopK          int
	TopP          float64
	RepeatPenalty float64
}

// WithTopK returns a copy with TopK replaced when k > 0.
func (o GenerationOptions) WithTopK(k int) GenerationOptions {
	if k > 0 {
		o.TopK = k
	}
	return o
}

// WithTopP returns a copy with TopP replaced when p > 0.
func (o GenerationOptions) WithTopP(p float64) GenerationOptions {
	if p > 0 {
		o.TopP = p
	}
	return o
}

// Validate checks value ranges.
func (o GenerationOptions) Validate() error {
	if o.Temperature < 0 {
		return errors.New("temperature cannot be negative")
	}
	if o.TopK < 0 {
		return errors.New("topK cannot be negative")
	}
	if o.TopP < 0 || o.TopP > 1 {
		return errors.New("topP must be between 0 and 1")
	}
	if o.RepeatPenalty < 0 {
		return errors.New("repeatPenalty cannot be negative")
	}
	return nil
}
