package memory

import (
	"context"
	"errors"
	"slices"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
)

// Advisor replays the conversation window into the prompt and records the user's message.
type Advisor struct {
	memory     *Memory
	windowSize int
}

var _ advisor.Advisor = (*Advisor)(nil)

// NewAdvisor creates a memory advisor. A windowSize <= 0 uses DefaultWindowSize.
func NewAdvisor(memory *Memory, windowSize int) *Advisor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Advisor{memory: memory, windowSize: windowSize}
}

func (a *Advisor) Name() string { return "memory" }

func (a *Advisor) Order() int { return advisor.OrderMemory }

// Before inserts the history between the system prompt and the new user message,
// then appends the user message to the log.
func (a *Advisor) Before(ctx context.Context, req *advisor.Request) error {
	id := req.Context.ConversationID()
	if id == "" {
		return errors.New("request has no conversation id")
	}

	history, err := a.memory.exchange(ctx, id, a.windowSize, &core.Message{Role: core.RoleUser, Content: req.UserText})
	if err != nil {
		return err
	}
	req.Messages = splice(req.Messages, history)
	return nil
}

func (a *Advisor) After(ctx context.Context, resp *advisor.Response) error { return nil }

// splice puts history after any leading system messages.
func splice(messages []ai.ChatMessage, history []*core.Message) []ai.ChatMessage {
	at := 0
	for at < len(messages) && messages[at].Role == core.RoleSystem {
		at++
	}
	replay := make([]ai.ChatMessage, len(history))
	for i, msg := range history {
		replay[i] = ai.ChatMessage{Role: msg.Role, Content: msg.Content}
	}
	return slices.Insert(slices.Clone(messages), at, replay...)
}
