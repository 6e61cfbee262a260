package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
)

// Call records the arguments of one ChatModel invocation.
type Call struct {
	Messages []ai.ChatMessage
	Options  ai.GenerationOptions
	Streamed bool
}

// MockChatModel is a test double for ai.ChatModel.
// It allows custom behavior injection via function fields.
type MockChatModel struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the reply is "echo: " followed by the last user message.
	GenerateFunc func(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error)

	// StreamFunc is called by Stream if set.
	// If nil, the default Generate reply is streamed word by word.
	StreamFunc func(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions, fn ai.StreamFunc) (string, error)

	mu    sync.Mutex
	calls []Call
}

// NewMockChatModel creates a mock chat model with default echo behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

// Generate returns the injected or echo reply.
func (m *MockChatModel) Generate(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
	m.record(messages, opts, false)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, opts)
	}
	return echo(messages), nil
}

// Stream passes the reply to fn in word-sized chunks.
func (m *MockChatModel) Stream(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions, fn ai.StreamFunc) (string, error) {
	m.record(messages, opts, true)

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages, opts, fn)
	}

	reply := echo(messages)
	if m.GenerateFunc != nil {
		var err error
		if reply, err = m.GenerateFunc(ctx, messages, opts); err != nil {
			return "", err
		}
	}
	return StreamWords(ctx, reply, fn)
}

// CallCount returns the number of times any method was called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded invocations.
func (m *MockChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent invocation.
func (m *MockChatModel) LastCall() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls and injected behavior.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.GenerateFunc = nil
	m.StreamFunc = nil
}

func (m *MockChatModel) record(messages []ai.ChatMessage, opts ai.GenerationOptions, streamed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]ai.ChatMessage, len(messages))
	copy(msgs, messages)
	m.calls = append(m.calls, Call{Messages: msgs, Options: opts, Streamed: streamed})
}

// StreamWords sends reply to fn one word (with its trailing space) at a time.
func StreamWords(ctx context.Context, reply string, fn ai.StreamFunc) (string, error) {
	words := strings.SplitAfter(reply, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := fn(ctx, w); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func echo(messages []ai.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleUser {
			return "echo: " + messages[i].Content
		}
	}
	return "echo:"
}
