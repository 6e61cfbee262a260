// Package memory keeps the message log of each conversation and replays the
// most recent part of it into new model calls.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// DefaultWindowSize is the number of prior messages replayed into a prompt.
const DefaultWindowSize = 8

// Memory is a conversation log backed by a ConversationRepository.
type Memory struct {
	repo   storage.ConversationRepository
	locks  sync.Map // conversation ID -> *sync.Mutex
	logger *slog.Logger
}

// New creates a Memory over repo.
func New(repo storage.ConversationRepository) (*Memory, error) {
	if repo == nil {
		return nil, errors.New("conversation repository cannot be nil")
	}
	return &Memory{
		repo:   repo,
		logger: slog.Default().With("component", "memory"),
	}, nil
}

func (m *Memory) lock(conversationID string) func() {
	v, _ := m.locks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Append adds messages to the end of the conversation's log.
// Appends to the same conversation are serialized.
func (m *Memory) Append(ctx context.Context, conversationID string, messages ...*core.Message) error {
	if len(messages) == 0 {
		return nil
	}
	unlock := m.lock(conversationID)
	defer unlock()
	return m.repo.AppendMessages(ctx, conversationID, messages...)
}

// Window returns the last max messages, oldest first. It skips
// max(0, total-max) messages from the start of the log rather than
// re-sorting by timestamp.
func (m *Memory) Window(ctx context.Context, conversationID string, max int) ([]*core.Message, error) {
	unlock := m.lock(conversationID)
	defer unlock()
	return m.window(ctx, conversationID, max)
}

// exchange returns the window that precedes msg and then appends msg,
// holding the conversation's lock across both steps.
func (m *Memory) exchange(ctx context.Context, conversationID string, max int, msg *core.Message) ([]*core.Message, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	history, err := m.window(ctx, conversationID, max)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if err := m.repo.AppendMessages(ctx, conversationID, msg); err != nil {
		return nil, err
	}
	return history, nil
}

func (m *Memory) window(ctx context.Context, conversationID string, max int) ([]*core.Message, error) {
	if max <= 0 {
		return []*core.Message{}, nil
	}
	total, err := m.repo.CountMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	skip := total - max
	if skip < 0 {
		skip = 0
	}
	return m.repo.GetMessages(ctx, conversationID, skip, max)
}

// Clear does nothing. History is only removed by deleting the conversation.
func (m *Memory) Clear(ctx context.Context, conversationID string) error {
	m.logger.Debug("clear is a no-op", "conversation_id", conversationID)
	return nil
}

// Forget drops the lock kept for a deleted conversation.
func (m *Memory) Forget(conversationID string) {
	m.locks.Delete(conversationID)
}
