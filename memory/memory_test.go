package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) (*Memory, string) {
	t.Helper()
	stores, err := badger.NewMemoryStores(mock.NewMockEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	conv, err := stores.Conversations.CreateConversation(context.Background(), "test")
	require.NoError(t, err)

	m, err := New(stores.Conversations)
	require.NoError(t, err)
	return m, conv.Id
}

func appendN(t *testing.T, m *Memory, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		require.NoError(t, m.Append(context.Background(), id, &core.Message{Role: role, Content: fmt.Sprintf("m%d", i)}))
	}
}

func contents(msgs []*core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name   string
		stored int
		max    int
		want   []string
	}{
		{"fewer than window", 3, 8, []string{"m0", "m1", "m2"}},
		{"exactly window", 4, 4, []string{"m0", "m1", "m2", "m3"}},
		{"more than window", 10, 3, []string{"m7", "m8", "m9"}},
		{"empty log", 0, 8, []string{}},
		{"zero window", 5, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, id := newTestMemory(t)
			appendN(t, m, id, tt.stored)

			got, err := m.Window(context.Background(), id, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(got))
		})
	}
}

func TestClearIsNoOp(t *testing.T) {
	m, id := newTestMemory(t)
	appendN(t, m, id, 2)

	require.NoError(t, m.Clear(context.Background(), id))

	got, err := m.Window(context.Background(), id, 8)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConcurrentAppends(t *testing.T) {
	m, id := newTestMemory(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.Append(context.Background(), id, &core.Message{Role: core.RoleUser, Content: fmt.Sprintf("c%d", i)}))
		}(i)
	}
	wg.Wait()

	got, err := m.Window(context.Background(), id, 100)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestAdvisor_SplicesHistoryAndRecordsUser(t *testing.T) {
	m, id := newTestMemory(t)
	appendN(t, m, id, 4)

	a := NewAdvisor(m, 2)
	assert.Equal(t, advisor.OrderMemory, a.Order())

	req := &advisor.Request{
		Messages: []ai.ChatMessage{ai.SystemMessage("sys"), ai.UserMessage("new question")},
		UserText: "new question",
		Context:  advisor.NewRequestContext(),
	}
	advisor.Set(req.Context, advisor.ConversationIDKey, id)

	require.NoError(t, a.Before(context.Background(), req))

	require.Len(t, req.Messages, 4)
	assert.Equal(t, "sys", req.Messages[0].Content)
	assert.Equal(t, ai.ChatMessage{Role: core.RoleUser, Content: "m2"}, req.Messages[1])
	assert.Equal(t, ai.ChatMessage{Role: core.RoleAssistant, Content: "m3"}, req.Messages[2])
	assert.Equal(t, "new question", req.Messages[3].Content)

	window, err := m.Window(context.Background(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new question"}, contents(window))
}

func TestAdvisor_RequiresConversationID(t *testing.T) {
	m, _ := newTestMemory(t)
	a := NewAdvisor(m, 0)

	err := a.Before(context.Background(), &advisor.Request{UserText: "q", Context: advisor.NewRequestContext()})
	require.Error(t, err)
}

func TestAdvisor_UnknownConversation(t *testing.T) {
	m, _ := newTestMemory(t)
	a := NewAdvisor(m, 0)

	req := &advisor.Request{UserText: "q", Context: advisor.NewRequestContext()}
	advisor.Set(req.Context, advisor.ConversationIDKey, "missing")

	require.Error(t, a.Before(context.Background(), req))
}

func TestAdvisor_ConcurrentTurnsSeeDistinctHistory(t *testing.T) {
	m, id := newTestMemory(t)
	a := NewAdvisor(m, 100)

	const turns = 10
	lengths := make([]int, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("q%d", i)
			req := &advisor.Request{
				Messages: []ai.ChatMessage{ai.UserMessage(text)},
				UserText: text,
				Context:  advisor.NewRequestContext(),
			}
			advisor.Set(req.Context, advisor.ConversationIDKey, id)
			assert.NoError(t, a.Before(context.Background(), req))
			lengths[i] = len(req.Messages) - 1
		}(i)
	}
	wg.Wait()

	// Each turn reads the log and appends to it without another turn in between,
	// so every turn sees a different number of earlier messages.
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, lengths)

	got, err := m.Window(context.Background(), id, 100)
	require.NoError(t, err)
	assert.Len(t, got, turns)
}
