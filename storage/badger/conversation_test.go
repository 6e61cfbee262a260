package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConversations(t *testing.T) *ConversationRepository {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	repo, err := NewConversationRepository(backend)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	repo := newTestConversations(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Geography")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.Id)

	got, err := repo.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, "Geography", got.Title)
	assert.Empty(t, got.Messages)

	_, err = repo.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationRepository_ListNewestFirst(t *testing.T) {
	repo := newTestConversations(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		conv, err := repo.CreateConversation(ctx, fmt.Sprintf("chat %d", i))
		require.NoError(t, err)
		ids = append(ids, conv.Id)
		time.Sleep(2 * time.Millisecond)
	}

	convs, err := repo.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, ids[2], convs[0].Id)
	assert.Equal(t, ids[1], convs[1].Id)
	assert.Equal(t, ids[0], convs[2].Id)
}

func TestConversationRepository_Messages(t *testing.T) {
	repo := newTestConversations(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "t")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		err := repo.AppendMessages(ctx, conv.Id, &core.Message{Role: core.RoleUser, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	count, err := repo.CountMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	window, err := repo.GetMessages(ctx, conv.Id, 3, 10)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "m3", window[0].Content)
	assert.Equal(t, "m4", window[1].Content)

	limited, err := repo.GetMessages(ctx, conv.Id, 1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "m1", limited[0].Content)

	full, err := repo.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	require.Len(t, full.Messages, 5)
	assert.NotEmpty(t, full.Messages[0].Id)
	assert.Equal(t, "m0", full.Messages[0].Content)
}

func TestConversationRepository_MessagesAreIsolated(t *testing.T) {
	repo := newTestConversations(t)
	ctx := context.Background()

	a, err := repo.CreateConversation(ctx, "a")
	require.NoError(t, err)
	b, err := repo.CreateConversation(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, repo.AppendMessages(ctx, a.Id, &core.Message{Role: core.RoleUser, Content: "for a"}))
	require.NoError(t, repo.AppendMessages(ctx, b.Id, &core.Message{Role: core.RoleAssistant, Content: "for b"}))

	msgs, err := repo.GetMessages(ctx, a.Id, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for a", msgs[0].Content)
}

func TestConversationRepository_AppendToMissing(t *testing.T) {
	repo := newTestConversations(t)

	err := repo.AppendMessages(context.Background(), "nope", &core.Message{Role: core.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationRepository_Delete(t *testing.T) {
	repo := newTestConversations(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, repo.AppendMessages(ctx, conv.Id, &core.Message{Role: core.RoleUser, Content: "x"}))

	require.NoError(t, repo.DeleteConversation(ctx, conv.Id))

	_, err = repo.GetConversation(ctx, conv.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	count, err := repo.CountMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.Zero(t, count)

	convs, err := repo.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)

	assert.ErrorIs(t, repo.DeleteConversation(ctx, conv.Id), storage.ErrNotFound)
}
