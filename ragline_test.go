package ragline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/chunk"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	chunker, err := chunk.NewWordChunker(32)
	require.NoError(t, err)

	e, err := Open(context.Background(), cfg,
		WithProvider(mock.NewMockProvider()),
		WithChunker(chunker),
		WithInMemoryStorage())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpen(t *testing.T) {
	e := openTestEngine(t, nil)

	assert.NotNil(t, e.Pipeline())
	assert.NotNil(t, e.Streamer())
	assert.NotNil(t, e.Chats())
	assert.NotNil(t, e.Index())
	assert.Equal(t, config.BackendBadger, e.Config().Storage.Backend)

	srv, err := e.NewServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.WindowSize = 0

	e, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, e)
}

func TestOpen_BadStoragePath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg := config.Default()
	cfg.Storage.BadgerPath = file

	e, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, e)
}

func TestEngine_IngestAndAsk(t *testing.T) {
	e := openTestEngine(t, nil)
	ctx := context.Background()

	summary, err := e.Pipeline().IngestFiles(ctx, "alice", []ingestion.Upload{
		{Filename: "spring.txt", Content: []byte("Spring is a Java framework for dependency injection")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"spring.txt"}, summary.Processed)

	conv, err := e.Chats().CreateConversation(ctx, "spring")
	require.NoError(t, err)

	answer, err := e.Chats().Ask(ctx, chat.AskRequest{ConversationID: conv.Id, Question: "what is spring framework"}, nil)
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "Question: what is spring framework")
}

func TestEngine_LoadKnowledgeBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.txt"), []byte("shared knowledge"), 0o644))

	cfg := config.Default()
	cfg.Knowledge.Dir = dir
	e := openTestEngine(t, cfg)

	summary, err := e.LoadKnowledgeBase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"faq.txt"}, summary.Processed)

	disabled := openTestEngine(t, nil)
	summary, err = disabled.LoadKnowledgeBase(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Processed)
}

func TestEngine_Reembed(t *testing.T) {
	e := openTestEngine(t, nil)
	ctx := context.Background()
	_, err := e.Pipeline().IngestFiles(ctx, "", []ingestion.Upload{
		{Filename: "a.txt", Content: []byte("alpha")},
		{Filename: "b.txt", Content: []byte("beta")},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	r, err := e.NewReembedder(nil, &out)
	require.NoError(t, err)
	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
