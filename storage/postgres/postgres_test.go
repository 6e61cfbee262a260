package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to RAGLINE_TEST_POSTGRES_URL and truncates the tables.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("RAGLINE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("RAGLINE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url, WithDimensions(mock.DefaultDimensions))
	require.NoError(t, err)
	_, err = db.pool.Exec(ctx, "TRUNCATE fragments, documents RESTART IDENTITY")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpen_RejectsBadDimensions(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost/x", WithDimensions(0))
	require.Error(t, err)
}

func TestFragmentIndex_SearchAndDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	index, err := NewFragmentIndex(db, mock.NewMockEmbedder())
	require.NoError(t, err)

	fragments := []core.Fragment{
		{Text: "Paris is the capital of France", OwnerID: "alice", SourceID: "france.txt"},
		{Text: "Bananas are rich in potassium", OwnerID: "bob", SourceID: "food.txt"},
	}
	require.NoError(t, index.Upsert(ctx, fragments))
	assert.NotZero(t, fragments[0].Id)

	results, err := index.Search(ctx, "capital of France", 1, 0.1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "france.txt", results[0].Fragment.SourceID)

	require.NoError(t, index.DeleteByOwner(ctx, "alice"))
	scanner := index.(storage.FragmentScanner)
	count, err := scanner.CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentCatalog_Duplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	catalog := NewDocumentCatalog(db)

	doc := &core.Document{Filename: "a.txt", ContentHash: core.HashContent([]byte("a")), ChunkCount: 1, DocumentType: "txt", OwnerID: "alice"}
	_, err := catalog.Insert(ctx, doc)
	require.NoError(t, err)

	dup := *doc
	_, err = catalog.Insert(ctx, &dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	docs, err := catalog.FindByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, catalog.DeleteMany(ctx, docs...))
	exists, err := catalog.Exists(ctx, "a.txt", doc.ContentHash)
	require.NoError(t, err)
	assert.False(t, exists)
}
