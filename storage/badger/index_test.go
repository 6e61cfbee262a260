package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) (*FragmentIndex, *mock.MockEmbedder) {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	embedder := mock.NewMockEmbedder()
	index, err := NewFragmentIndex(backend, embedder)
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return index, embedder
}

func geographyFragments() []core.Fragment {
	return []core.Fragment{
		{Text: "Paris is the capital of France", OwnerID: "alice", SourceID: "france.txt"},
		{Text: "Berlin is the capital of Germany", OwnerID: "alice", SourceID: "germany.txt"},
		{Text: "Bananas are rich in potassium", OwnerID: "bob", SourceID: "food.txt"},
	}
}

func TestFragmentIndex_UpsertAssignsIDs(t *testing.T) {
	index, embedder := newTestIndex(t)
	ctx := context.Background()

	fragments := geographyFragments()
	require.NoError(t, index.Upsert(ctx, fragments))

	assert.Equal(t, 1, embedder.CallCount(), "fragments are embedded in one batch")
	for _, f := range fragments {
		assert.NotZero(t, f.Id)
		assert.Len(t, f.Vector, mock.DefaultDimensions)
	}

	count, err := index.CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFragmentIndex_Search(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Upsert(ctx, geographyFragments()))

	results, err := index.Search(ctx, "capital of France", 2, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Paris is the capital of France", results[0].Fragment.Text)
	assert.LessOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "france.txt", results[0].Fragment.Metadata()["source"])
	assert.Equal(t, "alice", results[0].Fragment.Metadata()["ownerId"])
}

func TestFragmentIndex_SearchThreshold(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Upsert(ctx, geographyFragments()))

	results, err := index.Search(ctx, "quantum chromodynamics", 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFragmentIndex_SearchInvalidTopK(t *testing.T) {
	index, _ := newTestIndex(t)

	_, err := index.Search(context.Background(), "q", 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFragmentIndex_EmbedError(t *testing.T) {
	index, embedder := newTestIndex(t)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	err := index.Upsert(context.Background(), geographyFragments())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")

	count, err := index.CountFragments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is stored when embedding fails")
}

func TestFragmentIndex_RejectsInvalidFragment(t *testing.T) {
	index, _ := newTestIndex(t)

	err := index.Upsert(context.Background(), []core.Fragment{{Text: " ", SourceID: "a.txt"}})
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestFragmentIndex_DeleteByOwner(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Upsert(ctx, geographyFragments()))

	require.NoError(t, index.DeleteByOwner(ctx, "alice"))

	remaining, err := index.ScanFragments(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "bob", remaining[0].OwnerID)

	// Deleting again is a no-op.
	require.NoError(t, index.DeleteByOwner(ctx, "alice"))
}

func TestFragmentIndex_DeleteBySources(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Upsert(ctx, geographyFragments()))

	require.NoError(t, index.DeleteBySources(ctx, "france.txt", "food.txt"))

	remaining, err := index.ScanFragments(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "germany.txt", remaining[0].SourceID)
}

func TestFragmentIndex_ScanAndUpdateVectors(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Upsert(ctx, geographyFragments()))

	first, err := index.ScanFragments(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Less(t, first[0].Id, first[1].Id)

	rest, err := index.ScanFragments(ctx, first[1].Id, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	rest[0].Vector = []float32{1, 0, 0}
	require.NoError(t, index.UpdateVectors(ctx, rest))

	again, err := index.ScanFragments(ctx, first[1].Id, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, again[0].Vector)
	assert.Equal(t, rest[0].Text, again[0].Text)

	err = index.UpdateVectors(ctx, []core.Fragment{{Id: 9999}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFragmentIndex_UpsertExistingMovesTags(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	fragments := []core.Fragment{{Text: "hello world", OwnerID: "alice", SourceID: "a.txt"}}
	require.NoError(t, index.Upsert(ctx, fragments))

	fragments[0].OwnerID = "bob"
	require.NoError(t, index.Upsert(ctx, fragments))

	require.NoError(t, index.DeleteByOwner(ctx, "alice"))
	count, err := index.CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "old owner tag was replaced")
}

func TestFragmentIndex_UpsertLargerThanOneTransaction(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	// 1200 fragments of 10 KiB each add up to more than a single badger transaction accepts.
	body := strings.Repeat("x", 10*1024)
	fragments := make([]core.Fragment, 1200)
	for i := range fragments {
		fragments[i] = core.Fragment{
			Text:     fmt.Sprintf("fragment %d %s", i, body),
			OwnerID:  "alice",
			SourceID: "big.txt",
			Sequence: i,
			Vector:   []float32{1, float32(i)},
		}
	}
	require.NoError(t, index.Upsert(ctx, fragments))

	count, err := index.CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(fragments), count)

	require.NoError(t, index.DeleteBySources(ctx, "big.txt"))
	count, err = index.CountFragments(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
