package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// FragmentIndex implements storage.FragmentIndex on BadgerDB.
// Search is a brute-force cosine scan over every stored vector.
type FragmentIndex struct {
	backend  *Backend
	embedder ai.Embedder
	idSeq    *badger.Sequence
	logger   *slog.Logger
}

var (
	_ storage.FragmentIndex   = (*FragmentIndex)(nil)
	_ storage.FragmentScanner = (*FragmentIndex)(nil)
)

// NewFragmentIndex creates a fragment index that embeds text with embedder.
func NewFragmentIndex(backend *Backend, embedder ai.Embedder) (*FragmentIndex, error) {
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	idSeq, err := backend.GetSequence(fragmentIDSeq)
	if err != nil {
		return nil, err
	}
	return &FragmentIndex{
		backend:  backend,
		embedder: embedder,
		idSeq:    idSeq,
		logger:   backend.logger.With("component", "fragment-index"),
	}, nil
}

// Close releases the ID sequence.
func (x *FragmentIndex) Close() error {
	return x.idSeq.Release()
}

// Search embeds query and scores it against every stored fragment.
func (x *FragmentIndex) Search(ctx context.Context, query string, topK int, threshold float32) ([]core.ScoredFragment, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	vector, err := x.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []core.ScoredFragment
	err = x.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fragmentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var fragment *core.Fragment
			err := iter.Item().Value(func(val []byte) error {
				var err error
				fragment, err = storage.UnmarshalFragment(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(fragment.Vector) != len(vector) {
				continue
			}
			score := cosineSimilarity(vector, fragment.Vector)
			if score >= threshold {
				results = append(results, core.ScoredFragment{Fragment: fragment, Score: score})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b core.ScoredFragment) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > topK {
		results = results[:topK]
	}

	x.logger.Debug("search complete", "hits", len(results), "top_k", topK, "threshold", threshold)
	return results, nil
}

// Upsert embeds fragments that carry no vector and writes them through a write batch.
// New fragments get an ID from the sequence; the ID is written back into the slice.
func (x *FragmentIndex) Upsert(ctx context.Context, fragments []core.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	for i := range fragments {
		if err := core.ValidateFragment(&fragments[i]); err != nil {
			return err
		}
	}
	if err := x.embedMissing(ctx, fragments); err != nil {
		return err
	}

	stale, err := x.staleTags(fragments)
	if err != nil {
		return err
	}
	var added []int
	for i := range fragments {
		if fragments[i].Id != 0 {
			continue
		}
		id, err := nextID(x.idSeq)
		if err != nil {
			return err
		}
		fragments[i].Id = core.ID(id)
		added = append(added, i)
	}

	err = x.backend.Batch(func(wb *badger.WriteBatch) error {
		for _, key := range stale {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		for i := range fragments {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeFragment(wb, &fragments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A batch may have flushed part of its writes; drop the new fragments
		// so a retry does not leave duplicates behind.
		x.discardAdded(fragments, added)
	}
	return err
}

func (x *FragmentIndex) discardAdded(fragments []core.Fragment, added []int) {
	err := x.backend.Batch(func(wb *badger.WriteBatch) error {
		for _, i := range added {
			fragment := &fragments[i]
			for _, key := range [][]byte{
				makeFragmentKey(fragment.Id),
				makeTagKey(fragmentOwnerPrefix, fragment.OwnerID, fragment.Id),
				makeTagKey(fragmentSourcePrefix, fragment.SourceID, fragment.Id),
			} {
				if err := wb.Delete(key); err != nil {
					return err
				}
			}
			fragment.Id = 0
		}
		return nil
	})
	if err != nil {
		x.logger.Error("failed to discard partial upsert", "count", len(added), "err", err)
	}
}

func (x *FragmentIndex) embedMissing(ctx context.Context, fragments []core.Fragment) error {
	var (
		texts   []string
		indexes []int
	)
	for i := range fragments {
		if len(fragments[i].Vector) == 0 {
			texts = append(texts, fragments[i].Text)
			indexes = append(indexes, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := x.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed fragments: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for j, i := range indexes {
		fragments[i].Vector = vectors[j]
	}
	return nil
}

// staleTags returns the owner and source index keys of stored fragments that
// the replacements in fragments no longer carry.
func (x *FragmentIndex) staleTags(fragments []core.Fragment) ([][]byte, error) {
	var stale [][]byte
	err := x.backend.View(func(tx *badger.Txn) error {
		for i := range fragments {
			fragment := &fragments[i]
			if fragment.Id == 0 {
				continue
			}
			old, err := readFragment(tx, fragment.Id)
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}
			if old.OwnerID != fragment.OwnerID {
				stale = append(stale, makeTagKey(fragmentOwnerPrefix, old.OwnerID, old.Id))
			}
			if old.SourceID != fragment.SourceID {
				stale = append(stale, makeTagKey(fragmentSourcePrefix, old.SourceID, old.Id))
			}
		}
		return nil
	})
	return stale, err
}

func writeFragment(wb *badger.WriteBatch, fragment *core.Fragment) error {
	if err := wb.Set(makeFragmentKey(fragment.Id), storage.MarshalFragment(fragment)); err != nil {
		return err
	}
	if err := wb.Set(makeTagKey(fragmentOwnerPrefix, fragment.OwnerID, fragment.Id), nil); err != nil {
		return err
	}
	return wb.Set(makeTagKey(fragmentSourcePrefix, fragment.SourceID, fragment.Id), nil)
}

// DeleteByOwner removes every fragment tagged with owner.
func (x *FragmentIndex) DeleteByOwner(ctx context.Context, owner string) error {
	return x.deleteTagged(ctx, fragmentOwnerPrefix, owner)
}

// DeleteBySources removes every fragment whose source is in sources.
func (x *FragmentIndex) DeleteBySources(ctx context.Context, sources ...string) error {
	for _, source := range sources {
		if err := x.deleteTagged(ctx, fragmentSourcePrefix, source); err != nil {
			return err
		}
	}
	return nil
}

func (x *FragmentIndex) deleteTagged(ctx context.Context, prefix, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var keys [][]byte
	err := x.backend.View(func(tx *badger.Txn) error {
		for _, key := range collectKeys(tx, makeTagPrefix(prefix, value)) {
			id := idFromKeySuffix(key)
			fragment, err := readFragment(tx, id)
			if err != nil {
				return err
			}
			if fragment != nil {
				keys = append(keys,
					makeTagKey(fragmentOwnerPrefix, fragment.OwnerID, id),
					makeTagKey(fragmentSourcePrefix, fragment.SourceID, id),
					makeFragmentKey(id))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = x.backend.Batch(func(wb *badger.WriteBatch) error {
		for _, key := range keys {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		x.logger.Debug("deleted fragments", "tag", prefix, "value", value, "count", len(keys)/3)
	}
	return err
}

// CountFragments returns the number of stored fragments.
func (x *FragmentIndex) CountFragments(ctx context.Context) (int, error) {
	count := 0
	err := x.backend.View(func(tx *badger.Txn) error {
		count = len(collectKeys(tx, []byte(fragmentPrefix)))
		return nil
	})
	return count, err
}

// ScanFragments returns up to limit fragments with an ID greater than after, in ID order.
func (x *FragmentIndex) ScanFragments(ctx context.Context, after core.ID, limit int) ([]core.Fragment, error) {
	var fragments []core.Fragment
	err := x.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fragmentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeFragmentKey(after + 1)); iter.Valid(); iter.Next() {
			if limit > 0 && len(fragments) >= limit {
				break
			}
			var fragment *core.Fragment
			err := iter.Item().Value(func(val []byte) error {
				var err error
				fragment, err = storage.UnmarshalFragment(val)
				return err
			})
			if err != nil {
				return err
			}
			fragments = append(fragments, *fragment)
		}
		return nil
	})
	return fragments, err
}

// UpdateVectors replaces the vectors of existing fragments.
// Returns storage.ErrNotFound if any fragment is missing.
func (x *FragmentIndex) UpdateVectors(ctx context.Context, fragments []core.Fragment) error {
	return x.backend.Update(func(tx *badger.Txn) error {
		for i := range fragments {
			stored, err := readFragment(tx, fragments[i].Id)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("fragment %d: %w", fragments[i].Id, storage.ErrNotFound)
			}
			stored.Vector = fragments[i].Vector
			if err := tx.Set(makeFragmentKey(stored.Id), storage.MarshalFragment(stored)); err != nil {
				return err
			}
		}
		return nil
	})
}

// readFragment returns nil without error when the fragment doesn't exist.
func readFragment(tx *badger.Txn, id core.ID) (*core.Fragment, error) {
	item, err := tx.Get(makeFragmentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fragment *core.Fragment
	err = item.Value(func(val []byte) error {
		fragment, err = storage.UnmarshalFragment(val)
		return err
	})
	return fragment, err
}

// cosineSimilarity of two equal-length vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
