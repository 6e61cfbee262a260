package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

type fragmentIndex struct {
	db       *DB
	embedder ai.Embedder
}

var (
	_ storage.FragmentIndex   = (*fragmentIndex)(nil)
	_ storage.FragmentScanner = (*fragmentIndex)(nil)
)

// NewFragmentIndex returns a pgvector backed fragment index.
// The returned value also implements storage.FragmentScanner.
func NewFragmentIndex(db *DB, embedder ai.Embedder) (storage.FragmentIndex, error) {
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	return &fragmentIndex{db: db, embedder: embedder}, nil
}

func (x *fragmentIndex) Close() error {
	return nil
}

func (x *fragmentIndex) Search(ctx context.Context, query string, topK int, threshold float32) ([]core.ScoredFragment, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	vector, err := x.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != x.db.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vector), x.db.dimensions)
	}

	rows, err := x.db.pool.Query(ctx, `
		SELECT id, text, owner_id, source, sequence, 1 - (embedding <=> $1) AS score
		FROM fragments
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`,
		pgvector.NewVector(vector), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("search fragments: %w", err)
	}
	defer rows.Close()

	var results []core.ScoredFragment
	for rows.Next() {
		var (
			f     core.Fragment
			id    int64
			score float64
		)
		if err := rows.Scan(&id, &f.Text, &f.OwnerID, &f.SourceID, &f.Sequence, &score); err != nil {
			return nil, err
		}
		f.Id = core.ID(id)
		results = append(results, core.ScoredFragment{Fragment: &f, Score: float32(score)})
	}
	return results, rows.Err()
}

func (x *fragmentIndex) Upsert(ctx context.Context, fragments []core.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	texts := make([]string, len(fragments))
	for i := range fragments {
		if err := core.ValidateFragment(&fragments[i]); err != nil {
			return err
		}
		texts[i] = fragments[i].Text
	}
	vectors, err := x.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("embed fragments: got %d vectors for %d texts", len(vectors), len(fragments))
	}

	return pgx.BeginFunc(ctx, x.db.pool, func(tx pgx.Tx) error {
		for i := range fragments {
			f := &fragments[i]
			if len(vectors[i]) != x.db.dimensions {
				return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vectors[i]), x.db.dimensions)
			}
			f.Vector = vectors[i]
			if f.Id == 0 {
				var id int64
				err := tx.QueryRow(ctx,
					`INSERT INTO fragments (text, owner_id, source, sequence, embedding)
					 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
					f.Text, f.OwnerID, f.SourceID, f.Sequence, pgvector.NewVector(f.Vector)).Scan(&id)
				if err != nil {
					return fmt.Errorf("insert fragment: %w", err)
				}
				f.Id = core.ID(id)
				continue
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO fragments (id, text, owner_id, source, sequence, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, owner_id = EXCLUDED.owner_id,
				   source = EXCLUDED.source, sequence = EXCLUDED.sequence, embedding = EXCLUDED.embedding`,
				int64(f.Id), f.Text, f.OwnerID, f.SourceID, f.Sequence, pgvector.NewVector(f.Vector))
			if err != nil {
				return fmt.Errorf("upsert fragment %d: %w", f.Id, err)
			}
		}
		return nil
	})
}

func (x *fragmentIndex) DeleteByOwner(ctx context.Context, owner string) error {
	tag, err := x.db.pool.Exec(ctx, "DELETE FROM fragments WHERE owner_id = $1", owner)
	if err != nil {
		return fmt.Errorf("delete fragments by owner: %w", err)
	}
	x.db.logger.Debug("deleted fragments", "owner", owner, "count", tag.RowsAffected())
	return nil
}

func (x *fragmentIndex) DeleteBySources(ctx context.Context, sources ...string) error {
	if len(sources) == 0 {
		return nil
	}
	if _, err := x.db.pool.Exec(ctx, "DELETE FROM fragments WHERE source = ANY($1)", sources); err != nil {
		return fmt.Errorf("delete fragments by source: %w", err)
	}
	return nil
}

func (x *fragmentIndex) CountFragments(ctx context.Context) (int, error) {
	var count int
	err := x.db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM fragments").Scan(&count)
	return count, err
}

func (x *fragmentIndex) ScanFragments(ctx context.Context, after core.ID, limit int) ([]core.Fragment, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := x.db.pool.Query(ctx, `
		SELECT id, text, owner_id, source, sequence, embedding
		FROM fragments WHERE id > $1 ORDER BY id
		LIMIT NULLIF($2, -1)`, int64(after), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fragments []core.Fragment
	for rows.Next() {
		var (
			f   core.Fragment
			id  int64
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &f.Text, &f.OwnerID, &f.SourceID, &f.Sequence, &vec); err != nil {
			return nil, err
		}
		f.Id = core.ID(id)
		f.Vector = vec.Slice()
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}

func (x *fragmentIndex) UpdateVectors(ctx context.Context, fragments []core.Fragment) error {
	return pgx.BeginFunc(ctx, x.db.pool, func(tx pgx.Tx) error {
		for _, f := range fragments {
			tag, err := tx.Exec(ctx, "UPDATE fragments SET embedding = $1 WHERE id = $2",
				pgvector.NewVector(f.Vector), int64(f.Id))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("fragment %d: %w", f.Id, storage.ErrNotFound)
			}
		}
		return nil
	})
}
