package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type documentCatalog struct {
	db *DB
}

var _ storage.DocumentCatalog = (*documentCatalog)(nil)

// NewDocumentCatalog returns a catalog backed by the documents table.
func NewDocumentCatalog(db *DB) storage.DocumentCatalog {
	return &documentCatalog{db: db}
}

func (c *documentCatalog) Close() error {
	return nil
}

func (c *documentCatalog) Exists(ctx context.Context, filename, contentHash string) (bool, error) {
	var exists bool
	err := c.db.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE filename = $1 AND content_hash = $2)",
		filename, contentHash).Scan(&exists)
	return exists, err
}

func (c *documentCatalog) Insert(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	var id int64
	err := c.db.pool.QueryRow(ctx, `
		INSERT INTO documents (filename, content_hash, chunk_count, document_type, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		doc.Filename, doc.ContentHash, doc.ChunkCount, doc.DocumentType, doc.OwnerID).Scan(&id, &doc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}
	doc.Id = core.ID(id)
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}

func (c *documentCatalog) FindByOwner(ctx context.Context, owner string) ([]*core.Document, error) {
	rows, err := c.db.pool.Query(ctx, `
		SELECT id, filename, content_hash, chunk_count, document_type, owner_id, created_at
		FROM documents WHERE owner_id = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*core.Document
	for rows.Next() {
		var (
			d  core.Document
			id int64
		)
		if err := rows.Scan(&id, &d.Filename, &d.ContentHash, &d.ChunkCount, &d.DocumentType, &d.OwnerID, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Id = core.ID(id)
		d.CreatedAt = d.CreatedAt.UTC()
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (c *documentCatalog) DeleteMany(ctx context.Context, docs ...*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = int64(d.Id)
	}
	return pgx.BeginFunc(ctx, c.db.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = ANY($1)", ids)
		return err
	})
}
