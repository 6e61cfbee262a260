// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// DocumentCatalog implements storage.DocumentCatalog on BadgerDB.
type DocumentCatalog struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentCatalog = (*DocumentCatalog)(nil)

// NewDocumentCatalog creates a new DocumentCatalog.
func NewDocumentCatalog(backend *Backend) (*DocumentCatalog, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}
	return &DocumentCatalog{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (c *DocumentCatalog) Close() error {
	return c.idSeq.Release()
}

// Exists reports whether (filename, contentHash) has been recorded.
func (c *DocumentCatalog) Exists(ctx context.Context, filename, contentHash string) (bool, error) {
	found := false
	err := c.backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocumentHashKey(filename, contentHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Insert records doc. The uniqueness key and the record are written in the same
// transaction, so a concurrent insert of the same pair fails with a conflict or
// storage.ErrDuplicateKey.
func (c *DocumentCatalog) Insert(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	err := c.backend.Update(func(tx *badger.Txn) error {
		hashKey := makeDocumentHashKey(doc.Filename, doc.ContentHash)
		_, err := tx.Get(hashKey)
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := nextID(c.idSeq)
		if err != nil {
			return err
		}
		doc.Id = core.ID(id)
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}

		if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(hashKey, storage.MarshalID(doc.Id)); err != nil {
			return err
		}
		return tx.Set(makeTagKey(documentOwnerPrefix, doc.OwnerID, doc.Id), nil)
	})
	if errors.Is(err, badger.ErrConflict) {
		err = storage.ErrDuplicateKey
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByOwner lists the documents uploaded by owner in insertion order.
func (c *DocumentCatalog) FindByOwner(ctx context.Context, owner string) ([]*core.Document, error) {
	var docs []*core.Document
	err := c.backend.View(func(tx *badger.Txn) error {
		for _, key := range collectKeys(tx, makeTagPrefix(documentOwnerPrefix, owner)) {
			doc, err := readDocument(tx, idFromKeySuffix(key))
			if err != nil {
				return err
			}
			if doc != nil {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	return docs, err
}

// DeleteMany removes docs along with their index entries.
func (c *DocumentCatalog) DeleteMany(ctx context.Context, docs ...*core.Document) error {
	return c.backend.Update(func(tx *badger.Txn) error {
		for _, doc := range docs {
			stored, err := readDocument(tx, doc.Id)
			if err != nil {
				return err
			}
			if stored == nil {
				continue
			}
			if err := tx.Delete(makeDocumentHashKey(stored.Filename, stored.ContentHash)); err != nil {
				return err
			}
			if err := tx.Delete(makeTagKey(documentOwnerPrefix, stored.OwnerID, stored.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(stored.Id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
