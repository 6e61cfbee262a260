package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// ConversationRepository implements storage.ConversationRepository on BadgerDB.
// Messages are keyed by a global sequence, so iteration over a conversation's
// prefix yields them in append order.
type ConversationRepository struct {
	backend *Backend
	msgSeq  *badger.Sequence
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	msgSeq, err := backend.GetSequence(messageSeq)
	if err != nil {
		return nil, err
	}
	return &ConversationRepository{
		backend: backend,
		msgSeq:  msgSeq,
	}, nil
}

// Close releases the message sequence.
func (r *ConversationRepository) Close() error {
	return r.msgSeq.Release()
}

// CreateConversation stores a new conversation header.
func (r *ConversationRepository) CreateConversation(ctx context.Context, title string) (*core.Conversation, error) {
	conv := &core.Conversation{
		Id:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	err := r.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeConversationKey(conv.Id), storage.MarshalConversation(conv)); err != nil {
			return err
		}
		return tx.Set(makeConversationDateKey(conv.CreatedAt, conv.Id), nil)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns the header and the full message history.
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var conv *core.Conversation
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		conv, err = readConversation(tx, id)
		if err != nil {
			return err
		}
		conv.Messages, err = readMessages(tx, id, 0, 0)
		return err
	})
	return conv, err
}

// ListConversations returns headers ordered by creation time, newest first.
func (r *ConversationRepository) ListConversations(ctx context.Context) ([]*core.Conversation, error) {
	var convs []*core.Conversation
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(conversationDatePrefix)
		opts.PrefetchValues = false
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must seek past the last key under the prefix.
		seekKey := append([]byte(conversationDatePrefix), 0xff)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			id := string(key[len(conversationDatePrefix)+8:])
			conv, err := readConversation(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			convs = append(convs, conv)
		}
		return nil
	})
	return convs, err
}

// DeleteConversation removes the header, the date index entry, and all messages.
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		conv, err := readConversation(tx, id)
		if err != nil {
			return err
		}
		for _, key := range collectKeys(tx, makeMessagePrefix(id)) {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeConversationDateKey(conv.CreatedAt, id)); err != nil {
			return err
		}
		return tx.Delete(makeConversationKey(id))
	})
}

// AppendMessages stores messages after the existing history.
// Missing IDs and timestamps are filled in.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id string, messages ...*core.Message) error {
	for _, msg := range messages {
		if err := core.ValidateMessage(msg); err != nil {
			return err
		}
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		if _, err := readConversation(tx, id); err != nil {
			return err
		}
		for _, msg := range messages {
			seq, err := nextID(r.msgSeq)
			if err != nil {
				return err
			}
			if msg.Id == "" {
				msg.Id = uuid.NewString()
			}
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = time.Now().UTC()
			}
			if err := tx.Set(makeMessageKey(id, seq), storage.MarshalMessage(msg)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountMessages returns the number of messages stored for a conversation.
func (r *ConversationRepository) CountMessages(ctx context.Context, id string) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		count = len(collectKeys(tx, makeMessagePrefix(id)))
		return nil
	})
	return count, err
}

// GetMessages returns up to limit messages after skipping skip, oldest first.
func (r *ConversationRepository) GetMessages(ctx context.Context, id string, skip, limit int) ([]*core.Message, error) {
	var msgs []*core.Message
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		msgs, err = readMessages(tx, id, skip, limit)
		return err
	})
	return msgs, err
}

func readConversation(tx *badger.Txn, id string) (*core.Conversation, error) {
	item, err := tx.Get(makeConversationKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var conv *core.Conversation
	err = item.Value(func(val []byte) error {
		conv, err = storage.UnmarshalConversation(val)
		return err
	})
	return conv, err
}

func readMessages(tx *badger.Txn, id string, skip, limit int) ([]*core.Message, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeMessagePrefix(id)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	msgs := []*core.Message{}
	seen := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if seen < skip {
			seen++
			continue
		}
		if limit > 0 && len(msgs) >= limit {
			break
		}
		var msg *core.Message
		err := iter.Item().Value(func(val []byte) error {
			var err error
			msg, err = storage.UnmarshalMessage(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
