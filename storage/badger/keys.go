package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/ragline/core"
)

// Key prefixes for different data types. Every prefix ends in ':' so no prefix
// is a prefix of another.
const (
	fragmentPrefix       = "fragrec:"
	fragmentOwnerPrefix  = "fragown:"
	fragmentSourcePrefix = "fragsrc:"
	fragmentIDSeq        = "fragseq"

	documentPrefix      = "docrec:"
	documentHashPrefix  = "dochash:"
	documentOwnerPrefix = "docown:"
	documentIDSeq       = "docseq"

	conversationPrefix     = "convrec:"
	conversationDatePrefix = "convdate:"
	messagePrefix          = "convmsg:"
	messageSeq             = "convmsgseq"
)

// separator ends variable-length key segments.
const separator = 0x00

// appendID writes id in BigEndian order so lexicographic sort matches numeric sort.
func appendID(buf []byte, id uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, id)
}

// makeFragmentKey generates a key for a fragment by ID.
// Format: prefix id
func makeFragmentKey(id core.ID) []byte {
	return appendID([]byte(fragmentPrefix), uint64(id))
}

// idFromKeySuffix recovers the ID that ends a fragment, owner, or source key.
func idFromKeySuffix(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeTagPrefix generates the partial key shared by every entry tagged with value.
// Format: prefix value 0x00
func makeTagPrefix(prefix, value string) []byte {
	buf := make([]byte, 0, len(prefix)+len(value)+1+8)
	buf = append(buf, prefix...)
	buf = append(buf, value...)
	return append(buf, separator)
}

// makeTagKey generates a composite index key.
// Format: prefix value 0x00 id
func makeTagKey(prefix, value string, id core.ID) []byte {
	return appendID(makeTagPrefix(prefix, value), uint64(id))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return appendID([]byte(documentPrefix), uint64(id))
}

// makeDocumentHashKey generates the uniqueness key for a (filename, hash) pair.
// Format: prefix filename 0x00 hash
func makeDocumentHashKey(filename, contentHash string) []byte {
	return append(makeTagPrefix(documentHashPrefix, filename), contentHash...)
}

// makeConversationKey generates a key for a conversation header.
func makeConversationKey(id string) []byte {
	return append([]byte(conversationPrefix), id...)
}

// makeConversationDateKey generates a key for the creation date index.
// Format: prefix timestamp id
func makeConversationDateKey(createdAt time.Time, id string) []byte {
	buf := appendID([]byte(conversationDatePrefix), uint64(createdAt.UnixMicro()))
	return append(buf, id...)
}

// makeMessagePrefix generates the partial key shared by a conversation's messages.
func makeMessagePrefix(conversationID string) []byte {
	return makeTagPrefix(messagePrefix, conversationID)
}

// makeMessageKey generates a key for one message of a conversation.
// Format: prefix conversationID 0x00 seq
func makeMessageKey(conversationID string, seq uint64) []byte {
	return appendID(makeMessagePrefix(conversationID), seq)
}
