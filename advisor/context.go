package advisor

import "maps"

// Key names a typed value in a RequestContext.
type Key[T any] struct {
	name string
}

// NewKey creates a key. Keys are compared by name.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's name.
func (k Key[T]) Name() string {
	return k.name
}

// Well-known keys shared by the advisors of a chat turn.
var (
	OriginalQueryKey    = NewKey[string]("originalQuery")
	ExpandedQueryKey    = NewKey[string]("expandedQuery")
	ExpansionRatioKey   = NewKey[float64]("expansionRatio")
	RetrievedContextKey = NewKey[string]("retrievedContext")
	ConversationIDKey   = NewKey[string]("conversationId")
)

// RequestContext is the key-value bag carried through one model call.
// It is not safe for concurrent use; a chat turn runs its advisors sequentially.
type RequestContext struct {
	values map[string]any
}

// NewRequestContext returns an empty context.
func NewRequestContext() *RequestContext {
	return &RequestContext{values: make(map[string]any)}
}

// Get returns the value stored under key and whether it was present with the right type.
func Get[T any](rc *RequestContext, key Key[T]) (T, bool) {
	var zero T
	if rc == nil {
		return zero, false
	}
	v, ok := rc.values[key.name]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Set stores value under key, replacing any previous value.
func Set[T any](rc *RequestContext, key Key[T], value T) {
	if rc.values == nil {
		rc.values = make(map[string]any)
	}
	rc.values[key.name] = value
}

// Values returns a copy of every entry, for logging.
func (rc *RequestContext) Values() map[string]any {
	return maps.Clone(rc.values)
}

// OriginalQuery returns the user's question as typed.
func (rc *RequestContext) OriginalQuery() string {
	v, _ := Get(rc, OriginalQueryKey)
	return v
}

// ExpandedQuery returns the expansion model's rewrite, or "" when none ran.
func (rc *RequestContext) ExpandedQuery() string {
	v, _ := Get(rc, ExpandedQueryKey)
	return v
}

// ExpansionRatio returns len(expanded)/len(original).
func (rc *RequestContext) ExpansionRatio() float64 {
	v, _ := Get(rc, ExpansionRatioKey)
	return v
}

// RetrievedContext returns the text handed to the model as context.
func (rc *RequestContext) RetrievedContext() string {
	v, _ := Get(rc, RetrievedContextKey)
	return v
}

// ConversationID returns the conversation the call belongs to.
func (rc *RequestContext) ConversationID() string {
	v, _ := Get(rc, ConversationIDKey)
	return v
}

// SearchQuery is the text used for retrieval: the expansion when present, else the original.
func (rc *RequestContext) SearchQuery() string {
	if q := rc.ExpandedQuery(); q != "" {
		return q
	}
	return rc.OriginalQuery()
}
