// Package advisor assembles a chat turn's model call from ordered interceptors.
//
// A Chain sorts its advisors by Order and runs every Before hook, then the
// model call exactly once, then every After hook. Before hooks do the work:
// memory injects prior turns, the QueryExpander rewrites the search query,
// and the Retriever fetches, reranks, and embeds context into the user
// message. After hooks only observe.
//
// Values travel between advisors in a RequestContext, a typed key-value bag
// that lives for one call:
//
//	expanded, ok := advisor.Get(req.Context, advisor.ExpandedQueryKey)
//
// Retrieval searches with the expanded query but the model is shown the
// original question.
package advisor
