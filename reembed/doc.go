// Package reembed recomputes the vector of every stored fragment, typically
// after the embedding model has changed.
//
// Fragments are read in ID order, one page at a time, embedded in batches
// under a retry policy and written back in place. Progress is reported to an
// io.Writer.
package reembed
