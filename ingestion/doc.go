// Package ingestion turns uploaded files into indexed fragments.
//
// Files are processed one at a time: hash, deduplicate against the document
// catalog, extract text, chunk, write the fragments to the index under a
// retry policy, then record the document. A failed file never rolls back
// files processed before it.
//
// The Pipeline offers a synchronous batch call that returns a Summary and a
// progress variant that reports core.UploadProgress events through a
// callback. Purge removes everything an owner uploaded.
package ingestion
