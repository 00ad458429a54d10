// Package kvstore is an embedded, persistent, transactional key/value
// cache for memoizing expensive indexing artifacts across runs of a
// language-analysis toolchain.
//
// It wraps a memory-mapped B+tree (go.etcd.io/bbolt) and adds a strict
// concurrency discipline on top: exactly one writer goroutine, many
// reader goroutines sharing a single snapshot-consistent view for the
// lifetime of a Writer, and a version tag that discards stale caches
// the moment the schema changes.
//
// A process opens an Environment, wraps it in either a ReaderView
// (read-only program) or a WriterView (indexing program), uses it, and
// closes it through CloseReader/AbortWriter/BestEffortCommit, which
// hand back the bare Environment for re-wrapping.
package kvstore
