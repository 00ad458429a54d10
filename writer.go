package kvstore

import (
	"bytes"
	"fmt"

	"github.com/tyty999/sorbet/internal/gid"

	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// WriterView is a ReaderView plus a write transaction owned by exactly
// one goroutine, and a second read-only transaction (readTxn) that
// every other goroutine uses to read a stable, last-committed
// snapshot while the writer's changes are still in flight.
type WriterView struct {
	*ReaderView

	writerID uint64
	readTx   *bolt.Tx
}

// WrapWriter opens a write transaction against env, runs the
// handle-publication dance so the flavor bucket is visible to peer
// readers, and republishes env.version if the on-disk version differs
// (wiping the flavor's prior contents in the process). The calling
// goroutine becomes the only one allowed to mutate this View.
func WrapWriter(env *Environment) (w *WriterView, err error) {
	defer Return(&err)
	Assert(env != nil, "kvstore: env must not be nil")

	w = &WriterView{
		ReaderView: &ReaderView{env: env},
		writerID:   gid.Current(),
	}
	Ck(w.publish())

	stored, readErr := readStringWithTx(w.tx, env.flavor, false, []byte(VersionKey))
	Ck(readErr)
	if !bytes.Equal(stored, []byte(env.version)) {
		Ck(w.Clear())
		Ck(w.WriteString([]byte(VersionKey), []byte(env.version)))
	}
	return w, nil
}

// threadTxn returns the write transaction on the writer goroutine and
// the shared read snapshot everywhere else. This is the one place the
// reader/writer discipline is mechanically enforced at read time.
func (w *WriterView) threadTxn() *bolt.Tx {
	if gid.Current() == w.writerID {
		return w.tx
	}
	return w.readTx
}

// Read overrides ReaderView.Read so promoted calls dispatch through
// threadTxn's goroutine check instead of always reading the main
// transaction.
func (w *WriterView) Read(key []byte) ([]byte, error) {
	return readWithTx(w.threadTxn(), w.env.flavor, w.wrongVersion, key)
}

// ReadString overrides ReaderView.ReadString for the same reason as
// Read.
func (w *WriterView) ReadString(key []byte) ([]byte, error) {
	return readStringWithTx(w.threadTxn(), w.env.flavor, w.wrongVersion, key)
}

func (w *WriterView) requireWriterThread() error {
	if gid.Current() != w.writerID {
		return ErrWrongThread
	}
	return nil
}

// Write inserts or overwrites key with the raw bytes value, verbatim.
// Must be called from the goroutine that constructed this View.
func (w *WriterView) Write(key, value []byte) (err error) {
	defer Return(&err)
	Ck(w.requireWriterThread())
	Assert(w.tx != nil, "kvstore: write called with no live transaction")

	b, bucketErr := w.tx.CreateBucketIfNotExists([]byte(w.env.flavor))
	if bucketErr != nil {
		return fmt.Errorf("failed write: %w", bucketErr)
	}
	if putErr := b.Put(key, value); putErr != nil {
		return fmt.Errorf("failed write: %w", putErr)
	}
	return nil
}

// WriteString length-prefixes value and delegates to Write.
func (w *WriterView) WriteString(key, value []byte) error {
	return w.Write(key, encodeValue(value))
}

// Clear drops every record in the flavor, commits, and re-runs the
// handle-publication dance so a fresh write transaction and read
// snapshot are live afterward. sessionID changes as a side effect.
func (w *WriterView) Clear() (err error) {
	defer Return(&err)
	Ck(w.requireWriterThread())
	Assert(w.tx != nil, "kvstore: clear called with no live transaction")

	flavor := []byte(w.env.flavor)
	dropErr := w.tx.DeleteBucket(flavor)
	if dropErr != nil && dropErr != bolt.ErrBucketNotFound {
		return fmt.Errorf("failed to clear: %w", dropErr)
	}
	if _, createErr := w.tx.CreateBucketIfNotExists(flavor); createErr != nil {
		return fmt.Errorf("failed to clear: %w", createErr)
	}
	if commitErr := w.commitLocked(); commitErr != nil {
		return fmt.Errorf("failed to clear: %w", commitErr)
	}
	if publishErr := w.publish(); publishErr != nil {
		return fmt.Errorf("failed to clear: %w", publishErr)
	}
	return nil
}

// Commit publishes every write made on this View: it releases the
// shared read snapshot first, then commits the write transaction, and
// returns whatever the latter returned. After Commit the View holds
// no transactions and must be discarded.
func (w *WriterView) Commit() (err error) {
	defer Return(&err)
	Ck(w.requireWriterThread())
	Assert(w.tx != nil, "kvstore: commit called with no live transaction")
	return w.commitLocked()
}

func (w *WriterView) commitLocked() error {
	if w.readTx != nil {
		// readTx is read-only; bbolt's Tx.Commit returns ErrTxNotWritable
		// for a non-writable transaction and leaves it open, so it must be
		// released with Rollback, same as every Begin(false) elsewhere in
		// this package.
		if err := w.readTx.Rollback(); err != nil {
			return err
		}
		w.readTx = nil
	}
	err := w.tx.Commit()
	w.tx = nil
	return err
}

// Abort is idempotent and, like every mutating operation, only valid
// from the writer goroutine: a write transaction stranded on a
// goroutine that never calls Abort or Commit would deadlock the next
// WriterView's construction.
func (w *WriterView) Abort() (err error) {
	defer Return(&err)
	if w.tx == nil {
		return nil
	}
	Ck(w.requireWriterThread())
	if w.readTx != nil {
		rollbackErr := w.readTx.Rollback()
		w.readTx = nil
		Ck(rollbackErr, "failed to abort")
	}
	return w.ReaderView.Abort()
}

// publish runs the commit-then-reopen sequence a freshly created
// bucket needs before a concurrently-readable snapshot can see it:
// bbolt keeps a bucket created by a still-open write transaction
// private to that transaction, exactly as LMDB does for its dbi
// handles.
func (w *WriterView) publish() (err error) {
	defer Return(&err)
	Ck(w.requireWriterThread())

	tx, beginErr := w.env.db.Begin(true)
	if beginErr != nil {
		return fmt.Errorf("failed to create transaction: %w", beginErr)
	}
	if _, createErr := tx.CreateBucketIfNotExists([]byte(w.env.flavor)); createErr != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create transaction: %w", createErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to create transaction: %w", commitErr)
	}

	tx, beginErr = w.env.db.Begin(true)
	if beginErr != nil {
		return fmt.Errorf("failed to create transaction: %w", beginErr)
	}
	w.tx = tx
	w.sessionId = nextSessionID()

	readTx, readBeginErr := w.env.db.Begin(false)
	if readBeginErr != nil {
		return fmt.Errorf("failed to create transaction: %w", readBeginErr)
	}
	w.readTx = readTx
	return nil
}
