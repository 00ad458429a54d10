package kvstore

import (
	"bytes"
	"fmt"

	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// VersionKey is the reserved record every flavor carries, holding a
// length-prefixed copy of the Environment's version string.
const VersionKey = "DB_FORMAT_VERSION"

// ReaderView holds a long-lived read-only snapshot of one Environment's
// flavor. Any goroutine may call its read methods for the lifetime of
// the View; the snapshot never advances.
type ReaderView struct {
	env *Environment

	tx           *bolt.Tx
	wrongVersion bool
	sessionId    uint32
}

// WrapReader opens a read-only transaction against env and validates
// the stored schema version. A missing flavor or a version mismatch is
// not an error: the View is returned usable, but every read on it
// misses for the View's whole lifetime, even if a WriterView later
// republishes the current version.
func WrapReader(env *Environment) (r *ReaderView, err error) {
	defer Return(&err)
	Assert(env != nil, "kvstore: env must not be nil")
	r = &ReaderView{env: env}
	Ck(r.createMainTxn())
	return r, nil
}

func (r *ReaderView) createMainTxn() (err error) {
	defer Return(&err)
	tx, beginErr := r.env.db.Begin(false)
	if beginErr != nil {
		return fmt.Errorf("failed to create transaction: %w", beginErr)
	}
	r.tx = tx

	b := tx.Bucket([]byte(r.env.flavor))
	if b == nil {
		r.wrongVersion = true
		return nil
	}

	r.sessionId = nextSessionID()
	stored := b.Get([]byte(VersionKey))
	current, decodeErr := decodeValue(stored)
	if decodeErr != nil {
		r.wrongVersion = true
		return nil
	}
	r.wrongVersion = !bytes.Equal(current, []byte(r.env.version))
	return nil
}

// threadTxn is the transaction a ReaderView consults: always its own
// snapshot. WriterView shadows this with its own method so each View
// dispatches to the right transaction without virtual methods.
func (r *ReaderView) threadTxn() *bolt.Tx { return r.tx }

// Read performs a point lookup and returns the raw stored bytes,
// unmodified. The returned slice aliases bbolt's memory map and is
// valid only until the View's transaction ends (abort, commit, or
// destruction) — callers that need the bytes afterward must copy them.
func (r *ReaderView) Read(key []byte) ([]byte, error) {
	return readWithTx(r.threadTxn(), r.env.flavor, r.wrongVersion, key)
}

// ReadString is Read followed by length-prefix decoding. It returns an
// empty, non-nil slice (never an error) when the key is absent.
func (r *ReaderView) ReadString(key []byte) ([]byte, error) {
	return readStringWithTx(r.threadTxn(), r.env.flavor, r.wrongVersion, key)
}

// SessionID reports the monotonic tag assigned when this View's main
// transaction was opened over an existing flavor bucket. It is 0 for a
// ReaderView whose flavor bucket did not exist (a flavor that exists
// but holds a different version still gets a tag), and is not stable
// across a WriterView's Clear.
func (r *ReaderView) SessionID() uint32 { return r.sessionId }

// WrongVersion reports whether this View's flavor was missing or
// stored a different schema version when its transaction was opened.
// While true, every Read/ReadString returns absent.
func (r *ReaderView) WrongVersion() bool { return r.wrongVersion }

// Abort is idempotent: it is a no-op once the main transaction has
// already ended, by commit or by a previous Abort.
func (r *ReaderView) Abort() (err error) {
	defer Return(&err)
	if r.tx == nil {
		return nil
	}
	rollbackErr := r.tx.Rollback()
	r.tx = nil
	Ck(rollbackErr, "failed to abort")
	return nil
}

func readWithTx(tx *bolt.Tx, flavor string, wrongVersion bool, key []byte) ([]byte, error) {
	if wrongVersion {
		return nil, nil
	}
	b := tx.Bucket([]byte(flavor))
	if b == nil {
		return nil, nil
	}
	return b.Get(key), nil
}

func readStringWithTx(tx *bolt.Tx, flavor string, wrongVersion bool, key []byte) ([]byte, error) {
	raw, err := readWithTx(tx, flavor, wrongVersion, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []byte{}, nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, fmt.Errorf("failed read: %w", err)
	}
	return v, nil
}
