package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// dbFileName is the single bbolt file backing every flavor (bucket)
// opened against a given directory. One Environment always names one
// flavor, but the underlying file is shared across flavors opened
// against the same path over the life of a process, exactly as LMDB
// shares one environment file across named sub-databases.
const dbFileName = "kvstore.db"

// maxMapSize is carried forward from the spec's 2 GiB hard cap, but
// under bbolt it is only an initial-mmap-size hint: bbolt grows its
// file on demand and has no equivalent hard ceiling.
const maxMapSize = 2 << 30

var inUse atomic.Bool

var sessionCounter atomic.Uint32

func nextSessionID() uint32 {
	return sessionCounter.Add(1)
}

// Environment owns the memory-mapped database for one (version, path,
// flavor) triple. At most one Environment may exist in this process at
// any instant; see Open.
type Environment struct {
	version string
	path    string
	flavor  string

	db  *bolt.DB
	flk *flock.Flock
}

// Open acquires the process-wide Environment slot, creates path's lock
// and data files if needed, and maps the database. version must be
// non-empty; path must already exist as a directory.
func Open(version, path, flavor string) (env *Environment, err error) {
	defer Return(&err)
	Assert(version != "", "kvstore: version must not be empty")

	if !inUse.CompareAndSwap(false, true) {
		return nil, ErrEnvironmentInUse
	}
	ok := false
	defer func() {
		if !ok {
			inUse.Store(false)
		}
	}()

	fi, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("failed to create database: %w", statErr)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("failed to create database: %q is not a directory", path)
	}

	flk := flock.New(filepath.Join(path, ".kvstore.lock"))
	locked, lockErr := flk.TryLock()
	if lockErr != nil {
		return nil, fmt.Errorf("failed to create database: %w", lockErr)
	}
	if !locked {
		return nil, fmt.Errorf("failed to create database: %s is held by another process", path)
	}
	unlockOnFailure := true
	defer func() {
		if unlockOnFailure {
			flk.Unlock()
		}
	}()

	opts := &bolt.Options{
		Timeout:         10 * time.Second,
		InitialMmapSize: maxMapSize,
	}
	db, openErr := bolt.Open(filepath.Join(path, dbFileName), 0600, opts)
	if openErr != nil {
		return nil, fmt.Errorf("failed to create database: %w", openErr)
	}

	env = &Environment{
		version: version,
		path:    path,
		flavor:  flavor,
		db:      db,
		flk:     flk,
	}
	ok = true
	unlockOnFailure = false
	return env, nil
}

// Version reports the schema tag this Environment was opened with.
func (env *Environment) Version() string { return env.version }

// Path reports the directory backing this Environment.
func (env *Environment) Path() string { return env.path }

// Flavor reports the sub-database name this Environment is bound to.
func (env *Environment) Flavor() string { return env.flavor }

// Close unmaps the database and releases the process-wide slot.
// Closing an Environment twice returns ErrClosed. Close does not check
// for live Views: abort or commit every View first, since bbolt's own
// Close waits for their open transactions to end.
func (env *Environment) Close() (err error) {
	defer Return(&err)
	if env.db == nil {
		return ErrClosed
	}
	if !inUse.CompareAndSwap(true, false) {
		Assert(false, "kvstore: internal invariant violation: in_use was already false")
	}
	closeErr := env.db.Close()
	env.db = nil
	unlockErr := env.flk.Unlock()
	Ck(closeErr, "failed to close database")
	Ck(unlockErr, "failed to close database")
	return nil
}
