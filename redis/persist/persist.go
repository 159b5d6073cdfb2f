// Package persist saves keyspace snapshots to disk and loads them back at startup.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/gofrs/flock"
)

const (
	// BackendRDB stores snapshots in the redis rdb format
	BackendRDB = "rdb"
	// BackendBolt stores snapshots in a bbolt file
	BackendBolt = "bolt"

	lockFileName = "snapshot.lock"
)

var (
	ErrSnapshotInUse  = errors.New("snapshot directory is used by another process")
	ErrUnknownBackend = errors.New("unknown snapshot backend")
	ErrCorruptRecord  = errors.New("corrupt snapshot record")
)

// Snapshotter writes and reads whole keyspace snapshots
type Snapshotter interface {
	// Save replaces the snapshot with records
	Save(records []database.Record) error
	// Load returns the records of the snapshot, expired keys are skipped.
	// A missing snapshot file yields no records and no error.
	Load() ([]database.Record, error)
	// Path returns the snapshot file location
	Path() string
}

// NewSnapshotter creates the snapshotter of backend storing dir/filename
func NewSnapshotter(backend, dir, filename string) (Snapshotter, error) {
	switch backend {
	case BackendRDB, "":
		return NewRDBFile(dir, filename), nil
	case BackendBolt:
		return NewBoltStore(dir, filename), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

// lockDir takes an exclusive lock on the snapshot directory, the caller must Unlock it
func lockDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	fileLock := flock.New(filepath.Join(dir, lockFileName))
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !hold {
		return nil, ErrSnapshotInUse
	}
	return fileLock, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
