package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"go.etcd.io/bbolt"
)

var snapshotBucketName = []byte("tuanredis-snapshot")

// BoltStore keeps snapshots in a bbolt file, one bucket entry per key.
// Unlike RDBFile it stores every data type including streams.
type BoltStore struct {
	dir      string
	filename string
}

// NewBoltStore creates a BoltStore
func NewBoltStore(dir, filename string) *BoltStore {
	return &BoltStore{dir: dir, filename: filename}
}

// Path returns the bolt file location
func (s *BoltStore) Path() string {
	return filepath.Join(s.dir, s.filename)
}

func (s *BoltStore) open(readOnly bool) (*bbolt.DB, error) {
	opts := *bbolt.DefaultOptions
	opts.ReadOnly = readOnly
	opts.Timeout = time.Second
	return bbolt.Open(s.Path(), 0644, &opts)
}

// Save replaces the bucket content with records in a single transaction
func (s *BoltStore) Save(records []database.Record) error {
	fileLock, err := lockDir(s.dir)
	if err != nil {
		return err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	db, err := s.open(false)
	if err != nil {
		return fmt.Errorf("open bolt snapshot: %w", err)
	}
	defer db.Close()
	return db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(snapshotBucketName) != nil {
			if err := tx.DeleteBucket(snapshotBucketName); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(snapshotBucketName)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := b.Put([]byte(record.Key), encodeRecord(record)); err != nil {
				return fmt.Errorf("put key %s: %w", record.Key, err)
			}
		}
		return nil
	})
}

// Load reads every record of the bucket, expired keys are skipped
func (s *BoltStore) Load() ([]database.Record, error) {
	if _, err := os.Stat(s.Path()); err != nil {
		return nil, nil
	}
	fileLock, err := lockDir(s.dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	db, err := s.open(true)
	if err != nil {
		return nil, fmt.Errorf("open bolt snapshot: %w", err)
	}
	defer db.Close()

	now := time.Now()
	var records []database.Record
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotBucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			record, err := decodeRecord(string(k), v)
			if err != nil {
				return fmt.Errorf("decode key %s: %w", k, err)
			}
			if record.ExpireAt != nil && !record.ExpireAt.After(now) {
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
