// Package history keeps a record of every successful resolve and build run
// in a BoltDB file at the working root.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// bucketName is the BoltDB bucket holding run records
const bucketName = "runs"

// Kind is the command a record describes
type Kind string

const (
	KindResolve Kind = "resolve"
	KindBuild   Kind = "build"
)

// Record describes one finished run
type Record struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	// Changed is true when a resolve promoted a new snapshot or a build
	// rebuilt at least one component
	Changed    bool     `json:"changed"`
	Built      []string `json:"built,omitempty"`
	Reused     []string `json:"reused,omitempty"`
	TreeDigest string   `json:"tree_digest,omitempty"`
}

// NewRecord starts a record with a fresh ID
func NewRecord(kind Kind, started time.Time) Record {
	return Record{ID: uuid.NewString(), Kind: kind, Started: started}
}

// Store is the run history database
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Put appends a record
func (s *Store) Put(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		return b.Put(sequenceKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store run record: %w", err)
	}

	return nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}

			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt run record %x: %w", k, err)
			}

			records = append(records, rec)
		}

		return nil
	})

	return records, err
}

// Clear removes all records
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of records and the database file size
func (s *Store) Stats() (int, int64, error) {
	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	info, err := os.Stat(s.db.Path())
	if err != nil {
		return count, 0, err
	}

	return count, info.Size(), nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return key
}
