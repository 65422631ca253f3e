// Package store persists index snapshots in bbolt (embedded B+ tree). Each
// project root gets its own top-level bucket holding the JSON-serialized
// snapshot. Writes are transactional — a crash mid-write cannot corrupt a
// previously committed snapshot.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var keySnapshot = []byte("snapshot")

// Store wraps a bbolt database holding cached index snapshots.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists snap (JSON-marshaled) under the project bucket.
func (s *Store) SaveSnapshot(project string, snap any) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(project))
		if err != nil {
			return err
		}
		return b.Put(keySnapshot, data)
	})
}

// LoadSnapshot unmarshals the stored snapshot into out. Returns (false, nil)
// when no snapshot exists for the project (fresh index).
func (s *Store) LoadSnapshot(project string, out any) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(project))
		if b == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid
		// within the tx).
		if v := b.Get(keySnapshot); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return true, nil
}

// DeleteProject removes the cached snapshot for a project. Idempotent.
func (s *Store) DeleteProject(project string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(project))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
