package storage

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketContexts = []byte("cleanup_contexts")

// BoltStore implements Store using a single-file bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open cleaner database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContexts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cleanup_contexts bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put upserts a context record.
func (s *BoltStore) Put(record ContextRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContexts)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ContextID), data)
	})
}

// Get returns a context's record, or ok=false if untracked.
func (s *BoltStore) Get(contextID string) (ContextRecord, bool, error) {
	var record ContextRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContexts)
		data := b.Get([]byte(contextID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &record)
	})
	return record, found, err
}

// Delete removes a context record.
func (s *BoltStore) Delete(contextID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContexts).Delete([]byte(contextID))
	})
}

// List returns every tracked context record.
func (s *BoltStore) List() ([]ContextRecord, error) {
	var records []ContextRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContexts)
		return b.ForEach(func(k, v []byte) error {
			var record ContextRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}
