package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// stateBucket stores the latest derived state snapshot
	stateBucket = "_state"

	// historyBucket stores remote command history
	historyBucket = "_history"

	stateKey = "last"
)

// BoltStorage is a bbolt implementation of the Storage interface
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage creates a new BoltStorage instance
// The database file will be created if it doesn't exist
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(stateBucket)); err != nil {
			return fmt.Errorf("failed to create state bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(historyBucket)); err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// SetStateJSON stores the latest derived state snapshot
func (s *BoltStorage) SetStateJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}
		return bucket.Put([]byte(stateKey), data)
	})
}

// GetStateJSON retrieves the latest derived state snapshot
func (s *BoltStorage) GetStateJSON(v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}

		data := bucket.Get([]byte(stateKey))
		if data == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal state: %w", err)
		}
		return nil
	})
}

// SaveCommand appends a remote command to the audit history
func (s *BoltStorage) SaveCommand(command string, timestamp time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		entry := CommandEntry{
			Command:   command,
			Timestamp: timestamp,
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal history entry: %w", err)
		}

		// Use timestamp as key (formatted as Unix nano for sorting)
		key := []byte(fmt.Sprintf("%020d", timestamp.UnixNano()))
		return bucket.Put(key, data)
	})
}

// GetCommandHistory returns the last N commands from history
func (s *BoltStorage) GetCommandHistory(limit int) ([]CommandEntry, error) {
	var entries []CommandEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		var allEntries []CommandEntry
		cursor := bucket.Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var entry CommandEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip corrupted entries
			}
			allEntries = append(allEntries, entry)
		}

		if len(allEntries) > limit {
			entries = allEntries[len(allEntries)-limit:]
		} else {
			entries = allEntries
		}

		return nil
	})

	return entries, err
}

// TrimCommandHistory keeps only the last maxCommands in history
func (s *BoltStorage) TrimCommandHistory(maxCommands int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		var count int
		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			count++
		}

		if count <= maxCommands {
			return nil
		}

		toDelete := count - maxCommands
		cursor = bucket.Cursor()
		for k, _ := cursor.First(); k != nil && toDelete > 0; k, _ = cursor.Next() {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete old entry: %w", err)
			}
			toDelete--
		}

		return nil
	})
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
