package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for a stored name.
var ErrNotFound = errors.New("metadata: record not found")

const recordPrefix = "upload:"

// Record describes one successful upload. It is bookkeeping for the HTTP
// and CLI surfaces only; the storage facade itself never consults it and
// keeps answering existence and size queries from the filesystem.
type Record struct {
	ID           string `json:"id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
	UploadedAt   int64  `json:"uploaded_at"` // Unix timestamp
}

// Store wraps BadgerDB for upload-record operations.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a BadgerDB at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the BadgerDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a record keyed by its stored name.
func (s *Store) Put(rec Record) error {
	key := []byte(recordPrefix + rec.StoredName)
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Get retrieves the record for a stored name.
func (s *Store) Get(storedName string) (Record, error) {
	key := []byte(recordPrefix + storedName)
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("%q: %w", storedName, ErrNotFound)
	}
	return rec, err
}

// Delete removes the record for a stored name. Missing records are a no-op.
func (s *Store) Delete(storedName string) error {
	key := []byte(recordPrefix + storedName)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// List returns every upload record in the store.
func (s *Store) List() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// NewRecord builds a record for a completed save.
func NewRecord(storedName, originalName, contentType string, size int64, sha256Hex string) Record {
	return Record{
		ID:           uuid.New().String(),
		StoredName:   storedName,
		OriginalName: originalName,
		ContentType:  contentType,
		Size:         size,
		SHA256:       sha256Hex,
		UploadedAt:   time.Now().Unix(),
	}
}
