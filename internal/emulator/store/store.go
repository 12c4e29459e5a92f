// Package store persists billing emulator records in bbolt.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("invalid ID")
)

// Bucket names.
const (
	BucketTokens         = "tokens"
	BucketUsers          = "users"
	BucketInvoices       = "invoices"
	BucketInvoiceDetails = "invoice_details"
	BucketPayments       = "payments"
	BucketNotifications  = "notifications"
)

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New creates a new Store instance and initializes buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize buckets.
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := []string{BucketTokens, BucketUsers, BucketInvoices, BucketInvoiceDetails, BucketPayments, BucketNotifications}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextID generates the next sequence number for a bucket.
func (s *Store) NextID(bucketName string) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return nil
	})
	return id, err
}

// Put stores a JSON encoded value in the specified bucket with the given key.
func (s *Store) Put(bucketName, key string, value any) error {
	if key == "" {
		return ErrInvalidID
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}

		return b.Put([]byte(key), data)
	})
}

// Get retrieves a value from the specified bucket with the given key.
func (s *Store) Get(bucketName, key string, value any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		return json.Unmarshal(data, value)
	})
}

// Delete removes a value from the specified bucket with the given key.
func (s *Store) Delete(bucketName, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		return b.Delete([]byte(key))
	})
}

// List retrieves all values from the specified bucket in key order.
func (s *Store) List(bucketName string, filter func(data []byte) bool) ([][]byte, error) {
	var results [][]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		return b.ForEach(func(k, v []byte) error {
			if filter == nil || filter(v) {
				// Copy the value since it's only valid during the transaction.
				copied := make([]byte, len(v))
				copy(copied, v)
				results = append(results, copied)
			}
			return nil
		})
	})

	return results, err
}

// ListPrefix retrieves the values whose keys start with prefix, in key order.
func (s *Store) ListPrefix(bucketName, prefix string) ([][]byte, error) {
	var results [][]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		p := []byte(prefix)
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			copied := make([]byte, len(v))
			copy(copied, v)
			results = append(results, copied)
		}
		return nil
	})

	return results, err
}

// Update loads every record of a bucket, lets fn modify it and writes back the
// records for which fn returns true. It runs in a single transaction.
func (s *Store) Update(bucketName string, fn func(data []byte) ([]byte, bool, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		type change struct{ key, value []byte }
		var changes []change
		err := b.ForEach(func(k, v []byte) error {
			updated, ok, err := fn(v)
			if err != nil {
				return err
			}
			if ok {
				changes = append(changes, change{key: append([]byte(nil), k...), value: updated})
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Writing while iterating with ForEach is not allowed.
		for _, c := range changes {
			if err := b.Put(c.key, c.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteString removes a value with a string key.
func (s *Store) DeleteString(bucketName, key string) error {
	return s.Delete(bucketName, key)
}

// seqKey formats a sequence number as a fixed-width key so bbolt's byte order
// matches insertion order.
func seqKey(prefix string, seq int64) string {
	return fmt.Sprintf("%s%012d", prefix, seq)
}
