package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// BoltStore implements Store using BoltDB (bbolt) with one bucket per collection.
// BoltDB keeps everything in a single compact file, which suits kiosk deployments.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a BoltDB file and its collection buckets
func NewBoltStore(dbPath string) (*BoltStore, error) {
	// Ensure parent directory exists (important for Windows)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create parent directory for bolt db")
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range Collections() {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create buckets")
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database connection
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put creates or replaces a document
func (s *BoltStore) Put(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return errors.Wrapf(err, "failed to create bucket %s", collection)
		}
		return bucket.Put([]byte(id), data)
	})
}

// Get decodes a document into doc
func (s *BoltStore) Get(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}

		return json.Unmarshal(data, doc)
	})
}

// Delete removes a document
func (s *BoltStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Scan visits every document in the collection bucket.
// Values are copied because bbolt memory is only valid inside the transaction.
func (s *BoltStore) Scan(ctx context.Context, collection string, visit func(id string, raw []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := make([]byte, len(v))
			copy(data, v)
			return visit(string(k), data)
		})
	})
}
