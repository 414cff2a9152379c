package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BadgerStore is a BadgerDB implementation of Store.
// Keys are "<collection>:<id>" so each collection is a key prefix.
type BadgerStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// NewBadgerStore opens (or creates) a BadgerDB directory
func NewBadgerStore(dbPath string, logger *logrus.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open BadgerDB")
	}

	return &BadgerStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put creates or replaces a document
func (s *BadgerStore) Put(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(collection, id), data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to store %s/%s", collection, id)
	}

	return nil
}

// Get decodes a document into doc
func (s *BadgerStore) Get(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, doc)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to get %s/%s", collection, id)
	}

	return nil
}

// Delete removes a document
func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	key := badgerKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s/%s", collection, id)
	}

	return nil
}

// Scan visits every document under the collection prefix
func (s *BadgerStore) Scan(ctx context.Context, collection string, visit func(id string, raw []byte) error) error {
	prefix := []byte(collection + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			id := string(item.Key()[len(prefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s/%s", collection, id)
			}

			if err := visit(id, data); err != nil {
				return err
			}
		}
		return nil
	})

	return err
}

func badgerKey(collection, id string) []byte {
	return []byte(collection + ":" + id)
}

// badgerLogger adapts logrus logger to badger's logger interface
type badgerLogger struct {
	logger *logrus.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
