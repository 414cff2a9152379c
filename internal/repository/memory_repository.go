package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is a map-backed Store used for testing and development.
// Documents are kept as encoded JSON so callers never share references.
type InMemoryStore struct {
	collections map[string]map[string][]byte
	mutex       sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		collections: make(map[string]map[string][]byte),
	}
}

// Put creates or replaces a document
func (s *InMemoryStore) Put(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	docs, exists := s.collections[collection]
	if !exists {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[id] = data

	return nil
}

// Get decodes a document into doc
func (s *InMemoryStore) Get(ctx context.Context, collection, id string, doc any) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	s.mutex.RLock()
	data, exists := s.collections[collection][id]
	s.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	return json.Unmarshal(data, doc)
}

// Delete removes a document
func (s *InMemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkAddress(collection, id); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.collections[collection][id]; !exists {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	delete(s.collections[collection], id)

	return nil
}

// Scan visits a snapshot of the collection in key order
func (s *InMemoryStore) Scan(ctx context.Context, collection string, visit func(id string, raw []byte) error) error {
	s.mutex.RLock()
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	snapshot := make(map[string][]byte, len(docs))
	for id, data := range docs {
		ids = append(ids, id)
		snapshot[id] = data
	}
	s.mutex.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(id, snapshot[id]); err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op for the in-memory store
func (s *InMemoryStore) Close() error {
	return nil
}

func checkAddress(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection cannot be empty", ErrInvalidDocument)
	}
	if id == "" {
		return fmt.Errorf("%w: document ID cannot be empty", ErrInvalidDocument)
	}
	return nil
}
