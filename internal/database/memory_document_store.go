package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryDocument struct {
	data      json.RawMessage
	createdAt time.Time
}

// MemoryDocumentStore is an in-process DocumentStore for development and tests.
// Transactions are serialized on a single lock.
type MemoryDocumentStore struct {
	mu          sync.Mutex
	collections map[string]map[string]memoryDocument
}

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{collections: make(map[string]map[string]memoryDocument)}
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

// Get loads a document into dst
func (s *MemoryDocumentStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, id, dst)
}

func (s *MemoryDocumentStore) get(collection, id string, dst interface{}) error {
	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrDocumentNotFound
	}
	if err := json.Unmarshal(doc.data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query returns the documents of collection matching opts
func (s *MemoryDocumentStore) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type candidate struct {
		doc    Document
		fields map[string]interface{}
	}
	var matched []candidate
	for id, stored := range s.collections[collection] {
		var fields map[string]interface{}
		if err := json.Unmarshal(stored.data, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		if !matchesFilters(fields, opts.Filters) {
			continue
		}
		matched = append(matched, candidate{
			doc:    Document{ID: id, Data: append(json.RawMessage(nil), stored.data...)},
			fields: fields,
		})
	}

	sort.Slice(matched, func(i, j int) bool {
		if opts.OrderBy == "" {
			return matched[i].doc.ID < matched[j].doc.ID
		}
		a, b := textValue(matched[i].fields[opts.OrderBy]), textValue(matched[j].fields[opts.OrderBy])
		if opts.Descending {
			return a > b
		}
		return a < b
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	docs := make([]Document, 0, len(matched))
	for _, m := range matched {
		docs = append(docs, m.doc)
	}
	return docs, nil
}

// Set creates or replaces a document
func (s *MemoryDocumentStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return nil
}

func (s *MemoryDocumentStore) put(collection, id string, data json.RawMessage) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDocument)
		s.collections[collection] = docs
	}
	createdAt := time.Now()
	if existing, ok := docs[id]; ok {
		createdAt = existing.createdAt
	}
	docs[id] = memoryDocument{data: data, createdAt: createdAt}
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *MemoryDocumentStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

// RunInTransaction stages writes and applies them only when fn succeeds
func (s *MemoryDocumentStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, writes: make(map[string]*stagedWrite)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, key := range tx.order {
		w := tx.writes[key]
		if w.deleted {
			delete(s.collections[w.collection], w.id)
			continue
		}
		s.put(w.collection, w.id, w.data)
	}
	return nil
}

// Ping always succeeds
func (s *MemoryDocumentStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryDocumentStore) Close() error {
	return nil
}

// Count returns the number of documents in collection
func (s *MemoryDocumentStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

type stagedWrite struct {
	collection string
	id         string
	data       json.RawMessage
	deleted    bool
}

type memoryTx struct {
	store  *MemoryDocumentStore
	writes map[string]*stagedWrite
	order  []string
}

func txKey(collection, id string) string {
	return collection + "/" + id
}

func (tx *memoryTx) Get(collection, id string, dst interface{}) error {
	if w, ok := tx.writes[txKey(collection, id)]; ok {
		if w.deleted {
			return ErrDocumentNotFound
		}
		if err := json.Unmarshal(w.data, dst); err != nil {
			return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		return nil
	}
	return tx.store.get(collection, id, dst)
}

func (tx *memoryTx) Create(collection, id string, doc interface{}) error {
	var probe json.RawMessage
	if err := tx.Get(collection, id, &probe); err == nil {
		return ErrDocumentExists
	}
	return tx.Set(collection, id, doc)
}

func (tx *memoryTx) Set(collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	tx.stage(&stagedWrite{collection: collection, id: id, data: data})
	return nil
}

func (tx *memoryTx) Delete(collection, id string) error {
	tx.stage(&stagedWrite{collection: collection, id: id, deleted: true})
	return nil
}

func (tx *memoryTx) stage(w *stagedWrite) {
	key := txKey(w.collection, w.id)
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = w
}
