package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authstore/internal/common"
)

type memoryEntry struct {
	version int64
	data    []byte
}

// InMemoryStore is a Store kept entirely in process memory. It is the
// reference implementation of the conditional-write contract and the test
// double for everything built on Store.
type InMemoryStore struct {
	mu    sync.Mutex
	kinds map[string]map[string]*memoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{kinds: make(map[string]map[string]*memoryEntry)}
}

func (s *InMemoryStore) GetByKey(ctx context.Context, kind, key string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kinds[kind][key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &Document{Key: key, Version: e.version, Data: cloneBytes(e.data)}, nil
}

func (s *InMemoryStore) Put(ctx context.Context, kind, key string, data []byte, expectedVersion int64) (int64, error) {
	if expectedVersion < 0 {
		return 0, fmt.Errorf("%w: negative expected version", common.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.kinds[kind]
	if !ok {
		byKey = make(map[string]*memoryEntry)
		s.kinds[kind] = byKey
	}

	e, exists := byKey[key]

	if expectedVersion == 0 {
		if exists {
			return 0, common.ErrAlreadyExists
		}
		byKey[key] = &memoryEntry{version: 1, data: cloneBytes(data)}
		return 1, nil
	}

	if !exists {
		return 0, common.ErrNotFound
	}
	if e.version != expectedVersion {
		return 0, common.ErrVersionConflict
	}
	e.version++
	e.data = cloneBytes(data)
	return e.version, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.kinds[kind][key]; !ok {
		return common.ErrNotFound
	}
	delete(s.kinds[kind], key)
	return nil
}

func (s *InMemoryStore) QueryByField(ctx context.Context, kind, field, value string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*Document, 0)
	for key, e := range s.kinds[kind] {
		match, err := FieldEquals(e.data, field, value)
		if err != nil {
			return nil, err
		}
		if match {
			docs = append(docs, &Document{Key: key, Version: e.version, Data: cloneBytes(e.data)})
		}
	}
	return docs, nil
}

// ListKind returns every document of the given kind.
func (s *InMemoryStore) ListKind(ctx context.Context, kind string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*Document, 0, len(s.kinds[kind]))
	for key, e := range s.kinds[kind] {
		docs = append(docs, &Document{Key: key, Version: e.version, Data: cloneBytes(e.data)})
	}
	return docs, nil
}

// FieldEquals reports whether the top-level string field of the JSON
// document equals value. Non-string and absent fields never match.
// Shared by backends that filter by decoding documents.
func FieldEquals(data []byte, field, value string) (bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return false, fmt.Errorf("%w: stored document is not a JSON object: %v", common.ErrConsistencyViolation, err)
	}
	raw, ok := obj[field]
	if !ok {
		return false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, nil
	}
	return s == value, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
