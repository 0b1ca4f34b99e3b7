// Package docstore defines the generic document-store collaborator the
// account store is built on: versioned JSON documents addressed by
// (kind, key), with a single secondary lookup by top-level field value.
//
// Backends implement conditional writes through the expectedVersion
// argument of Put, which gives callers insert-if-absent and
// compare-and-swap semantics without depending on backend specifics.
package docstore

import "context"

// Document is a stored record: an opaque JSON object plus the version
// counter used for conditional writes. Data always holds a complete
// document; partial writes are not part of the contract.
type Document struct {
	Key     string
	Version int64
	Data    []byte
}

// Store is the four-operation contract every backend must honor.
//
// Error mapping (matched with errors.Is against internal/common):
//   - GetByKey and Delete return ErrNotFound when the key is absent.
//   - Put with expectedVersion == 0 inserts only if the key is absent and
//     returns ErrAlreadyExists otherwise.
//   - Put with expectedVersion > 0 replaces the document only when the
//     stored version matches, returning the new version; a mismatch yields
//     ErrVersionConflict, an absent key ErrNotFound.
//   - Transient backend I/O failures are wrapped in ErrBackendUnavailable.
type Store interface {
	GetByKey(ctx context.Context, kind, key string) (*Document, error)
	Put(ctx context.Context, kind, key string, data []byte, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, kind, key string) error
	QueryByField(ctx context.Context, kind, field, value string) ([]*Document, error)
}

// Lister is an optional extension for backends that can enumerate every
// document of a kind. The account store core never requires it; the
// snapshot exporter does.
type Lister interface {
	ListKind(ctx context.Context, kind string) ([]*Document, error)
}
