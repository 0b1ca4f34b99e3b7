// Package postgres implements the document store over PostgreSQL. Documents
// live in one JSONB table keyed by (kind, key); conditional writes use the
// version column, and the field query uses the JSONB ->> operator.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/dbx"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/docstore/postgres/migrations"
)

// Store implements docstore.Store and docstore.Lister over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type Store struct {
	db dbx.DBTX
}

// NewStore constructs a Store bound to the given DBTX.
func NewStore(db dbx.DBTX) *Store {
	return &Store{db: db}
}

// Open opens a pgx-driven database handle for the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) GetByKey(ctx context.Context, kind, key string) (*docstore.Document, error) {
	query := `
		SELECT key, version, data
		FROM documents
		WHERE kind = $1 AND key = $2
	`
	doc := &docstore.Document{}
	err := s.db.QueryRowContext(ctx, query, kind, key).Scan(&doc.Key, &doc.Version, &doc.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, kind, key string, data []byte, expectedVersion int64) (int64, error) {
	if expectedVersion < 0 {
		return 0, fmt.Errorf("%w: negative expected version", common.ErrInvalidArgument)
	}

	if expectedVersion == 0 {
		return s.insert(ctx, kind, key, data)
	}
	return s.compareAndSwap(ctx, kind, key, data, expectedVersion)
}

func (s *Store) insert(ctx context.Context, kind, key string, data []byte) (int64, error) {
	query := `
		INSERT INTO documents (kind, key, version, data)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (kind, key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, kind, key, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return 0, common.ErrAlreadyExists
	}
	return 1, nil
}

func (s *Store) compareAndSwap(ctx context.Context, kind, key string, data []byte, expectedVersion int64) (int64, error) {
	query := `
		UPDATE documents
		SET version = version + 1, data = $4, updated_at = now()
		WHERE kind = $1 AND key = $2 AND version = $3
		RETURNING version
	`
	var version int64
	err := s.db.QueryRowContext(ctx, query, kind, key, expectedVersion, data).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}

	// no row matched: tell an absent key apart from a stale version
	if _, err := s.GetByKey(ctx, kind, key); err != nil {
		return 0, err
	}
	return 0, common.ErrVersionConflict
}

func (s *Store) Delete(ctx context.Context, kind, key string) error {
	query := `
		DELETE FROM documents
		WHERE kind = $1 AND key = $2
	`
	res, err := s.db.ExecContext(ctx, query, kind, key)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) QueryByField(ctx context.Context, kind, field, value string) ([]*docstore.Document, error) {
	query := `
		SELECT key, version, data
		FROM documents
		WHERE kind = $1 AND data ->> $2 = $3
	`
	rows, err := s.db.QueryContext(ctx, query, kind, field, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// ListKind returns every document of the given kind.
func (s *Store) ListKind(ctx context.Context, kind string) ([]*docstore.Document, error) {
	query := `
		SELECT key, version, data
		FROM documents
		WHERE kind = $1
	`
	rows, err := s.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]*docstore.Document, error) {
	docs := make([]*docstore.Document, 0)
	for rows.Next() {
		doc := &docstore.Document{}
		if err := rows.Scan(&doc.Key, &doc.Version, &doc.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	return docs, nil
}
