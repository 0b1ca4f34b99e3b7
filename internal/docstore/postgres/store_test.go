package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/authstore/internal/common"
)

const kind = "authentication-account"

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewStore(db), mock, db
}

const (
	qGet    = `(?s)^\s*SELECT\s+key,\s*version,\s*data\s+FROM\s+documents\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+key\s*=\s*\$2\s*$`
	qInsert = `(?s)^\s*INSERT\s+INTO\s+documents\s*\(kind,\s*key,\s*version,\s*data\)\s*VALUES\s*\(\$1,\s*\$2,\s*1,\s*\$3\)\s*ON\s+CONFLICT\s*\(kind,\s*key\)\s*DO\s+NOTHING\s*$`
	qCAS    = `(?s)^\s*UPDATE\s+documents\s+SET\s+version\s*=\s*version\s*\+\s*1,\s*data\s*=\s*\$4,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+key\s*=\s*\$2\s+AND\s+version\s*=\s*\$3\s+RETURNING\s+version\s*$`
	qDelete = `(?s)^\s*DELETE\s+FROM\s+documents\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+key\s*=\s*\$2\s*$`
	qField  = `(?s)^\s*SELECT\s+key,\s*version,\s*data\s+FROM\s+documents\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+data\s*->>\s*\$2\s*=\s*\$3\s*$`
	qList   = `(?s)^\s*SELECT\s+key,\s*version,\s*data\s+FROM\s+documents\s+WHERE\s+kind\s*=\s*\$1\s*$`
)

func TestGetByKey_Found(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "version", "data"}).
		AddRow("alice", int64(2), []byte(`{"username":"alice"}`))
	mock.ExpectQuery(qGet).WithArgs(kind, "alice").WillReturnRows(rows)

	doc, err := s.GetByKey(context.Background(), kind, "alice")
	if err != nil {
		t.Fatalf("GetByKey error: %v", err)
	}
	if doc.Key != "alice" || doc.Version != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGetByKey_NotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qGet).WithArgs(kind, "ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.GetByKey(context.Background(), kind, "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGetByKey_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qGet).WithArgs(kind, "alice").WillReturnError(errors.New("db down"))

	_, err := s.GetByKey(context.Background(), kind, "alice")
	if !errors.Is(err, common.ErrBackendUnavailable) {
		t.Fatalf("want common.ErrBackendUnavailable, got %v", err)
	}
}

func TestPut_Insert(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(qInsert).
		WithArgs(kind, "alice", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	v, err := s.Put(context.Background(), kind, "alice", []byte(`{}`), 0)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if v != 1 {
		t.Fatalf("unexpected version: %d", v)
	}
}

func TestPut_InsertConflict(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(qInsert).
		WithArgs(kind, "alice", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Put(context.Background(), kind, "alice", []byte(`{}`), 0)
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want common.ErrAlreadyExists, got %v", err)
	}
}

func TestPut_CompareAndSwap(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"version"}).AddRow(int64(3))
	mock.ExpectQuery(qCAS).
		WithArgs(kind, "alice", int64(2), []byte(`{}`)).
		WillReturnRows(rows)

	v, err := s.Put(context.Background(), kind, "alice", []byte(`{}`), 2)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if v != 3 {
		t.Fatalf("unexpected version: %d", v)
	}
}

func TestPut_CASStaleVersion(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qCAS).
		WithArgs(kind, "alice", int64(2), []byte(`{}`)).
		WillReturnError(sql.ErrNoRows)

	// key still present, so the miss was a version mismatch
	rows := sqlmock.NewRows([]string{"key", "version", "data"}).
		AddRow("alice", int64(5), []byte(`{}`))
	mock.ExpectQuery(qGet).WithArgs(kind, "alice").WillReturnRows(rows)

	_, err := s.Put(context.Background(), kind, "alice", []byte(`{}`), 2)
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want common.ErrVersionConflict, got %v", err)
	}
}

func TestPut_CASMissingKey(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qCAS).
		WithArgs(kind, "ghost", int64(2), []byte(`{}`)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(qGet).WithArgs(kind, "ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.Put(context.Background(), kind, "ghost", []byte(`{}`), 2)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestPut_NegativeVersion(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	_, err := s.Put(context.Background(), kind, "alice", []byte(`{}`), -1)
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("want common.ErrInvalidArgument, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(qDelete).WithArgs(kind, "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Delete(context.Background(), kind, "alice"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	mock.ExpectExec(qDelete).WithArgs(kind, "alice").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Delete(context.Background(), kind, "alice"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestQueryByField(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "version", "data"}).
		AddRow("alice", int64(1), []byte(`{"recoveryToken":"rt-1"}`))
	mock.ExpectQuery(qField).WithArgs(kind, "recoveryToken", "rt-1").WillReturnRows(rows)

	docs, err := s.QueryByField(context.Background(), kind, "recoveryToken", "rt-1")
	if err != nil {
		t.Fatalf("QueryByField error: %v", err)
	}
	if len(docs) != 1 || docs[0].Key != "alice" {
		t.Fatalf("unexpected result: %+v", docs)
	}
}

func TestQueryByField_Empty(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "version", "data"})
	mock.ExpectQuery(qField).WithArgs(kind, "recoveryToken", "rt-404").WillReturnRows(rows)

	docs, err := s.QueryByField(context.Background(), kind, "recoveryToken", "rt-404")
	if err != nil {
		t.Fatalf("QueryByField error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestListKind(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "version", "data"}).
		AddRow("alice", int64(1), []byte(`{}`)).
		AddRow("bob", int64(4), []byte(`{}`))
	mock.ExpectQuery(qList).WithArgs(kind).WillReturnRows(rows)

	docs, err := s.ListKind(context.Background(), kind)
	if err != nil {
		t.Fatalf("ListKind error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestRunMigrations_UsesSeam(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	restore := gooseUpContext
	defer func() { gooseUpContext = restore }()

	called := false
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if dir != "." {
			t.Fatalf("unexpected migrations dir: %q", dir)
		}
		return nil
	}

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if !called {
		t.Fatalf("expected goose.UpContext to be invoked")
	}
}
