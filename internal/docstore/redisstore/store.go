// Package redisstore implements the document store over Redis. Each document
// is a hash holding its version counter and JSON payload; conditional writes
// run under WATCH so a concurrent writer forces a retry instead of a lost
// update. Field queries scan the kind's key space and filter by decoding.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/docstore"
)

const (
	keyPrefix = "doc"

	versionField = "version"
	dataField    = "data"

	// casRetries bounds WATCH transaction retries under contention.
	casRetries = 4

	scanBatchSize = 200
)

// watch is a seam for tests that need to force transaction failures.
var watch = func(ctx context.Context, client *redis.Client, fn func(*redis.Tx) error, keys ...string) error {
	return client.Watch(ctx, fn, keys...)
}

// Store implements docstore.Store and docstore.Lister over a Redis client.
type Store struct {
	redis *redis.Client
}

// NewStore constructs a Store over the given client.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func (s *Store) key(kind, key string) string {
	return keyPrefix + ":" + kind + ":" + key
}

func (s *Store) pattern(kind string) string {
	return keyPrefix + ":" + kind + ":*"
}

func (s *Store) GetByKey(ctx context.Context, kind, key string) (*docstore.Document, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(kind, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, common.ErrNotFound
	}
	return documentFromHash(key, fields)
}

func (s *Store) Put(ctx context.Context, kind, key string, data []byte, expectedVersion int64) (int64, error) {
	if expectedVersion < 0 {
		return 0, fmt.Errorf("%w: negative expected version", common.ErrInvalidArgument)
	}

	redisKey := s.key(kind, key)

	for i := 0; i < casRetries; i++ {
		var newVersion int64

		err := watch(ctx, s.redis, func(tx *redis.Tx) error {
			current, err := tx.HGet(ctx, redisKey, versionField).Result()

			switch {
			case errors.Is(err, redis.Nil):
				if expectedVersion != 0 {
					return common.ErrNotFound
				}
				newVersion = 1
			case err != nil:
				return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
			default:
				if expectedVersion == 0 {
					return common.ErrAlreadyExists
				}
				stored, err := strconv.ParseInt(current, 10, 64)
				if err != nil {
					return fmt.Errorf("%w: malformed version %q for key %q", common.ErrConsistencyViolation, current, redisKey)
				}
				if stored != expectedVersion {
					return common.ErrVersionConflict
				}
				newVersion = stored + 1
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, redisKey, versionField, newVersion, dataField, data)
				return nil
			})
			return err
		}, redisKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, common.ErrNotFound),
				errors.Is(err, common.ErrAlreadyExists),
				errors.Is(err, common.ErrVersionConflict),
				errors.Is(err, common.ErrConsistencyViolation),
				errors.Is(err, common.ErrBackendUnavailable):
				return 0, err
			default:
				return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
			}
		}

		return newVersion, nil
	}

	// An insert has no stored version to conflict on; exhausted contention
	// there is a backend-level failure, not a stale caller.
	if expectedVersion == 0 {
		return 0, fmt.Errorf("%w: insert of %q lost %d consecutive transactions", common.ErrBackendUnavailable, key, casRetries)
	}
	return 0, fmt.Errorf("%w: write of %q lost %d consecutive transactions", common.ErrVersionConflict, key, casRetries)
}

func (s *Store) Delete(ctx context.Context, kind, key string) error {
	n, err := s.redis.Del(ctx, s.key(kind, key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) QueryByField(ctx context.Context, kind, field, value string) ([]*docstore.Document, error) {
	docs := make([]*docstore.Document, 0)
	err := s.scanKind(ctx, kind, func(doc *docstore.Document) error {
		match, err := docstore.FieldEquals(doc.Data, field, value)
		if err != nil {
			return err
		}
		if match {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ListKind returns every document of the given kind.
func (s *Store) ListKind(ctx context.Context, kind string) ([]*docstore.Document, error) {
	docs := make([]*docstore.Document, 0)
	err := s.scanKind(ctx, kind, func(doc *docstore.Document) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) scanKind(ctx context.Context, kind string, visit func(*docstore.Document) error) error {
	prefixLen := len(keyPrefix) + 1 + len(kind) + 1

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.pattern(kind), scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
		}

		for _, redisKey := range keys {
			fields, err := s.redis.HGetAll(ctx, redisKey).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
			}
			// the key may have been deleted between SCAN and HGETALL
			if len(fields) == 0 {
				continue
			}
			doc, err := documentFromHash(redisKey[prefixLen:], fields)
			if err != nil {
				return err
			}
			if err := visit(doc); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func documentFromHash(key string, fields map[string]string) (*docstore.Document, error) {
	version, err := strconv.ParseInt(fields[versionField], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed version for key %q", common.ErrConsistencyViolation, key)
	}
	return &docstore.Document{
		Key:     key,
		Version: version,
		Data:    []byte(fields[dataField]),
	}, nil
}
