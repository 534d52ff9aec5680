package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hpungsan/protocol/internal/errors"
)

const writeRetryMaxElapsed = 2 * time.Second

// KV is the durable key-value store backing a session.
type KV struct {
	db *sql.DB
}

// NewKV wraps an initialized database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

func newWriteBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxElapsedTime = writeRetryMaxElapsed
	return bo
}

// isBusyError reports whether err is SQLite lock contention worth retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// withRetry runs op, retrying lock contention with exponential backoff.
func withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isBusyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newWriteBackoff(), ctx))
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStorageUnavailable(err)
	}
	return value, true, nil
}

// Put upserts key.
func (s *KV) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, key, value, time.Now().Unix())
		return err
	})
	if err != nil {
		return errors.NewStorageUnavailable(err)
	}
	return nil
}

// List returns every key/value pair whose key starts with prefix.
func (s *KV) List(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`,
		prefix, prefix)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errors.NewStorageUnavailable(err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	return out, nil
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (s *KV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var removed int64
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			`DELETE FROM kv WHERE substr(key, 1, length(?)) = ?`, prefix, prefix)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, errors.NewStorageUnavailable(err)
	}
	return int(removed), nil
}
