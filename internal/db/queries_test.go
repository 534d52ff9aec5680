package db

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) *KV {
	t.Helper()
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewKV(database)
}

func TestKV_PutGet(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "protocol_q1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Put(ctx, "protocol_q1", "first"))
	require.NoError(t, kv.Put(ctx, "protocol_q1", "second"))

	v, ok, err := kv.Get(ctx, "protocol_q1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestKV_ListByPrefix(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "protocol_q1", "a"))
	require.NoError(t, kv.Put(ctx, "protocol_settings.mode", "execute"))
	require.NoError(t, kv.Put(ctx, "journey_morning-q1", "b"))
	// Underscore must not behave as a LIKE wildcard
	require.NoError(t, kv.Put(ctx, "protocolXq1", "c"))

	got, err := kv.List(ctx, "protocol_")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"protocol_q1":            "a",
		"protocol_settings.mode": "execute",
	}, got)
}

func TestKV_DeletePrefix(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "protocol_q1", "a"))
	require.NoError(t, kv.Put(ctx, "protocol_q2", "b"))
	require.NoError(t, kv.Put(ctx, "protocol_settings.theme", "light"))

	n, err := kv.DeletePrefix(ctx, "protocol_q")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := kv.List(ctx, "protocol_")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"protocol_settings.theme": "light"}, got)
}

func TestWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	boom := stderrors.New("no such table: kv")
	err := withRetry(context.Background(), func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestWithRetry_BusyIsRetried(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestIsBusyError(t *testing.T) {
	require.False(t, isBusyError(nil))
	require.True(t, isBusyError(stderrors.New("database is locked")))
	require.True(t, isBusyError(stderrors.New("SQLITE_BUSY")))
	require.False(t, isBusyError(stderrors.New("constraint failed")))
}
