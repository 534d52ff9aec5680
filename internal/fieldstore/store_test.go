package fieldstore

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/protocol/internal/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, backend Backend) (*Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(epoch)
	return New(backend, Options{Prefix: "protocol_", Clock: fake}), fake
}

func stored(t *testing.T, b Backend, key string) (string, bool) {
	t.Helper()
	v, ok, err := b.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func TestSet_DebouncedWrite(t *testing.T) {
	mem := NewMemory()
	s, fake := newTestStore(t, mem)

	s.Set("q1", "first draft")
	require.Equal(t, "first draft", s.Get("q1"))

	fake.Advance(499 * time.Millisecond)
	_, ok := stored(t, mem, "protocol_q1")
	require.False(t, ok)

	fake.Advance(time.Millisecond)
	v, ok := stored(t, mem, "protocol_q1")
	require.True(t, ok)
	require.Equal(t, "first draft", v)
	require.Equal(t, 0, s.PendingWrites())
}

func TestSet_RestartsWindow(t *testing.T) {
	mem := NewMemory()
	s, fake := newTestStore(t, mem)

	s.Set("q1", "a")
	fake.Advance(400 * time.Millisecond)
	s.Set("q1", "ab")
	fake.Advance(400 * time.Millisecond)

	_, ok := stored(t, mem, "protocol_q1")
	require.False(t, ok, "second Set restarts the window")

	fake.Advance(100 * time.Millisecond)
	v, _ := stored(t, mem, "protocol_q1")
	require.Equal(t, "ab", v)
}

func TestSet_KeysDebounceIndependently(t *testing.T) {
	mem := NewMemory()
	s, fake := newTestStore(t, mem)

	s.Set("q1", "one")
	fake.Advance(300 * time.Millisecond)
	s.Set("q2", "two")
	fake.Advance(200 * time.Millisecond)

	_, ok := stored(t, mem, "protocol_q1")
	require.True(t, ok)
	_, ok = stored(t, mem, "protocol_q2")
	require.False(t, ok)
	require.Equal(t, 1, s.PendingWrites())
}

func TestGet_UnknownKeyIsEmpty(t *testing.T) {
	s, _ := newTestStore(t, NewMemory())
	require.Equal(t, "", s.Get("never-set"))
}

func TestLoad_SplitsFieldsAndSettings(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, "protocol_q1", "stored answer"))
	require.NoError(t, mem.Put(ctx, "protocol_settings.mode", "execute"))
	require.NoError(t, mem.Put(ctx, "journey_morning-q1", "other flow"))

	s, _ := newTestStore(t, mem)
	require.NoError(t, s.Load(ctx))

	require.Equal(t, "stored answer", s.Get("q1"))
	require.Equal(t, "execute", s.Setting("mode"))
	require.Equal(t, "", s.Get("morning-q1"))
	require.Equal(t, []string{"q1"}, s.Keys())
}

func TestResetAll_CancelsPendingAndKeepsSettings(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, "protocol_q2", "persisted"))
	s, fake := newTestStore(t, mem)
	require.NoError(t, s.Load(ctx))
	s.PutSetting(ctx, "theme", "light")

	s.Set("q1", "pending value")
	require.NoError(t, s.ResetAll(ctx))

	fake.Advance(time.Second)
	_, ok := stored(t, mem, "protocol_q1")
	require.False(t, ok, "cancelled write must not land after reset")
	_, ok = stored(t, mem, "protocol_q2")
	require.False(t, ok)
	v, _ := stored(t, mem, "protocol_settings.theme")
	require.Equal(t, "light", v)

	require.Equal(t, "", s.Get("q2"))
	require.Equal(t, "light", s.Setting("theme"))
	require.Empty(t, s.Keys())
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, fake := newTestStore(t, mem)

	s.Set("q1", "one")
	s.Set("s3", "three")
	require.NoError(t, s.Flush(ctx))

	v, _ := stored(t, mem, "protocol_q1")
	require.Equal(t, "one", v)
	v, _ = stored(t, mem, "protocol_s3")
	require.Equal(t, "three", v)
	require.Equal(t, 0, s.PendingWrites())

	// The cancelled timers must not fire a second write later.
	require.NoError(t, mem.Put(ctx, "protocol_q1", "external"))
	fake.Advance(time.Second)
	v, _ = stored(t, mem, "protocol_q1")
	require.Equal(t, "external", v)
}

type failingBackend struct {
	*Memory
	err error
}

func (f *failingBackend) Put(context.Context, string, string) error { return f.err }

func (f *failingBackend) List(context.Context, string) (map[string]string, error) {
	return nil, f.err
}

func TestDegraded_SessionContinuesInMemory(t *testing.T) {
	backend := &failingBackend{Memory: NewMemory(), err: stderrors.New("disk full")}
	s, fake := newTestStore(t, backend)

	require.False(t, s.Degraded())
	s.Set("q1", "still here")
	fake.Advance(DefaultWindow)

	require.True(t, s.Degraded())
	require.Equal(t, "still here", s.Get("q1"))

	s.Set("q2", "also kept")
	require.Equal(t, 0, s.PendingWrites())
	require.Equal(t, "also kept", s.Get("q2"))
}

func TestLoad_FailureDegrades(t *testing.T) {
	backend := &failingBackend{Memory: NewMemory(), err: stderrors.New("locked")}
	s, _ := newTestStore(t, backend)

	require.Error(t, s.Load(context.Background()))
	require.True(t, s.Degraded())
}
