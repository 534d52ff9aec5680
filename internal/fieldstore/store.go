// Package fieldstore holds the session's text fields in memory and persists
// them to a durable key-value Backend with a per-key debounce.
package fieldstore

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/protocol/internal/clock"
)

// DefaultWindow is the quiet period before a field is written durably.
const DefaultWindow = 500 * time.Millisecond

// settingsNamespace marks keys that hold session settings rather than fields.
// Settings survive ResetAll.
const settingsNamespace = "settings."

// Backend is durable key-value storage. Keys passed in are fully prefixed.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	List(ctx context.Context, prefix string) (map[string]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Options configures a Store.
type Options struct {
	Prefix string
	Window time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is the in-memory view of every field under one prefix.
type Store struct {
	backend Backend
	prefix  string
	window  time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	// writeMu orders durable writes against ResetAll so a late debounced
	// write can never resurrect a cleared key.
	writeMu sync.Mutex

	mu       sync.Mutex
	values   map[string]string
	settings map[string]string
	pending  map[string]*debouncer
	degraded bool
}

// New returns an empty Store. Call Load to populate it from the backend.
func New(backend Backend, opts Options) *Store {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		backend:  backend,
		prefix:   opts.Prefix,
		window:   opts.Window,
		clock:    opts.Clock,
		logger:   opts.Logger,
		values:   make(map[string]string),
		settings: make(map[string]string),
		pending:  make(map[string]*debouncer),
	}
}

// Prefix returns the storage prefix.
func (s *Store) Prefix() string { return s.prefix }

// Set stores value in memory and schedules a durable write once the key has
// been quiet for the debounce window.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	if s.degraded {
		return
	}
	d, ok := s.pending[key]
	if !ok {
		d = newDebouncer(s.clock, s.window, func() { s.persist(context.Background(), key) })
		s.pending[key] = d
	}
	d.Trigger()
}

// Get returns the last value set for key, or "" if it was never set.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Snapshot returns a copy of every non-empty field.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Keys returns the keys holding a non-empty value, sorted.
func (s *Store) Keys() []string {
	snap := s.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Setting returns a session setting, or "" when unset.
func (s *Store) Setting(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[name]
}

// PutSetting stores a session setting and writes it through immediately.
func (s *Store) PutSetting(ctx context.Context, name, value string) {
	s.mu.Lock()
	s.settings[name] = value
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Put(ctx, s.prefix+settingsNamespace+name, value); err != nil {
		s.degrade("put setting", err)
	}
}

// Load replaces memory with everything stored under the prefix.
func (s *Store) Load(ctx context.Context) error {
	stored, err := s.backend.List(ctx, s.prefix)
	if err != nil {
		s.degrade("load", err)
		return err
	}

	values := make(map[string]string, len(stored))
	settings := make(map[string]string)
	for k, v := range stored {
		key := strings.TrimPrefix(k, s.prefix)
		if name, ok := strings.CutPrefix(key, settingsNamespace); ok {
			settings[name] = v
			continue
		}
		values[key] = v
	}

	s.mu.Lock()
	s.values = values
	s.settings = settings
	s.mu.Unlock()

	s.logger.Debug("fields loaded", "prefix", s.prefix, "fields", len(values), "settings", len(settings))
	return nil
}

// ResetAll cancels pending writes and clears every field from memory and
// durable storage. Settings are kept.
func (s *Store) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	for _, d := range s.pending {
		d.Cancel()
	}
	s.pending = make(map[string]*debouncer)
	s.values = make(map[string]string)
	settings := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.backend.DeletePrefix(ctx, s.prefix)
	if err != nil {
		s.degrade("reset", err)
		return err
	}
	for name, v := range settings {
		if err := s.backend.Put(ctx, s.prefix+settingsNamespace+name, v); err != nil {
			s.degrade("reset", err)
			return err
		}
	}
	s.logger.Info("fields reset", "prefix", s.prefix, "removed", n)
	return nil
}

// Flush writes every pending value now instead of waiting for its window.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	var keys []string
	var waits []*debouncer
	for key, d := range s.pending {
		if d.Cancel() {
			keys = append(keys, key)
		}
		waits = append(waits, d)
	}
	s.mu.Unlock()

	for _, d := range waits {
		d.Wait()
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := s.persist(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// PendingWrites returns how many keys have a debounced write outstanding.
func (s *Store) PendingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.pending {
		if d.Pending() {
			n++
		}
	}
	return n
}

// Degraded reports whether durable storage failed and the store is now
// session-only.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) persist(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	value, ok := s.values[key]
	degraded := s.degraded
	s.mu.Unlock()
	if !ok || degraded {
		return nil
	}

	if err := s.backend.Put(ctx, s.prefix+key, value); err != nil {
		s.degrade("put", err)
		return err
	}
	return nil
}

func (s *Store) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	for _, d := range s.pending {
		d.Cancel()
	}
	s.mu.Unlock()
	if !already {
		s.logger.Warn("durable storage unavailable, continuing session-only", "op", op, "prefix", s.prefix, "error", err)
	}
}
