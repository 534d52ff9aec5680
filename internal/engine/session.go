// Package engine owns a guided session: its fields, visibility, summary,
// reminders and export. Every mutation runs as one serialized transition.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/protocol/internal/clock"
	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/export"
	"github.com/hpungsan/protocol/internal/fieldstore"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/reminder"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// Options configures a Session. Only Graph is required.
type Options struct {
	Graph    *flow.Graph
	Backend  fieldstore.Backend
	Clock    clock.Clock
	Notifier reminder.Notifier
	View     View
	Logger   *slog.Logger
	Config   *config.Config
}

// Session is one person's run through a question graph.
type Session struct {
	graph     *flow.Graph
	store     *fieldstore.Store
	scheduler *reminder.Scheduler
	clock     clock.Clock
	cfg       *config.Config
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	view      View
	lastFired *reminder.Fired
}

// New builds a Session. Call Load before use to restore persisted state.
func New(opts Options) *Session {
	if opts.Graph == nil {
		opts.Graph = flow.Protocol()
	}
	if opts.Backend == nil {
		opts.Backend = fieldstore.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Notifier == nil {
		opts.Notifier = unsupportedNotifier{}
	}
	if opts.View == nil {
		opts.View = NopView{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}

	s := &Session{
		graph:  opts.Graph,
		clock:  opts.Clock,
		cfg:    opts.Config,
		logger: opts.Logger.With("flow", opts.Graph.Name()),
		state:  InitialState(opts.Graph),
		view:   opts.View,
	}
	s.store = fieldstore.New(opts.Backend, fieldstore.Options{
		Prefix: opts.Graph.Prefix(),
		Window: opts.Config.Debounce(),
		Clock:  opts.Clock,
		Logger: s.logger,
	})
	s.scheduler = reminder.NewScheduler(opts.Notifier, reminder.Options{
		Clock:  opts.Clock,
		Title:  opts.Config.NotificationTitle,
		Logger: s.logger,
		OnFire: s.onFire,
	})
	return s
}

// Graph returns the question graph.
func (s *Session) Graph() *flow.Graph { return s.graph }

// SetView replaces the view and repaints it.
func (s *Session) SetView(v View) {
	if v == nil {
		v = NopView{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	applyView(v, s.repaintLocked())
}

// Load restores fields and settings from storage. A storage failure leaves the
// session running in memory only; see Degraded.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(ctx); err != nil {
		s.logger.Warn("restore failed, starting empty", "error", err)
	}

	ev := Event{Kind: EventRestore, Values: s.store.Snapshot()}
	if m, ok := synthesis.ParseMode(s.store.Setting(SettingMode)); ok {
		ev.Mode = m
	}
	if t, ok := ParseTheme(s.store.Setting(SettingTheme)); ok {
		ev.Theme = t
	}
	s.dispatchLocked(ctx, ev)
	return nil
}

// Set records value for key and applies the resulting reveal and summary updates.
func (s *Session) Set(key, value string) ([]Effect, error) {
	if _, ok := s.graph.Field(key); !ok {
		return nil, errors.NewUnknownField(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(context.Background(), Event{Kind: EventSet, Key: key, Value: value}), nil
}

// Get returns the value of key, or "" if it has none.
func (s *Session) Get(key string) string {
	return s.store.Get(key)
}

// SwitchMode changes the mode and recomputes the summary affordance.
func (s *Session) SwitchMode(ctx context.Context, mode synthesis.Mode) ([]Effect, error) {
	if _, ok := synthesis.ParseMode(string(mode)); !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q (want learn or execute)", mode))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ctx, Event{Kind: EventMode, Mode: mode}), nil
}

// SwitchTheme changes the display theme.
func (s *Session) SwitchTheme(ctx context.Context, theme Theme) ([]Effect, error) {
	if _, ok := ParseTheme(string(theme)); !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown theme %q (want dark or light)", theme))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ctx, Event{Kind: EventTheme, Theme: theme}), nil
}

// ResetAll cancels reminders and pending writes, clears every field and
// returns visibility to a fresh session. Mode and theme are kept.
func (s *Session) ResetAll(ctx context.Context) ([]Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	effects := s.dispatchLocked(ctx, Event{Kind: EventReset})
	s.lastFired = nil
	s.logger.Info("session reset")
	return effects, nil
}

// Import writes values into the session and rebuilds visibility the way a
// reload would. With replace the session is reset first; otherwise keys absent
// from values keep their current answers.
func (s *Session) Import(ctx context.Context, values map[string]string, replace bool) ([]Effect, error) {
	keys := make([]string, 0, len(values))
	for _, key := range s.graph.Keys() {
		if _, ok := values[key]; ok {
			keys = append(keys, key)
		}
	}
	if len(keys) != len(values) {
		for key := range values {
			if _, ok := s.graph.Field(key); !ok {
				return nil, errors.NewUnknownField(key)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var effects []Effect
	if replace {
		effects = s.dispatchLocked(ctx, Event{Kind: EventReset})
		s.lastFired = nil
	}
	for _, key := range keys {
		s.store.Set(key, values[key])
	}
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Warn("flushing imported fields failed", "error", err)
	}
	effects = append(effects, s.dispatchLocked(ctx, Event{
		Kind:   EventRestore,
		Values: s.store.Snapshot(),
		Mode:   s.state.Mode,
		Theme:  s.state.Theme,
	})...)
	s.logger.Info("session imported", "fields", len(keys), "replace", replace)
	return effects, nil
}

func (s *Session) dispatchLocked(ctx context.Context, ev Event) []Effect {
	next, effects := Transition(s.graph, s.state, ev)
	s.state = next
	for _, e := range effects {
		switch e.Kind {
		case EffectStoreField:
			s.store.Set(e.ID, e.Text)
		case EffectStoreSetting:
			s.store.PutSetting(ctx, e.ID, e.Text)
		case EffectClearFields:
			if err := s.store.ResetAll(ctx); err != nil {
				s.logger.Warn("clearing storage failed", "error", err)
			}
		case EffectCancelReminders:
			s.scheduler.CancelAll()
		}
	}
	applyView(s.view, effects)
	return effects
}

func (s *Session) repaintLocked() []Effect {
	effects := fromReveal(s.state.Reveal.Repaint(s.graph))
	effects = append(effects, summaryEffects(s.state.Summary)...)
	effects = append(effects,
		Effect{Kind: EffectAffordance, ID: flow.SummaryAffordance, Visible: s.state.SummaryVisible},
		Effect{Kind: EffectTheme, ID: string(s.state.Theme)},
	)
	return effects
}

// ReminderSlot is one reflection reminder as configured.
type ReminderSlot struct {
	Slot     int        `json:"slot"`
	Question string     `json:"question"`
	Raw      string     `json:"raw,omitempty"`
	Time     string     `json:"time,omitempty"`
	Valid    bool       `json:"valid"`
	ArmedAt  *time.Time `json:"armed_at,omitempty"`
}

// ConfigureReminder stores the time typed for a slot. The time is only parsed
// on activation; Valid reports whether it would be accepted.
func (s *Session) ConfigureReminder(slot int, raw string) (ReminderSlot, error) {
	questions := s.graph.ReminderQuestions()
	if slot < 0 || slot >= len(questions) {
		return ReminderSlot{}, errors.NewInvalidRequest(fmt.Sprintf("slot must be between 1 and %d", len(questions)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(context.Background(), Event{Kind: EventSet, Key: s.graph.SlotKey(slot), Value: raw})
	return s.reminderSlotsLocked()[slot], nil
}

// Reminders lists every slot with its configured time and, when armed, the
// instant it will fire.
func (s *Session) Reminders() []ReminderSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminderSlotsLocked()
}

func (s *Session) reminderSlotsLocked() []ReminderSlot {
	armed := map[int]time.Time{}
	for _, a := range s.scheduler.Armed() {
		armed[a.Slot] = a.At
	}
	now := s.clock.Now()

	questions := s.graph.ReminderQuestions()
	out := make([]ReminderSlot, len(questions))
	for i, q := range questions {
		raw := s.store.Get(s.graph.SlotKey(i))
		if strings.TrimSpace(raw) == "" && i < len(s.cfg.ReminderTimes) {
			raw = s.cfg.ReminderTimes[i]
		}
		rs := ReminderSlot{Slot: i, Question: q, Raw: raw}
		if tod, ok := reminder.ParseTime(raw, now); ok {
			rs.Time = tod.String()
			rs.Valid = true
		}
		if at, ok := armed[i]; ok {
			rs.ArmedAt = &at
		}
		out[i] = rs
	}
	return out
}

// ActivateReminders asks for notification permission and arms every valid
// slot. The permission prompt runs without the session lock held; a reset
// after the slots are read supersedes the activation.
func (s *Session) ActivateReminders(ctx context.Context) (reminder.Result, error) {
	s.mu.Lock()
	configured := s.reminderSlotsLocked()
	id := s.scheduler.Request()
	s.mu.Unlock()

	slots := make([]reminder.Slot, len(configured))
	for i, rs := range configured {
		slots[i] = reminder.Slot{Index: rs.Slot, Question: rs.Question, Raw: rs.Raw}
	}
	return s.scheduler.Complete(ctx, id, slots)
}

// CancelReminders disarms every reminder.
func (s *Session) CancelReminders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler.CancelAll()
}

func (s *Session) lastFiredCopyLocked() *reminder.Fired {
	if s.lastFired == nil {
		return nil
	}
	f := *s.lastFired
	return &f
}

func (s *Session) onFire(f reminder.Fired) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFired = &f
}

// Rendered is an export ready to download.
type Rendered struct {
	Filename    string          `json:"filename"`
	Format      export.Format   `json:"format"`
	ContentType string          `json:"content_type"`
	Content     []byte          `json:"-"`
	Document    export.Document `json:"document"`
}

// Export renders the current answers. It does not change the session.
func (s *Session) Export(format export.Format) (Rendered, error) {
	s.mu.Lock()
	fields := s.store.Snapshot()
	slots := s.reminderSlotsLocked()
	s.mu.Unlock()

	reminders := make([]export.Reminder, 0, len(slots))
	for _, rs := range slots {
		t := rs.Time
		if !rs.Valid {
			t = strings.TrimSpace(rs.Raw)
		}
		reminders = append(reminders, export.Reminder{Time: t, Question: rs.Question})
	}

	now := s.clock.Now()
	doc := export.Build(s.graph, fields, reminders, now)
	content, err := export.Render(doc, format)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Filename:    export.Filename(now, format),
		Format:      format,
		ContentType: format.ContentType(),
		Content:     content,
		Document:    doc,
	}, nil
}

// ExportTo renders the answers and offers them to sink.
func (s *Session) ExportTo(ctx context.Context, sink export.Sink, format export.Format) (string, error) {
	r, err := s.Export(format)
	if err != nil {
		return "", err
	}
	path, err := sink.Offer(ctx, r.Filename, r.Content)
	if err != nil {
		return "", err
	}
	s.logger.Info("exported", "path", path, "format", format, "answered", r.Document.Answered())
	return path, nil
}

// Snapshot is a read-only copy of the session for surfaces to render.
type Snapshot struct {
	Flow           string            `json:"flow"`
	Mode           synthesis.Mode    `json:"mode"`
	Theme          Theme             `json:"theme"`
	Summary        synthesis.Summary `json:"summary"`
	SummaryVisible bool              `json:"summary_visible"`
	Blocks         []string          `json:"revealed_blocks"`
	Affordances    []string          `json:"visible_affordances"`
	Fields         map[string]string `json:"fields"`
	Progress       Progress          `json:"progress"`
	Reminders      []ReminderSlot    `json:"reminders"`
	ActivationID   string            `json:"activation_id,omitempty"`
	LastReminder   *reminder.Fired   `json:"last_reminder,omitempty"`
	PendingWrites  int               `json:"pending_writes"`
	Degraded       bool              `json:"storage_degraded"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := s.store.Snapshot()
	affordances := s.state.Reveal.VisibleAffordances()
	if s.state.SummaryVisible {
		affordances = append(affordances, flow.SummaryAffordance)
	}
	return Snapshot{
		Flow:           s.graph.Name(),
		Mode:           s.state.Mode,
		Theme:          s.state.Theme,
		Summary:        s.state.Summary,
		SummaryVisible: s.state.SummaryVisible,
		Blocks:         s.state.Reveal.RevealedBlocks(),
		Affordances:    affordances,
		Fields:         fields,
		Progress:       computeProgress(s.graph, fields),
		Reminders:      s.reminderSlotsLocked(),
		ActivationID:   s.scheduler.ActivationID(),
		LastReminder:   s.lastFiredCopyLocked(),
		PendingWrites:  s.store.PendingWrites(),
		Degraded:       s.store.Degraded(),
	}
}

// Revealed reports whether block is visible.
func (s *Session) Revealed(block string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Reveal.Revealed(block)
}

// Degraded reports whether storage failed and the session is memory-only.
func (s *Session) Degraded() bool { return s.store.Degraded() }

// Flush writes pending field values to storage now.
func (s *Session) Flush(ctx context.Context) error {
	return s.store.Flush(ctx)
}

// Close disarms reminders and flushes pending writes.
func (s *Session) Close(ctx context.Context) error {
	s.CancelReminders()
	return s.Flush(ctx)
}

type unsupportedNotifier struct{}

func (unsupportedNotifier) RequestPermission(context.Context) reminder.Permission {
	return reminder.PermissionUnsupported
}

func (unsupportedNotifier) Show(string, string) error {
	return errors.NewUnsupportedEnvironment()
}
