// Package reminder arms one delayed notification per configured reflection
// slot, each at the next occurrence of its time of day.
package reminder

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/protocol/internal/clock"
	"github.com/hpungsan/protocol/internal/errors"
)

// DefaultTitle is the notification title.
const DefaultTitle = "THE PROTOCOL - Time to Reflect"

// Permission is the outcome of asking the environment to show notifications.
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)

// Notifier shows notifications on behalf of the scheduler.
type Notifier interface {
	RequestPermission(ctx context.Context) Permission
	Show(title, body string) error
}

// Status summarizes an activation.
type Status string

const (
	StatusActivated        Status = "activated"
	StatusNoValidTimes     Status = "no_valid_times"
	StatusPermissionDenied Status = "permission_denied"
	StatusUnsupported      Status = "unsupported"
	StatusSuperseded       Status = "superseded"
)

// Slot is one reflection question and its configured time, as typed.
type Slot struct {
	Index    int    `json:"slot"`
	Question string `json:"question"`
	Raw      string `json:"raw"`
}

// Skip records a slot that was not armed.
type Skip struct {
	Slot   int    `json:"slot"`
	Raw    string `json:"raw,omitempty"`
	Reason string `json:"reason"`
}

// Armed is a scheduled notification.
type Armed struct {
	Slot     int       `json:"slot"`
	Time     TimeOfDay `json:"time"`
	Question string    `json:"question"`
	At       time.Time `json:"at"`
}

// Result is the outcome of Activate.
type Result struct {
	Status       Status  `json:"status"`
	ActivationID string  `json:"activation_id,omitempty"`
	Scheduled    int     `json:"scheduled"`
	Armed        []Armed `json:"armed,omitempty"`
	Skipped      []Skip  `json:"skipped,omitempty"`
}

// Message is the line shown to the person after activating.
func (r Result) Message() string {
	switch r.Status {
	case StatusActivated:
		return fmt.Sprintf("✓ %d reminders activated! You'll receive notifications at the scheduled times.", r.Scheduled)
	case StatusNoValidTimes:
		return "⚠ No valid times entered. Please set times for your reminders."
	case StatusPermissionDenied:
		return "⚠ Notification permission denied. Please enable notifications to receive reminders."
	case StatusUnsupported:
		return "⚠ Notifications not supported in this environment."
	case StatusSuperseded:
		return "A newer activation replaced this one."
	}
	return ""
}

// Err maps the permission outcomes to typed errors for surfaces that report
// them as failures. Other statuses return nil.
func (r Result) Err() error {
	switch r.Status {
	case StatusPermissionDenied:
		return errors.NewPermissionDenied()
	case StatusUnsupported:
		return errors.NewUnsupportedEnvironment()
	}
	return nil
}

// Fired describes a delivered notification.
type Fired struct {
	ActivationID string    `json:"activation_id"`
	Slot         int       `json:"slot"`
	Question     string    `json:"question"`
	At           time.Time `json:"at"`
}

// Options configures a Scheduler.
type Options struct {
	Clock  clock.Clock
	Title  string
	Logger *slog.Logger
	// OnFire runs after each delivered notification.
	OnFire func(Fired)
}

// Scheduler owns the armed timers of the current activation.
type Scheduler struct {
	clock    clock.Clock
	notifier Notifier
	title    string
	logger   *slog.Logger
	onFire   func(Fired)

	mu         sync.Mutex
	requested  string // latest activation that asked for permission
	activation string // activation whose timers are armed
	timers     map[int]clock.Timer
	armed      map[int]Armed
}

// NewScheduler returns a Scheduler with nothing armed.
func NewScheduler(n Notifier, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		clock:    opts.Clock,
		notifier: n,
		title:    opts.Title,
		logger:   opts.Logger,
		onFire:   opts.OnFire,
		timers:   make(map[int]clock.Timer),
		armed:    make(map[int]Armed),
	}
}

func newActivationID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// Activate asks for permission and, when granted, replaces every armed timer
// with one timer per valid slot.
func (s *Scheduler) Activate(ctx context.Context, slots []Slot) (Result, error) {
	return s.Complete(ctx, s.Request(), slots)
}

// Request starts a new activation and returns its id. Any earlier activation
// still waiting for permission is superseded, and so is this one if CancelAll
// or another Request runs before Complete arms it.
func (s *Scheduler) Request() string {
	id := newActivationID(s.clock.Now())
	s.mu.Lock()
	s.requested = id
	s.mu.Unlock()
	return id
}

// Complete finishes the activation id returned by Request. Permission is
// awaited without holding the scheduler lock.
func (s *Scheduler) Complete(ctx context.Context, id string, slots []Slot) (Result, error) {
	perm := s.notifier.RequestPermission(ctx)
	if err := ctx.Err(); err != nil {
		return Result{}, errors.NewCancelled("reminder activation")
	}
	switch perm {
	case PermissionGranted:
	case PermissionDenied:
		s.logger.Info("notification permission denied")
		return Result{Status: StatusPermissionDenied}, nil
	default:
		s.logger.Info("notifications unsupported")
		return Result{Status: StatusUnsupported}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requested != id {
		return Result{Status: StatusSuperseded}, nil
	}

	s.cancelLocked()
	s.activation = id

	now := s.clock.Now()
	res := Result{ActivationID: id}
	for _, slot := range slots {
		if strings.TrimSpace(slot.Raw) == "" {
			res.Skipped = append(res.Skipped, Skip{Slot: slot.Index, Reason: "missing"})
			continue
		}
		tod, ok := ParseTime(slot.Raw, now)
		if !ok {
			err := errors.NewMalformedTime(slot.Index, slot.Raw)
			s.logger.Warn("skipping reminder", "slot", slot.Index+1, "raw", slot.Raw, "error", err)
			res.Skipped = append(res.Skipped, Skip{Slot: slot.Index, Raw: slot.Raw, Reason: err.Message})
			continue
		}
		a := Armed{Slot: slot.Index, Time: tod, Question: slot.Question, At: NextOccurrence(now, tod)}
		s.armLocked(id, a, a.At.Sub(now))
		res.Armed = append(res.Armed, a)
	}

	res.Scheduled = len(res.Armed)
	if res.Scheduled == 0 {
		res.Status = StatusNoValidTimes
	} else {
		res.Status = StatusActivated
	}
	s.logger.Info("reminders activated", "activation", id, "scheduled", res.Scheduled, "skipped", len(res.Skipped))
	return res, nil
}

func (s *Scheduler) armLocked(id string, a Armed, delay time.Duration) {
	s.armed[a.Slot] = a
	s.timers[a.Slot] = s.clock.AfterFunc(delay, func() { s.fire(id, a.Slot) })
}

func (s *Scheduler) fire(id string, slot int) {
	s.mu.Lock()
	a, ok := s.armed[slot]
	if s.activation != id || !ok {
		s.mu.Unlock()
		return
	}
	delete(s.armed, slot)
	delete(s.timers, slot)
	s.mu.Unlock()

	if err := s.notifier.Show(s.title, a.Question); err != nil {
		s.logger.Warn("notification failed", "slot", slot+1, "error", err)
		return
	}
	s.logger.Info("reminder delivered", "activation", id, "slot", slot+1)
	if s.onFire != nil {
		s.onFire(Fired{ActivationID: id, Slot: slot, Question: a.Question, At: s.clock.Now()})
	}
}

// CancelAll stops every armed timer. A pending permission request is also
// abandoned.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = ""
	s.cancelLocked()
	s.activation = ""
}

func (s *Scheduler) cancelLocked() {
	for slot, t := range s.timers {
		t.Stop()
		delete(s.timers, slot)
	}
	s.armed = make(map[int]Armed)
}

// Armed returns the scheduled notifications in slot order.
func (s *Scheduler) Armed() []Armed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Armed, 0, len(s.armed))
	for _, a := range s.armed {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// ActivationID returns the current activation, or "" when nothing is active.
func (s *Scheduler) ActivationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activation
}
