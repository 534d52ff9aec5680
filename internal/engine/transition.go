package engine

import (
	"strings"

	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/reveal"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// Theme is the display theme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme validates a theme string.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	}
	return "", false
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// State is everything a transition reads and writes. It holds no field text;
// field values arrive on events.
type State struct {
	Reveal         reveal.State
	Summary        synthesis.Summary
	Mode           synthesis.Mode
	Theme          Theme
	SummaryVisible bool
}

// InitialState is a fresh session in learn mode with the dark theme.
func InitialState(g *flow.Graph) State {
	return State{
		Reveal:  reveal.Initial(g),
		Summary: synthesis.Summary{Antivision: synthesis.Placeholder, Vision: synthesis.Placeholder},
		Mode:    synthesis.ModeLearn,
		Theme:   ThemeDark,
	}
}

// EventKind identifies an input event.
type EventKind string

const (
	EventSet     EventKind = "set"
	EventRestore EventKind = "restore"
	EventReset   EventKind = "reset"
	EventMode    EventKind = "mode"
	EventTheme   EventKind = "theme"
)

// Event is one input to Transition. Only the fields relevant to Kind are read.
type Event struct {
	Kind   EventKind
	Key    string
	Value  string
	Values map[string]string // EventRestore
	Mode   synthesis.Mode    // EventMode, EventRestore
	Theme  Theme             // EventTheme, EventRestore
}

// EffectKind identifies an effect for the Session to apply.
type EffectKind string

const (
	// View effects.
	EffectReveal     EffectKind = "reveal"
	EffectHide       EffectKind = "hide"
	EffectAffordance EffectKind = "affordance"
	EffectSummary    EffectKind = "summary"
	EffectTheme      EffectKind = "theme"

	// Side effects on storage and timers.
	EffectStoreField      EffectKind = "store_field"
	EffectStoreSetting    EffectKind = "store_setting"
	EffectClearFields     EffectKind = "clear_fields"
	EffectCancelReminders EffectKind = "cancel_reminders"
)

// Effect is one operation produced by a transition.
type Effect struct {
	Kind    EffectKind   `json:"kind"`
	ID      string       `json:"id,omitempty"`
	Visible bool         `json:"visible,omitempty"`
	Channel flow.Channel `json:"channel,omitempty"`
	Text    string       `json:"text,omitempty"`
}

// IsView reports whether the effect targets the view.
func (e Effect) IsView() bool {
	switch e.Kind {
	case EffectReveal, EffectHide, EffectAffordance, EffectSummary, EffectTheme:
		return true
	}
	return false
}

// Transition computes the next state and the effects of ev. It is pure.
func Transition(g *flow.Graph, s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventSet:
		return onSet(g, s, ev.Key, ev.Value)
	case EventRestore:
		return onRestore(g, ev)
	case EventReset:
		return onReset(g, s)
	case EventMode:
		s.Mode = ev.Mode
		effects := []Effect{{Kind: EffectStoreSetting, ID: SettingMode, Text: string(ev.Mode)}}
		s, effects = refreshSummaryAffordance(s, effects)
		return s, effects
	case EventTheme:
		s.Theme = ev.Theme
		return s, []Effect{
			{Kind: EffectStoreSetting, ID: SettingTheme, Text: string(ev.Theme)},
			{Kind: EffectTheme, ID: string(ev.Theme)},
		}
	}
	return s, nil
}

// Setting names persisted alongside the fields.
const (
	SettingMode  = "mode"
	SettingTheme = "theme"
)

func onSet(g *flow.Graph, s State, key, value string) (State, []Effect) {
	effects := []Effect{{Kind: EffectStoreField, ID: key, Text: value}}

	var revealed []reveal.Effect
	s.Reveal, revealed = reveal.OnSet(g, s.Reveal, key, value)
	effects = append(effects, fromReveal(revealed)...)

	if edge, ok := g.EdgeFor(key); ok && edge.HasSynthesis() {
		s.Summary = withChannel(s.Summary, edge.Synthesis, synthesis.Echo(value))
		effects = append(effects, Effect{Kind: EffectSummary, Channel: edge.Synthesis, Text: s.Summary.Get(edge.Synthesis)})
		s, effects = refreshSummaryAffordance(s, effects)
	}
	return s, effects
}

func onRestore(g *flow.Graph, ev Event) (State, []Effect) {
	s := InitialState(g)
	if ev.Mode != "" {
		s.Mode = ev.Mode
	}
	if ev.Theme != "" {
		s.Theme = ev.Theme
	}

	var repaint []reveal.Effect
	s.Reveal, repaint = reveal.Restore(g, ev.Values)
	s.Summary = synthesis.Compute(g, func(k string) string { return ev.Values[k] })

	effects := fromReveal(repaint)
	effects = append(effects, summaryEffects(s.Summary)...)
	effects = append(effects, Effect{Kind: EffectTheme, ID: string(s.Theme)})
	return refreshSummaryAffordance(s, effects)
}

func onReset(g *flow.Graph, s State) (State, []Effect) {
	next := InitialState(g)
	next.Mode = s.Mode
	next.Theme = s.Theme

	effects := []Effect{{Kind: EffectCancelReminders}, {Kind: EffectClearFields}}
	var repaint []reveal.Effect
	next.Reveal, repaint = reveal.Reset(g)
	effects = append(effects, fromReveal(repaint)...)
	effects = append(effects, summaryEffects(next.Summary)...)
	return refreshSummaryAffordance(next, effects)
}

func refreshSummaryAffordance(s State, effects []Effect) (State, []Effect) {
	s.SummaryVisible = synthesis.AffordanceVisible(s.Summary, s.Mode)
	return s, append(effects, Effect{Kind: EffectAffordance, ID: flow.SummaryAffordance, Visible: s.SummaryVisible})
}

func summaryEffects(sum synthesis.Summary) []Effect {
	effects := make([]Effect, 0, len(flow.Channels))
	for _, ch := range flow.Channels {
		effects = append(effects, Effect{Kind: EffectSummary, Channel: ch, Text: sum.Get(ch)})
	}
	return effects
}

func withChannel(sum synthesis.Summary, ch flow.Channel, text string) synthesis.Summary {
	if ch == flow.ChannelVision {
		sum.Vision = text
	} else {
		sum.Antivision = text
	}
	return sum
}

func fromReveal(in []reveal.Effect) []Effect {
	out := make([]Effect, 0, len(in))
	for _, e := range in {
		switch e.Kind {
		case reveal.EffectReveal:
			out = append(out, Effect{Kind: EffectReveal, ID: e.ID})
		case reveal.EffectHide:
			out = append(out, Effect{Kind: EffectHide, ID: e.ID})
		case reveal.EffectAffordance:
			out = append(out, Effect{Kind: EffectAffordance, ID: e.ID, Visible: e.Visible})
		}
	}
	return out
}
