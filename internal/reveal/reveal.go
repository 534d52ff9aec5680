// Package reveal computes which question blocks and continue affordances are
// visible. Every transition is a pure function returning the next State and the
// view effects it implies; nothing here touches storage or the view directly.
package reveal

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/protocol/internal/flow"
)

// EffectKind identifies a view operation.
type EffectKind string

const (
	EffectReveal     EffectKind = "reveal"
	EffectHide       EffectKind = "hide"
	EffectAffordance EffectKind = "affordance"
)

// Effect is one view operation. Visible is only meaningful for EffectAffordance.
type Effect struct {
	Kind    EffectKind `json:"kind"`
	ID      string     `json:"id"`
	Visible bool       `json:"visible,omitempty"`
}

// State is the set of revealed blocks and visible affordances.
type State struct {
	blocks      map[string]bool
	affordances map[string]bool
}

// Answered reports whether value is long enough to unlock its successor.
func Answered(value string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(value)) > flow.RevealThreshold
}

// Initial returns the visibility of a fresh session: every chain entry block and
// the begin affordance.
func Initial(g *flow.Graph) State {
	s := State{blocks: map[string]bool{}, affordances: map[string]bool{}}
	for _, b := range g.EntryBlocks() {
		s.blocks[b] = true
	}
	s.affordances[flow.BeginAffordance] = true
	return s
}

// Reset returns the initial state plus a full repaint: entry blocks revealed,
// every other block hidden, only the begin affordance visible.
func Reset(g *flow.Graph) (State, []Effect) {
	s := Initial(g)
	return s, s.Repaint(g)
}

// OnSet applies one field update. Only forward transitions exist: clearing or
// shortening a value never hides anything.
func OnSet(g *flow.Graph, s State, key, value string) (State, []Effect) {
	edge, ok := g.EdgeFor(key)
	if !ok || !Answered(value) {
		return s, nil
	}

	next := s.clone()
	var effects []Effect
	if edge.HasNext() {
		if f, ok := g.Field(edge.Next); ok && !next.blocks[f.Block] {
			next.blocks[f.Block] = true
			effects = append(effects, Effect{Kind: EffectReveal, ID: f.Block})
		}
	}
	if edge.HasTrigger() && !next.affordances[edge.Trigger] {
		next.affordances[edge.Trigger] = true
		effects = append(effects, Effect{Kind: EffectAffordance, ID: edge.Trigger, Visible: true})
	}
	return next, effects
}

// Restore rebuilds visibility from persisted values: a non-empty chain field reveals
// its own block, even when it holds only whitespace, and an answered one also
// unlocks its successor and trigger.
func Restore(g *flow.Graph, values map[string]string) (State, []Effect) {
	s := Initial(g)
	for _, key := range g.Keys() {
		value := values[key]
		if value == "" {
			continue
		}
		if _, chained := g.EdgeFor(key); !chained {
			continue
		}
		if f, ok := g.Field(key); ok {
			s.blocks[f.Block] = true
		}
		s, _ = OnSet(g, s, key, value)
	}
	return s, s.Repaint(g)
}

// Repaint returns effects that bring a view of unknown state in line with s.
func (s State) Repaint(g *flow.Graph) []Effect {
	var effects []Effect
	for _, b := range g.Blocks() {
		if s.blocks[b] {
			effects = append(effects, Effect{Kind: EffectReveal, ID: b})
		} else {
			effects = append(effects, Effect{Kind: EffectHide, ID: b})
		}
	}
	for _, a := range g.Affordances() {
		effects = append(effects, Effect{Kind: EffectAffordance, ID: a, Visible: s.affordances[a]})
	}
	return effects
}

// Revealed reports whether block is visible.
func (s State) Revealed(block string) bool { return s.blocks[block] }

// AffordanceVisible reports whether the affordance id is visible.
func (s State) AffordanceVisible(id string) bool { return s.affordances[id] }

// RevealedBlocks returns the visible blocks, sorted.
func (s State) RevealedBlocks() []string { return sortedTrue(s.blocks) }

// VisibleAffordances returns the visible affordances, sorted.
func (s State) VisibleAffordances() []string { return sortedTrue(s.affordances) }

func (s State) clone() State {
	c := State{
		blocks:      make(map[string]bool, len(s.blocks)+1),
		affordances: make(map[string]bool, len(s.affordances)+1),
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.affordances {
		c.affordances[k] = v
	}
	return c
}

func sortedTrue(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
