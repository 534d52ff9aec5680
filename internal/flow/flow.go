// Package flow declares the static question graphs: which field's answer unlocks
// which block, which affordance ends each chain, and which fields feed the summary.
package flow

import "fmt"

// Section is the fixed set of groupings a field can belong to.
type Section string

const (
	SectionExcavation Section = "excavation"
	SectionAntivision Section = "antivision"
	SectionVision     Section = "vision"
	SectionInterrupts Section = "interrupts"
	SectionSynthesis  Section = "synthesis"
	SectionFinal      Section = "final"
)

// Channel names a synthesis summary slot.
type Channel string

const (
	ChannelAntivision Channel = "antivision"
	ChannelVision     Channel = "vision"
)

// Channels lists the summary channels in display order.
var Channels = []Channel{ChannelAntivision, ChannelVision}

// RevealThreshold is the trimmed rune length a value must exceed to unlock its successor.
const RevealThreshold = 10

// BeginAffordance is the entry affordance; it is the only one visible after a reset.
const BeginAffordance = "begin"

// SummaryAffordance toggles access to the synthesis summary.
const SummaryAffordance = "summary"

// Field is the static declaration of one answer slot.
type Field struct {
	Key     string
	Section Section
	Label   string // literal prompt, used by the export document
	Block   string // id of the containing block in the view
}

// Edge is the outgoing transition for a key. Zero-valued parts are absent.
type Edge struct {
	Next      string
	Trigger   string
	Synthesis Channel
}

// HasNext reports whether the edge unlocks another field.
func (e Edge) HasNext() bool { return e.Next != "" }

// HasTrigger reports whether the edge reveals a continue affordance.
func (e Edge) HasTrigger() bool { return e.Trigger != "" }

// HasSynthesis reports whether the edge feeds a summary channel.
func (e Edge) HasSynthesis() bool { return e.Synthesis != "" }

// Chain is one linear sequence of fields ending in a continue affordance.
type Chain struct {
	Section  Section
	Title    string
	Keys     []string
	Continue string
}

// Graph is an immutable question set.
type Graph struct {
	name      string
	prefix    string
	title     string
	footer    []string
	chains    []Chain
	fields    map[string]Field
	order     []string
	edges     map[string]Edge
	taps      map[Channel]string
	questions []string
}

// Name returns the graph identifier ("protocol", "journey").
func (g *Graph) Name() string { return g.name }

// Prefix returns the storage key prefix for this graph's session.
func (g *Graph) Prefix() string { return g.prefix }

// Title returns the document title.
func (g *Graph) Title() string { return g.title }

// Footer returns the closing lines of the export document.
func (g *Graph) Footer() []string { return append([]string(nil), g.footer...) }

// Chains returns the four chains in section order.
func (g *Graph) Chains() []Chain { return append([]Chain(nil), g.chains...) }

// EdgeFor returns the outgoing edge for key.
func (g *Graph) EdgeFor(key string) (Edge, bool) {
	e, ok := g.edges[key]
	return e, ok
}

// Field returns the declaration for key.
func (g *Graph) Field(key string) (Field, bool) {
	f, ok := g.fields[key]
	return f, ok
}

// Keys returns every declared field key in declaration order.
func (g *Graph) Keys() []string { return append([]string(nil), g.order...) }

// Tap returns the field key that feeds channel.
func (g *Graph) Tap(ch Channel) string { return g.taps[ch] }

// EntryBlocks returns the block of the first field of every chain.
func (g *Graph) EntryBlocks() []string {
	out := make([]string, 0, len(g.chains))
	for _, c := range g.chains {
		out = append(out, g.fields[c.Keys[0]].Block)
	}
	return out
}

// Blocks returns every chain block in declaration order.
func (g *Graph) Blocks() []string {
	var out []string
	for _, c := range g.chains {
		for _, k := range c.Keys {
			out = append(out, g.fields[k].Block)
		}
	}
	return out
}

// Affordances returns the begin affordance followed by every chain's continue affordance.
func (g *Graph) Affordances() []string {
	out := []string{BeginAffordance}
	for _, c := range g.chains {
		out = append(out, c.Continue)
	}
	return out
}

// ReminderQuestions returns the fixed reflection questions, one per reminder slot.
func (g *Graph) ReminderQuestions() []string { return append([]string(nil), g.questions...) }

// SlotKey returns the field key holding reminder slot i's configured time.
func (g *Graph) SlotKey(i int) string { return fmt.Sprintf("interrupt-%d", i+1) }

// graphDecl is the literal shape a graph is declared in.
type graphDecl struct {
	name      string
	prefix    string
	title     string
	footer    []string
	chains    []chainDecl
	taps      map[Channel]string
	questions []string
}

type chainDecl struct {
	section    Section
	title      string
	fields     []fieldDecl
	affordance string
}

type fieldDecl struct {
	key     string
	label   string
	section Section // overrides the chain section when set
}

// build turns a declaration into a Graph and panics on inconsistencies; graphs are
// package-level literals, so a bad one is a programming error caught by tests.
func build(s graphDecl) *Graph {
	g := &Graph{
		name:      s.name,
		prefix:    s.prefix,
		title:     s.title,
		footer:    s.footer,
		fields:    make(map[string]Field),
		edges:     make(map[string]Edge),
		taps:      s.taps,
		questions: s.questions,
	}

	add := func(f Field) {
		if _, dup := g.fields[f.Key]; dup {
			panic(fmt.Sprintf("flow %s: duplicate field key %q", s.name, f.Key))
		}
		g.fields[f.Key] = f
		g.order = append(g.order, f.Key)
	}

	for _, cs := range s.chains {
		chain := Chain{Section: cs.section, Title: cs.title, Continue: cs.affordance}
		for i, fs := range cs.fields {
			section := cs.section
			if fs.section != "" {
				section = fs.section
			}
			add(Field{Key: fs.key, Section: section, Label: fs.label, Block: "block-" + fs.key})
			chain.Keys = append(chain.Keys, fs.key)

			var e Edge
			if i+1 < len(cs.fields) {
				e.Next = cs.fields[i+1].key
			} else {
				e.Trigger = cs.affordance
			}
			g.edges[fs.key] = e
		}
		g.chains = append(g.chains, chain)
	}

	for ch, key := range s.taps {
		e, ok := g.edges[key]
		if !ok {
			panic(fmt.Sprintf("flow %s: synthesis tap %q is not a chain field", s.name, key))
		}
		e.Synthesis = ch
		g.edges[key] = e
	}

	for i, q := range s.questions {
		add(Field{Key: g.SlotKey(i), Section: SectionInterrupts, Label: q, Block: "block-interrupts"})
	}

	return g
}

// ByName returns the named graph.
func ByName(name string) (*Graph, bool) {
	switch name {
	case "", "protocol":
		return Protocol(), true
	case "journey":
		return Journey(), true
	}
	return nil, false
}
