// Package export renders a session's answers into a downloadable document and
// offers it to a sink.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// InterruptsTitle heads the reminder section.
const InterruptsTitle = "Interrupt Autopilot"

// Reminder is one configured reminder as it appears in the document.
type Reminder struct {
	Time     string `json:"time"`
	Question string `json:"question"`
}

// Entry is a labelled answer. Entries with an empty Answer print the label alone.
type Entry struct {
	Label  string `json:"label"`
	Answer string `json:"answer,omitempty"`
}

// Section is a numbered group of entries. Sections with no entries are omitted.
type Section struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Document is the format-independent export.
type Document struct {
	Title      string    `json:"title"`
	Flow       string    `json:"flow"`
	Date       time.Time `json:"date"`
	Antivision string    `json:"antivision"`
	Vision     string    `json:"vision"`
	Sections   []Section `json:"sections"`
	Footer     []string  `json:"footer"`
}

// Answered counts entries across all sections.
func (d Document) Answered() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Entries)
	}
	return n
}

// Build assembles the document in its fixed order: both statements, the three
// question sections, the reminder section, then synthesis. Unanswered fields
// are left out, and so is any section left empty.
func Build(g *flow.Graph, fields map[string]string, reminders []Reminder, date time.Time) Document {
	doc := Document{
		Title:      g.Title(),
		Flow:       g.Name(),
		Date:       date,
		Antivision: statement(fields[g.Tap(flow.ChannelAntivision)]),
		Vision:     statement(fields[g.Tap(flow.ChannelVision)]),
		Footer:     g.Footer(),
	}

	chains := g.Chains()
	number := 0
	add := func(title string, entries []Entry) {
		number++
		if len(entries) == 0 {
			return
		}
		doc.Sections = append(doc.Sections, Section{Number: number, Title: title, Entries: entries})
	}

	for i, chain := range chains {
		if i == len(chains)-1 {
			add(InterruptsTitle, reminderEntries(reminders))
		}
		add(chain.Title, chainEntries(g, chain, fields))
	}
	return doc
}

func statement(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return synthesis.Placeholder
	}
	return v
}

func chainEntries(g *flow.Graph, chain flow.Chain, fields map[string]string) []Entry {
	var entries []Entry
	for _, key := range chain.Keys {
		f, ok := g.Field(key)
		if !ok || f.Section == flow.SectionFinal {
			continue
		}
		answer := strings.TrimSpace(fields[key])
		if answer == "" {
			continue
		}
		entries = append(entries, Entry{Label: f.Label, Answer: answer})
	}
	return entries
}

func reminderEntries(reminders []Reminder) []Entry {
	var entries []Entry
	for _, r := range reminders {
		if strings.TrimSpace(r.Time) == "" {
			continue
		}
		entries = append(entries, Entry{Label: fmt.Sprintf("%s — %s", r.Time, r.Question)})
	}
	return entries
}
