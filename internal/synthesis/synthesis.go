// Package synthesis derives the running anti-vision / vision summary.
package synthesis

import (
	"strings"
	"unicode"

	"github.com/hpungsan/protocol/internal/flow"
)

// Placeholder is shown for a channel whose field is empty.
const Placeholder = "—"

// Limit is the maximum rune length of a summary echo, ellipsis included.
const Limit = 80

const ellipsis = "..."

// Mode is the session mode the summary affordance depends on.
type Mode string

const (
	ModeLearn   Mode = "learn"
	ModeExecute Mode = "execute"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLearn:
		return ModeLearn, true
	case ModeExecute:
		return ModeExecute, true
	}
	return "", false
}

// Summary holds the two channel texts.
type Summary struct {
	Antivision string `json:"antivision"`
	Vision     string `json:"vision"`
}

// Get returns the text for ch.
func (s Summary) Get(ch flow.Channel) string {
	if ch == flow.ChannelVision {
		return s.Vision
	}
	return s.Antivision
}

// Empty reports whether both channels hold the placeholder.
func (s Summary) Empty() bool {
	return s.Antivision == Placeholder && s.Vision == Placeholder
}

// Echo returns the summary text for a field value: the placeholder when blank,
// otherwise the trimmed value cut to Limit runes with a trailing ellipsis.
func Echo(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Placeholder
	}
	runes := []rune(trimmed)
	if len(runes) <= Limit {
		return trimmed
	}
	head := strings.TrimRightFunc(string(runes[:Limit-len(ellipsis)]), unicode.IsSpace)
	return head + ellipsis
}

// Compute derives the summary from the current field values.
func Compute(g *flow.Graph, get func(key string) string) Summary {
	return Summary{
		Antivision: Echo(get(g.Tap(flow.ChannelAntivision))),
		Vision:     Echo(get(g.Tap(flow.ChannelVision))),
	}
}

// AffordanceVisible reports whether the summary affordance should be shown:
// execute mode and at least one channel holding real text.
func AffordanceVisible(s Summary, mode Mode) bool {
	return mode == ModeExecute && !s.Empty()
}
