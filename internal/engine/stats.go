package engine

import (
	"strings"

	"github.com/hpungsan/protocol/internal/flow"
)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WordCount returns the word count of key's value.
func (s *Session) WordCount(key string) int {
	return WordCount(s.store.Get(key))
}

// SectionProgress is how many of one chain's fields hold an answer.
type SectionProgress struct {
	Section  flow.Section `json:"section"`
	Title    string       `json:"title"`
	Answered int          `json:"answered"`
	Total    int          `json:"total"`
}

// Progress covers every chain field; reminder times are not counted.
type Progress struct {
	Sections []SectionProgress `json:"sections"`
	Answered int               `json:"answered"`
	Total    int               `json:"total"`
}

// Percent is the overall completion rounded down.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Answered * 100 / p.Total
}

func computeProgress(g *flow.Graph, fields map[string]string) Progress {
	var p Progress
	for _, chain := range g.Chains() {
		sp := SectionProgress{Section: chain.Section, Title: chain.Title, Total: len(chain.Keys)}
		for _, key := range chain.Keys {
			if strings.TrimSpace(fields[key]) != "" {
				sp.Answered++
			}
		}
		p.Sections = append(p.Sections, sp)
		p.Answered += sp.Answered
		p.Total += sp.Total
	}
	return p
}
