package engine

import (
	"sync"

	"github.com/hpungsan/protocol/internal/flow"
)

// Recorder is a View that keeps the latest visibility it was told about.
type Recorder struct {
	mu          sync.Mutex
	blocks      map[string]bool
	affordances map[string]bool
	summary     map[flow.Channel]string
	theme       Theme
	calls       int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		blocks:      map[string]bool{},
		affordances: map[string]bool{},
		summary:     map[flow.Channel]string{},
	}
}

func (r *Recorder) Reveal(block string) { r.set(r.blocks, block, true) }
func (r *Recorder) Hide(block string) { r.set(r.blocks, block, false) }

func (r *Recorder) SetAffordanceVisible(id string, visible bool) {
	r.set(r.affordances, id, visible)
}

func (r *Recorder) SetSummary(ch flow.Channel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary[ch] = text
	r.calls++
}

func (r *Recorder) SetTheme(t Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = t
	r.calls++
}

func (r *Recorder) set(m map[string]bool, id string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[id] = v
	r.calls++
}

// Revealed reports whether block was last revealed.
func (r *Recorder) Revealed(block string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[block]
}

// AffordanceVisible reports the last visibility set for id.
func (r *Recorder) AffordanceVisible(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.affordances[id]
}

// Summary returns the last text set for ch.
func (r *Recorder) Summary(ch flow.Channel) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary[ch]
}

// Theme returns the last theme set.
func (r *Recorder) Theme() Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

// Calls returns how many view calls were made.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
