// Package ui renders session state for the terminal in the session's theme.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/protocol/internal/engine"
)

// Palette is the set of colors for one theme.
type Palette struct {
	Accent lipgloss.Color
	Text   lipgloss.Color
	Muted  lipgloss.Color
	Pass   lipgloss.Color
	Warn   lipgloss.Color
}

var (
	// Ayu dark
	darkPalette = Palette{
		Accent: lipgloss.Color("#59c2ff"),
		Text:   lipgloss.Color("#e6e1cf"),
		Muted:  lipgloss.Color("#6c7680"),
		Pass:   lipgloss.Color("#c2d94c"),
		Warn:   lipgloss.Color("#ffb454"),
	}
	// Ayu light
	lightPalette = Palette{
		Accent: lipgloss.Color("#399ee6"),
		Text:   lipgloss.Color("#5c6166"),
		Muted:  lipgloss.Color("#828c99"),
		Pass:   lipgloss.Color("#86b300"),
		Warn:   lipgloss.Color("#f2ae49"),
	}
)

// Styles are the lipgloss styles derived from a palette.
type Styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Label   lipgloss.Style
	Answer  lipgloss.Style
	Muted   lipgloss.Style
	Pass    lipgloss.Style
	Warn    lipgloss.Style
	Summary lipgloss.Style
}

// StylesFor returns the styles of theme; unknown themes get dark.
func StylesFor(theme engine.Theme) Styles {
	p := darkPalette
	if theme == engine.ThemeLight {
		p = lightPalette
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Section: lipgloss.NewStyle().Bold(true).Foreground(p.Accent).MarginTop(1),
		Label:   lipgloss.NewStyle().Foreground(p.Text),
		Answer:  lipgloss.NewStyle().Foreground(p.Text).PaddingLeft(4),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Pass:    lipgloss.NewStyle().Foreground(p.Pass),
		Warn:    lipgloss.NewStyle().Foreground(p.Warn),
		Summary: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Muted).Padding(0, 1),
	}
}

// Icons
const (
	IconAnswered = "✓"
	IconOpen     = "○"
	IconWarn     = "⚠"
)
