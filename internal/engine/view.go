package engine

import "github.com/hpungsan/protocol/internal/flow"

// View renders the session. The engine calls it while holding its lock, so
// implementations must not call back into the Session.
type View interface {
	Reveal(block string)
	Hide(block string)
	SetAffordanceVisible(id string, visible bool)
	SetSummary(ch flow.Channel, text string)
}

// ThemeView is implemented by views that can switch theme.
type ThemeView interface {
	SetTheme(t Theme)
}

// NopView discards every call.
type NopView struct{}

func (NopView) Reveal(string) {}
func (NopView) Hide(string) {}
func (NopView) SetAffordanceVisible(string, bool) {}
func (NopView) SetSummary(flow.Channel, string) {}

func applyView(v View, effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectReveal:
			v.Reveal(e.ID)
		case EffectHide:
			v.Hide(e.ID)
		case EffectAffordance:
			v.SetAffordanceVisible(e.ID, e.Visible)
		case EffectSummary:
			v.SetSummary(e.Channel, e.Text)
		case EffectTheme:
			if tv, ok := v.(ThemeView); ok {
				tv.SetTheme(Theme(e.ID))
			}
		}
	}
}
