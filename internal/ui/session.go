package ui

import (
	"fmt"
	"strings"

	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// RenderSession draws the revealed part of a session. Hidden blocks are only
// counted, never shown.
func RenderSession(g *flow.Graph, snap engine.Snapshot) string {
	st := StylesFor(snap.Theme)
	revealed := make(map[string]bool, len(snap.Blocks))
	for _, b := range snap.Blocks {
		revealed[b] = true
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(g.Title()))
	b.WriteString(st.Muted.Render(fmt.Sprintf("  [%s · %s]", snap.Mode, snap.Theme)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", st.Muted.Render(fmt.Sprintf("Progress: %d/%d (%d%%)",
		snap.Progress.Answered, snap.Progress.Total, snap.Progress.Percent())))
	if snap.Degraded {
		b.WriteString(st.Warn.Render(IconWarn+" storage unavailable, answers are kept for this session only") + "\n")
	}

	for i, chain := range g.Chains() {
		sp := snap.Progress.Sections[i]
		b.WriteString(st.Section.Render(fmt.Sprintf("%s  %d/%d", chain.Title, sp.Answered, sp.Total)))
		b.WriteString("\n")

		locked := 0
		for _, key := range chain.Keys {
			f, _ := g.Field(key)
			if !revealed[f.Block] {
				locked++
				continue
			}
			value := strings.TrimSpace(snap.Fields[key])
			icon := st.Muted.Render(IconOpen)
			if value != "" {
				icon = st.Pass.Render(IconAnswered)
			}
			fmt.Fprintf(&b, "  %s %s %s\n", icon, st.Muted.Render(key), st.Label.Render(f.Label))
			if value != "" {
				b.WriteString(st.Answer.Render(value) + "\n")
				b.WriteString(st.Muted.Render(fmt.Sprintf("    (%d words)", engine.WordCount(value))) + "\n")
			}
		}
		if locked > 0 {
			b.WriteString(st.Muted.Render(fmt.Sprintf("  · %d more locked", locked)) + "\n")
		}
		if contains(snap.Affordances, chain.Continue) {
			b.WriteString(st.Pass.Render("  → "+chain.Continue) + "\n")
		}
	}

	if snap.SummaryVisible || snap.Mode == synthesis.ModeExecute {
		summary := fmt.Sprintf("Anti-Vision: %s\nVision:      %s", snap.Summary.Antivision, snap.Summary.Vision)
		b.WriteString("\n" + st.Summary.Render(summary) + "\n")
	}

	if lines := reminderLines(snap.Reminders); len(lines) > 0 {
		b.WriteString(st.Section.Render("Interrupt Autopilot") + "\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	if f := snap.LastReminder; f != nil {
		b.WriteString(st.Muted.Render(fmt.Sprintf("  last reminder %s: %s", f.At.Format("Mon 15:04"), f.Question)) + "\n")
	}
	return b.String()
}

func reminderLines(slots []engine.ReminderSlot) []string {
	var lines []string
	for _, rs := range slots {
		if strings.TrimSpace(rs.Raw) == "" {
			continue
		}
		t := rs.Time
		if !rs.Valid {
			t = fmt.Sprintf("%q (unparsed)", rs.Raw)
		}
		line := fmt.Sprintf("%d. %s — %s", rs.Slot+1, t, rs.Question)
		if rs.ArmedAt != nil {
			line += fmt.Sprintf(" [next %s]", rs.ArmedAt.Format("Mon 15:04"))
		}
		lines = append(lines, line)
	}
	return lines
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
