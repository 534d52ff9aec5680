package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// Imported holds the field values recovered from a markdown export.
type Imported struct {
	Flow   string            `json:"flow,omitempty"`
	Date   string            `json:"date,omitempty"`
	Values map[string]string `json:"values"`
}

// Keys returns the recovered keys, sorted.
func (im Imported) Keys() []string {
	keys := make([]string, 0, len(im.Values))
	for k := range im.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	headerPattern  = regexp.MustCompile(`(?m)^(#{1,6})\s+([^\n]+?)[ \t]*$`)
	sectionPattern = regexp.MustCompile(`^Section \d+: (.+)$`)
	fencePattern   = regexp.MustCompile("(?m)^[ \t]*(```|~~~)")
)

type heading struct {
	start, end int // span of the heading line
	level      int
	text       string
}

// ParseMarkdown recovers field values from a document produced by the
// markdown format. Answers are blockquoted there, and only headings the
// graph would emit are treated as boundaries. Statement placeholders and the
// footer are skipped.
func ParseMarkdown(g *flow.Graph, data []byte) (Imported, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	im := Imported{Values: map[string]string{}}

	body, fm, err := splitFrontmatter(text)
	if err != nil {
		return Imported{}, err
	}
	if fm.Flow != "" && fm.Flow != g.Name() {
		return Imported{}, errors.NewInvalidRequest(
			fmt.Sprintf("document belongs to flow %q, session uses %q", fm.Flow, g.Name()))
	}
	im.Flow, im.Date = fm.Flow, fm.Date

	if idx := strings.LastIndex(body, "\n---\n"); idx >= 0 {
		body = body[:idx+1]
	}

	labels := labelIndex(g)
	slots := map[string]string{}
	for i, q := range g.ReminderQuestions() {
		slots[q] = g.SlotKey(i)
	}

	headings := scanHeadings(body, labels)
	if len(headings) == 0 {
		return Imported{}, errors.NewInvalidRequest("no recognizable sections in document")
	}

	var inInterrupts bool
	for i, h := range headings {
		end := len(body)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		content := strings.TrimSpace(body[h.end:end])

		switch {
		case h.level == 1:
		case h.level == 2 && h.text == "Anti-Vision":
			setStatement(im.Values, g.Tap(flow.ChannelAntivision), content)
		case h.level == 2 && h.text == "Vision":
			setStatement(im.Values, g.Tap(flow.ChannelVision), content)
		case h.level == 2:
			title := sectionPattern.FindStringSubmatch(h.text)[1]
			inInterrupts = title == InterruptsTitle
			if inInterrupts {
				parseReminderLines(im.Values, slots, content)
			}
		case h.level == 3 && !inInterrupts:
			if v := unquote(content); v != "" {
				im.Values[labels[h.text]] = v
			}
		}
	}
	return im, nil
}

func splitFrontmatter(text string) (string, frontmatter, error) {
	var fm frontmatter
	if !strings.HasPrefix(text, "---\n") {
		return text, fm, nil
	}
	end := strings.Index(text[4:], "\n---\n")
	if end < 0 {
		return "", fm, errors.NewInvalidRequest("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(text[4:4+end+1]), &fm); err != nil {
		return "", fm, errors.NewInvalidRequest(fmt.Sprintf("invalid frontmatter: %v", err))
	}
	return text[4+end+5:], fm, nil
}

// labelIndex maps the printed label of every exported answer to its key.
func labelIndex(g *flow.Graph) map[string]string {
	out := map[string]string{}
	for _, chain := range g.Chains() {
		for _, key := range chain.Keys {
			f, ok := g.Field(key)
			if !ok || f.Section == flow.SectionFinal {
				continue
			}
			out[f.Label] = key
		}
	}
	return out
}

// scanHeadings returns the boundary headings outside fenced code blocks.
func scanHeadings(body string, labels map[string]string) []heading {
	fences := fencedRanges(body)
	var out []heading
	for _, m := range headerPattern.FindAllStringSubmatchIndex(body, -1) {
		if insideFence(m[0], fences) {
			continue
		}
		h := heading{start: m[0], end: m[1], level: m[3] - m[2], text: body[m[4]:m[5]]}
		if recognized(h, labels) {
			out = append(out, h)
		}
	}
	return out
}

func recognized(h heading, labels map[string]string) bool {
	switch h.level {
	case 1:
		return true
	case 2:
		return h.text == "Anti-Vision" || h.text == "Vision" || sectionPattern.MatchString(h.text)
	case 3:
		_, ok := labels[h.text]
		return ok
	}
	return false
}

// fencedRanges returns [start, end) byte ranges of fenced code blocks. An
// unclosed fence runs to the end of the text.
func fencedRanges(text string) [][2]int {
	locs := fencePattern.FindAllStringSubmatchIndex(text, -1)
	var ranges [][2]int
	for i := 0; i < len(locs); i++ {
		open := text[locs[i][2]:locs[i][3]]
		start := locs[i][0]
		closed := false
		for j := i + 1; j < len(locs); j++ {
			if text[locs[j][2]:locs[j][3]] == open {
				ranges = append(ranges, [2]int{start, locs[j][1]})
				i = j
				closed = true
				break
			}
		}
		if !closed {
			ranges = append(ranges, [2]int{start, len(text)})
			break
		}
	}
	return ranges
}

func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func setStatement(values map[string]string, key, content string) {
	v := unquote(content)
	if v == "" || v == synthesis.Placeholder {
		return
	}
	values[key] = v
}

// unquote strips one level of blockquote. Content with any unquoted line was
// written by hand and is kept as is.
func unquote(content string) string {
	lines := strings.Split(content, "\n")
	for _, l := range lines {
		if l != "" && !strings.HasPrefix(l, ">") {
			return strings.TrimSpace(content)
		}
	}
	for i, l := range lines {
		l = strings.TrimPrefix(l, ">")
		lines[i] = strings.TrimPrefix(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// parseReminderLines reads "- <time> — <question>" list items.
func parseReminderLines(values map[string]string, slots map[string]string, content string) {
	for _, line := range strings.Split(content, "\n") {
		item, ok := strings.CutPrefix(strings.TrimSpace(line), "- ")
		if !ok {
			continue
		}
		t, question, ok := strings.Cut(item, " — ")
		if !ok {
			continue
		}
		if key, ok := slots[strings.TrimSpace(question)]; ok && strings.TrimSpace(t) != "" {
			values[key] = strings.TrimSpace(t)
		}
	}
}
