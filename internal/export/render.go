package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/protocol/internal/errors"
)

// Format is an export encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatMarkdown, FormatHTML}

// ParseFormat accepts a format name or its file extension. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want text, markdown or html)", s))
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	}
	return ".txt"
}

// ContentType returns the MIME type for downloads.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Filename is the suggested download name, e.g. the-protocol-2026-03-02.txt.
func Filename(date time.Time, f Format) string {
	return "the-protocol-" + date.Format("2006-01-02") + f.Ext()
}

// Render encodes doc in the given format.
func Render(doc Document, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return renderText(doc), nil
	case FormatMarkdown:
		return renderMarkdown(doc)
	case FormatHTML:
		return renderHTML(doc)
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", f))
}

const (
	textWidth = 80
	ruleWidth = 78
)

var (
	doubleRule = strings.Repeat("=", textWidth)
	heavyRule  = strings.Repeat("━", ruleWidth)
	lightRule  = strings.Repeat("─", ruleWidth)
)

func center(s string) string {
	pad := (textWidth - utf8.RuneCountInString(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func displayDate(d time.Time) string {
	return d.Format("January 2, 2006")
}

func renderText(doc Document) []byte {
	var b strings.Builder
	b.WriteString(doubleRule + "\n")
	b.WriteString(center(doc.Title) + "\n")
	b.WriteString(center(displayDate(doc.Date)) + "\n")
	b.WriteString(doubleRule + "\n\n")

	b.WriteString("ANTI-VISION\n\n" + doc.Antivision + "\n\n")
	b.WriteString("VISION\n\n" + doc.Vision + "\n\n")

	for _, s := range doc.Sections {
		b.WriteString(heavyRule + "\n")
		fmt.Fprintf(&b, "SECTION %d: %s\n", s.Number, strings.ToUpper(s.Title))
		b.WriteString(heavyRule + "\n\n")
		for _, e := range s.Entries {
			if e.Answer == "" {
				b.WriteString(e.Label + "\n")
				continue
			}
			b.WriteString(e.Label + "\n\n")
			b.WriteString(e.Answer + "\n\n")
			b.WriteString(lightRule + "\n\n")
		}
		if last := s.Entries[len(s.Entries)-1]; last.Answer == "" {
			b.WriteString("\n")
		}
	}

	b.WriteString(doubleRule + "\n")
	for _, line := range doc.Footer {
		b.WriteString(line + "\n")
	}
	b.WriteString(doubleRule + "\n")
	return []byte(b.String())
}

type frontmatter struct {
	Title    string `yaml:"title"`
	Flow     string `yaml:"flow"`
	Date     string `yaml:"date"`
	Answered int    `yaml:"answered"`
}

// markdownBody is the document without frontmatter; the HTML format shares it.
func markdownBody(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "_%s_\n\n", displayDate(doc.Date))

	b.WriteString("## Anti-Vision\n\n" + quote(doc.Antivision) + "\n\n")
	b.WriteString("## Vision\n\n" + quote(doc.Vision) + "\n\n")

	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## Section %d: %s\n\n", s.Number, s.Title)
		for _, e := range s.Entries {
			if e.Answer == "" {
				fmt.Fprintf(&b, "- %s\n", e.Label)
				continue
			}
			// Quoted so no answer line can be read back as a heading.
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", e.Label, quote(e.Answer))
		}
		if last := s.Entries[len(s.Entries)-1]; last.Answer == "" {
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(quote(strings.Join(doc.Footer, "\n")) + "\n")
	return b.String()
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func renderMarkdown(doc Document) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		Title:    doc.Title,
		Flow:     doc.Flow,
		Date:     doc.Date.Format("2006-01-02"),
		Answered: doc.Answered(),
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return []byte(fmt.Sprintf("---\n%s---\n\n%s", fm, markdownBody(doc))), nil
}

var htmlPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:Georgia,serif;max-width:42rem;margin:2rem auto;padding:0 1rem;line-height:1.6;color:#1a1a1a}
h1{text-align:center;letter-spacing:.08em}
h2{border-bottom:1px solid #ccc;padding-bottom:.25rem;margin-top:2.5rem}
blockquote{border-left:3px solid #888;margin-left:0;padding-left:1rem;color:#444}
@media print{body{margin:0}h2{page-break-after:avoid}}
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

func renderHTML(doc Document) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdownBody(doc)), &body); err != nil {
		return nil, errors.NewInternal(err)
	}
	var out bytes.Buffer
	err := htmlPage.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{doc.Title, template.HTML(body.String())})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return out.Bytes(), nil
}
