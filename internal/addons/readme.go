package addons

import (
	"bufio"
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

// ReadmeDocument is the structured form of a plugin readme.txt.
type ReadmeDocument struct {
	Name             string            `json:"name"`
	StableTag        string            `json:"stable_tag"`
	RequiresAtLeast  string            `json:"requires_at_least"`
	TestedUpTo       string            `json:"tested_up_to"`
	RequiresPHP      string            `json:"requires_php"`
	ShortDescription string            `json:"short_description"`
	Sections         map[string]string `json:"sections"`
	// SectionOrder lists section keys in the order they appear.
	SectionOrder     []string          `json:"section_order,omitempty"`
}

// EmptyReadme returns the document used whenever a readme is unavailable.
func EmptyReadme() ReadmeDocument {
	return ReadmeDocument{Sections: map[string]string{}}
}

// IsEmpty reports whether nothing was parsed into the document.
func (d ReadmeDocument) IsEmpty() bool {
	return d.Name == "" && d.StableTag == "" && d.RequiresAtLeast == "" &&
		d.TestedUpTo == "" && d.RequiresPHP == "" && d.ShortDescription == "" &&
		len(d.Sections) == 0
}

var (
	titleLine   = regexp.MustCompile(`^===\s*(.+?)\s*===$`)
	sectionLine = regexp.MustCompile(`^==\s*([^=].*?)\s*==$`)
	headerLine  = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)\s*:\s*(.*)$`)
)

// ParseReadme parses the contents of a WordPress-style readme.txt. The
// second result is false when nothing usable was found.
func ParseReadme(contents string) (ReadmeDocument, bool) {
	doc := EmptyReadme()

	contents = strings.TrimPrefix(contents, "\ufeff")
	contents = strings.ReplaceAll(contents, "\r\n", "\n")
	contents = strings.ReplaceAll(contents, "\r", "\n")

	var (
		lines   []string
		scanner = bufio.NewScanner(strings.NewReader(contents))
	)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t"))
	}

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) {
		if m := titleLine.FindStringSubmatch(strings.TrimSpace(lines[i])); m != nil {
			doc.Name = m[1]
			i++
		}
	}

	// Header block: "Key: value" lines up to the first blank line.
	headers := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if headers > 0 {
				break
			}
			continue
		}
		m := headerLine.FindStringSubmatch(line)
		if m == nil || sectionLine.MatchString(line) {
			break
		}
		doc.setHeader(m[1], m[2])
		headers++
	}

	// Short description: free text before the first section.
	var short []string
	for ; i < len(lines); i++ {
		if sectionLine.MatchString(strings.TrimSpace(lines[i])) {
			break
		}
		if t := strings.TrimSpace(lines[i]); t != "" {
			short = append(short, t)
		}
	}
	doc.ShortDescription = strings.Join(short, " ")

	var (
		current string
		body    []string
	)
	flush := func() {
		if current == "" {
			return
		}
		if _, seen := doc.Sections[current]; !seen {
			doc.SectionOrder = append(doc.SectionOrder, current)
		}
		doc.Sections[current] = sanitizeHTML(renderSection(body))
	}
	for ; i < len(lines); i++ {
		if m := sectionLine.FindStringSubmatch(strings.TrimSpace(lines[i])); m != nil {
			flush()
			current = sectionKey(m[1])
			body = body[:0]
			continue
		}
		body = append(body, lines[i])
	}
	flush()

	if doc.IsEmpty() {
		return EmptyReadme(), false
	}
	return doc, true
}

func (d *ReadmeDocument) setHeader(key, value string) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "stable tag":
		d.StableTag = value
	case "requires at least":
		d.RequiresAtLeast = value
	case "tested up to":
		d.TestedUpTo = value
	case "requires php":
		d.RequiresPHP = value
	}
}

func sectionKey(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "_")
}

// subHeadingLine matches "= Heading =" lines inside a section.
var subHeadingLine = regexp.MustCompile(`^=\s*(.+?)\s*=$`)

// sectionMarkdown renders section bodies. Raw HTML parsers are left out so
// tag-like text such as "<title>" is escaped instead of passed through.
var sectionMarkdown = goldmark.New(goldmark.WithParser(parser.NewParser(
	parser.WithBlockParsers(
		util.Prioritized(parser.NewSetextHeadingParser(), 100),
		util.Prioritized(parser.NewThematicBreakParser(), 200),
		util.Prioritized(parser.NewListParser(), 300),
		util.Prioritized(parser.NewListItemParser(), 400),
		util.Prioritized(parser.NewCodeBlockParser(), 500),
		util.Prioritized(parser.NewATXHeadingParser(), 600),
		util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
		util.Prioritized(parser.NewBlockquoteParser(), 800),
		util.Prioritized(parser.NewParagraphParser(), 1000),
	),
	parser.WithInlineParsers(
		util.Prioritized(parser.NewCodeSpanParser(), 100),
		util.Prioritized(parser.NewLinkParser(), 200),
		util.Prioritized(parser.NewAutoLinkParser(), 300),
		util.Prioritized(parser.NewEmphasisParser(), 500),
	),
	parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
)))

// renderSection converts a section body to HTML. "= x =" sub-headings
// become level 4 headings, everything else is Markdown.
func renderSection(lines []string) string {
	src := make([]string, 0, len(lines))
	for _, line := range lines {
		if m := subHeadingLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			line = "#### " + m[1]
		}
		src = append(src, line)
	}

	var out bytes.Buffer
	if err := sectionMarkdown.Convert([]byte(strings.Join(src, "\n")), &out); err != nil {
		return html.EscapeString(strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(out.String())
}
