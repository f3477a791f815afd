package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const tocHeading = "Table of Contents"

// NewMarkdownRenderer returns a GFM renderer with heading IDs. Raw HTML in
// the source is dropped.
func NewMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// RenderMarkdown converts source to HTML. Heading ids come from
// HeadingAnchor so they match the links TableOfContents writes.
func RenderMarkdown(md goldmark.Markdown, source string) (string, error) {
	var buf bytes.Buffer
	ctx := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	if err := md.Convert([]byte(source), &buf, parser.WithContext(ctx)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// headingIDs implements parser.IDs. Repeated anchors get -1, -2 suffixes.
type headingIDs struct {
	used map[string]bool
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{used: make(map[string]bool)}
}

func (s *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	return []byte(s.next(string(value), kind))
}

func (s *headingIDs) Put(value []byte) {
	s.used[string(value)] = true
}

func (s *headingIDs) next(heading string, kind ast.NodeKind) string {
	base := HeadingAnchor(heading)
	if base == "" {
		base = "id"
		if kind == ast.KindHeading {
			base = "heading"
		}
	}
	id := base
	for i := 1; s.used[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	s.used[id] = true
	return id
}

var tocParser = NewMarkdownRenderer().Parser()

// TableOfContents lists the headings of content, or returns "" when there
// are fewer than three. preceding names headings that come before content
// in the final document, so duplicate anchors are numbered the way
// RenderMarkdown numbers them.
func TableOfContents(content string, preceding ...string) string {
	ids := newHeadingIDs()
	for _, h := range preceding {
		ids.next(h, ast.KindHeading)
	}

	type entry struct {
		level  int
		text   string
		anchor string
	}
	var toc []entry
	src := []byte(content)
	doc := tocParser.Parse(text.NewReader(src), parser.WithContext(parser.NewContext(parser.WithIDs(ids))))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		var label string
		if lines := h.Lines(); lines.Len() > 0 {
			label = strings.TrimSpace(string(lines.At(lines.Len() - 1).Value(src)))
		}
		anchor, _ := h.AttributeString("id")
		id, _ := anchor.([]byte)
		toc = append(toc, entry{level: h.Level, text: label, anchor: string(id)})
		return ast.WalkSkipChildren, nil
	})
	if len(toc) < 3 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## " + tocHeading + "\n\n")
	for _, item := range toc {
		b.WriteString(strings.Repeat("  ", item.level-1))
		fmt.Fprintf(&b, "- [%s](#%s)\n", item.text, item.anchor)
	}
	b.WriteString("\n---\n\n")
	return b.String()
}
