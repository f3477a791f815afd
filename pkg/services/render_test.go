package services

import (
	"strings"
	"testing"

	"portfolio-cms/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown_TOCLinksResolve(t *testing.T) {
	body := strings.Join([]string{
		"## AI & Technology",
		"Text.",
		"## Overview",
		"More.",
		"### Overview",
		"Nested.",
		"## C++ / Go: a comparison",
		"## 日本語",
		"Done.",
	}, "\n")
	out, err := GenerateMarkdown(models.ArticleData{Title: "Overview", Author: "Jane", Body: body})
	require.NoError(t, err)
	_, source, _, err := ParseFrontMatter([]byte(out))
	require.NoError(t, err)

	html, err := RenderMarkdown(NewMarkdownRenderer(), source)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	ids := map[string]bool{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		require.True(t, ok, "heading %q has no id", s.Text())
		assert.False(t, ids[id], "duplicate id %q", id)
		ids[id] = true
	})

	links := doc.Find(`a[href^="#"]`)
	require.Equal(t, 5, links.Length())
	links.Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		assert.True(t, ids[strings.TrimPrefix(href, "#")], "TOC link %s has no target", href)
	})
	assert.Contains(t, html, `id="ai-technology"`)
	assert.Contains(t, html, `href="#overview-1"`)
}

func TestHeadingIDs(t *testing.T) {
	ids := newHeadingIDs()
	assert.Equal(t, "a-b", string(ids.Generate([]byte(" A & B "), 0)))
	assert.Equal(t, "a-b-1", string(ids.Generate([]byte("A B"), 0)))
	ids.Put([]byte("x"))
	assert.Equal(t, "x-1", string(ids.Generate([]byte("x"), 0)))
	assert.Equal(t, "id", string(ids.Generate([]byte("!!!"), 0)))
}
