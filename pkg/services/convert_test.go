package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!doctype html>
<html><head>
<title>Page Title | Site</title>
<meta property="og:title" content="Shipping Product Strategy">
<meta name="author" content="Jane Doe">
<meta property="article:published_time" content="2024-03-05T10:00:00Z">
<meta property="article:tag" content="Product">
<meta name="keywords" content="product, Roadmaps">
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Shipping Product Strategy</h1>
<p>Good product strategy starts with a clear problem statement. Teams that write the problem down before
they write any code spend less time arguing about solutions and more time testing them with customers.</p>
<h2>Start with outcomes</h2>
<p>An outcome is a change in customer behaviour that you can observe. Features are only a bet on an outcome,
and a roadmap made of bets should say so plainly. When a bet fails, the outcome is still worth chasing.</p>
<h2>Measure what matters</h2>
<p>Pick one metric per outcome and review it every week. If the metric does not move after a few releases,
revisit the bet rather than shipping more of the same. <a href="https://example.com/more">Read more</a>.</p>
<img src="https://example.com/chart.png" alt="Chart">
<script>alert("x")</script>
</article>
<footer>Copyright</footer>
</body></html>`

func TestConvert(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert(context.Background(), ConvertInput{
		HTML: articlePage,
		URL:  "https://example.com/posts/strategy",
	})
	require.NoError(t, err)

	a := res.Article
	assert.Equal(t, "Shipping Product Strategy", a.Title)
	assert.Equal(t, "Jane Doe", a.Author)
	assert.Equal(t, "2024-03-05T10:00:00Z", a.PublishDate)
	assert.Equal(t, []string{"Product", "Roadmaps"}, a.Tags)
	assert.Equal(t, "shipping-product-strategy", a.Slug)
	assert.Equal(t, "https://example.com/posts/strategy", a.OriginalURL)
	assert.Contains(t, a.Body, "problem statement")
	assert.NotContains(t, a.Body, "alert")

	assert.True(t, res.Validation.Valid)
	assert.True(t, strings.HasPrefix(res.Markdown, "---\n"))
	assert.Contains(t, res.Markdown, "# Shipping Product Strategy")
	assert.Contains(t, res.Markdown, "*By Jane Doe | March 5, 2024 |")
	assert.Contains(t, res.Markdown, "Originally published on example.com")
	assert.NotContains(t, res.Markdown, "<script")
}

func TestConvert_InputOverridesMetadata(t *testing.T) {
	res, err := NewConverter(nil).Convert(context.Background(), ConvertInput{
		HTML:   articlePage,
		URL:    "https://example.com/posts/strategy",
		Title:  "Custom Title",
		Author: "Someone Else",
		Tags:   []string{"Design"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom Title", res.Article.Title)
	assert.Equal(t, "Someone Else", res.Article.Author)
	assert.Equal(t, []string{"Design"}, res.Article.Tags)
	assert.Equal(t, "custom-title", res.Article.Slug)
}

func TestConvert_FallsBackForShortPages(t *testing.T) {
	page := `<html><head><title>Tiny</title></head><body><main><p>Just a short note.</p></main></body></html>`
	res, err := NewConverter(nil).Convert(context.Background(), ConvertInput{HTML: page})
	require.NoError(t, err)
	assert.Equal(t, "Tiny", res.Article.Title)
	assert.Contains(t, res.Article.Body, "Just a short note.")
	assert.Contains(t, res.Validation.Warnings, "Article original URL is missing")
}

func TestConvert_EmptyDocument(t *testing.T) {
	c := NewConverter(nil)
	_, err := c.Convert(context.Background(), ConvertInput{HTML: "  "})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = c.Convert(context.Background(), ConvertInput{HTML: "<html><body><script>x()</script></body></html>"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConverter(nil).Convert(ctx, ConvertInput{HTML: articlePage})
	assert.ErrorIs(t, err, context.Canceled)
}
