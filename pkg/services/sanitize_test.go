package services

import (
	"strings"
	"testing"

	"portfolio-cms/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTML(t *testing.T) {
	s := NewSanitizer()
	in := `<p onclick="steal()">Hi <script>alert(1)</script>` +
		`<a href="javascript:alert(2)">bad</a> <a href="https://ok.example">ok</a></p>` +
		`<p></p><p><span></span></p><style>p{}</style><iframe src="https://x.example"></iframe>` +
		`<img src="https://img.example/a.png" alt="A" onerror="x()">`
	out := s.SanitizeHTML(in)

	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "iframe")
	assert.NotContains(t, out, "p{}")
	assert.NotContains(t, out, "<p></p>")
	assert.Contains(t, out, `href="https://ok.example"`)
	assert.Contains(t, out, `src="https://img.example/a.png"`)
	assert.Contains(t, out, "Hi")
}

func TestSanitizeHTML_Empty(t *testing.T) {
	assert.Equal(t, "", NewSanitizer().SanitizeHTML("   "))
}

func TestSanitizeHTML_TruncatesHugeInput(t *testing.T) {
	in := "<p>" + strings.Repeat("a", MaxHTMLLength+1000) + "</p>"
	out := NewSanitizer().SanitizeHTML(in)
	assert.LessOrEqual(t, len(out), MaxHTMLLength+len("<p></p>"))
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a?b=1", "https://example.com/a?b=1"},
		{"  http://example.com  ", "http://example.com"},
		{"mailto:a@b.example", "mailto:a@b.example"},
		{"tel:+123", "tel:+123"},
		{"javascript:alert(1)", ""},
		{"data:text/html,<b>x</b>", ""},
		{"/relative/path", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestSanitizeMarkdown(t *testing.T) {
	in := "a<script>x</script>b [l](javascript:alert(1))\n\n\n\n\nc ![i](data:text/html;base64,xx)"
	assert.Equal(t, "ab [l](alert(1))\n\n\nc ![i](;base64,xx)", SanitizeMarkdown(in))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "hello world...", TruncateText("hello world foo bar", 15))
	assert.Equal(t, "abcdefghij...", TruncateText("abcdefghijklmnop", 10))
}

func TestValidateArticle(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		res := ValidateArticle(models.ArticleData{})
		assert.False(t, res.Valid)
		assert.Contains(t, res.Errors, "Article title is required")
		assert.Contains(t, res.Errors, "Article body is required")
		assert.Contains(t, res.Warnings, "Article author is missing")
	})

	t.Run("bad url and image", func(t *testing.T) {
		res := ValidateArticle(models.ArticleData{
			Title:       "T",
			Body:        "B",
			Author:      "A",
			OriginalURL: "not a url",
			PublishDate: "someday",
			Images:      []models.Image{{Src: ""}},
		})
		assert.False(t, res.Valid)
		assert.Equal(t, []string{"Article original URL is not a valid URL"}, res.Errors)
		assert.Contains(t, res.Warnings, "Article publish date is not a valid date")
		assert.Contains(t, res.Warnings, "Image 0 is missing src attribute")
	})

	t.Run("valid", func(t *testing.T) {
		res := ValidateArticle(models.ArticleData{
			Title:       strings.Repeat("t", 201),
			Body:        "B",
			Author:      "A",
			OriginalURL: "https://example.com/post",
		})
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
		assert.Len(t, res.Warnings, 1)
	})
}
