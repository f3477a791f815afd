package services

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"portfolio-cms/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// MaxHTMLLength caps the HTML accepted for sanitizing and conversion.
const MaxHTMLLength = 500000

var (
	reScriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reJSScheme    = regexp.MustCompile(`(?i)javascript:`)
	reDataHTML    = regexp.MustCompile(`(?i)data:text/html`)
	reFourNewline = regexp.MustCompile(`\n{4,}`)
)

// Sanitizer cleans untrusted article HTML with an allowlist policy.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	// UGCPolicy already drops on* handlers, data-* attributes and unsafe URL
	// schemes.
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("href", "title").OnElements("a")
	p.SkipElementsContent("script", "style", "iframe", "object", "embed", "applet",
		"form", "input", "textarea", "select", "button", "noscript")
	return &Sanitizer{policy: p}
}

// SanitizeHTML returns the allowed subset of html with empty paragraph,
// div and span elements removed.
func (s *Sanitizer) SanitizeHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	if n := utf8.RuneCountInString(html); n > MaxHTMLLength {
		slog.Warn("html too large, truncating", "chars", n, "limit", MaxHTMLLength)
		html = string([]rune(html)[:MaxHTMLLength])
	}

	clean := s.policy.Sanitize(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return strings.TrimSpace(clean)
	}
	// Removing an empty child can empty its parent, so repeat until stable.
	for {
		empty := doc.Find("p:empty, div:empty, span:empty")
		if empty.Length() == 0 {
			break
		}
		empty.Remove()
	}
	out, err := doc.Find("body").Html()
	if err != nil {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(out)
}

// SanitizeURL returns the normalised URL when it uses http, https, mailto or
// tel, and "" otherwise.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		slog.Debug("rejecting url", "url", raw)
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "tel":
		return u.String()
	default:
		slog.Warn("blocked unsafe url scheme", "scheme", u.Scheme)
		return ""
	}
}

// SanitizeMarkdown removes script blocks and script-capable URLs from
// Markdown and limits runs of blank lines.
func SanitizeMarkdown(markdown string) string {
	if markdown == "" {
		return ""
	}
	md := reScriptBlock.ReplaceAllString(markdown, "")
	md = reJSScheme.ReplaceAllString(md, "")
	md = reDataHTML.ReplaceAllString(md, "")
	return reFourNewline.ReplaceAllString(md, "\n\n\n")
}

// TruncateText cuts text to maxLength characters, preferring a word boundary
// in the last 30%, and appends "...".
func TruncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	truncated := runes[:maxLength]
	lastSpace := -1
	for i, r := range truncated {
		if r == ' ' {
			lastSpace = i
		}
	}
	if float64(lastSpace) > float64(maxLength)*0.7 {
		return string(truncated[:lastSpace]) + "..."
	}
	return string(truncated) + "..."
}

// ValidationResult lists blocking errors and advisory warnings for an
// extracted article.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func ValidateArticle(article models.ArticleData) ValidationResult {
	errs := []string{}
	warnings := []string{}

	title := strings.TrimSpace(article.Title)
	switch {
	case title == "":
		errs = append(errs, "Article title is required")
	case utf8.RuneCountInString(article.Title) > 200:
		warnings = append(warnings, "Article title is very long (max 200 characters recommended)")
	}

	body := strings.TrimSpace(article.Body)
	switch {
	case body == "":
		errs = append(errs, "Article body is required")
	case len(article.Body) > 1000000:
		warnings = append(warnings, "Article body is very large (max 1MB recommended)")
	}

	if strings.TrimSpace(article.Author) == "" {
		warnings = append(warnings, "Article author is missing")
	}

	if article.OriginalURL == "" {
		warnings = append(warnings, "Article original URL is missing")
	} else if u, err := url.Parse(article.OriginalURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "Article original URL is not a valid URL")
	}

	if article.PublishDate != "" {
		if _, ok := ParseDate(article.PublishDate); !ok {
			warnings = append(warnings, "Article publish date is not a valid date")
		}
	}

	for i, img := range article.Images {
		if strings.TrimSpace(img.Src) == "" {
			warnings = append(warnings, fmt.Sprintf("Image %d is missing src attribute", i))
		}
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}
