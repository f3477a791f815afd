package services

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"portfolio-cms/pkg/models"
)

const wordsPerMinute = 200

var (
	reExcessNewlines = regexp.MustCompile(`\n{3,}`)
	reTrailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
	reBrokenImg      = regexp.MustCompile(`<img([^>]+)style="([^"]*)"([^>]*)/?> *</img>`)
	reImgTag         = regexp.MustCompile(`\n*<img([^>]+)>\n*`)
	reSpanTag        = regexp.MustCompile(`</?span[^>]*>`)
	reDivTag         = regexp.MustCompile(`</?div[^>]*>`)
	reStarRun        = regexp.MustCompile(`\*{3,}`)

	reHeadingMark = regexp.MustCompile(`#{1,6}\s*`)
	reBold        = regexp.MustCompile(`\*\*(.*?)\*\*`)
	reItalic      = regexp.MustCompile(`\*(.*?)\*`)
	reImage       = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	reLink        = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	reHTMLTag     = regexp.MustCompile(`<[^>]*>`)
	reNewlines    = regexp.MustCompile(`\n+`)

	reAnchorStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	reHyphenRun    = regexp.MustCompile(`-+`)
	categoryChecks = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"Design", regexp.MustCompile(`\b(design|ux|ui)\b`)},
		{"Product", regexp.MustCompile(`\b(product|strategy)\b`)},
		{"AI & Technology", regexp.MustCompile(`\b(ai|artificial intelligence|machine learning)\b`)},
		{"Leadership", regexp.MustCompile(`\b(leadership|team|management)\b`)},
		{"Career", regexp.MustCompile(`\b(career|job|professional)\b`)},
	}
)

// PostProcessMarkdown tidies converter output: line endings, trailing
// whitespace, leftover layout tags, stray emphasis runs and blank lines.
func PostProcessMarkdown(markdown string) string {
	md := normalizeLineEndings(markdown)
	md = reExcessNewlines.ReplaceAllString(md, "\n\n")
	md = reTrailingSpace.ReplaceAllString(md, "")
	md = reBrokenImg.ReplaceAllString(md, `<img${1}style="${2}"${3}/>`)
	md = reImgTag.ReplaceAllString(md, "\n\n<img${1}>\n\n")
	md = reSpanTag.ReplaceAllString(md, "")
	md = reDivTag.ReplaceAllString(md, "")
	md = reStarRun.ReplaceAllString(md, "**")
	md = reExcessNewlines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// PlainText strips Markdown and HTML formatting and folds newlines.
func PlainText(md string) string {
	text := reHeadingMark.ReplaceAllString(md, "")
	text = reBold.ReplaceAllString(text, "$1")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reImage.ReplaceAllString(text, "")
	text = reLink.ReplaceAllString(text, "$1")
	text = reHTMLTag.ReplaceAllString(text, "")
	text = reNewlines.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SmartExcerpt returns at most maxLength characters of plain text, cut at a
// sentence end when one falls in the last 30%, otherwise at a word boundary.
func SmartExcerpt(content string, maxLength int) string {
	plain := []rune(PlainText(content))
	if len(plain) <= maxLength {
		return string(plain)
	}

	truncated := plain[:maxLength]
	lastSentenceEnd := -1
	for i, r := range truncated {
		if r == '.' || r == '!' || r == '?' {
			lastSentenceEnd = i
		}
	}
	if float64(lastSentenceEnd) > float64(maxLength)*0.7 {
		return string(truncated[:lastSentenceEnd+1])
	}

	lastSpace := -1
	for i, r := range truncated {
		if r == ' ' {
			lastSpace = i
		}
	}
	if lastSpace > 0 {
		return string(truncated[:lastSpace]) + "..."
	}
	return string(truncated) + "..."
}

// ReadingMinutes estimates reading time at 200 words per minute, at least 1.
func ReadingMinutes(content string) int {
	words := len(strings.Fields(PlainText(content)))
	return int(math.Max(1, math.Ceil(float64(words)/wordsPerMinute)))
}

// ReadingTime formats ReadingMinutes as "N min read".
func ReadingTime(content string) string {
	return fmt.Sprintf("%d min read", ReadingMinutes(content))
}

// HeadingAnchor turns heading text into a fragment identifier.
func HeadingAnchor(text string) string {
	anchor := reAnchorStrip.ReplaceAllString(strings.ToLower(text), "")
	anchor = reWhitespace.ReplaceAllString(anchor, "-")
	anchor = reHyphenRun.ReplaceAllString(anchor, "-")
	return strings.Trim(anchor, "-")
}

// DetectCategory picks a category from keywords in the content, falling back
// to the first tag and then to "Article".
func DetectCategory(content string, tags []string) string {
	lower := strings.ToLower(content)
	for _, check := range categoryChecks {
		if check.re.MatchString(lower) {
			return check.name
		}
	}
	if len(tags) > 0 {
		return tags[0]
	}
	return "Article"
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate accepts the date formats seen in page metadata and frontmatter.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type articleFrontMatter struct {
	Title       string   `yaml:"title"`
	Author      string   `yaml:"author"`
	PublishDate string   `yaml:"publishDate"`
	Date        string   `yaml:"date"`
	ReadingTime string   `yaml:"readingTime"`
	Excerpt     string   `yaml:"excerpt"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags,flow"`
	OriginalURL string   `yaml:"originalUrl"`
}

// GenerateMarkdown renders an extracted article as a Markdown document with
// YAML frontmatter, a byline, an optional table of contents and a link back
// to the original.
func GenerateMarkdown(article models.ArticleData) (string, error) {
	published, ok := ParseDate(article.PublishDate)
	if !ok {
		published = time.Now()
	}
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}

	body := PostProcessMarkdown(article.Body)
	readingTime := ReadingTime(body)

	fm, err := encodeYAMLBlock(articleFrontMatter{
		Title:       article.Title,
		Author:      article.Author,
		PublishDate: published.Format("02/01/2006"),
		Date:        published.Format("02/01/2006"),
		ReadingTime: readingTime,
		Excerpt:     SmartExcerpt(body, 200),
		Category:    DetectCategory(body, tags),
		Tags:        tags,
		OriginalURL: article.OriginalURL,
	})
	if err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString(fm)
	b.WriteString("\n")
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	fmt.Fprintf(&b, "*By %s | %s | %s*\n\n", article.Author, published.Format("January 2, 2006"), readingTime)
	if len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = "`" + t + "`"
		}
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(quoted, " "))
	}
	b.WriteString("---\n\n")
	b.WriteString(TableOfContents(body, article.Title, tocHeading))
	b.WriteString(body)
	b.WriteString("\n")
	if article.OriginalURL != "" {
		fmt.Fprintf(&b, "\n---\n\n*Originally published on %s. [View original](%s)*\n", sourceName(article.OriginalURL), article.OriginalURL)
	}
	return b.String(), nil
}

func sourceName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "the web"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if strings.Contains(host, "linkedin.") {
		return "LinkedIn"
	}
	return host
}
