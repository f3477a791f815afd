package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"portfolio-cms/pkg/models"

	"codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// ErrEmptyDocument is returned when a page has no content worth converting.
var ErrEmptyDocument = errors.New("document has no convertible content")

// minReadableLength is the shortest readability output trusted over the
// structural fallbacks.
const minReadableLength = 200

// ConvertInput is a captured web page. Non-empty optional fields override
// what is found in the page metadata.
type ConvertInput struct {
	HTML        string   `json:"html"`
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Author      string   `json:"author,omitempty"`
	PublishDate string   `json:"publishDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ConvertResult struct {
	Article    models.ArticleData `json:"article"`
	Markdown   string             `json:"markdown"`
	Validation ValidationResult   `json:"validation"`
}

// Converter turns captured article HTML into a Markdown document.
type Converter struct {
	sanitizer *Sanitizer
}

func NewConverter(s *Sanitizer) *Converter {
	if s == nil {
		s = NewSanitizer()
	}
	return &Converter{sanitizer: s}
}

func (c *Converter) Convert(ctx context.Context, in ConvertInput) (*ConvertResult, error) {
	if strings.TrimSpace(in.HTML) == "" {
		return nil, ErrEmptyDocument
	}
	raw := in.HTML
	if utf8.RuneCountInString(raw) > MaxHTMLLength {
		raw = string([]rune(raw)[:MaxHTMLLength])
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var pageURL *url.URL
	if u, err := url.Parse(SanitizeURL(in.URL)); err == nil && u.Host != "" {
		pageURL = u
	}
	article := extractMetadata(doc)
	article.OriginalURL = SanitizeURL(in.URL)
	if in.Title != "" {
		article.Title = strings.TrimSpace(in.Title)
	}
	if in.Author != "" {
		article.Author = strings.TrimSpace(in.Author)
	}
	if in.PublishDate != "" {
		article.PublishDate = in.PublishDate
	}
	if len(in.Tags) > 0 {
		article.Tags = in.Tags
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := mainContent(raw, doc, pageURL)
	clean := c.sanitizer.SanitizeHTML(content)
	if strings.TrimSpace(clean) == "" {
		return nil, ErrEmptyDocument
	}
	article.Images = collectImages(clean)

	var opts []converter.ConvertOptionFunc
	if pageURL != nil {
		opts = append(opts, converter.WithDomain(pageURL.Scheme+"://"+pageURL.Host))
	}
	md, err := htmltomarkdown.ConvertString(clean, opts...)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	article.Body = SanitizeMarkdown(md)
	if strings.TrimSpace(article.Body) == "" {
		return nil, ErrEmptyDocument
	}
	article.ReadingTime = ReadingTime(article.Body)
	article.Slug = GenerateSlug(article.Title)

	validation := ValidateArticle(article)
	if !validation.Valid {
		slog.Warn("converted article failed validation", "url", article.OriginalURL, "errors", validation.Errors)
		return &ConvertResult{Article: article, Validation: validation}, nil
	}

	out, err := GenerateMarkdown(article)
	if err != nil {
		return nil, err
	}
	return &ConvertResult{Article: article, Markdown: out, Validation: validation}, nil
}

func extractMetadata(doc *goquery.Document) models.ArticleData {
	meta := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	var a models.ArticleData
	a.Title = meta(`meta[property="og:title"]`)
	if a.Title == "" {
		a.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if a.Title == "" {
		a.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	a.Author = meta(`meta[name="author"]`, `meta[property="article:author"]`)

	a.PublishDate = meta(`meta[property="article:published_time"]`)
	if a.PublishDate == "" {
		if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			a.PublishDate = strings.TrimSpace(v)
		}
	}

	seen := map[string]bool{}
	addTag := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			return
		}
		seen[strings.ToLower(tag)] = true
		a.Tags = append(a.Tags, tag)
	}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		addTag(s.AttrOr("content", ""))
	})
	for _, kw := range strings.Split(meta(`meta[name="keywords"]`), ",") {
		addTag(kw)
	}
	return a
}

// mainContent prefers readability's extraction and falls back to the
// article, main and body elements in that order.
func mainContent(raw string, doc *goquery.Document, pageURL *url.URL) string {
	if art, err := readability.FromReader(strings.NewReader(raw), pageURL); err == nil {
		var text strings.Builder
		if err := art.RenderText(&text); err == nil && len(strings.TrimSpace(text.String())) >= minReadableLength {
			var html strings.Builder
			if err := art.RenderHTML(&html); err == nil && strings.TrimSpace(html.String()) != "" {
				return html.String()
			}
		}
	} else {
		slog.Debug("readability extraction failed", "error", err)
	}

	for _, sel := range []string{"article", "main", "body"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if html, err := s.Html(); err == nil && strings.TrimSpace(s.Text()) != "" {
				return html
			}
		}
	}
	return ""
}

func collectImages(html string) []models.Image {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	images := []models.Image{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		images = append(images, models.Image{
			Src: s.AttrOr("src", ""),
			Alt: s.AttrOr("alt", ""),
		})
	})
	return images
}
