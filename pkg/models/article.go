package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ReadingTime is a reading estimate in whole minutes. It accepts a number or
// a string such as "5 min read" on input and always encodes as a number.
type ReadingTime int

func (r *ReadingTime) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*r = ReadingTime(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*r = 0
		return nil
	}
	*r = ReadingTime(ParseMinutes(s))
	return nil
}

// ParseMinutes returns the leading integer of s, or 0.
func ParseMinutes(s string) int {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// DraftMetadata is the JSON sidecar stored next to every draft.
type DraftMetadata struct {
	Title            string      `json:"title"`
	Slug             string      `json:"slug"`
	Date             string      `json:"date,omitempty"`
	Excerpt          string      `json:"excerpt"`
	Tags             []string    `json:"tags"`
	Author           string      `json:"author"`
	AuthorProfileURL string      `json:"authorProfileUrl"`
	OriginalURL      string      `json:"originalUrl"`
	PublishDate      string      `json:"publishDate,omitempty"`
	ImportedAt       string      `json:"importedAt"`
	ReadingTime      ReadingTime `json:"readingTime,omitempty"`
	Category         string      `json:"category,omitempty"`
	Featured         bool        `json:"featured"`
	Thumbnail        string      `json:"thumbnail,omitempty"`
	LocalPath        string      `json:"localPath"`
	Status           string      `json:"status"`
}

// Draft is a draft's metadata plus its Markdown. Markdown is nil when the
// .md file is missing.
type Draft struct {
	DraftMetadata
	Markdown *string `json:"markdown"`
}

// PublishedArticle is the public view of a published article.
type PublishedArticle struct {
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Excerpt     string      `json:"excerpt"`
	Date        string      `json:"date"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags"`
	Status      string      `json:"status"`
	ReadingTime ReadingTime `json:"readingTime"`
	Featured    bool        `json:"featured"`
	Thumbnail   string      `json:"thumbnail,omitempty"`
	LocalPath   string      `json:"localPath,omitempty"`
	Markdown    string      `json:"markdown,omitempty"`
	HTML        string      `json:"html,omitempty"`
}

// ImportResult is returned after a draft import.
type ImportResult struct {
	Slug      string `json:"slug"`
	URL       string `json:"url"`
	LocalPath string `json:"localPath"`
}

// SaveRequest carries a full Markdown document from the editor.
type SaveRequest struct {
	Content      string `json:"content"`
	Filename     string `json:"filename"`
	IsEdit       bool   `json:"isEdit"`
	OriginalSlug string `json:"originalSlug"`
}

// Image is an image referenced by an article body.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ArticleData is an article extracted from a web page, before it becomes a
// Markdown document.
type ArticleData struct {
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	AuthorProfileURL string   `json:"authorProfileUrl"`
	PublishDate      string   `json:"publishDate"`
	ReadingTime      string   `json:"readingTime"`
	Body             string   `json:"body"`
	Images           []Image  `json:"images"`
	Tags             []string `json:"tags"`
	Slug             string   `json:"slug"`
	OriginalURL      string   `json:"originalUrl"`
}
