package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"

	"github.com/yuin/goldmark"
)

const (
	publishedPrefix = "articles"
	draftsPrefix    = "articles/drafts"

	// isoMillis matches JavaScript's Date.toISOString output.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"

	defaultReadingMinutes = 5
)

var (
	// ErrNotFound is storage.ErrNotFound, re-exported for handlers.
	ErrNotFound      = storage.ErrNotFound
	ErrInvalidStatus = errors.New("status must be draft or published")
	ErrEmptyContent  = errors.New("content is required")
)

type ArticleOptions struct {
	DefaultAuthor string
	// Concurrency bounds parallel reads while building the published listing.
	Concurrency int
}

// ArticleStore manages imported drafts and published articles.
type ArticleStore struct {
	store    storage.Store
	opts     ArticleOptions
	cache    publishedCache
	markdown goldmark.Markdown
}

func NewArticleStore(store storage.Store, opts ArticleOptions) *ArticleStore {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 20
	}
	return &ArticleStore{
		store:    store,
		opts:     opts,
		markdown: NewMarkdownRenderer(),
	}
}

func draftKey(slug, ext string) string { return draftsPrefix + "/" + slug + ext }

func publishedKey(slug string) string { return publishedPrefix + "/" + slug + ".md" }

func nowISO() string { return time.Now().UTC().Format(isoMillis) }

// InvalidateCache drops the published listing so the next read rebuilds it.
func (s *ArticleStore) InvalidateCache() { s.cache.invalidate() }

// Import stores an uploaded Markdown file and its metadata as a draft.
func (s *ArticleStore) Import(ctx context.Context, meta models.DraftMetadata, markdown []byte) (*models.ImportResult, error) {
	slug, err := resolveSlug(meta.Slug, meta.Title)
	if err != nil {
		return nil, err
	}
	filename := SanitizeFilename(slug + ".md")

	meta.Slug = slug
	meta.LocalPath = draftsPrefix + "/" + filename
	meta.Status = models.StatusDraft
	if meta.ImportedAt == "" {
		meta.ImportedAt = nowISO()
	}
	if meta.Author == "" {
		meta.Author = s.opts.DefaultAuthor
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	mdKey := draftsPrefix + "/" + filename
	if err := s.store.Write(ctx, mdKey, markdown); err != nil {
		return nil, fmt.Errorf("write draft markdown: %w", err)
	}
	if err := s.writeMetadata(ctx, meta); err != nil {
		return nil, err
	}
	slog.Info("draft imported", "slug", slug, "title", meta.Title)

	return &models.ImportResult{
		Slug:      slug,
		URL:       "/articles/drafts/" + filename,
		LocalPath: s.store.Location(mdKey),
	}, nil
}

func (s *ArticleStore) writeMetadata(ctx context.Context, meta models.DraftMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode draft metadata: %w", err)
	}
	if err := s.store.Write(ctx, draftKey(meta.Slug, ".json"), data); err != nil {
		return fmt.Errorf("write draft metadata: %w", err)
	}
	return nil
}

func (s *ArticleStore) readMetadata(ctx context.Context, slug string) (models.DraftMetadata, error) {
	var meta models.DraftMetadata
	if !ValidSlug(slug) {
		return meta, fmt.Errorf("draft %q: %w", slug, ErrNotFound)
	}
	data, err := s.store.Read(ctx, draftKey(slug, ".json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode draft metadata %s: %w", slug, err)
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return meta, nil
}

// ListDrafts returns every draft's metadata, newest import first.
func (s *ArticleStore) ListDrafts(ctx context.Context) ([]models.DraftMetadata, error) {
	entries, err := s.store.List(ctx, draftsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	drafts := []models.DraftMetadata{}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		data, err := s.store.Read(ctx, e.Key)
		if err != nil {
			slog.Warn("skipping unreadable draft", "key", e.Key, "error", err)
			continue
		}
		var meta models.DraftMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Warn("skipping malformed draft metadata", "key", e.Key, "error", err)
			continue
		}
		if meta.Tags == nil {
			meta.Tags = []string{}
		}
		drafts = append(drafts, meta)
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		ti, _ := ParseDate(drafts[i].ImportedAt)
		tj, _ := ParseDate(drafts[j].ImportedAt)
		return ti.After(tj)
	})
	return drafts, nil
}

func (s *ArticleStore) GetDraft(ctx context.Context, slug string) (*models.Draft, error) {
	meta, err := s.readMetadata(ctx, slug)
	if err != nil {
		return nil, err
	}
	draft := &models.Draft{DraftMetadata: meta}
	data, err := s.store.Read(ctx, draftKey(slug, ".md"))
	switch {
	case err == nil:
		md := string(data)
		draft.Markdown = &md
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}
	return draft, nil
}

type publishFrontMatter struct {
	Title     string `yaml:"title"`
	Excerpt   string `yaml:"excerpt"`
	Date      string `yaml:"date"`
	Category  string `yaml:"category"`
	Status    string `yaml:"status"`
	Featured  bool   `yaml:"featured"`
	ReadTime  int    `yaml:"readTime"`
	Thumbnail string `yaml:"thumbnail"`
}

// UpdateDraftStatus sets a draft's status. Publishing moves the draft into
// the published articles with fresh frontmatter and removes both draft files.
func (s *ArticleStore) UpdateDraftStatus(ctx context.Context, slug, status string) error {
	if status != models.StatusDraft && status != models.StatusPublished {
		return ErrInvalidStatus
	}
	meta, err := s.readMetadata(ctx, slug)
	if err != nil {
		return err
	}

	if status == models.StatusDraft {
		meta.Status = status
		return s.writeMetadata(ctx, meta)
	}

	markdown, err := s.store.Read(ctx, draftKey(slug, ".md"))
	if err != nil {
		return fmt.Errorf("draft markdown: %w", err)
	}

	fm := publishFrontMatter{
		Title:    meta.Title,
		Excerpt:  meta.Excerpt,
		Date:     meta.ImportedAt,
		Category: "Imported",
		Status:   models.StatusPublished,
		ReadTime: int(meta.ReadingTime),
	}
	if fm.Excerpt == "" {
		fm.Excerpt = TruncateText(meta.Title, 200)
	}
	if fm.Date == "" {
		fm.Date = meta.PublishDate
	}
	if fm.Date == "" {
		fm.Date = nowISO()
	}
	if len(meta.Tags) > 0 {
		fm.Category = meta.Tags[0]
	}
	if fm.ReadTime <= 0 {
		fm.ReadTime = defaultReadingMinutes
	}

	block, err := encodeYAMLBlock(fm)
	if err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(block)
	buf.WriteString("\n")
	buf.WriteString(StripFrontMatter(markdown))
	buf.WriteString("\n")

	if err := s.store.Write(ctx, publishedKey(slug), buf.Bytes()); err != nil {
		return fmt.Errorf("write published article: %w", err)
	}
	s.InvalidateCache()

	if err := s.store.Delete(ctx, draftKey(slug, ".json")); err != nil {
		return fmt.Errorf("remove draft metadata: %w", err)
	}
	if err := s.store.Delete(ctx, draftKey(slug, ".md")); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove draft markdown: %w", err)
	}
	slog.Info("draft published", "slug", slug)
	return nil
}

func (s *ArticleStore) DeleteDraft(ctx context.Context, slug string) error {
	if _, err := s.readMetadata(ctx, slug); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, draftKey(slug, ".json")); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, draftKey(slug, ".md")); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// SaveResult reports where Save put the document.
type SaveResult struct {
	Slug      string
	Published bool
}

// Save stores an edited document. Published documents are written verbatim;
// drafts are split into body and JSON metadata. When an edit changes the slug
// the old files are removed.
func (s *ArticleStore) Save(ctx context.Context, req models.SaveRequest) (*SaveResult, error) {
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Filename) == "" {
		return nil, ErrEmptyContent
	}
	fm, body, _, err := ParseFrontMatter([]byte(req.Content))
	if err != nil {
		return nil, err
	}

	slug, err := resolveSlug(fmString(fm, "slug"), strings.TrimSuffix(path.Base(req.Filename), ".md"))
	if err != nil {
		return nil, err
	}
	original := ""
	if req.IsEdit && req.OriginalSlug != "" {
		original = GenerateSlug(req.OriginalSlug)
	}
	renamed := original != "" && original != slug

	if fmString(fm, "status") == models.StatusPublished {
		if renamed {
			s.removeQuietly(ctx, publishedKey(original))
		}
		if err := s.store.Write(ctx, publishedKey(slug), []byte(req.Content)); err != nil {
			return nil, fmt.Errorf("write article: %w", err)
		}
		s.InvalidateCache()
		return &SaveResult{Slug: slug, Published: true}, nil
	}

	if renamed {
		s.removeQuietly(ctx, draftKey(original, ".json"))
		s.removeQuietly(ctx, draftKey(original, ".md"))
	}

	date := fmString(fm, "date")
	if date == "" {
		date = nowISO()
	}
	author := fmString(fm, "author")
	if author == "" {
		author = s.opts.DefaultAuthor
	}
	category := fmString(fm, "category")
	if category == "" {
		category = "Article"
	}
	minutes := fmInt(fm, "readTime", "readingTime")
	if minutes == 0 {
		minutes = defaultReadingMinutes
	}

	meta := models.DraftMetadata{
		Title:            fmString(fm, "title"),
		Slug:             slug,
		Excerpt:          fmString(fm, "excerpt"),
		Date:             date,
		Category:         category,
		Tags:             fmStrings(fm, "tags"),
		Status:           models.StatusDraft,
		ReadingTime:      models.ReadingTime(minutes),
		Featured:         fmBool(fm, "featured"),
		Thumbnail:        fmString(fm, "thumbnail"),
		ImportedAt:       date,
		OriginalURL:      fmString(fm, "originalUrl"),
		Author:           author,
		AuthorProfileURL: fmString(fm, "authorProfileUrl"),
		LocalPath:        draftKey(slug, ".md"),
	}
	if err := s.store.Write(ctx, draftKey(slug, ".md"), []byte(body)); err != nil {
		return nil, fmt.Errorf("write draft markdown: %w", err)
	}
	if err := s.writeMetadata(ctx, meta); err != nil {
		return nil, err
	}
	return &SaveResult{Slug: slug}, nil
}

func (s *ArticleStore) removeQuietly(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("failed to remove old file", "key", key, "error", err)
	}
}

// ListPublished returns the cached listing of published articles, newest
// first, without their bodies.
func (s *ArticleStore) ListPublished(ctx context.Context) ([]models.PublishedArticle, error) {
	articles, err := s.cache.get(ctx, s.store, s.opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	return articles, nil
}

func (s *ArticleStore) GetPublished(ctx context.Context, slug string) (*models.PublishedArticle, error) {
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("article %q: %w", slug, ErrNotFound)
	}
	content, err := s.store.Read(ctx, publishedKey(slug))
	if err != nil {
		return nil, err
	}
	a := parsePublished(slug, content)
	return &a, nil
}

// RenderPublished is GetPublished with the body rendered to HTML.
func (s *ArticleStore) RenderPublished(ctx context.Context, slug string) (*models.PublishedArticle, error) {
	a, err := s.GetPublished(ctx, slug)
	if err != nil {
		return nil, err
	}
	html, err := RenderMarkdown(s.markdown, a.Markdown)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", slug, err)
	}
	a.HTML = html
	return a, nil
}

// parsePublished reads an article file, filling missing frontmatter fields
// with defaults.
func parsePublished(slug string, content []byte) models.PublishedArticle {
	fm, body, _, err := ParseFrontMatter(content)
	if err != nil {
		fm = map[string]interface{}{}
		body = strings.TrimSpace(normalizeLineEndings(string(content)))
	}

	a := models.PublishedArticle{
		Slug:        slug,
		Title:       fmString(fm, "title"),
		Excerpt:     fmString(fm, "excerpt", "title"),
		Date:        fmString(fm, "date"),
		Category:    fmString(fm, "category"),
		Tags:        fmStrings(fm, "tags"),
		Status:      models.StatusPublished,
		ReadingTime: models.ReadingTime(fmInt(fm, "readingTime", "readTime")),
		Featured:    fmBool(fm, "featured"),
		Thumbnail:   fmString(fm, "thumbnail"),
		LocalPath:   publishedKey(slug),
		Markdown:    body,
	}
	if a.Title == "" {
		a.Title = slug
	}
	if a.Date == "" {
		a.Date = nowISO()
	}
	if a.Category == "" {
		a.Category = "Article"
	}
	if a.ReadingTime == 0 {
		a.ReadingTime = defaultReadingMinutes
	}
	return a
}
