package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// publishedCache holds the parsed listing of published articles until the
// next write.
type publishedCache struct {
	mu          sync.Mutex
	articles    []models.PublishedArticle
	cacheLoaded bool
}

func (c *publishedCache) get(ctx context.Context, store storage.Store, concurrency int) ([]models.PublishedArticle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cacheLoaded {
		return c.articles, nil
	}

	entries, err := store.List(ctx, publishedPrefix)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name, ".md") {
			keys = append(keys, e.Key)
		}
	}

	results := make([]*models.PublishedArticle, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, key := range keys {
		g.Go(func() error {
			content, err := store.Read(gctx, key)
			if err != nil {
				slog.Warn("skipping unreadable article", "key", key, "error", err)
				return nil
			}
			slug := strings.TrimSuffix(key[strings.LastIndex(key, "/")+1:], ".md")
			a := parsePublished(slug, content)
			a.Markdown = ""
			results[i] = &a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	articles := make([]models.PublishedArticle, 0, len(results))
	for _, a := range results {
		if a != nil {
			articles = append(articles, *a)
		}
	}
	sort.SliceStable(articles, func(i, j int) bool {
		ti, _ := ParseDate(articles[i].Date)
		tj, _ := ParseDate(articles[j].Date)
		return ti.After(tj)
	})

	c.articles = articles
	c.cacheLoaded = true
	return c.articles, nil
}

func (c *publishedCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheLoaded = false
	c.articles = nil
}
