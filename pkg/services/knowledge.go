package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"
)

const knowledgePrefix = "knowledge"

var ErrInvalidCategory = errors.New("invalid category")

var knowledgeCategories = []string{
	models.CategoryBio,
	models.CategoryAchievement,
	models.CategoryMethodology,
	models.CategoryCaseStudy,
	models.CategoryPhilosophy,
	models.CategoryTechnical,
}

// KnowledgeBase stores the chat assistant's background notes as Markdown
// files under knowledge/, with category and keywords in the frontmatter.
// The parsed set and its embeddings are cached until the next write.
type KnowledgeBase struct {
	store    storage.Store
	embedder Embedder

	mu      sync.Mutex
	loaded  bool
	chunks  []models.KnowledgeChunk
	vectors [][]float32
}

// NewKnowledgeBase returns a knowledge base. embedder may be nil, in which
// case retrieval scores keywords only.
func NewKnowledgeBase(store storage.Store, embedder Embedder) *KnowledgeBase {
	return &KnowledgeBase{store: store, embedder: embedder}
}

func knowledgeKey(id string) string { return knowledgePrefix + "/" + id + ".md" }

func (kb *KnowledgeBase) List(ctx context.Context) ([]models.KnowledgeChunk, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err := kb.load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(kb.chunks), nil
}

func (kb *KnowledgeBase) load(ctx context.Context) error {
	if kb.loaded {
		return nil
	}
	entries, err := kb.store.List(ctx, knowledgePrefix)
	if err != nil {
		return fmt.Errorf("list knowledge: %w", err)
	}
	chunks := []models.KnowledgeChunk{}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		content, err := kb.store.Read(ctx, e.Key)
		if err != nil {
			slog.Warn("skipping unreadable knowledge chunk", "key", e.Key, "error", err)
			continue
		}
		chunks = append(chunks, parseKnowledge(strings.TrimSuffix(e.Name, ".md"), content))
	}

	kb.chunks = chunks
	kb.vectors = nil
	kb.loaded = true

	if kb.embedder != nil && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := kb.embedder.Embed(ctx, texts)
		switch {
		case err != nil:
			slog.Warn("knowledge embeddings unavailable, using keyword matching", "error", err)
		case len(vectors) != len(chunks):
			slog.Warn("knowledge embeddings do not match chunks, using keyword matching", "vectors", len(vectors), "chunks", len(chunks))
		case !anyNonZero(vectors):
			slog.Warn("knowledge embeddings are all zero, using keyword matching")
		default:
			kb.vectors = vectors
		}
	}
	slog.Info("knowledge base loaded", "chunks", len(chunks), "embedded", kb.vectors != nil)
	return nil
}

func parseKnowledge(id string, content []byte) models.KnowledgeChunk {
	chunk := models.KnowledgeChunk{ID: id, Keywords: []string{}}
	fm, body, _, err := ParseFrontMatter(content)
	if err != nil {
		chunk.Content = StripFrontMatter(content)
		return chunk
	}
	chunk.Content = body
	chunk.Category = fmString(fm, "category")
	for _, k := range fmStrings(fm, "keywords") {
		chunk.Keywords = append(chunk.Keywords, strings.ToLower(k))
	}
	return chunk
}

// Put creates or replaces a chunk.
func (kb *KnowledgeBase) Put(ctx context.Context, chunk models.KnowledgeChunk) (*models.KnowledgeChunk, error) {
	if !ValidSlug(chunk.ID) {
		return nil, ErrInvalidSlug
	}
	chunk.Content = strings.TrimSpace(normalizeLineEndings(chunk.Content))
	if chunk.Content == "" {
		return nil, ErrEmptyContent
	}
	if chunk.Category != "" && !slices.Contains(knowledgeCategories, chunk.Category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, chunk.Category)
	}
	keywords := []string{}
	for _, k := range chunk.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && !slices.Contains(keywords, k) {
			keywords = append(keywords, k)
		}
	}
	chunk.Keywords = keywords

	fm := map[string]interface{}{"keywords": keywords}
	if chunk.Category != "" {
		fm["category"] = chunk.Category
	}
	data, err := ConstructFileContent(fm, chunk.Content, "yaml")
	if err != nil {
		return nil, fmt.Errorf("encode knowledge chunk: %w", err)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err := kb.store.Write(ctx, knowledgeKey(chunk.ID), data); err != nil {
		return nil, fmt.Errorf("write knowledge chunk: %w", err)
	}
	kb.loaded = false
	return &chunk, nil
}

func (kb *KnowledgeBase) Delete(ctx context.Context, id string) error {
	if !ValidSlug(id) {
		return ErrInvalidSlug
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err := kb.store.Delete(ctx, knowledgeKey(id)); err != nil {
		return err
	}
	kb.loaded = false
	return nil
}

type scoredChunk struct {
	chunk models.KnowledgeChunk
	score float64
}

// Retrieve returns up to topK chunks relevant to query. With embeddings it
// ranks every chunk by cosine similarity; otherwise it keeps chunks with a
// positive KeywordScore, best first.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string, topK int) ([]models.KnowledgeChunk, error) {
	kb.mu.Lock()
	if err := kb.load(ctx); err != nil {
		kb.mu.Unlock()
		return nil, err
	}
	chunks, vectors := kb.chunks, kb.vectors
	kb.mu.Unlock()

	var scored []scoredChunk
	if vectors != nil {
		if q, err := kb.embedder.Embed(ctx, []string{query}); err != nil || len(q) != 1 || !anyNonZero(q) {
			slog.WarnContext(ctx, "query embedding failed, using keyword matching", "error", err)
			vectors = nil
		} else {
			for i, c := range chunks {
				scored = append(scored, scoredChunk{chunk: c, score: cosineSimilarity(q[0], vectors[i])})
			}
		}
	}
	if vectors == nil {
		for _, c := range chunks {
			if s := KeywordScore(query, c); s > 0 {
				scored = append(scored, scoredChunk{chunk: c, score: float64(s)})
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]models.KnowledgeChunk, len(scored))
	for i, s := range scored {
		out[i] = s.chunk
	}
	return out, nil
}

// KeywordScore rates a chunk against a query: 10 per chunk keyword found in
// the query, 1 per query word longer than three letters found in the
// content, and 5 when the query asks about results or approach and the
// chunk's category matches.
func KeywordScore(query string, chunk models.KnowledgeChunk) int {
	q := strings.ToLower(query)
	content := strings.ToLower(chunk.Content)
	score := 0
	for _, k := range chunk.Keywords {
		if k != "" && strings.Contains(q, k) {
			score += 10
		}
	}
	for _, w := range strings.Fields(q) {
		if len(w) > 3 && strings.Contains(content, w) {
			score++
		}
	}
	if containsAny(q, "achievement", "result", "metric") &&
		(chunk.Category == models.CategoryAchievement || chunk.Category == models.CategoryCaseStudy) {
		score += 5
	}
	if containsAny(q, "how", "approach", "method") && chunk.Category == models.CategoryMethodology {
		score += 5
	}
	return score
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func anyNonZero(vectors [][]float32) bool {
	for _, v := range vectors {
		for _, x := range v {
			if x != 0 {
				return true
			}
		}
	}
	return false
}
