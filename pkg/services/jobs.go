package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"

	"github.com/PuerkitoBio/goquery"
)

const (
	jobsPrefix        = "jobs"
	scraperUserAgent  = "Mozilla/5.0 (compatible; portfolio-cms job scraper)"
	maxJobDescription = 2000
	maxScrapeBytes    = 5 << 20
)

var (
	ErrInvalidURL     = errors.New("url must be an absolute http or https URL")
	ErrNoJobFound     = errors.New("could not extract job data from url")
	ErrMissingJobUser = errors.New("user_id and job are required")
	ErrFetchFailed    = errors.New("could not fetch url")
	errBlockedAddress = errors.New("address is not publicly routable")
)

// jobSelectors lists CSS selectors per field, tried in order, per job board.
type jobSelectors struct {
	title, company, location, description []string
}

var boardSelectors = map[string]jobSelectors{
	"ashby": {
		title:       []string{"h1", `[data-testid="job-title"]`, `[class*="title"]`},
		company:     []string{`[data-testid="company-name"]`, `[class*="company"]`},
		location:    []string{`[data-testid="location"]`, `[class*="location"]`},
		description: []string{`[data-testid="description"]`, `[class*="description"]`, "article"},
	},
	"lever": {
		title:       []string{"h1", ".posting-title", `[class*="title"]`},
		company:     []string{".posting-company", `[class*="company"]`},
		location:    []string{".posting-location", `[class*="location"]`},
		description: []string{".posting-description", `[class*="description"]`},
	},
	"greenhouse": {
		title:       []string{"h1", ".job-title", `[class*="title"]`},
		company:     []string{".company-name", `[class*="company"]`},
		location:    []string{".location", `[class*="location"]`},
		description: []string{".job-description", `[class*="description"]`},
	},
	"workable": {
		title:       []string{"h1", ".job-header-title", `[class*="title"]`},
		company:     []string{".company-name", `[class*="company"]`},
		location:    []string{".location", `[class*="location"]`},
		description: []string{".job-description", `[class*="description"]`},
	},
	"linkedin": {
		title:       []string{"h1", "[data-test-job-title]"},
		company:     []string{"[data-test-company-name]", ".jobs-details__company-name"},
		location:    []string{"[data-test-job-location]"},
		description: []string{"[data-test-job-description]"},
	},
	"generic": {
		title:       []string{"h1", `[role="heading"]`, `[class*="title"]`},
		company:     []string{`meta[name="application-name"]`, `meta[property="og:site_name"]`, `[class*="company"]`},
		location:    []string{`[class*="location"]`, `[class*="city"]`},
		description: []string{`[class*="description"]`, "article", "main"},
	},
}

var boardHosts = []struct{ host, source string }{
	{"ashbyhq.com", "ashby"},
	{"lever.co", "lever"},
	{"greenhouse.io", "greenhouse"},
	{"workable.com", "workable"},
	{"linkedin.com", "linkedin"},
}

var salaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$[\d,]+k?\s*-\s*\$[\d,]+k?`),
	regexp.MustCompile(`(?i)£[\d,]+k?\s*-\s*£[\d,]+k?`),
	regexp.MustCompile(`(?i)€[\d,]+k?\s*-\s*€[\d,]+k?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\s*-\s*\$[\d,]+)?(?:\s*k)?`),
	regexp.MustCompile(`(?i)\d[\d,]*(?:\s*-\s*\d[\d,]*)?\s*k?\s*(?:per year|/year|annually)`),
}

// DetectJobSource names the job board a URL belongs to, or "generic".
func DetectJobSource(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for _, b := range boardHosts {
		if host == b.host || strings.HasSuffix(host, "."+b.host) {
			return b.source
		}
	}
	return "generic"
}

// ExtractSalary returns the first salary-looking range in text.
func ExtractSalary(text string) string {
	for _, re := range salaryPatterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// JobScraper fetches job listings and pulls out the fields a tracker needs.
type JobScraper struct {
	client *http.Client
}

// NewJobScraper returns a scraper whose dialer refuses loopback, private and
// link-local addresses unless allowPrivate is set.
func NewJobScraper(timeout time.Duration, allowPrivate bool) *JobScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &JobScraper{client: &http.Client{Timeout: timeout, Transport: transport}}
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

// Scrape fetches rawURL and returns the listing found there, marked as a
// wishlist entry. ErrNoJobFound means the page had no recognisable title.
func (s *JobScraper) Scrape(ctx context.Context, rawURL string) (*models.Job, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, u.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailed, u.Host, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxScrapeBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u.Host, err)
	}
	job := ExtractJob(doc, u)
	if job == nil {
		return nil, ErrNoJobFound
	}
	return job, nil
}

// ExtractJob reads a listing from a parsed page, or returns nil when there
// is no title.
func ExtractJob(doc *goquery.Document, u *url.URL) *models.Job {
	source := DetectJobSource(u)
	sel := boardSelectors[source]

	title := firstText(doc, sel.title)
	if title == "" {
		return nil
	}
	job := &models.Job{
		Title:   title,
		Company: firstText(doc, sel.company),
		URL:     u.String(),
		Source:  source,
		Status:  "wishlist",
		Tags:    []string{},
	}
	if loc := firstText(doc, sel.location); loc != "" {
		job.Location = &loc
	}
	if desc := firstText(doc, sel.description); desc != "" {
		desc = truncateRunes(desc, maxJobDescription)
		job.Description = &desc
	}
	if salary := ExtractSalary(doc.Find("body").Text()); salary != "" {
		job.SalaryRange = &salary
	}
	return job
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		el := doc.Find(s).First()
		if el.Length() == 0 {
			continue
		}
		text := el.Text()
		if goquery.NodeName(el) == "meta" {
			text = el.AttrOr("content", "")
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// JobBoard persists saved job listings as Markdown under jobs/, with the
// description as the body.
type JobBoard struct {
	store storage.Store
	now   func() time.Time
}

func NewJobBoard(store storage.Store) *JobBoard {
	return &JobBoard{store: store, now: time.Now}
}

// Save stores one job and returns it with its new id.
func (b *JobBoard) Save(ctx context.Context, userID string, job models.Job) (*models.Job, error) {
	saved, err := b.save(ctx, userID, job, fmt.Sprintf("job_%d", b.now().UnixMilli()))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "job saved", "id", saved.ID, "source", saved.Source)
	return saved, nil
}

// SaveBatch stores jobs in order, stopping at the first failure.
func (b *JobBoard) SaveBatch(ctx context.Context, userID string, jobs []models.Job) ([]models.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingJobUser
	}
	stamp := b.now().UnixMilli()
	out := make([]models.Job, 0, len(jobs))
	for i, job := range jobs {
		saved, err := b.save(ctx, userID, job, fmt.Sprintf("job_%d_%d", stamp, i))
		if err != nil {
			return out, fmt.Errorf("job %d: %w", i, err)
		}
		out = append(out, *saved)
	}
	slog.InfoContext(ctx, "jobs saved", "count", len(out))
	return out, nil
}

func (b *JobBoard) save(ctx context.Context, userID string, job models.Job, base string) (*models.Job, error) {
	userID = strings.TrimSpace(userID)
	job.Title = strings.TrimSpace(job.Title)
	if userID == "" || job.Title == "" {
		return nil, ErrMissingJobUser
	}
	name, err := freeName(ctx, b.store, jobsPrefix, base, "_", ".md")
	if err != nil {
		return nil, err
	}
	job.ID = strings.TrimSuffix(name, ".md")
	job.UserID = userID
	if job.Status == "" {
		job.Status = "wishlist"
	}
	if job.Source == "" {
		job.Source = "manual"
	}
	if job.Tags == nil {
		job.Tags = []string{}
	}

	data, err := ConstructFileContent(jobFrontMatter(job), derefString(job.Description), "yaml")
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := b.store.Write(ctx, jobsPrefix+"/"+name, data); err != nil {
		return nil, fmt.Errorf("write job: %w", err)
	}
	return &job, nil
}

func jobFrontMatter(job models.Job) map[string]interface{} {
	fm := map[string]interface{}{
		"title":   job.Title,
		"company": job.Company,
		"url":     job.URL,
		"source":  job.Source,
		"status":  job.Status,
		"user_id": job.UserID,
		"tags":    job.Tags,
	}
	if job.Location != nil {
		fm["location"] = *job.Location
	}
	if job.SalaryRange != nil {
		fm["salary_range"] = *job.SalaryRange
	}
	if job.AppliedDate != "" {
		fm["applied_date"] = job.AppliedDate
	}
	if job.Notes != "" {
		fm["notes"] = job.Notes
	}
	return fm
}

// List returns every saved job, newest first.
func (b *JobBoard) List(ctx context.Context) ([]models.Job, error) {
	entries, err := b.store.List(ctx, jobsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := []models.Job{}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		content, err := b.store.Read(ctx, e.Key)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable job", "key", e.Key, "error", err)
			continue
		}
		fm, body, _, err := ParseFrontMatter(content)
		if err != nil {
			slog.WarnContext(ctx, "skipping job without frontmatter", "key", e.Key)
			continue
		}
		job := models.Job{
			ID:          strings.TrimSuffix(e.Name, ".md"),
			UserID:      fmString(fm, "user_id"),
			Title:       fmString(fm, "title"),
			Company:     fmString(fm, "company"),
			URL:         fmString(fm, "url"),
			Source:      fmString(fm, "source"),
			Status:      fmString(fm, "status"),
			AppliedDate: fmString(fm, "applied_date"),
			Notes:       fmString(fm, "notes"),
			Tags:        fmStrings(fm, "tags"),
			Location:    optionalString(fmString(fm, "location")),
			SalaryRange: optionalString(fmString(fm, "salary_range")),
			Description: optionalString(body),
		}
		if job.Tags == nil {
			job.Tags = []string{}
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].ID > jobs[j].ID })
	return jobs, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
