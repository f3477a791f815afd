package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><head><meta property="og:site_name" content="Acme"></head>
<body><h1>Head of Sales</h1><div class="job-location">London</div>
<div class="job-description">Lead a team of 12. Salary £90,000 - £110,000.</div></body></html>`

func TestScrapeJob(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/1":
			w.Write([]byte(listingPage))
		case "/empty":
			w.Write([]byte("<html><body><p>nothing</p></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	s := newTestServer(t, Options{})
	assert.Equal(t, http.StatusUnauthorized, s.json("POST", "/api/scrape", "", map[string]string{"url": site.URL + "/jobs/1"}).Code)

	token := s.login()
	w := s.json("POST", "/api/scrape", token, map[string]string{"url": site.URL + "/jobs/1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	job := decode(t, w)["job"].(map[string]any)
	assert.Equal(t, "Head of Sales", job["title"])
	assert.Equal(t, "Acme", job["company"])
	assert.Equal(t, "London", job["location"])
	assert.Equal(t, "£90,000 - £110,000", job["salary_range"])
	assert.Equal(t, "generic", job["source"])
	assert.Equal(t, "wishlist", job["status"])

	w = s.json("POST", "/api/scrape", token, map[string]string{"url": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "URL is required", decode(t, w)["error"])

	w = s.json("POST", "/api/scrape", token, map[string]string{"url": "ftp://example.com/job"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json("POST", "/api/scrape", token, map[string]string{"url": site.URL + "/empty"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.json("POST", "/api/scrape", token, map[string]string{"url": site.URL + "/gone"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Could not fetch URL", decode(t, w)["error"])
}

func TestJobEndpoints(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.login()

	w := s.json("POST", "/api/jobs/save", token, map[string]any{"job": map[string]any{"title": "CRO"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json("POST", "/api/jobs/save", token, map[string]any{
		"user_id": "david",
		"job":     map[string]any{"title": "CRO", "company": "Globex", "url": "https://globex.example/cro"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Job saved successfully", body["message"])
	assert.NotEmpty(t, body["job_id"])

	w = s.json("POST", "/api/jobs/batch", token, map[string]any{"user_id": "david"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_id and jobs array are required", decode(t, w)["error"])

	w = s.json("POST", "/api/jobs/batch", token, map[string]any{
		"user_id": "david",
		"jobs": []map[string]any{
			{"title": "VP Sales", "company": "Initech", "status": "applied"},
			{"title": "Sales Director", "company": "Hooli"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, "2 jobs saved successfully", body["message"])
	assert.Len(t, body["jobs"], 2)

	w = s.json("GET", "/api/jobs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode(t, w)["jobs"].([]any)
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Equal(t, "david", j.(map[string]any)["user_id"])
	}
}
