package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the server. Each instance has its
// own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	imports     prometheus.Counter
	conversions *prometheus.CounterVec
	logins      *prometheus.CounterVec
	published   prometheus.Counter
	cvSaves     prometheus.Counter
	uploadBytes prometheus.Counter

	chatMessages *prometheus.CounterVec
	jobsSaved    prometheus.Counter
	factory      promauto.Factory
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		imports: f.NewCounter(prometheus.CounterOpts{
			Name: "cms_article_imports_total",
			Help: "Articles imported as drafts",
		}),
		conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_article_conversions_total",
			Help: "HTML to Markdown conversions by result",
		}, []string{"result"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_admin_logins_total",
			Help: "Admin login attempts by result",
		}, []string{"result"}),
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "cms_articles_published_total",
			Help: "Drafts published",
		}),
		cvSaves: f.NewCounter(prometheus.CounterOpts{
			Name: "cms_cv_saves_total",
			Help: "CV saves",
		}),
		uploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "cms_media_upload_bytes_total",
			Help: "Total bytes of uploaded media",
		}),
		chatMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_chat_messages_total",
			Help: "Chat messages by result",
		}, []string{"result"}),
		jobsSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "cms_jobs_saved_total",
			Help: "Job listings saved",
		}),
	}
}

// WatchSessions exports live admin sessions and chat conversations as
// gauges. Call it once per Metrics.
func (m *Metrics) WatchSessions(adminSessions, conversations func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cms_admin_sessions",
		Help: "Admin sessions held in memory, expired ones included until swept",
	}, func() float64 { return float64(adminSessions()) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cms_chat_conversations",
		Help: "Chat conversations held in memory",
	}, func() float64 { return float64(conversations()) })
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
