package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks request counts and latency per route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP collectors with the default registry.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "telcoquota"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telcoquota_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "endpoint", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "telcoquota_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "endpoint"})

	return &HTTPMetrics{
		requests: registerOrReuse(registerer, requests).(*prometheus.CounterVec),
		duration: registerOrReuse(registerer, duration).(*prometheus.HistogramVec),
	}
}

func registerOrReuse(registerer prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

// GinMiddleware records one observation per request. Unmatched routes are
// grouped under a single label to bound cardinality.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}
