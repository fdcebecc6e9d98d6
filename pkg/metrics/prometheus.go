package metrics

/* adapted from https://github.com/zsais/go-gin-prometheus
edits:
- log through the application logger
- remove push gateway and the separate listener
- register against an injected prometheus.Registerer
*/

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqCnt = &Metric{
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Kind:        KindCounterVec,
	Labels:      []string{"code", "method", "url"},
}

var reqDur = &Metric{
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Kind:        KindHistogramVec,
	Labels:      []string{"code", "method", "url"},
}

var resSz = &Metric{
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Kind:        KindSummaryVec,
	Labels:      []string{"code", "method", "url"},
}

var reqSz = &Metric{
	Name:        "req_sz_bytes",
	Description: "The HTTP request sizes in bytes.",
	Kind:        KindSummaryVec,
	Labels:      []string{"code", "method", "url"},
}

var defaultMetricPath = "/metrics"

type Logger interface {
	Errorf(format string, v ...interface{})
}

// Prometheus holds the HTTP metrics of one gin engine.
type Prometheus struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	MetricsPath string
	registry    prometheus.Registerer
	gatherer    prometheus.Gatherer
	logger      Logger
}

type NewPrometheusOptions struct {
	Subsystem   string
	MetricsPath string
	// Registry defaults to prometheus.DefaultRegisterer/DefaultGatherer.
	Registry *prometheus.Registry
	Logger   Logger
}

// NewPrometheus registers the HTTP metrics under the given subsystem.
func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		MetricsPath: options.MetricsPath,
		registry:    prometheus.DefaultRegisterer,
		gatherer:    prometheus.DefaultGatherer,
		logger:      options.Logger,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if options.Registry != nil {
		p.registry = options.Registry
		p.gatherer = options.Registry
	}

	p.reqCnt = p.register(reqCnt, options.Subsystem).(*prometheus.CounterVec)
	p.reqDur = p.register(reqDur, options.Subsystem).(*prometheus.HistogramVec)
	p.resSz = p.register(resSz, options.Subsystem).(*prometheus.SummaryVec)
	p.reqSz = p.register(reqSz, options.Subsystem).(*prometheus.SummaryVec)
	return p
}

func (p *Prometheus) register(def *Metric, subsystem string) prometheus.Collector {
	c, err := register(p.registry, def, subsystem)
	if err != nil && p.logger != nil {
		p.logger.Errorf("%s could not be registered in Prometheus, err=%v", def.Name, err)
	}
	return c
}

// Use adds the middleware and the scrape endpoint to a gin engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	e.GET(p.MetricsPath, gin.WrapH(promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})))
}

// Handler serves the scrape endpoint, for a listener separate from the API.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		reqSize := computeApproximateRequestSize(c.Request)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		// route template keeps cardinality bounded (e.g. /api/v1/admin/broadcast/:id)
		url := c.FullPath()
		if url == "" {
			url = "unmatched"
		}

		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(reqSize))
		p.resSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(c.Writer.Size()))
	}
}

// MillisecondsSince returns the elapsed time since start as fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}
	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)
	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
