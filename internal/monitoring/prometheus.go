// Package monitoring provides Prometheus metrics for countgate.
//
// Usage:
//
//  1. In serve mode expose the registry on the router:
//     monitoring.SetupPrometheusMetrics(router, "/metrics")
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  2. The gate service records every evaluation:
//     monitoring.RecordEvaluation("http-5xx", "exceeded", 15, 10)
//     monitoring.RecordCountQuery(time.Since(start), true)
//
//  3. A CLI run pushes its metrics before exiting:
//     monitoring.Push(ctx, cfg.Monitoring.PushgatewayURL, cfg.Monitoring.JobName, instance)
//
// Available Metrics:
//
//   - countgate_evaluations_total{gate, outcome}
//   - countgate_last_count{gate}
//   - countgate_threshold{gate}
//   - countgate_count_query_duration_seconds{status}
//   - countgate_errors_total{type, component}
//   - countgate_http_requests_total{method, endpoint, status_code}
//   - countgate_http_request_duration_seconds{method, endpoint}
//   - countgate_build_info{version, component}
//
// The gate label is bounded: names that are not short identifiers become
// "adhoc" and names beyond the first 100 distinct ones become "other".
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Evaluation outcomes used as the outcome label.
const (
	OutcomePassed         = "passed"
	OutcomeExceeded       = "exceeded"
	OutcomeConfigError    = "config_error"
	OutcomeEncodingError  = "encoding_error"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
)

// Gate label values substituted for names that would grow the series set.
const (
	AdhocGate    = "adhoc"
	OverflowGate = "other"

	maxGateLabels = 100
)

var gateNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)

// gateLabelSet admits gate names as label values up to a fixed number of
// distinct names.
type gateLabelSet struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
}

func newGateLabelSet(limit int) *gateLabelSet {
	return &gateLabelSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *gateLabelSet) label(name string) string {
	if name == "" {
		name = "default"
	}
	if !gateNamePattern.MatchString(name) {
		return AdhocGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[name]; ok {
		return name
	}
	if len(s.seen) >= s.limit {
		return OverflowGate
	}
	s.seen[name] = struct{}{}
	return name
}

var gateLabels = newGateLabelSet(maxGateLabels)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countgate_evaluations_total",
			Help: "Total number of gate evaluations by outcome",
		},
		[]string{"gate", "outcome"},
	)

	lastCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "countgate_last_count",
			Help: "Count returned by the most recent evaluation of a gate",
		},
		[]string{"gate"},
	)

	thresholdGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "countgate_threshold",
			Help: "Threshold of the most recent evaluation of a gate",
		},
		[]string{"gate"},
	)

	countQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "countgate_count_query_duration_seconds",
			Help:    "Duration of count requests against the search engine",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countgate_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "countgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "countgate_build_info",
			Help: "Build information for countgate",
		},
		[]string{"version", "component"},
	)

	registerOnce sync.Once
)

// gateCollectors are the metrics pushed at the end of a CLI run.
func gateCollectors() []prometheus.Collector {
	return []prometheus.Collector{evaluationsTotal, lastCount, thresholdGauge, countQueryDuration, errorsTotal, buildInfo}
}

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register(version string) {
	registerOnce.Do(func() {
		buildInfo.WithLabelValues(version, "countgate").Set(1)
		for _, c := range append(gateCollectors(), httpRequestsTotal, httpRequestDuration) {
			if err := prometheus.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

// SetupPrometheusMetrics exposes the default registry on path.
func SetupPrometheusMetrics(router gin.IRoutes, path string) {
	if path == "" {
		path = "/metrics"
	}
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())

		if status >= 500 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordEvaluation records the outcome of one gate evaluation. count and
// threshold are only meaningful when the count was fetched.
func RecordEvaluation(gate, outcome string, count, threshold int64) {
	gate = gateLabels.label(gate)
	evaluationsTotal.WithLabelValues(gate, outcome).Inc()
	switch outcome {
	case OutcomePassed, OutcomeExceeded:
		lastCount.WithLabelValues(gate).Set(float64(count))
		thresholdGauge.WithLabelValues(gate).Set(float64(threshold))
	default:
		errorsTotal.WithLabelValues(strings.TrimSuffix(outcome, "_error"), "gate").Inc()
	}
}

// RecordCountQuery records the duration of one count request.
func RecordCountQuery(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	countQueryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Push sends the gate metrics to a Prometheus Pushgateway. A blank url is a
// no-op.
func Push(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return nil
	}
	p := push.New(url, job)
	for _, c := range gateCollectors() {
		p = p.Collector(c)
	}
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
