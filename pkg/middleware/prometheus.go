package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/Suhaibinator/SRest/pkg/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusConfig selects the metrics recorded by PrometheusMetrics.
type PrometheusConfig struct {
	Namespace string
	Subsystem string

	EnableLatency    bool // request_duration_seconds histogram
	EnableThroughput bool // response_size_bytes_total counter
	EnableQPS        bool // requests_total counter
	EnableErrors     bool // request_errors_total counter
}

type prometheusMetrics struct {
	latency    *prometheus.HistogramVec
	throughput *prometheus.CounterVec
	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

var metricLabels = []string{"method", "route", "status"}

// PrometheusMetrics returns a response stage that records request metrics in
// registry. Requests that were not routed are labelled with route "unmatched".
func PrometheusMetrics(registry prometheus.Registerer, config PrometheusConfig) (common.ResponseHandler, error) {
	m := &prometheusMetrics{}

	if config.EnableLatency {
		m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent between receiving a request and responding to it.",
			Buckets:   prometheus.DefBuckets,
		}, metricLabels)
		if err := registry.Register(m.latency); err != nil {
			return nil, err
		}
	}
	if config.EnableThroughput {
		m.throughput = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "response_size_bytes_total",
			Help:      "Total size of response bodies.",
		}, metricLabels)
		if err := registry.Register(m.throughput); err != nil {
			return nil, err
		}
	}
	if config.EnableQPS {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of responded requests.",
		}, metricLabels)
		if err := registry.Register(m.requests); err != nil {
			return nil, err
		}
	}
	if config.EnableErrors {
		m.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_errors_total",
			Help:      "Total number of responses with a status code of 400 or above.",
		}, metricLabels)
		if err := registry.Register(m.errors); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *prometheusMetrics) Name() string { return "prometheus" }

func (m *prometheusMetrics) HandleResponse(ctx common.Context, req *common.Request, resp *common.Response) {
	pattern := route.Pattern(req)
	if pattern == "" {
		pattern = "unmatched"
	}
	labels := prometheus.Labels{
		"method": req.Method,
		"route":  pattern,
		"status": strconv.Itoa(resp.StatusCode),
	}

	if m.latency != nil {
		m.latency.With(labels).Observe(time.Since(req.ReceivedAt).Seconds())
	}
	if m.throughput != nil {
		if b, ok := resp.Body.([]byte); ok {
			m.throughput.With(labels).Add(float64(len(b)))
		}
	}
	if m.requests != nil {
		m.requests.With(labels).Inc()
	}
	if m.errors != nil && resp.StatusCode >= 400 {
		m.errors.With(labels).Inc()
	}

	ctx.Send(req, resp)
}

// MetricsEndpoint returns a route handler that answers with the metrics of
// gatherer in the Prometheus text exposition format.
func MetricsEndpoint(gatherer prometheus.Gatherer) common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		families, err := gatherer.Gather()
		if err != nil {
			ctx.Error(req, err)
			return
		}

		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, format)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				ctx.Error(req, err)
				return
			}
		}

		ctx.Send(req, common.NewResponse(http.StatusOK).
			WithBody(buf.Bytes()).
			WithHeader("Content-Type", string(format)))
	})
}
