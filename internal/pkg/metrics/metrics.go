package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the task-service Prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Realtime bus metrics
	RealtimeEventsPublished *prometheus.CounterVec
	RealtimePublishFailures prometheus.Counter

	// Queue consumer metrics
	QueueJobsProcessed *prometheus.CounterVec
	QueueJobRetries    prometheus.Counter

	// Assignment worker metrics
	AssignmentCyclesTotal   prometheus.Counter
	AssignmentTasksAssigned prometheus.Counter
	AssignmentTasksSkipped  prometheus.Counter
	AssignmentCycleDuration prometheus.Histogram
	AvailableOperators      prometheus.Gauge

	// Labor aggregator metrics
	MetricsCyclesTotal     prometheus.Counter
	MetricsRowsUpserted    *prometheus.CounterVec
	MetricsCycleDuration   prometheus.Histogram
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.RealtimeEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "realtime_events_published_total",
			Help:      "Total number of realtime events published",
		},
		[]string{"service", "event_type", "status"},
	)

	m.RealtimePublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "realtime_publish_failures_total",
			Help:        "Realtime publishes that failed after the database commit",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.QueueJobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "taskgen_jobs_processed_total",
			Help:      "Task-generation jobs processed by outcome",
		},
		[]string{"service", "outcome"},
	)

	m.QueueJobRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "taskgen_job_retries_total",
			Help:        "Task-generation job retry attempts",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.AssignmentCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "assignment_cycles_total",
			Help:        "Assignment worker cycles run",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.AssignmentTasksAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "assignment_tasks_assigned_total",
			Help:        "Tasks assigned by the assignment worker",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.AssignmentTasksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "assignment_tasks_unassigned_total",
			Help:        "Candidate tasks left unassigned for lack of an operator",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.AssignmentCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "assignment_cycle_duration_seconds",
			Help:        "Assignment cycle duration in seconds",
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.AvailableOperators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "available_operators",
			Help:        "Available operators observed at the last assignment cycle",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.MetricsCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "labor_metrics_cycles_total",
			Help:        "Labor metrics aggregation cycles run",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.MetricsRowsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "labor_metrics_rows_upserted_total",
			Help:      "Daily metric rows written, by insert vs update",
		},
		[]string{"service", "mode"},
	)

	m.MetricsCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "labor_metrics_cycle_duration_seconds",
			Help:        "Labor metrics cycle duration in seconds",
			Buckets:     []float64{.1, .5, 1, 5, 15, 30, 60, 120},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RealtimeEventsPublished,
		m.RealtimePublishFailures,
		m.QueueJobsProcessed,
		m.QueueJobRetries,
		m.AssignmentCyclesTotal,
		m.AssignmentTasksAssigned,
		m.AssignmentTasksSkipped,
		m.AssignmentCycleDuration,
		m.AvailableOperators,
		m.MetricsCyclesTotal,
		m.MetricsRowsUpserted,
		m.MetricsCycleDuration,
	)

	return m
}

// Handler returns the Prometheus scrape handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records HTTP request metrics for every handled request
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()

		c.Next()

		m.HTTPRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequestsTotal.WithLabelValues(
			m.serviceName, c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			m.serviceName, c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
