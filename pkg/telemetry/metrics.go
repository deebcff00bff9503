package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for xbuild.
type Metrics struct {
	config MetricsConfig

	// Project metrics
	projectLoads *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec

	// Configuration metrics
	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec

	// Cache metrics
	cacheLookups *prometheus.CounterVec

	// Dependency metrics
	discoveredPackages prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Plan metrics
	policyViolations *prometheus.CounterVec
	plansStored      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		projectLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "project_loads_total",
				Help:      "Total number of project descriptors loaded",
			},
			[]string{"status"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "project_load_duration_seconds",
				Help:      "Duration of project loading in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "configurations_resolved_total",
				Help:      "Total number of build configurations resolved",
			},
			[]string{"toolchain", "status"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "configuration_resolution_duration_seconds",
				Help:      "Duration of configuration resolution in seconds",
				Buckets:   buckets,
			},
			[]string{"toolchain"},
		),

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of resolution cache lookups",
			},
			[]string{"cache", "result"},
		),

		discoveredPackages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "discovered_packages",
				Help:      "Number of packages in the last dependency closure",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations found in plans",
			},
			[]string{"policy", "severity"},
		),
		plansStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_stored_total",
				Help:      "Total number of plans persisted",
			},
			[]string{"status"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.projectLoads,
		m.loadDuration,
		m.resolutions,
		m.resolutionDuration,
		m.cacheLookups,
		m.discoveredPackages,
		m.errorsByClass,
		m.errorsByCode,
		m.policyViolations,
		m.plansStored,
	)

	return m, nil
}

// Project Metrics

// RecordProjectLoad records a project load with its status and duration.
func (m *Metrics) RecordProjectLoad(status string, duration time.Duration) {
	if m == nil || m.projectLoads == nil {
		return
	}
	m.projectLoads.WithLabelValues(status).Inc()
	m.loadDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Configuration Metrics

// RecordResolution records the resolution of one configuration.
func (m *Metrics) RecordResolution(toolchain, status string, duration time.Duration) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(toolchain, status).Inc()
	m.resolutionDuration.WithLabelValues(toolchain).Observe(duration.Seconds())
}

// Cache Metrics

// ObserveCacheLookup implements engine.CacheObserver.
func (m *Metrics) ObserveCacheLookup(cache string, hit bool) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Dependency Metrics

// SetDiscoveredPackages sets the size of the last dependency closure.
func (m *Metrics) SetDiscoveredPackages(count int) {
	if m == nil || m.discoveredPackages == nil {
		return
	}
	m.discoveredPackages.Set(float64(count))
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Plan Metrics

// RecordPolicyViolation records a policy violation found in a plan.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m == nil || m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordPlanStored records a plan persistence attempt.
func (m *Metrics) RecordPlanStored(status string) {
	if m == nil || m.plansStored == nil {
		return
	}
	m.plansStored.WithLabelValues(status).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry returns the Prometheus registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Plan output goes to stdout
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return nil
}
