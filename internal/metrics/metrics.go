package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/version"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// BuildMetrics holds two registries: build collectors, which are also written
// as a node-exporter textfile, and runtime collectors, which are only exposed
// by the preview server's /metrics.
type BuildMetrics struct {
	reg     *prometheus.Registry // build + preview collectors
	runtime *prometheus.Registry // go + process collectors
	handler http.Handler

	buildInfo      *prometheus.GaugeVec
	stageDur       *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	artifactBytes  *prometheus.GaugeVec
	filesWritten   prometheus.Gauge
	lastSuccess    prometheus.Gauge
	lastRun        prometheus.Gauge
	buildSucceeded prometheus.Gauge

	publishUploads *prometheus.CounterVec
	publishBytes   *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// preview server
	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	httpPanicTotal prometheus.Counter
}

// New returns fresh registries with every collector registered.
// safe labels only (stage, kind, method, route, code)
func New() *BuildMetrics {
	rt := prometheus.NewRegistry()
	rt.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &BuildMetrics{
		runtime: rt,
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		stageDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webbuild_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbuild_stage_failures_total",
			Help: "Pipeline stage failures by stage",
		}, []string{"stage"}),
		artifactBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "webbuild_artifact_bytes",
			Help: "Size of emitted artifacts by kind",
		}, []string{"kind"}),
		filesWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webbuild_files_written",
			Help: "Number of files in the output directory after the last build",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webbuild_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful build",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webbuild_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last build attempt",
		}),
		buildSucceeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webbuild_last_run_success",
			Help: "Whether the last build succeeded (1) or failed (0)",
		}),
		publishUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbuild_publish_uploads_total",
			Help: "Objects uploaded during publish by kind",
		}, []string{"kind"}),
		publishBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbuild_publish_bytes_total",
			Help: "Bytes uploaded during publish by kind",
		}, []string{"kind"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.buildInfo,
		m.stageDur,
		m.stageFailures,
		m.artifactBytes,
		m.filesWritten,
		m.lastSuccess,
		m.lastRun,
		m.buildSucceeded,
		m.publishUploads,
		m.publishBytes,
		m.profilingActive,
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
	)
	m.reg = reg

	m.handler = promhttp.HandlerFor(prometheus.Gatherers{reg, rt}, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return m
}

// Handler serves build, preview and runtime metrics.
func (m *BuildMetrics) Handler() http.Handler {
	return m.handler
}

// WriteTextfile writes the build registry in Prometheus text format for the
// node exporter textfile collector. Runtime collectors are left out because
// the node exporter reports its own.
func (m *BuildMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return xerrors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}

// set once at startup.
func (m *BuildMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

// ObserveStage records how long stage took and counts it as failed when err
// is non-nil.
func (m *BuildMetrics) ObserveStage(stage string, d time.Duration, err error) {
	m.stageDur.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *BuildMetrics) SetArtifactBytes(kind string, n int64) {
	m.artifactBytes.WithLabelValues(kind).Set(float64(n))
}

func (m *BuildMetrics) SetFilesWritten(n int) {
	m.filesWritten.Set(float64(n))
}

// SetBuildResult records the outcome of a build attempt finished at t.
func (m *BuildMetrics) SetBuildResult(ok bool, t time.Time) {
	m.lastRun.Set(float64(t.Unix()))
	if ok {
		m.buildSucceeded.Set(1)
		m.lastSuccess.Set(float64(t.Unix()))
	} else {
		m.buildSucceeded.Set(0)
	}
}

func (m *BuildMetrics) AddPublishUpload(kind string, bytes int64) {
	m.publishUploads.WithLabelValues(kind).Inc()
	m.publishBytes.WithLabelValues(kind).Add(float64(bytes))
}

func (m *BuildMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *BuildMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}
