package metrics

import (
	"context"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.n += n
	return n, err
}

// assetRoute labels a request chi did not route by the kind of build
// output it asked for. Raw paths would explode cardinality and every
// build renames its hashed files.
func assetRoute(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); {
	case cachepolicy.IsServiceWorker(p):
		return "site/service_worker"
	case ext == ".wasm":
		return "site/module"
	case ext == "" || ext == ".html" || ext == ".htm":
		return "site/page"
	case ext == ".png" || ext == ".ico" || ext == ".svg" || ext == ".gif":
		return "site/icon"
	case ext == ".webmanifest" || ext == ".json" || ext == ".xml":
		return "site/manifest"
	default:
		return "site/other"
	}
}

// Middleware measures inflight, total, duration and size of preview
// requests.
func (m *BuildMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if chi.RouteContext(r.Context()) == nil {
			rctx := chi.NewRouteContext()
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		}

		m.inflight.Inc()
		defer m.inflight.Dec()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		// Normalize default status (handlers that never Write/WriteHeader).
		statusCode := sw.status
		if statusCode == 0 {
			statusCode = http.StatusOK
		}

		method := r.Method
		ctx := r.Context()

		route := ""
		if rc := chi.RouteContext(ctx); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = assetRoute(r.URL.Path)
		}

		status := strconv.Itoa(statusCode)
		m.reqTotal.WithLabelValues(method, route, status).Inc()

		lat := time.Since(start).Seconds()
		if ex := traceExemplar(ctx); ex != nil {
			if eo, ok := m.reqDur.WithLabelValues(method, route).(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(lat, ex)
			} else {
				m.reqDur.WithLabelValues(method, route).Observe(lat)
			}
		} else {
			m.reqDur.WithLabelValues(method, route).Observe(lat)
		}

		m.respBytes.WithLabelValues(method, route).Observe(float64(sw.n))
		if statusCode >= 500 {
			m.errorsTotal.WithLabelValues(method, route).Inc()
		}
	})
}

// if a sampled trace is present attach its trace_id as an exemplar
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}
