package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BuildInfo identifies the build being served.
type BuildInfo interface {
	ModuleHash() string
	CacheNamespace() string
}

// BuildHeaders adds X-Build-Module and X-Build-Namespace so a tester can tell
// which build answered, plus the trace and span ids of a recording trace.
func BuildHeaders(info BuildInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if sc := span.SpanContext(); sc.IsValid() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				w.Header().Set("X-Span-Id", sc.SpanID().String())
			}

			if info != nil {
				mod, ns := info.ModuleHash(), info.CacheNamespace()
				if mod != "" {
					// short hash is enough to tell builds apart
					short := mod
					if len(short) > 12 {
						short = short[:12]
					}
					w.Header().Set("X-Build-Module", short)
				}
				if ns != "" {
					w.Header().Set("X-Build-Namespace", ns)
				}
				if span.IsRecording() {
					span.SetAttributes(
						attribute.String("webbuild.module_sha256", mod),
						attribute.String("webbuild.cache_namespace", ns),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
