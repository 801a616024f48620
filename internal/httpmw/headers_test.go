package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var noop = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

func TestSecurityHeaders_CrossOriginIsolation(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for header, want := range map[string]string{
		"Cross-Origin-Embedder-Policy": "require-corp",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_CSPAllowsTheShell(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	got := rec.Header().Get("Content-Security-Policy")
	for _, d := range []string{
		"default-src 'self'",
		"'wasm-unsafe-eval'",
		"worker-src 'self'",
		"manifest-src 'self'",
		"frame-ancestors 'none'",
		"object-src 'none'",
	} {
		if !strings.Contains(got, d) {
			t.Errorf("CSP missing %q: %s", d, got)
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		inbound  string
		keepSame bool
	}{
		{"generated", "", false},
		{"propagated", "trace-42.a_b", true},
		{"too long", strings.Repeat("a", 65), false},
		{"unsafe characters", "id\nInjected: yes", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set("X-Request-Id", tt.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get("X-Request-Id") != seen {
				t.Fatalf("context id %q, header %q", seen, rec.Header().Get("X-Request-Id"))
			}
			if (seen == tt.inbound) != tt.keepSame {
				t.Fatalf("id = %q, inbound %q, keep = %v", seen, tt.inbound, tt.keepSame)
			}
		})
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("got %q", got)
	}
	if ctx := WithRequestID(context.Background(), ""); RequestIDFromContext(ctx) != "" {
		t.Fatal("empty id stored")
	}
}

type buildInfo struct{ mod, ns string }

func (b buildInfo) ModuleHash() string     { return b.mod }
func (b buildInfo) CacheNamespace() string { return b.ns }

func TestBuildHeaders(t *testing.T) {
	info := buildInfo{mod: "0123456789abcdef0123", ns: "game-1234"}
	rec := httptest.NewRecorder()
	BuildHeaders(info)(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Build-Module"); got != "0123456789ab" {
		t.Fatalf("X-Build-Module = %q", got)
	}
	if got := rec.Header().Get("X-Build-Namespace"); got != "game-1234" {
		t.Fatalf("X-Build-Namespace = %q", got)
	}
	if rec.Header().Get("X-Trace-Id") != "" {
		t.Fatal("trace header set without a span")
	}
}

func TestBuildHeaders_NilInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	BuildHeaders(nil)(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Build-Module") != "" || rec.Header().Get("X-Build-Namespace") != "" {
		t.Fatal("headers set without build info")
	}
}

func TestBuildHeaders_TraceIDsAndAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "req")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	BuildHeaders(buildInfo{mod: "abc", ns: "game-1"})(noop).ServeHTTP(rec, req)
	span.End()

	sc := span.SpanContext()
	if rec.Header().Get("X-Trace-Id") != sc.TraceID().String() || rec.Header().Get("X-Span-Id") != sc.SpanID().String() {
		t.Fatal("trace headers do not match the active span")
	}

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	var found bool
	for _, kv := range ended[0].Attributes() {
		if string(kv.Key) == "webbuild.cache_namespace" && kv.Value.AsString() == "game-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("namespace attribute not recorded")
	}
}
