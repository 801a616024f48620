package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

func TestResponseWriter_DefaultsTo200AndCountsBytes(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _ = rw.Write([]byte("hello"))
	_, _ = rw.Write([]byte(" world"))
	if rw.status != http.StatusOK || rw.bytes != 11 {
		t.Fatalf("status = %d bytes = %d", rw.status, rw.bytes)
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // superfluous, ignored by net/http too
	if rw.status != http.StatusNotFound {
		t.Fatalf("status = %d", rw.status)
	}
	if rw.Unwrap() != rec {
		t.Fatal("Unwrap does not return the underlying writer")
	}
}

func TestWithLogger_StoresRequestScopedLogger(t *testing.T) {
	spy := newSpyLogger()
	var got log.Logger
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = log.FromContext(r.Context()) }),
		RequestID(""),
		WithLogger(spy),
	)

	req := httptest.NewRequest(http.MethodGet, "/index.html?secret=1", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("X-Request-Id", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != spy {
		t.Fatal("handler did not see the request-scoped logger")
	}
	for key, want := range map[string]any{
		"request_id":           "abc-123",
		"network.peer.address": "192.0.2.7",
		"http.request.method":  "GET",
		"url.path":             "/index.html",
	} {
		if v, _ := field(spy.with, key); v != want {
			t.Errorf("%s = %v, want %v", key, v, want)
		}
	}
	if _, ok := field(spy.with, "url.query"); ok {
		t.Error("query string must not be logged")
	}
}

func TestWithLogger_NilBase(t *testing.T) {
	called := false
	h := WithLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(context.Background(), "ok")
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler not called")
	}
}

// serveLogged runs AccessLog around a chi router whose only handler is the
// NotFound fallback, the way the preview serves the site.
func serveLogged(t *testing.T, target string, status int) *spyLogger {
	t.Helper()
	spy := newSpyLogger()
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	})

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(log.WithContext(req.Context(), spy))
	AccessLog()(r).ServeHTTP(httptest.NewRecorder(), req)
	return spy
}

func TestAccessLog_PageAtInfo(t *testing.T) {
	spy := serveLogged(t, "/", http.StatusOK)
	if len(spy.infos) != 1 || spy.infos[0].msg != "http request" {
		t.Fatalf("infos = %+v", spy.infos)
	}
	kv := spy.infos[0].kv
	if v, _ := field(kv, "http.response.status_code"); v != http.StatusOK {
		t.Errorf("status = %v", v)
	}
	if v, _ := field(kv, "http.response.body.size"); v != int64(4) {
		t.Errorf("body size = %v", v)
	}
	if v, _ := field(kv, "http.route"); v != "site" {
		t.Errorf("route = %v", v)
	}
}

func TestAccessLog_AssetAtDebug(t *testing.T) {
	spy := serveLogged(t, "/favicon-16x16.png", http.StatusOK)
	if len(spy.infos) != 0 || len(spy.debugs) != 1 {
		t.Fatalf("infos = %d debugs = %d", len(spy.infos), len(spy.debugs))
	}
}

func TestAccessLog_FailedAssetAtInfo(t *testing.T) {
	spy := serveLogged(t, "/module-missing.wasm", http.StatusNotFound)
	if len(spy.infos) != 1 {
		t.Fatalf("a failed asset should be visible at info, got %d lines", len(spy.infos))
	}
}

func TestAccessLog_RoutePattern(t *testing.T) {
	spy := newSpyLogger()
	r := chi.NewRouter()
	r.Get("/-/metrics", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/-/metrics", nil)
	req = req.WithContext(log.WithContext(req.Context(), spy))
	AccessLog()(r).ServeHTTP(httptest.NewRecorder(), req)

	if len(spy.infos) != 1 {
		t.Fatalf("infos = %d, want 1", len(spy.infos))
	}
	if v, _ := field(spy.infos[0].kv, "http.route"); v != "/-/metrics" {
		t.Fatalf("route = %v, want /-/metrics", v)
	}
}

func TestIsAsset(t *testing.T) {
	for p, want := range map[string]bool{
		"/":                  false,
		"/index.html":        false,
		"/levels/":           false,
		"/levels.d/page":     false,
		"/module-abc.wasm":   true,
		"/favicon.ico":       true,
		"/sub/icon.png":      true,
		"/service-worker.js": true,
	} {
		if got := isAsset(p); got != want {
			t.Errorf("isAsset(%q) = %v, want %v", p, got, want)
		}
	}
}
