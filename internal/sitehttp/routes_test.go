package sitehttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// stubHandler records whether it was called and with what method/path.
type stubHandler struct {
	called bool
	method string
	path   string
	body   string
}

func (h *stubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.method = r.Method
	h.path = r.URL.Path
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.body))
}

func serve(rt *Routes, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	rt.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRegisterRoutes_SiteIsFallback(t *testing.T) {
	site := &stubHandler{body: "site"}
	rt := New(site, nil)

	for _, target := range []string{"/", "/index.html", "/module-abc.wasm", "/levels/one.bin"} {
		*site = stubHandler{body: "site"}
		serve(rt, http.MethodGet, target)
		if !site.called || site.path != target {
			t.Fatalf("%s: site called=%v path=%q", target, site.called, site.path)
		}
	}
}

func TestRegisterRoutes_PreservesMethod(t *testing.T) {
	site := &stubHandler{}
	serve(New(site, nil), http.MethodPost, "/")
	if site.method != http.MethodPost {
		t.Fatalf("method = %q; the site handler owns the 405", site.method)
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	site := &stubHandler{body: "site"}
	metrics := &stubHandler{body: "metrics"}
	rt := New(site, metrics)

	rec := serve(rt, http.MethodGet, MetricsPath)
	if !metrics.called || site.called {
		t.Fatalf("metrics called=%v site called=%v", metrics.called, site.called)
	}
	if rec.Body.String() != "metrics" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestRegisterRoutes_MetricsGETOnly(t *testing.T) {
	site := &stubHandler{}
	metrics := &stubHandler{}
	serve(New(site, metrics), http.MethodPost, MetricsPath)
	if metrics.called {
		t.Fatal("metrics served a POST")
	}
	if !site.called {
		t.Fatal("method-not-allowed should fall through to the site")
	}
}

func TestRegisterRoutes_NoMetrics(t *testing.T) {
	site := &stubHandler{}
	serve(New(site, nil), http.MethodGet, MetricsPath)
	if !site.called {
		t.Fatal("without metrics the path belongs to the site")
	}
}

func TestRegisterRoutes_NilSite(t *testing.T) {
	rec := serve(New(nil, nil), http.MethodGet, "/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want chi default 404", rec.Code)
	}
}
