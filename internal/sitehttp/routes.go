package sitehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MetricsPath is kept off the site namespace; the build never emits a "-"
// directory.
const MetricsPath = "/-/metrics"

type Routes struct {
	Site    http.Handler
	Metrics http.Handler // optional
}

func New(site, metrics http.Handler) *Routes {
	return &Routes{Site: site, Metrics: metrics}
}

// RegisterRoutes adds the metrics endpoint, then makes the site the
// fallback for everything else. Every site path is a NotFound from chi's
// point of view; the site handler does its own resolution and method checks.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	if rt.Metrics != nil {
		r.Method(http.MethodGet, MetricsPath, rt.Metrics)
	}
	if rt.Site != nil {
		r.NotFound(rt.Site.ServeHTTP)
		r.MethodNotAllowed(rt.Site.ServeHTTP)
	}
}
