package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

type Options struct {
	Logger log.Logger
	Host   string // default: 127.0.0.1
	Port   int    // 0 picks a free port

	// Routes registers handlers on the router; the site is expected to be
	// registered as the NotFound fallback (see sitehttp).
	Routes func(chi.Router)

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	Build        httpmw.BuildInfo // X-Build-* headers
}
