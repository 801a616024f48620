package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// compressible lists the types worth gzipping. wasm compresses well and is
// the largest file of every build.
var compressible = []string{
	"text/html",
	"text/css",
	"text/javascript",
	"application/javascript",
	"application/json",
	"application/manifest+json",
	"application/xml",
	"application/wasm",
	"image/x-icon",
}

// NewHandler builds the preview handler with routes + middleware.
func NewHandler(opts *Options) http.Handler {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	// chi skips Use middleware when no route is registered, and the site
	// is only ever a NotFound handler, so everything wraps the router instead
	r := chi.NewRouter()
	if opts.Routes != nil {
		opts.Routes(r)
	}

	traced := otelhttp.NewMiddleware("http.server",
		// hashed assets and icons are noise in a trace view
		otelhttp.WithFilter(func(r *http.Request) bool {
			return cachepolicy.ContentType(r.URL.Path) == "" && !isImage(r.URL.Path)
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	var recoverMW httpmw.Middleware
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(L, opts.OnPanic)
	}

	// outermost first; security headers land on every response, panics included
	return httpmw.Chain(r,
		httpmw.SecurityHeaders,
		recoverMW,
		httpmw.RequestID("X-Request-Id"),
		traced,
		httpmw.BuildHeaders(opts.Build),
		opts.MetricsMW,
		httpmw.WithLogger(L),
		middleware.Compress(5, compressible...),
		httpmw.AccessLog(),
	)
}

func isImage(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".gif", ".jpg", ".jpeg", ".webp", ".svg":
		return true
	}
	return false
}

// Server timeout defaults.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second // large modules over slow links
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
	DefaultShutdownTimeout   = 5 * time.Second
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start listens and serves in the background. It returns the bound address
// and stop(ctx) for graceful shutdown; stop is safe to call more than once.
func Start(ctx context.Context, opts *Options) (string, func(context.Context) error, error) {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(opts.Port))

	srv := NewServer(addr, NewHandler(opts))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return "", nil, xerrors.Wrapf(err, "listen %s", addr)
	}
	bound := ln.Addr().String()

	go func() {
		L.Info(ctx, "preview server listening", "addr", bound)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "preview server error")
		}
	}()

	var once sync.Once
	var stopErr error
	stop := func(sctx context.Context) error {
		once.Do(func() {
			L.Info(sctx, "preview server shutting down")
			c, cancel := context.WithTimeout(sctx, DefaultShutdownTimeout)
			defer cancel()
			stopErr = srv.Shutdown(c)
		})
		return stopErr
	}
	return bound, stop, nil
}
