package sitehandler

import (
	"io/fs"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
)

// Handler serves a built site the way the production host is expected to:
// index.html at the root, per-file cache policy, and the headers the service
// worker needs to control the whole origin.
type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// hardening: only allow GET/HEAD
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	res := resolve(r.URL.Path, h.opts.Site)
	switch {
	case res.redirect != "":
		// 308 keeps the method
		http.Redirect(w, r, res.redirect, http.StatusPermanentRedirect)
		return
	case res.file == "":
		h.serveNotFound(w, r)
		return
	}

	hdr := w.Header()
	hdr.Set("Cache-Control", h.opts.Cache.For(res.file))
	if ct := cachepolicy.ContentType(res.file); ct != "" {
		hdr.Set("Content-Type", ct)
	}
	if cachepolicy.IsServiceWorker(res.file) {
		// registered from a hashed name but scoped to the whole origin
		hdr.Set("Service-Worker-Allowed", "/")
	}

	http.ServeFileFS(w, r, h.opts.Site, res.file)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	// avoid caching 404 responses
	w.Header().Set("Cache-Control", "no-store")

	if existsFile(h.opts.Site, h.opts.NotFoundFile) {
		serveFileWithStatus(w, r, http.StatusNotFound, h.opts.Site, h.opts.NotFoundFile)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

// http.ServeFileFS picks its own status, so the first WriteHeader is
// replaced with the one we want.
type statusOverrideWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusOverrideWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *statusOverrideWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}
	return w.ResponseWriter.Write(p)
}

func serveFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	sw := &statusOverrideWriter{ResponseWriter: w, status: status}
	http.ServeFileFS(sw, r, fsys, name)
}
