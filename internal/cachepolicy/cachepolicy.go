// Package cachepolicy decides the Cache-Control header for each file of a
// built site. The preview server and the S3 publisher share it so a file is
// cached the same way wherever it is served from.
package cachepolicy

import (
	"path"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
)

const (
	NoCache   = "no-cache"
	Immutable = "public, max-age=31536000, immutable"
	Hour      = "public, max-age=3600"
)

// Policy holds one header value per class of file. Empty fields take the
// defaults from Default.
type Policy struct {
	HTML          string // index.html and extensionless paths
	ServiceWorker string // service-worker-<hash>.js
	Hashed        string // any other content-addressed name
	Manifest      string // .webmanifest, .json, .xml
	Other         string
}

func Default() Policy {
	return Policy{
		HTML:          NoCache,
		ServiceWorker: NoCache,
		Hashed:        Immutable,
		Manifest:      Hour,
		Other:         Hour,
	}
}

func (p Policy) withDefaults() Policy {
	d := Default()
	if p.HTML == "" {
		p.HTML = d.HTML
	}
	if p.ServiceWorker == "" {
		p.ServiceWorker = d.ServiceWorker
	}
	if p.Hashed == "" {
		p.Hashed = d.Hashed
	}
	if p.Manifest == "" {
		p.Manifest = d.Manifest
	}
	if p.Other == "" {
		p.Other = d.Other
	}
	return p
}

// IsServiceWorker reports whether name is a service worker script. The
// browser revalidates registrations itself, so these must never be served
// immutable even though the name is hashed.
func IsServiceWorker(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, "service-worker") && strings.EqualFold(path.Ext(base), ".js")
}

// For returns the Cache-Control value for the slash-separated file name.
func (p Policy) For(name string) string {
	p = p.withDefaults()
	ext := strings.ToLower(path.Ext(name))

	switch {
	case IsServiceWorker(name):
		return p.ServiceWorker
	case ext == ".html" || ext == ".htm" || ext == "":
		return p.HTML
	case contenthash.IsHashed(name):
		return p.Hashed
	}

	switch ext {
	case ".webmanifest", ".json", ".xml":
		return p.Manifest
	default:
		return p.Other
	}
}

// ContentType returns a media type for extensions the platform mime table
// may not know, or "" to let the caller sniff or look it up.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".wasm":
		return "application/wasm"
	case ".webmanifest":
		return "application/manifest+json"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
