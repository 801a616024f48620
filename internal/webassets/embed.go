package webassets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Placeholder tokens shared between the templates and the build.
const (
	TokenModulePath    = "INSERT-WASM-MODULE-PATH-HERE"
	TokenServiceWorker = "INSERT-SERVICE-WORKER-JS-PATH-HERE"
	TokenFavicons      = "<!-- INSERT-FAVICONS-GENERATED-HTML-HERE -->"
	TokenCachePrefix   = "INSERT-CACHE-PREFIX-HERE"
	TokenCacheBuster   = "INSERT-CACHE-BUSTER-HERE"
	TokenStoragePrefix = "INSERT-LOCAL-STORAGE-PREFIX-HERE"
)

const (
	ServiceWorkerName = "service-worker.js"
	IndexName         = "index.html"
)

// templates/ must hold both defaults to satisfy go:embed
//
//go:embed templates
var embedded embed.FS

// Tokens lists every placeholder the build knows about.
func Tokens() []string {
	return []string{
		TokenModulePath,
		TokenServiceWorker,
		TokenFavicons,
		TokenCachePrefix,
		TokenCacheBuster,
		TokenStoragePrefix,
	}
}

// TemplatesFS returns the embedded default templates rooted at templates/.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Errorf("webassets: templates subfs: %w", err))
	}
	return sub
}

// ServiceWorker returns the template at path, or the embedded default when
// path is empty.
func ServiceWorker(path string) (string, error) {
	return load(path, ServiceWorkerName)
}

// Index returns the HTML shell template at path, or the embedded default when
// path is empty.
func Index(path string) (string, error) {
	return load(path, IndexName)
}

func load(path, fallback string) (string, error) {
	if path == "" {
		b, err := fs.ReadFile(TemplatesFS(), fallback)
		if err != nil {
			return "", xerrors.Wrapf(err, "read embedded %s", fallback)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", xerrors.Wrapf(err, "read template %s", path)
	}
	return string(b), nil
}
