package cachepolicy

import "testing"

var hash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestFor_Default(t *testing.T) {
	p := Default()

	tests := []struct {
		name string
		file string
		want string
	}{
		// html
		{"index", "index.html", NoCache},
		{"uppercase HTML", "PAGE.HTML", NoCache},
		{"htm", "legacy.htm", NoCache},
		{"no extension", "about", NoCache},

		// service worker is hashed but must revalidate
		{"service worker", "service-worker-" + hash + ".js", NoCache},
		{"unhashed service worker", "service-worker.js", NoCache},

		// content-addressed
		{"module", "module-" + hash + ".wasm", Immutable},
		{"hashed js", "js/app-" + hash + ".js", Immutable},

		// manifests
		{"webmanifest", "manifest.webmanifest", Hour},
		{"yandex", "yandex-browser-manifest.json", Hour},
		{"browserconfig", "browserconfig.xml", Hour},

		// stable names revalidate hourly
		{"favicon", "favicon.ico", Hour},
		{"icon", "android-chrome-192x192.png", Hour},
		{"companion", "wasm.wasm", Hour},
		{"short hash is not a hash", "module-0123abcd.wasm", Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.For(tt.file); got != tt.want {
				t.Errorf("For(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestFor_CustomPolicies(t *testing.T) {
	p := Policy{
		HTML:     "no-store",
		Hashed:   "public, max-age=600",
		Manifest: "private",
	}

	tests := []struct {
		file string
		want string
	}{
		{"index.html", "no-store"},
		{"module-" + hash + ".wasm", "public, max-age=600"},
		{"manifest.webmanifest", "private"},
		{"favicon.ico", Hour},                       // unset -> default
		{"service-worker-" + hash + ".js", NoCache}, // unset -> default
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := p.For(tt.file); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsServiceWorker(t *testing.T) {
	for name, want := range map[string]bool{
		"service-worker.js":                  true,
		"service-worker-" + hash + ".js":     true,
		"sub/service-worker-" + hash + ".JS": true,
		"service-worker.html":                false,
		"my-service-worker.js":               false,
		"module-" + hash + ".wasm":           false,
	} {
		if got := IsServiceWorker(name); got != want {
			t.Errorf("IsServiceWorker(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	for name, want := range map[string]string{
		"module.wasm":          "application/wasm",
		"manifest.webmanifest": "application/manifest+json",
		"favicon.ico":          "image/x-icon",
		"index.html":           "",
	} {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
