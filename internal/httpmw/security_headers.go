package httpmw

import "net/http"

// csp for the game shell: the page carries its own inline script and style,
// compiles wasm, and registers a same-origin worker.
const csp = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'wasm-unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; " +
	"worker-src 'self'; " +
	"manifest-src 'self'; " +
	"connect-src 'self'; " +
	"base-uri 'self'; form-action 'none'; frame-ancestors 'none'; object-src 'none'"

// SecurityHeaders adds the headers the page is expected to ship with. COOP
// and COEP make the document cross-origin isolated, which the runtime needs
// for SharedArrayBuffer and high resolution timers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
		h.Set("Cross-Origin-Embedder-Policy", "require-corp")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
