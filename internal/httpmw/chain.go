package httpmw

import (
	"net/http"
	"slices"
)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h so that mws[0] is the outermost middleware. Nil entries are
// skipped so optional middleware can be listed inline.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for _, mw := range slices.Backward(mws) {
		if mw != nil {
			h = mw(h)
		}
	}
	return h
}
