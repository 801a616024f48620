package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Recover turns a handler panic into a 500 and one error log line. onPanic,
// when set, is called after logging (the panic counter hooks in here).
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = xerrors.Wrap(v, "panic")
				default:
					err = xerrors.Newf("panic: %v", v)
				}
				L.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				).Error(r.Context(), err, "httpserver panic recovered", "stack", string(debug.Stack()))

				if onPanic != nil {
					onPanic()
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
