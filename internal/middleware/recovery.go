package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/mreyes-dev/payflow/internal/handler"
	"github.com/mreyes-dev/payflow/internal/logging"
)

// Recovery converts handler panics into a 500 instead of killing the
// connection. The stack goes to the log, never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context()).Error("panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
