package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover turns a panic below it into a rendered error instead of a dropped
// connection. render receives the panic message.
func Recover(logger *slog.Logger, render func(w http.ResponseWriter, r *http.Request, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil || v == http.ErrAbortHandler {
					if v != nil {
						panic(v)
					}
					return
				}
				msg := fmt.Sprint(v)
				if err, ok := v.(error); ok {
					msg = err.Error()
				}
				logger.Error("panic recovered", "path", r.URL.Path, "panic", msg, "stack", string(debug.Stack()))
				render(w, r, msg)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
