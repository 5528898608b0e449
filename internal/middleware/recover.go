package middleware

import (
	"net/http"
	"runtime/debug"
)

// Recover recovers from panics and logs the error
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			m.log.Error().
				Interface("error", err).
				Str("stack", string(debug.Stack())).
				Str("request_id", GetRequestID(r.Context())).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("panic recovered")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"code":"internal_error","message":"An unexpected error occurred"}}`))
		}()

		next.ServeHTTP(w, r)
	})
}
