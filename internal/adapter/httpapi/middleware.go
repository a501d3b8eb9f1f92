package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/ruimcosta/investrack-backend/internal/logger"
)

// AuthMiddleware validates the bearer token on every request.
// Missing or invalid tokens are rejected with 401 before any handler runs.
func AuthMiddleware(validToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header || token != validToken {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a request-scoped logger carrying a request id to the
// context, so handlers and services log with correlation.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLog := logger.L.With(
			"requestId", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
		)
		requestLog.Debug("request received")
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), requestLog)))
	})
}
