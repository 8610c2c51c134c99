package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/ironsheep/image-optim/internal/observability"
)

// Recovery recovers from panics, logs them and answers 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", observability.RequestIDFromContext(r.Context())),
					)

					writeJSONError(w, http.StatusInternalServerError, "internal server error", "internal")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
