package middleware

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Limiter caps the number of requests processed at once. Requests over the
// limit are answered with 429 immediately.
type Limiter struct {
	limit    int64
	inflight atomic.Int64
	exempt   map[string]bool
}

// NewLimiter creates a limiter; a limit of zero or less admits everything.
// Requests for the exempt paths are never counted.
func NewLimiter(limit int, exempt ...string) *Limiter {
	l := &Limiter{limit: int64(limit), exempt: make(map[string]bool, len(exempt))}
	for _, p := range exempt {
		l.exempt[p] = true
	}
	return l
}

// InFlight returns the number of admitted requests still running.
func (l *Limiter) InFlight() int64 {
	return l.inflight.Load()
}

// Handler is the middleware.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		n := l.inflight.Add(1)
		defer l.inflight.Add(-1)
		if l.limit > 0 && n > l.limit {
			writeJSONError(w, http.StatusTooManyRequests, "processing limit exceeded", "limit")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message, category string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message":  message,
		"category": category,
	})
}
