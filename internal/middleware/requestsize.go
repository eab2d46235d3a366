package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize bounds message bodies. Content itself is capped lower by validation.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects declared oversize bodies and caps undeclared ones while they are read
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
