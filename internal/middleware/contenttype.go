package middleware

import (
	"mime"
	"net/http"
)

// ContentType requires a JSON media type on requests that carry a body.
// Bodyless POSTs (e.g. triggers without input) pass without a header.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
		default:
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Content-Type")
		if header == "" {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is required")
			return
		}

		mediaType, _, err := mime.ParseMediaType(header)
		if err != nil || mediaType != "application/json" {
			writeError(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
