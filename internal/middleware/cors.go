package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

const defaultOrigin = "http://localhost:3000"

// AllowedOrigins parses a comma-separated origin list, always including the local dev origin
func AllowedOrigins(frontendURL string) []string {
	origins := []string{defaultOrigin}
	for _, o := range strings.Split(frontendURL, ",") {
		o = strings.TrimSpace(o)
		if o != "" && !slices.Contains(origins, o) {
			origins = append(origins, o)
		}
	}
	return origins
}

// CORS wraps rs/cors for the web client origins in frontendURL
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   AllowedOrigins(frontendURL),
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
	})
	return c.Handler
}
