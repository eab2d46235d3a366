package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds non-streaming API calls
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Request Timeout","message":"The request took too long"}`

// Timeout enforces a deadline on request handlers. http.TimeoutHandler buffers
// the whole response, so streaming routes must not be wrapped with it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
