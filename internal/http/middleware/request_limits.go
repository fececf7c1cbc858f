package middleware

import (
	"errors"
	"net/http"

	"github.com/yava-delivery/orderhub/internal/httputil"
)

// RequestSizeLimit creates middleware that limits the maximum request body size.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit request body size to prevent memory exhaustion
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// HandleMaxBytesError checks if the error came from MaxBytesReader and, if
// so, writes a 413 response.
func HandleMaxBytesError(w http.ResponseWriter, err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return true
	}
	return false
}
