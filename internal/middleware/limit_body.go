package middleware

import (
	"net/http"
)

// DefaultMaxBodySize is the request body limit used when none is given (64KB)
const DefaultMaxBodySize = 64 << 10

// LimitBody caps request bodies at max bytes; max <= 0 uses DefaultMaxBodySize
func LimitBody(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
