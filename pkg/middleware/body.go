package middleware

import "net/http"

// MaxBody returns middleware that caps request bodies at limit bytes.
// Reads beyond the limit fail, which JSON decoding surfaces as a bad request.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
