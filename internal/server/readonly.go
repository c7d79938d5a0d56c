package server

import "net/http"

// ReadOnlyMiddleware rejects every method except GET, HEAD and OPTIONS.
// With it the API can publish the scan table without letting callers start
// or abort scans.
func ReadOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			MethodNotAllowed(w, "server is read-only", r.URL.Path)
		}
	})
}
