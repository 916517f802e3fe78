package middleware

import "net/http"

// RestoreForwardedHost rewrites r.Host from X-Forwarded-Host when the
// service runs behind a proxy, so tenant resolution sees the hostname the
// client actually used.
func RestoreForwardedHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
			r.Host = fwd
		}
		next.ServeHTTP(w, r)
	})
}
