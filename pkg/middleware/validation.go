package middleware

import (
	"net/http"
	"strings"

	"gradlink-backend/pkg/utils"
)

// ContentTypeJSON rejects body-carrying requests that do not declare a
// JSON content type. Multipart uploads declare their own handling.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := r.Header.Get("Content-Type")
			if ct == "" || strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "multipart/form-data") {
				break
			}
			utils.WriteErrorResponseWithCode(w, http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE", "content type must be application/json", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize caps request bodies at n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
