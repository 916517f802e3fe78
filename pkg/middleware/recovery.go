package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"gradlink-backend/pkg/utils"
)

// Recoverer converts handler panics into 500 responses with a logged
// stack trace instead of killing the connection.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()))
					utils.WriteInternalServerErrorResponse(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
