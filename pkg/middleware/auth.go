// Package middleware holds the HTTP middleware chain: tenant resolution,
// authentication, request logging, panic recovery, CORS and body guards.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticate validates the bearer token and attaches the principal to
// the request context. Requests without a usable token are rejected.
func Authenticate(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.WriteUnauthorizedResponse(w, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				utils.WriteUnauthorizedResponse(w, "authorization header must be a bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				utils.WriteUnauthorizedResponse(w, "invalid or expired token")
				return
			}
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "token is not an access token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}

// RequireSystemAdmin rejects callers that are not platform operators.
func RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			utils.WriteUnauthorizedResponse(w, "authentication required")
			return
		}
		if p.Role != models.RoleSystemAdmin {
			utils.WriteForbiddenResponse(w, "system administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireInstitutionAdmin admits institution administrators and system
// administrators. Institution admins must carry an institution scope.
func RequireInstitutionAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			utils.WriteUnauthorizedResponse(w, "authentication required")
			return
		}
		switch p.Role {
		case models.RoleSystemAdmin:
		case models.RoleInstitutionAdmin:
			if p.InstitutionDomain == "" {
				utils.WriteForbiddenResponse(w, "administrator has no institution scope")
				return
			}
		default:
			utils.WriteForbiddenResponse(w, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
