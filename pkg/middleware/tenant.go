package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

const tenantKey contextKey = "tenant"

// ResolverConfig controls how hostnames map to tenants.
type ResolverConfig struct {
	BaseDomain      string
	OverrideEnabled bool
}

// ResolveTenant maps the request hostname to a tenant and attaches it to
// the context. Unknown hosts get 404, tenants that exist but are not
// active get 403; handlers behind this middleware can rely on an active
// tenant being present.
func ResolveTenant(registry *tenant.Registry, cfg ResolverConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	base := strings.ToLower(cfg.BaseDomain)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := resolve(registry, cfg, base, r)
			if t == nil {
				utils.WriteNotFoundResponse(w, "marketplace not found")
				return
			}
			if t.Status != models.TenantActive {
				logger.Debug("request to non-active tenant",
					zap.String("tenant", t.ID),
					zap.String("status", string(t.Status)))
				utils.WriteForbiddenResponse(w, "marketplace unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(registry *tenant.Registry, cfg ResolverConfig, base string, r *http.Request) *models.Tenant {
	if cfg.OverrideEnabled {
		if id := r.Header.Get("X-Tenant-ID"); id != "" {
			return registry.ByID(id)
		}
		if id := r.URL.Query().Get("tenant"); id != "" {
			return registry.ByID(id)
		}
	}

	return LookupHost(registry, base, r.Host)
}

// LookupHost maps a request hostname to a tenant, or nil. The port is
// ignored; subdomains of the base domain resolve by subdomain. Any other
// hostname first resolves as a custom domain through the institution
// domain, then falls back to the default tenant: a host outside the base
// domain carries no subdomain.
func LookupHost(registry *tenant.Registry, baseDomain, host string) *models.Tenant {
	base := strings.ToLower(baseDomain)
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	switch {
	case host == base || host == "www."+base || host == "localhost" || host == "127.0.0.1":
		return registry.BySubdomain("")
	case strings.HasSuffix(host, "."+base):
		// Only the label directly preceding the base domain counts.
		sub := strings.TrimSuffix(host, "."+base)
		if i := strings.LastIndex(sub, "."); i >= 0 {
			sub = sub[i+1:]
		}
		if sub == "www" {
			return registry.BySubdomain("")
		}
		return registry.BySubdomain(sub)
	default:
		if t := registry.ByInstitutionDomain(host); t != nil {
			return t
		}
		return registry.BySubdomain("")
	}
}

// TenantFromContext returns the resolved tenant, or nil.
func TenantFromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}
