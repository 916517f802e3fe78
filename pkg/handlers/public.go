package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

// PublicHandler serves the unauthenticated surface: health checks, the
// frontend bootstrap resolve endpoint and the resolved tenant's public
// configuration. Nothing here may leak credentials.
type PublicHandler struct {
	cfg      *config.Config
	registry *tenant.Registry
	logger   *zap.Logger
	started  time.Time
}

// NewPublicHandler creates the handler.
func NewPublicHandler(cfg *config.Config, registry *tenant.Registry, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{cfg: cfg, registry: registry, logger: logger, started: time.Now()}
}

// Health handles GET /healthz.
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      "ok",
		"environment": h.cfg.Environment,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	})
}

// Resolve handles GET /api/tenants/resolve?domain=. The frontend calls
// this at bootstrap to learn which marketplace a hostname belongs to
// before any user is signed in.
func (h *PublicHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	domain := utils.GetQueryParam(r, "domain", "")
	if domain == "" {
		utils.WriteBadRequestResponse(w, "domain query parameter is required")
		return
	}

	t := middleware.LookupHost(h.registry, h.cfg.BaseDomain, domain)
	if t == nil {
		utils.WriteNotFoundResponse(w, "marketplace not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": t.Public()})
}

// Current handles GET /api/tenant behind the resolver: the public
// configuration of the marketplace the request landed on.
func (h *PublicHandler) Current(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	if t == nil {
		utils.WriteNotFoundResponse(w, "marketplace not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": t.Public()})
}
