// Package handlers wires HTTP routes to the domain services. Handlers
// validate at the boundary, call one service operation and translate the
// result through the shared response envelope.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

// CredentialVerifier checks marketplace credentials against the platform.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, creds models.SharetribeCredentials) error
}

// AdminTenantsHandler serves the system-admin tenant CRUD surface. Every
// tenant it returns is masked; raw credentials never leave the registry
// through this handler.
type AdminTenantsHandler struct {
	cfg      *config.Config
	registry *tenant.Registry
	verifier CredentialVerifier
	logger   *zap.Logger
}

// NewAdminTenantsHandler creates the handler. verifier may be nil, which
// skips live credential checks on create.
func NewAdminTenantsHandler(cfg *config.Config, registry *tenant.Registry, verifier CredentialVerifier, logger *zap.Logger) *AdminTenantsHandler {
	return &AdminTenantsHandler{cfg: cfg, registry: registry, verifier: verifier, logger: logger}
}

// List handles GET /api/admin/tenants.
func (h *AdminTenantsHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()
	masked := make([]models.Tenant, 0, len(all))
	for _, t := range all {
		masked = append(masked, t.Masked())
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenants": masked, "total": len(masked)})
}

// Get handles GET /api/admin/tenants/{id}.
func (h *AdminTenantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := h.registry.ByID(chi.URLParam(r, "id"))
	if t == nil {
		utils.WriteNotFoundResponse(w, "tenant not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": t.Masked()})
}

// Create handles POST /api/admin/tenants. Admin-created tenants are
// active immediately, so full credentials are required.
func (h *AdminTenantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateTenantInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	if h.verifier != nil {
		creds := models.SharetribeCredentials{
			ClientID:     input.SharetribeClientID,
			ClientSecret: input.SharetribeClientSecret,
		}
		if err := h.verifier.VerifyCredentials(r.Context(), creds); err != nil {
			utils.WriteFaultResponse(w, err)
			return
		}
	}

	created, err := h.registry.Create(input, models.TenantActive)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant created",
		zap.String("tenant", created.ID),
		zap.String("subdomain", created.Subdomain))
	utils.WriteCreatedResponse(w, map[string]interface{}{"tenant": created.Masked()})
}

// Update handles PUT /api/admin/tenants/{id}.
func (h *AdminTenantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateTenantInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	updated, err := h.registry.Update(chi.URLParam(r, "id"), input)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant updated", zap.String("tenant", updated.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": updated.Masked()})
}

// Delete handles DELETE /api/admin/tenants/{id}.
func (h *AdminTenantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(id); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant deleted", zap.String("tenant", id))
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": id})
}
