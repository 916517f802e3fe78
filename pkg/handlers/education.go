package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/marketplace"
	"gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

// EducationHandler serves the institution-admin surface: an admin manages
// their own marketplace through their institution scope, independent of
// which hostname the request arrived on. Suspended or onboarding tenants
// stay manageable here even though the public resolver rejects them.
type EducationHandler struct {
	cfg      *config.Config
	registry *tenant.Registry
	service  *tenant.Service
	client   *marketplace.Client
	logger   *zap.Logger
}

// NewEducationHandler creates the handler.
func NewEducationHandler(cfg *config.Config, registry *tenant.Registry, service *tenant.Service, client *marketplace.Client, logger *zap.Logger) *EducationHandler {
	return &EducationHandler{cfg: cfg, registry: registry, service: service, client: client, logger: logger}
}

// scoped resolves the tenant the caller administers. Institution admins
// are bound to their institution domain; system admins pick any tenant
// with ?tenant_id=.
func (h *EducationHandler) scoped(r *http.Request) (*models.Tenant, error) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		return nil, faults.New(faults.KindUnauthorized, "authentication required")
	}

	if p.Role == models.RoleSystemAdmin {
		id := utils.GetQueryParam(r, "tenant_id", "")
		if id == "" {
			return nil, faults.Validationf("tenant_id query parameter is required for system administrators")
		}
		if t := h.registry.ByID(id); t != nil {
			return t, nil
		}
		return nil, faults.NotFoundf("tenant not found")
	}

	if t := h.registry.ByInstitutionDomain(p.InstitutionDomain); t != nil {
		return t, nil
	}
	return nil, faults.NotFoundf("no marketplace is registered for your institution")
}

// GetMarketplace handles GET /api/education/tenant.
func (h *EducationHandler) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": t.Masked()})
}

// UpdateBranding handles PUT /api/education/tenant/branding.
func (h *EducationHandler) UpdateBranding(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	var patch models.BrandingPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}

	updated, err := h.service.UpdateBranding(t.ID, patch)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("branding updated", zap.String("tenant", updated.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": updated.Masked()})
}

// UpdateSettings handles PUT /api/education/tenant/settings.
func (h *EducationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	var patch models.FeaturesPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}

	updated, err := h.service.UpdateSettings(t.ID, patch)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("settings updated", zap.String("tenant", updated.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": updated.Masked()})
}

// Activate handles POST /api/education/tenant/activate, moving an
// onboarding tenant live.
func (h *EducationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	activated, err := h.service.Activate(t.ID)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant activated", zap.String("tenant", activated.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": activated.Masked()})
}

// UploadLogo handles POST /api/education/tenant/logo as a multipart
// upload with a "logo" file part.
func (h *EducationHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	if err := r.ParseMultipartForm(tenant.MaxLogoBytes); err != nil {
		utils.WriteBadRequestResponse(w, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		utils.WriteBadRequestResponse(w, "missing logo file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, tenant.MaxLogoBytes+1))
	if err != nil {
		utils.WriteBadRequestResponse(w, "could not read upload")
		return
	}

	updated, err := h.service.UploadLogo(t.ID, data, header.Header.Get("Content-Type"))
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("logo uploaded",
		zap.String("tenant", updated.ID),
		zap.Int("bytes", len(data)))
	utils.WriteSuccessResponse(w, map[string]interface{}{"tenant": updated.Masked()})
}

// VerifyCredentials handles POST /api/education/tenant/verify-credentials,
// checking that the tenant's stored Sharetribe credentials are accepted
// by the platform.
func (h *EducationHandler) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	if err := h.client.VerifyCredentials(r.Context(), t.Sharetribe); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"verified": true})
}

// Users handles GET /api/education/marketplace/users, a passthrough to
// the tenant's own Sharetribe instance.
func (h *EducationHandler) Users(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.client.QueryUsers)
}

// Listings handles GET /api/education/marketplace/listings.
func (h *EducationHandler) Listings(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.client.QueryListings)
}

// Transactions handles GET /api/education/marketplace/transactions.
func (h *EducationHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.client.QueryTransactions)
}

func (h *EducationHandler) passthrough(w http.ResponseWriter, r *http.Request,
	query func(ctx context.Context, creds models.SharetribeCredentials, page marketplace.Page) (*marketplace.QueryResult, error)) {

	t, err := h.scoped(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	page, _ := strconv.Atoi(utils.GetQueryParam(r, "page", "1"))
	perPage, _ := strconv.Atoi(utils.GetQueryParam(r, "per_page", "20"))

	result, err := query(r.Context(), t.Sharetribe, marketplace.Page{Number: page, PerPage: perPage})
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WritePaginatedResponse(w, map[string]interface{}{"items": result.Data},
		result.Meta.Page, result.Meta.PerPage, result.Meta.TotalItems)
}
