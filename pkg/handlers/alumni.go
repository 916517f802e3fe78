package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gradlink-backend/pkg/alumni"
	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

// UserProvisioner creates a marketplace account for an accepted alumnus
// using the tenant's own credentials.
type UserProvisioner interface {
	CreateUser(ctx context.Context, creds models.SharetribeCredentials, email, firstName, lastName string) (map[string]any, error)
}

// AlumniHandler serves the invitation lifecycle: admin-side management
// scoped to the caller's institution, plus the public verify/accept flow
// used by the invited alumni themselves.
type AlumniHandler struct {
	cfg         *config.Config
	service     *alumni.Service
	registry    *tenant.Registry
	provisioner UserProvisioner
	logger      *zap.Logger
}

// NewAlumniHandler creates the handler. provisioner may be nil, in which
// case accepting an invitation requires an existing marketplace user id.
func NewAlumniHandler(cfg *config.Config, service *alumni.Service, registry *tenant.Registry, provisioner UserProvisioner, logger *zap.Logger) *AlumniHandler {
	return &AlumniHandler{cfg: cfg, service: service, registry: registry, provisioner: provisioner, logger: logger}
}

// callerDomain returns the institution scope the caller operates under.
// System admins may target any institution with ?institution_domain=.
func callerDomain(r *http.Request) (string, error) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		return "", faults.New(faults.KindUnauthorized, "authentication required")
	}
	if p.Role == models.RoleSystemAdmin {
		if d := utils.GetQueryParam(r, "institution_domain", ""); d != "" {
			return d, nil
		}
		return "", faults.Validationf("institution_domain query parameter is required for system administrators")
	}
	return p.InstitutionDomain, nil
}

// Invite handles POST /api/education/alumni/invite.
func (h *AlumniHandler) Invite(w http.ResponseWriter, r *http.Request) {
	domain, err := callerDomain(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	var input models.InviteAlumniInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	invitedBy := ""
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		invitedBy = p.ID
	}

	inv, err := h.service.Invite(domain, input, invitedBy)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("alumni invited",
		zap.String("invitation", inv.ID),
		zap.String("domain", inv.InstitutionDomain))
	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": inv})
}

// List handles GET /api/education/alumni.
func (h *AlumniHandler) List(w http.ResponseWriter, r *http.Request) {
	domain, err := callerDomain(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	page, _ := strconv.Atoi(utils.GetQueryParam(r, "page", "1"))
	perPage, _ := strconv.Atoi(utils.GetQueryParam(r, "per_page", "20"))

	opts := alumni.ListOptions{
		Status:  models.InvitationStatus(utils.GetQueryParam(r, "status", "")),
		Search:  utils.GetQueryParam(r, "search", ""),
		Page:    page,
		PerPage: perPage,
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 20
	}
	if opts.PerPage > alumni.MaxPerPage {
		opts.PerPage = alumni.MaxPerPage
	}

	list, total := h.service.List(domain, opts)
	utils.WritePaginatedResponse(w, map[string]interface{}{"invitations": list}, opts.Page, opts.PerPage, total)
}

// Resend handles PUT /api/education/alumni/{id}/resend.
// The code is regenerated, so a previously sent link goes dead.
func (h *AlumniHandler) Resend(w http.ResponseWriter, r *http.Request) {
	domain, err := callerDomain(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	inv, err := h.service.Resend(domain, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("invitation resent", zap.String("invitation", inv.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}

// Delete handles DELETE /api/education/alumni/{id}.
func (h *AlumniHandler) Delete(w http.ResponseWriter, r *http.Request) {
	domain, err := callerDomain(r)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(domain, id); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("invitation deleted", zap.String("invitation", id))
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": id})
}

// Verify handles GET /api/education/alumni/verify-invitation/{code}.
// Public: an alumnus checks their code before signing up. The response
// is a reduced projection that never echoes the code back.
func (h *AlumniHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	preview, err := h.service.Verify(code)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": preview})
}

// Accept handles POST /api/education/alumni/accept-invitation. Public:
// redeems a code once and binds the invitation to the marketplace user.
// Without a user_id the account is provisioned on the tenant's
// marketplace first.
func (h *AlumniHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var input models.AcceptInvitationInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	userID := input.UserID
	if userID == "" {
		var err error
		userID, err = h.provisionUser(r.Context(), input.Code)
		if err != nil {
			utils.WriteFaultResponse(w, err)
			return
		}
	}

	inv, err := h.service.Accept(input.Code, userID)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("invitation accepted",
		zap.String("invitation", inv.ID),
		zap.String("domain", inv.InstitutionDomain))
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}

// provisionUser creates a marketplace account for the invitee and returns
// its id. The invitation must still be open and its institution must have
// a marketplace with credentials.
func (h *AlumniHandler) provisionUser(ctx context.Context, code string) (string, error) {
	if h.provisioner == nil {
		return "", faults.Validationf("user_id is required")
	}

	inv, err := h.service.PendingByCode(code)
	if err != nil {
		return "", err
	}

	t := h.registry.ByInstitutionDomain(inv.InstitutionDomain)
	if t == nil || t.Sharetribe.ClientID == "" {
		return "", faults.Statef("no marketplace is configured for %s", inv.InstitutionDomain)
	}

	created, err := h.provisioner.CreateUser(ctx, t.Sharetribe, inv.Email, inv.FirstName, inv.LastName)
	if err != nil {
		return "", err
	}
	id, _ := created["id"].(string)
	if id == "" {
		return "", faults.Internalf("marketplace returned no user id")
	}

	h.logger.Info("marketplace user provisioned",
		zap.String("invitation", inv.ID),
		zap.String("user", id))
	return id, nil
}
