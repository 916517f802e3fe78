package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

// TenantRequestsHandler serves the onboarding request workflow: public
// submission plus the system-admin review queue.
type TenantRequestsHandler struct {
	cfg      *config.Config
	requests *tenant.Requests
	logger   *zap.Logger
}

// NewTenantRequestsHandler creates the handler.
func NewTenantRequestsHandler(cfg *config.Config, requests *tenant.Requests, logger *zap.Logger) *TenantRequestsHandler {
	return &TenantRequestsHandler{cfg: cfg, requests: requests, logger: logger}
}

// Submit handles POST /api/education/tenant-request. Authentication is optional:
// a logged-in requester is recorded, an anonymous one is not.
func (h *TenantRequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input models.SubmitTenantRequestInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	requestingUserID := ""
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		requestingUserID = p.ID
	}

	req, err := h.requests.Submit(input, requestingUserID)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant request submitted",
		zap.String("request", req.ID),
		zap.String("domain", req.InstitutionDomain))
	utils.WriteCreatedResponse(w, map[string]interface{}{"request": req})
}

// List handles GET /api/admin/tenant-requests?status=pending.
func (h *TenantRequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.TenantRequestStatus(utils.GetQueryParam(r, "status", ""))
	list := h.requests.List(status)
	utils.WriteSuccessResponse(w, map[string]interface{}{"requests": list, "total": len(list)})
}

// Get handles GET /api/admin/tenant-requests/{id}.
func (h *TenantRequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.ByID(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"request": req})
}

// Approve handles POST /api/admin/tenant-requests/{id}/approve. The new
// tenant starts in onboarding; credentials come later from its admin.
func (h *TenantRequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	created, req, err := h.requests.Approve(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant request approved",
		zap.String("request", req.ID),
		zap.String("tenant", created.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"request": req,
		"tenant":  created.Masked(),
	})
}

// Reject handles POST /api/admin/tenant-requests/{id}/reject.
func (h *TenantRequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var input models.RejectTenantRequestInput
	if r.ContentLength > 0 {
		if err := utils.ParseJSONBody(r, &input); err != nil {
			utils.WriteBadRequestResponse(w, "invalid JSON body")
			return
		}
	}

	req, err := h.requests.Reject(chi.URLParam(r, "id"), input.Reason)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	h.logger.Info("tenant request rejected", zap.String("request", req.ID))
	utils.WriteSuccessResponse(w, map[string]interface{}{"request": req})
}
