package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/notify"
	"gradlink-backend/pkg/utils"
)

// EmailAdminHandler exposes the notification gateway to system admins:
// status, transport verification, template preview, test sends and the
// delivery log.
type EmailAdminHandler struct {
	cfg       *config.Config
	gateway   *notify.Gateway
	templates *notify.TemplateRegistry
	logger    *zap.Logger
}

// NewEmailAdminHandler creates the handler.
func NewEmailAdminHandler(cfg *config.Config, gateway *notify.Gateway, templates *notify.TemplateRegistry, logger *zap.Logger) *EmailAdminHandler {
	return &EmailAdminHandler{cfg: cfg, gateway: gateway, templates: templates, logger: logger}
}

// Status handles GET /api/admin/email/status.
func (h *EmailAdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, h.gateway.Status())
}

// Verify handles POST /api/admin/email/verify.
func (h *EmailAdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Verify(r.Context()); err != nil {
		utils.WriteServiceUnavailableResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"verified": true})
}

// Preview handles GET /api/admin/email/preview/{templateName}. Query
// params become template data, so an admin can preview with realistic
// values. Without a name it lists the available templates.
func (h *EmailAdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "templateName")
	if name == "" {
		utils.WriteSuccessResponse(w, map[string]interface{}{"templates": h.templates.Names()})
		return
	}

	data := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		data[key] = values[0]
	}

	rendered, err := h.templates.Render(name, data)
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"template": rendered.TemplateName,
		"subject":  rendered.Subject,
		"html":     rendered.HTML,
		"text":     notify.StripHTML(rendered.HTML),
	})
}

// Test handles POST /api/admin/email/test: a synchronous send so the
// admin sees the delivery outcome, rate-limit snapshot included.
func (h *EmailAdminHandler) Test(w http.ResponseWriter, r *http.Request) {
	var input models.TestEmailInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "invalid JSON body")
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	name := input.TemplateName
	if name == "" {
		name = "testEmail"
	}
	rendered, err := h.templates.Render(name, map[string]any{})
	if err != nil {
		utils.WriteFaultResponse(w, err)
		return
	}

	result, err := h.gateway.Send(r.Context(), notify.SendRequest{
		To:           input.To,
		Subject:      rendered.Subject,
		HTML:         rendered.HTML,
		TemplateName: rendered.TemplateName,
	})
	if err != nil {
		// The result still carries the reason and rate snapshot.
		h.logger.Warn("test email failed", zap.String("to", input.To), zap.Error(err))
		switch {
		case result != nil && result.Reason == "rate_limited":
			utils.WriteJSONResponse(w, http.StatusTooManyRequests, result)
		case result != nil && result.Reason == "disabled":
			utils.WriteJSONResponse(w, http.StatusConflict, result)
		default:
			utils.WriteJSONResponse(w, http.StatusBadGateway, result)
		}
		return
	}

	utils.WriteSuccessResponse(w, result)
}

// Log handles GET /api/admin/email/log?limit=50.
func (h *EmailAdminHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(utils.GetQueryParam(r, "limit", "50"))
	entries := h.gateway.Log(limit)
	utils.WriteSuccessResponse(w, map[string]interface{}{"entries": entries, "total": len(entries)})
}
