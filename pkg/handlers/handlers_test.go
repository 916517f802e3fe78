package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gradlink-backend/pkg/alumni"
	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/notify"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

type testEnv struct {
	router      *chi.Mux
	registry    *tenant.Registry
	alumni      *alumni.Service
	provisioner *fakeProvisioner
	jwtService  *utils.JWTService
}

type dropNotifier struct{}

func (dropNotifier) Dispatch(templateName, to string, data map[string]any) {}

// fakeProvisioner records marketplace account creations and hands out
// sequential user ids.
type fakeProvisioner struct {
	emails []string
	creds  []models.SharetribeCredentials
}

func (f *fakeProvisioner) CreateUser(ctx context.Context, creds models.SharetribeCredentials, email, firstName, lastName string) (map[string]any, error) {
	f.emails = append(f.emails, email)
	f.creds = append(f.creds, creds)
	return map[string]any{"id": fmt.Sprintf("mp-user-%d", len(f.emails))}, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	cfg := &config.Config{
		Environment: "test",
		BaseDomain:  "gradlink.io",
		JWTSecret:   "test-secret",
	}

	store, err := storage.NewRecordStore(t.TempDir(), logger)
	require.NoError(t, err)

	registry, err := tenant.NewRegistry(store, tenant.SeedConfig{ID: "gradlink", Name: "GradLink"}, logger)
	require.NoError(t, err)

	requests, err := tenant.NewRequests(store, registry, dropNotifier{}, logger)
	require.NoError(t, err)

	alumniService, err := alumni.NewService(store, dropNotifier{}, logger)
	require.NoError(t, err)

	gateway, err := notify.NewGateway(notify.GatewayConfig{
		Enabled:       true,
		RatePerMinute: 100,
	}, nil, store, logger)
	require.NoError(t, err)

	templates := notify.NewTemplateRegistry()
	tenantService := tenant.NewService(registry, t.TempDir(), logger)
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	provisioner := &fakeProvisioner{}
	adminTenants := NewAdminTenantsHandler(cfg, registry, nil, logger)
	tenantRequests := NewTenantRequestsHandler(cfg, requests, logger)
	education := NewEducationHandler(cfg, registry, tenantService, nil, logger)
	alumniHandler := NewAlumniHandler(cfg, alumniService, registry, provisioner, logger)
	emailAdmin := NewEmailAdminHandler(cfg, gateway, templates, logger)
	publicHandler := NewPublicHandler(cfg, registry, logger)

	auth := middleware.Authenticate(jwtService)

	router := chi.NewRouter()
	router.Get("/api/tenants/resolve", publicHandler.Resolve)

	router.Route("/api/admin", func(r chi.Router) {
		r.Use(auth, middleware.RequireSystemAdmin)
		r.Get("/tenants", adminTenants.List)
		r.Post("/tenants", adminTenants.Create)
		r.Get("/email/status", emailAdmin.Status)
		r.Get("/email/preview/{templateName}", emailAdmin.Preview)
	})

	router.Route("/api/education", func(r chi.Router) {
		r.Post("/tenant-request", tenantRequests.Submit)
		r.Get("/alumni/verify-invitation/{code}", alumniHandler.Verify)
		r.Post("/alumni/accept-invitation", alumniHandler.Accept)

		r.Group(func(r chi.Router) {
			r.Use(auth, middleware.RequireInstitutionAdmin)
			r.Get("/tenant", education.GetMarketplace)
			r.Get("/alumni", alumniHandler.List)
			r.Post("/alumni/invite", alumniHandler.Invite)
		})
	})

	return &testEnv{router: router, registry: registry, alumni: alumniService, provisioner: provisioner, jwtService: jwtService}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, principal *models.Principal) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		token, _, err := e.jwtService.GenerateAccessToken(principal)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var sysAdmin = &models.Principal{ID: "sys", Email: "ops@gradlink.io", Role: models.RoleSystemAdmin}
var instAdmin = &models.Principal{ID: "adm", Email: "admin@exemplo.edu", Role: models.RoleInstitutionAdmin, InstitutionDomain: "exemplo.edu"}

func TestTenantRequestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/education/tenant-request", map[string]any{
		"institution_domain": "not a domain",
		"admin_email":        "nope",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	fields := errObj["fields"].(map[string]any)
	assert.Contains(t, fields, "institutiondomain")
	assert.Contains(t, fields, "adminemail")
}

func TestTenantRequestSubmitSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/education/tenant-request", map[string]any{
		"institution_domain": "exemplo.edu",
		"institution_name":   "Universidade Exemplo",
		"admin_name":         "Carlos",
		"admin_email":        "carlos@exemplo.edu",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	req := body["data"].(map[string]any)["request"].(map[string]any)
	assert.Equal(t, "pending", req["status"])
}

func TestAdminTenantsMasked(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/tenants", map[string]any{
		"id":                       "exemplo",
		"subdomain":                "exemplo",
		"name":                     "Exemplo",
		"institution_domain":       "exemplo.edu",
		"sharetribe_client_id":     "client-id-1234",
		"sharetribe_client_secret": "client-secret-5678",
	}, sysAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	created := body["data"].(map[string]any)["tenant"].(map[string]any)
	creds := created["sharetribe"].(map[string]any)
	assert.Equal(t, "****1234", creds["client_id"])
	assert.Equal(t, "****5678", creds["client_secret"])

	// Raw credentials survive in the registry.
	raw := env.registry.ByID("exemplo")
	assert.Equal(t, "client-id-1234", raw.Sharetribe.ClientID)

	// Role guard.
	rec = env.do(t, http.MethodGet, "/api/admin/tenants", nil, instAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/admin/tenants", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicResolve(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tenants/resolve?domain=gradlink.io", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	pub := body["data"].(map[string]any)["tenant"].(map[string]any)
	assert.Equal(t, "gradlink", pub["id"])
	assert.NotContains(t, pub, "sharetribe")
	assert.NotContains(t, pub, "integration_api_key")

	rec = env.do(t, http.MethodGet, "/api/tenants/resolve?domain=ghost.gradlink.io", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tenants/resolve", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlumniInviteVerifyAcceptFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/education/alumni/invite", map[string]any{
		"email":      "ana@alumni.exemplo.edu",
		"first_name": "Ana",
		"last_name":  "Souza",
	}, instAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	inv := body["data"].(map[string]any)["invitation"].(map[string]any)
	code := inv["invitation_code"].(string)
	require.Len(t, code, utils.InvitationCodeLength)

	// Public verify: preview carries no code.
	rec = env.do(t, http.MethodGet, "/api/education/alumni/verify-invitation/"+code, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode(t, rec)["data"].(map[string]any)["invitation"].(map[string]any)
	assert.Equal(t, true, preview["valid"])
	assert.NotContains(t, preview, "invitation_code")

	// Public accept.
	rec = env.do(t, http.MethodPost, "/api/education/alumni/accept-invitation", map[string]any{
		"code":    code,
		"user_id": "user-9",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Code is now gone.
	rec = env.do(t, http.MethodGet, "/api/education/alumni/verify-invitation/"+code, nil, nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	// Listing is scoped to the admin's institution.
	rec = env.do(t, http.MethodGet, "/api/education/alumni", nil, instAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	invitations := list["data"].(map[string]any)["invitations"].([]any)
	assert.Len(t, invitations, 1)
	meta := list["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])
}

func TestAcceptInvitationProvisionsMarketplaceUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/education/alumni/invite", map[string]any{
		"email":      "bruno@alumni.exemplo.edu",
		"first_name": "Bruno",
		"last_name":  "Lima",
	}, instAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	code := decode(t, rec)["data"].(map[string]any)["invitation"].(map[string]any)["invitation_code"].(string)

	// No marketplace registered for the institution yet.
	rec = env.do(t, http.MethodPost, "/api/education/alumni/accept-invitation", map[string]any{
		"code": code,
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	_, err := env.registry.Create(models.CreateTenantInput{
		ID:                     "exemplo",
		Subdomain:              "exemplo",
		Name:                   "Exemplo",
		InstitutionDomain:      "exemplo.edu",
		SharetribeClientID:     "id-1234",
		SharetribeClientSecret: "secret-5678",
	}, models.TenantActive)
	require.NoError(t, err)

	// Without a user_id the account is provisioned from the invitation.
	rec = env.do(t, http.MethodPost, "/api/education/alumni/accept-invitation", map[string]any{
		"code": code,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	inv := decode(t, rec)["data"].(map[string]any)["invitation"].(map[string]any)
	assert.Equal(t, "mp-user-1", inv["user_id"])
	require.Len(t, env.provisioner.emails, 1)
	assert.Equal(t, "bruno@alumni.exemplo.edu", env.provisioner.emails[0])
	assert.Equal(t, "id-1234", env.provisioner.creds[0].ClientID)
}

func TestEmailAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/email/status", nil, sysAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "none", status["transport"])
	assert.Equal(t, true, status["enabled"])

	rec = env.do(t, http.MethodGet, "/api/admin/email/preview/alumniInvitation?firstName=Ana", nil, sysAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode(t, rec)["data"].(map[string]any)
	assert.Contains(t, preview["html"], "Ana")

	rec = env.do(t, http.MethodGet, "/api/admin/email/preview/nope", nil, sysAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEducationMarketplaceScoping(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Create(models.CreateTenantInput{
		ID:                     "exemplo",
		Subdomain:              "exemplo",
		Name:                   "Exemplo",
		InstitutionDomain:      "exemplo.edu",
		SharetribeClientID:     "id-1234",
		SharetribeClientSecret: "secret-5678",
	}, models.TenantActive)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/education/tenant", nil, instAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)["data"].(map[string]any)["tenant"].(map[string]any)
	assert.Equal(t, "exemplo", got["id"])
	creds := got["sharetribe"].(map[string]any)
	assert.Equal(t, "****1234", creds["client_id"])

	// A system admin must name the tenant explicitly.
	rec = env.do(t, http.MethodGet, "/api/education/tenant", nil, sysAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/education/tenant?tenant_id=exemplo", nil, sysAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An admin of an unknown institution gets not-found.
	stranger := &models.Principal{ID: "x", Role: models.RoleInstitutionAdmin, InstitutionDomain: "nowhere.edu"}
	rec = env.do(t, http.MethodGet, "/api/education/tenant", nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
