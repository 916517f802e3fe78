package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/tenant"
)

func newTestRegistry(t *testing.T) *tenant.Registry {
	t.Helper()

	store, err := storage.NewRecordStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	r, err := tenant.NewRegistry(store, tenant.SeedConfig{ID: "gradlink", Name: "GradLink"}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Create(models.CreateTenantInput{
		ID:                     "exemplo",
		Subdomain:              "exemplo",
		Name:                   "Exemplo",
		InstitutionDomain:      "alumni.exemplo.edu",
		SharetribeClientID:     "id",
		SharetribeClientSecret: "secret",
	}, models.TenantActive)
	require.NoError(t, err)

	_, err = r.Create(models.CreateTenantInput{
		ID:                "pending",
		Subdomain:         "pending",
		Name:              "Pending University",
		InstitutionDomain: "pending.edu",
	}, models.TenantOnboarding)
	require.NoError(t, err)

	return r
}

func TestLookupHost(t *testing.T) {
	r := newTestRegistry(t)

	cases := []struct {
		host string
		want string // tenant id, "" for nil
	}{
		{"gradlink.io", "gradlink"},
		{"www.gradlink.io", "gradlink"},
		{"GRADLINK.IO:3000", "gradlink"},
		{"localhost:3000", "gradlink"},
		{"exemplo.gradlink.io", "exemplo"},
		{"exemplo.gradlink.io:8443", "exemplo"},
		{"extra.exemplo.gradlink.io", "exemplo"},
		{"alumni.exemplo.edu", "exemplo"},
		{"unknown.gradlink.io", ""},
		// Hosts outside the base domain without a registered custom
		// domain carry no subdomain and land on the default tenant.
		{"someother.edu", "gradlink"},
		{"internal-lb.example.net", "gradlink"},
	}
	for _, tc := range cases {
		got := LookupHost(r, "gradlink.io", tc.host)
		if tc.want == "" {
			assert.Nil(t, got, tc.host)
		} else {
			require.NotNil(t, got, tc.host)
			assert.Equal(t, tc.want, got.ID, tc.host)
		}
	}
}

func serveResolved(t *testing.T, r *tenant.Registry, cfg ResolverConfig, req *http.Request) (*httptest.ResponseRecorder, *models.Tenant) {
	t.Helper()

	var resolved *models.Tenant
	handler := ResolveTenant(r, cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, resolved
}

func TestResolveTenantActive(t *testing.T) {
	r := newTestRegistry(t)
	cfg := ResolverConfig{BaseDomain: "gradlink.io"}

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "exemplo.gradlink.io"

	rec, resolved := serveResolved(t, r, cfg, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	assert.Equal(t, "exemplo", resolved.ID)
}

func TestResolveTenantUnknownHost(t *testing.T) {
	r := newTestRegistry(t)
	cfg := ResolverConfig{BaseDomain: "gradlink.io"}

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "ghost.gradlink.io"

	rec, _ := serveResolved(t, r, cfg, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace not found")
}

func TestResolveTenantNotActive(t *testing.T) {
	r := newTestRegistry(t)
	cfg := ResolverConfig{BaseDomain: "gradlink.io"}

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "pending.gradlink.io"

	rec, _ := serveResolved(t, r, cfg, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace unavailable")
}

func TestResolveTenantDevOverride(t *testing.T) {
	r := newTestRegistry(t)

	// Override disabled: the header is ignored and the host wins.
	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "gradlink.io"
	req.Header.Set("X-Tenant-ID", "exemplo")
	_, resolved := serveResolved(t, r, ResolverConfig{BaseDomain: "gradlink.io"}, req)
	require.NotNil(t, resolved)
	assert.Equal(t, "gradlink", resolved.ID)

	// Override enabled: header selects the tenant.
	req = httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "gradlink.io"
	req.Header.Set("X-Tenant-ID", "exemplo")
	_, resolved = serveResolved(t, r, ResolverConfig{BaseDomain: "gradlink.io", OverrideEnabled: true}, req)
	require.NotNil(t, resolved)
	assert.Equal(t, "exemplo", resolved.ID)

	// Query form works too.
	req = httptest.NewRequest(http.MethodGet, "/api/tenant?tenant=exemplo", nil)
	req.Host = "gradlink.io"
	_, resolved = serveResolved(t, r, ResolverConfig{BaseDomain: "gradlink.io", OverrideEnabled: true}, req)
	require.NotNil(t, resolved)
	assert.Equal(t, "exemplo", resolved.ID)
}

func TestRestoreForwardedHost(t *testing.T) {
	var seen string
	handler := RestoreForwardedHost(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Host
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Host", "exemplo.gradlink.io")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "exemplo.gradlink.io", seen)
}
