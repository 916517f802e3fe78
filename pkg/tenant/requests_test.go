package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
)

type recordingNotifier struct {
	dispatched []string
	recipients []string
}

func (n *recordingNotifier) Dispatch(templateName, to string, data map[string]any) {
	n.dispatched = append(n.dispatched, templateName)
	n.recipients = append(n.recipients, to)
}

func newTestRequests(t *testing.T) (*Requests, *Registry, *recordingNotifier) {
	t.Helper()

	store, err := storage.NewRecordStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	registry, err := NewRegistry(store, SeedConfig{ID: "gradlink", Name: "GradLink"}, zap.NewNop())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	rs, err := NewRequests(store, registry, notifier, zap.NewNop())
	require.NoError(t, err)
	return rs, registry, notifier
}

func exampleRequest() models.SubmitTenantRequestInput {
	return models.SubmitTenantRequestInput{
		InstitutionDomain: "exemplo.edu",
		InstitutionName:   "Universidade Exemplo",
		AdminName:         "Carlos Silva",
		AdminEmail:        "Carlos@Exemplo.edu",
		Reason:            "alumni engagement",
	}
}

func TestSubmitRequest(t *testing.T) {
	rs, _, notifier := newTestRequests(t)

	req, err := rs.Submit(exampleRequest(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "carlos@exemplo.edu", req.AdminEmail)
	assert.Equal(t, "user-1", req.RequestingUserID)

	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, "tenantRequestReceived", notifier.dispatched[0])
	assert.Equal(t, "carlos@exemplo.edu", notifier.recipients[0])
}

func TestSubmitRejectsDuplicatePending(t *testing.T) {
	rs, _, _ := newTestRequests(t)

	_, err := rs.Submit(exampleRequest(), "")
	require.NoError(t, err)

	_, err = rs.Submit(exampleRequest(), "")
	assert.True(t, faults.IsKind(err, faults.KindConflict))
}

func TestSubmitRejectsExistingTenantDomain(t *testing.T) {
	rs, registry, _ := newTestRequests(t)

	_, err := registry.Create(models.CreateTenantInput{
		ID:                     "exemplo",
		Subdomain:              "exemplo",
		Name:                   "Exemplo",
		InstitutionDomain:      "exemplo.edu",
		SharetribeClientID:     "id",
		SharetribeClientSecret: "secret",
	}, models.TenantActive)
	require.NoError(t, err)

	_, err = rs.Submit(exampleRequest(), "")
	assert.True(t, faults.IsKind(err, faults.KindConflict))
}

func TestApproveSpawnsOnboardingTenant(t *testing.T) {
	rs, registry, notifier := newTestRequests(t)

	req, err := rs.Submit(exampleRequest(), "")
	require.NoError(t, err)

	created, approved, err := rs.Approve(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "universidade-exemplo", created.ID)
	assert.Equal(t, "universidade-exemplo", created.Subdomain)
	assert.Equal(t, models.TenantOnboarding, created.Status)
	assert.Equal(t, "exemplo.edu", created.InstitutionDomain)
	assert.Equal(t, models.RequestApproved, approved.Status)
	require.NotNil(t, approved.ReviewedAt)

	assert.NotNil(t, registry.ByID("universidade-exemplo"))
	assert.Contains(t, notifier.dispatched, "tenantRequestApproved")

	// Terminal: a second approval is a state error, not a no-op.
	_, _, err = rs.Approve(req.ID)
	assert.True(t, faults.IsKind(err, faults.KindState))
	_, err = rs.Reject(req.ID, "")
	assert.True(t, faults.IsKind(err, faults.KindState))
}

func TestRejectIsTerminal(t *testing.T) {
	rs, _, notifier := newTestRequests(t)

	req, err := rs.Submit(exampleRequest(), "")
	require.NoError(t, err)

	rejected, err := rs.Reject(req.ID, "incomplete application")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	assert.Equal(t, "incomplete application", rejected.RejectionReason)
	assert.Contains(t, notifier.dispatched, "tenantRequestRejected")

	_, _, err = rs.Approve(req.ID)
	assert.True(t, faults.IsKind(err, faults.KindState))
}

func TestListNewestFirstWithFilter(t *testing.T) {
	rs, _, _ := newTestRequests(t)

	first, err := rs.Submit(exampleRequest(), "")
	require.NoError(t, err)

	second := exampleRequest()
	second.InstitutionDomain = "other.edu"
	second.InstitutionName = "Other University"
	sec, err := rs.Submit(second, "")
	require.NoError(t, err)

	all := rs.List("")
	require.Len(t, all, 2)
	assert.Equal(t, sec.ID, all[0].ID)

	_, err = rs.Reject(first.ID, "")
	require.NoError(t, err)

	pending := rs.List(models.RequestPending)
	require.Len(t, pending, 1)
	assert.Equal(t, sec.ID, pending[0].ID)
}

func TestApproveUnusableSlug(t *testing.T) {
	rs, _, _ := newTestRequests(t)

	bad := exampleRequest()
	bad.InstitutionName = "???"
	req, err := rs.Submit(bad, "")
	require.NoError(t, err)

	_, _, err = rs.Approve(req.ID)
	assert.True(t, faults.IsKind(err, faults.KindValidation))

	// The request stays pending so the name can be fixed out of band.
	got, err := rs.ByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, got.Status)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "universidade-exemplo", Slugify("Universidade Exemplo"))
	assert.Equal(t, "st-mary-s", Slugify("St. Mary's"))
	assert.Equal(t, "abc-123", Slugify("  ABC 123  "))
	assert.Equal(t, "", Slugify("???"))
}
