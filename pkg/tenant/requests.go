package tenant

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
)

const requestsCollection = "tenant-requests"

// Notifier dispatches a lifecycle notification without blocking or
// failing the triggering operation.
type Notifier interface {
	Dispatch(templateName, to string, data map[string]any)
}

// Requests runs the tenant request workflow: an institution applies,
// a system administrator approves (spawning an onboarding tenant) or
// rejects. Both transitions are terminal.
type Requests struct {
	store    *storage.RecordStore
	registry *Registry
	notifier Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	requests []*models.TenantRequest
}

// NewRequests hydrates the request workflow from the store.
func NewRequests(store *storage.RecordStore, registry *Registry, notifier Notifier, logger *zap.Logger) (*Requests, error) {
	rs := &Requests{
		store:    store,
		registry: registry,
		notifier: notifier,
		logger:   logger,
	}
	if err := store.Load(requestsCollection, &rs.requests); err != nil {
		return nil, err
	}
	return rs, nil
}

// Submit files a new application. At most one request per institution
// domain may be pending, and a domain that already has a tenant cannot
// apply again.
func (rs *Requests) Submit(input models.SubmitTenantRequestInput, requestingUserID string) (*models.TenantRequest, error) {
	domain := strings.ToLower(strings.TrimSpace(input.InstitutionDomain))

	if existing := rs.registry.ByInstitutionDomain(domain); existing != nil {
		return nil, faults.Conflictf("a marketplace already exists for %q", domain)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, req := range rs.requests {
		if req.InstitutionDomain == domain && req.Status == models.RequestPending {
			return nil, faults.Conflictf("a request for %q is already pending review", domain)
		}
	}

	req := &models.TenantRequest{
		ID:                uuid.New().String(),
		InstitutionDomain: domain,
		InstitutionName:   strings.TrimSpace(input.InstitutionName),
		AdminName:         strings.TrimSpace(input.AdminName),
		AdminEmail:        strings.ToLower(strings.TrimSpace(input.AdminEmail)),
		Reason:            input.Reason,
		RequestingUserID:  requestingUserID,
		Status:            models.RequestPending,
		SubmittedAt:       time.Now().UTC(),
	}

	rs.requests = append(rs.requests, req)
	if err := rs.persistLocked(); err != nil {
		rs.requests = rs.requests[:len(rs.requests)-1]
		return nil, err
	}

	rs.logger.Info("tenant request submitted",
		zap.String("request_id", req.ID),
		zap.String("institution_domain", domain))

	rs.notifier.Dispatch("tenantRequestReceived", req.AdminEmail, map[string]any{
		"adminName":       req.AdminName,
		"institutionName": req.InstitutionName,
		"requestId":       req.ID,
	})

	out := *req
	return &out, nil
}

// List returns requests, optionally filtered by status, newest first.
func (rs *Requests) List(status models.TenantRequestStatus) []models.TenantRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	out := make([]models.TenantRequest, 0, len(rs.requests))
	for _, req := range rs.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ByID returns a single request or a not-found error.
func (rs *Requests) ByID(id string) (*models.TenantRequest, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, req := range rs.requests {
		if req.ID == id {
			out := *req
			return &out, nil
		}
	}
	return nil, faults.NotFoundf("tenant request %q not found", id)
}

// Approve terminates a pending request and spawns an onboarding tenant
// whose id and subdomain are a slug of the institution name. Re-approval
// of a non-pending request is a state error, never a silent no-op.
func (rs *Requests) Approve(id string) (*models.Tenant, *models.TenantRequest, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	req := rs.findLocked(id)
	if req == nil {
		return nil, nil, faults.NotFoundf("tenant request %q not found", id)
	}
	if req.Status != models.RequestPending {
		return nil, nil, faults.Statef("tenant request %q is already %s", id, req.Status)
	}

	slug := Slugify(req.InstitutionName)
	if slug == "" {
		return nil, nil, faults.Validationf("institution name %q does not yield a usable subdomain", req.InstitutionName)
	}

	created, err := rs.registry.Create(models.CreateTenantInput{
		ID:                slug,
		Subdomain:         slug,
		Name:              req.InstitutionName,
		DisplayName:       req.InstitutionName,
		InstitutionDomain: req.InstitutionDomain,
		ContactEmail:      req.AdminEmail,
	}, models.TenantOnboarding)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	prev := *req
	req.Status = models.RequestApproved
	req.ReviewedAt = &now
	if err := rs.persistLocked(); err != nil {
		*req = prev
		return nil, nil, err
	}

	rs.logger.Info("tenant request approved",
		zap.String("request_id", req.ID),
		zap.String("tenant_id", created.ID))

	rs.notifier.Dispatch("tenantRequestApproved", req.AdminEmail, map[string]any{
		"adminName":       req.AdminName,
		"institutionName": req.InstitutionName,
		"subdomain":       created.Subdomain,
		"requestId":       req.ID,
	})

	outReq := *req
	return created, &outReq, nil
}

// Reject terminates a pending request with an optional reason. Like
// Approve, it refuses to touch a non-pending request.
func (rs *Requests) Reject(id, reason string) (*models.TenantRequest, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	req := rs.findLocked(id)
	if req == nil {
		return nil, faults.NotFoundf("tenant request %q not found", id)
	}
	if req.Status != models.RequestPending {
		return nil, faults.Statef("tenant request %q is already %s", id, req.Status)
	}

	now := time.Now().UTC()
	prev := *req
	req.Status = models.RequestRejected
	req.ReviewedAt = &now
	req.RejectionReason = reason
	if err := rs.persistLocked(); err != nil {
		*req = prev
		return nil, err
	}

	rs.logger.Info("tenant request rejected",
		zap.String("request_id", req.ID),
		zap.String("reason", reason))

	rs.notifier.Dispatch("tenantRequestRejected", req.AdminEmail, map[string]any{
		"adminName":       req.AdminName,
		"institutionName": req.InstitutionName,
		"reason":          reason,
		"requestId":       req.ID,
	})

	out := *req
	return &out, nil
}

func (rs *Requests) findLocked(id string) *models.TenantRequest {
	for _, req := range rs.requests {
		if req.ID == id {
			return req
		}
	}
	return nil
}

func (rs *Requests) persistLocked() error {
	if err := rs.store.Save(requestsCollection, rs.requests); err != nil {
		rs.logger.Error("failed to persist tenant requests", zap.Error(err))
		return faults.Internalf("persisting tenant requests: %v", err)
	}
	return nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name, replaces every non-alphanumeric run with a
// hyphen and trims leading/trailing hyphens. May return "".
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
