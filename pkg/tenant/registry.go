// Package tenant implements the tenant registry, the tenant request
// workflow and the tenant-scoped lifecycle operations. The Registry is
// the only component that writes the tenants collection; every mutation,
// admin- or institution-initiated, funnels through it.
package tenant

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/utils"
)

const tenantsCollection = "tenants"

// Reserved routing labels that can never become tenant subdomains.
var reservedSubdomains = map[string]bool{
	"default": true,
	"www":     true,
	"api":     true,
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// SeedConfig describes the default tenant created when the store holds
// no tenants, so an unconfigured deployment behaves single-tenant.
type SeedConfig struct {
	ID                     string
	Name                   string
	InstitutionDomain      string
	SharetribeClientID     string
	SharetribeClientSecret string
}

// Registry is the canonical lookup and mutation surface for tenants:
// an in-memory cache hydrated from the record store at construction and
// re-persisted in full on every mutation.
type Registry struct {
	store     *storage.RecordStore
	logger    *zap.Logger
	defaultID string

	mu      sync.RWMutex
	tenants []*models.Tenant
}

// NewRegistry hydrates the registry from the store, seeding the default
// tenant when the collection is empty.
func NewRegistry(store *storage.RecordStore, seed SeedConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		store:     store,
		logger:    logger,
		defaultID: seed.ID,
	}

	var loaded []*models.Tenant
	if err := store.Load(tenantsCollection, &loaded); err != nil {
		return nil, err
	}
	r.tenants = loaded

	if len(r.tenants) == 0 {
		now := time.Now().UTC()
		def := &models.Tenant{
			ID:                seed.ID,
			Name:              seed.Name,
			DisplayName:       seed.Name,
			Status:            models.TenantActive,
			InstitutionDomain: seed.InstitutionDomain,
			Sharetribe: models.SharetribeCredentials{
				ClientID:     seed.SharetribeClientID,
				ClientSecret: seed.SharetribeClientSecret,
			},
			Features:  models.TenantFeatures{Plan: "standard"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.tenants = []*models.Tenant{def}
		if err := r.persistLocked(); err != nil {
			return nil, err
		}
		logger.Info("seeded default tenant", zap.String("tenant_id", seed.ID))
	}

	return r, nil
}

// DefaultID returns the immutable id of the default tenant.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// BySubdomain resolves a routing label to a tenant. An empty subdomain
// resolves to the default tenant. Returns nil when unknown.
func (r *Registry) BySubdomain(subdomain string) *models.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain == "" {
		return r.byIDLocked(r.defaultID)
	}
	for _, t := range r.tenants {
		if t.Subdomain == subdomain {
			out := *t
			return &out
		}
	}
	return nil
}

// ByInstitutionDomain resolves an email domain to a tenant, or nil.
func (r *Registry) ByInstitutionDomain(domain string) *models.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}
	for _, t := range r.tenants {
		if t.InstitutionDomain == domain {
			out := *t
			return &out
		}
	}
	return nil
}

// ByID resolves a tenant id, or nil.
func (r *Registry) ByID(id string) *models.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byIDLocked(id)
}

func (r *Registry) byIDLocked(id string) *models.Tenant {
	for _, t := range r.tenants {
		if t.ID == id {
			out := *t
			return &out
		}
	}
	return nil
}

// All returns copies of every tenant, sorted by creation time.
func (r *Registry) All() []models.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Create validates and appends a new tenant. Credentials are required
// for tenants created directly active; tenants spawned by request
// approval start onboarding and acquire credentials before activation.
func (r *Registry) Create(input models.CreateTenantInput, status models.TenantStatus) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.ToLower(strings.TrimSpace(input.ID))
	subdomain := strings.ToLower(strings.TrimSpace(input.Subdomain))
	domain := strings.ToLower(strings.TrimSpace(input.InstitutionDomain))

	if err := validateSubdomain(subdomain); err != nil {
		return nil, err
	}
	if status == models.TenantActive {
		if input.SharetribeClientID == "" || input.SharetribeClientSecret == "" {
			return nil, faults.Validationf("sharetribe credentials are required")
		}
	}

	for _, t := range r.tenants {
		if t.ID == id {
			return nil, faults.Conflictf("tenant %q already exists", id)
		}
		if t.Subdomain != "" && t.Subdomain == subdomain {
			return nil, faults.Conflictf("subdomain %q is already in use", subdomain)
		}
		if domain != "" && t.InstitutionDomain == domain {
			return nil, faults.Conflictf("institution domain %q is already in use", domain)
		}
	}

	apiKey, err := utils.GenerateURLToken(24)
	if err != nil {
		return nil, faults.Internalf("generating integration api key: %v", err)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Name
	}

	now := time.Now().UTC()
	t := &models.Tenant{
		ID:                id,
		Subdomain:         subdomain,
		Name:              input.Name,
		DisplayName:       displayName,
		Status:            status,
		InstitutionDomain: domain,
		ContactEmail:      strings.ToLower(strings.TrimSpace(input.ContactEmail)),
		Sharetribe: models.SharetribeCredentials{
			ClientID:     input.SharetribeClientID,
			ClientSecret: input.SharetribeClientSecret,
		},
		IntegrationAPIKey:   apiKey,
		Features:            models.TenantFeatures{Plan: "standard"},
		CorporatePartnerIDs: input.CorporatePartnerIDs,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	r.tenants = append(r.tenants, t)
	if err := r.persistLocked(); err != nil {
		r.tenants = r.tenants[:len(r.tenants)-1]
		return nil, err
	}

	r.logger.Info("tenant created",
		zap.String("tenant_id", t.ID),
		zap.String("status", string(t.Status)))

	out := *t
	return &out, nil
}

// Update applies a patch: scalar fields are shallow-merged, the
// branding/features/sharetribe sub-objects deep-merged. The default
// tenant's subdomain can never change.
func (r *Registry) Update(id string, patch models.UpdateTenantInput) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t *models.Tenant
	for _, cur := range r.tenants {
		if cur.ID == id {
			t = cur
			break
		}
	}
	if t == nil {
		return nil, faults.NotFoundf("tenant %q not found", id)
	}

	prev := *t

	if patch.Subdomain != nil {
		sub := strings.ToLower(strings.TrimSpace(*patch.Subdomain))
		if t.ID == r.defaultID && sub != t.Subdomain {
			return nil, faults.Forbiddenf("the default tenant's subdomain cannot be changed")
		}
		if sub != t.Subdomain {
			if err := validateSubdomain(sub); err != nil {
				return nil, err
			}
			for _, other := range r.tenants {
				if other.ID != t.ID && other.Subdomain == sub {
					return nil, faults.Conflictf("subdomain %q is already in use", sub)
				}
			}
			t.Subdomain = sub
		}
	}
	if patch.InstitutionDomain != nil {
		domain := strings.ToLower(strings.TrimSpace(*patch.InstitutionDomain))
		if domain != t.InstitutionDomain {
			for _, other := range r.tenants {
				if other.ID != t.ID && domain != "" && other.InstitutionDomain == domain {
					return nil, faults.Conflictf("institution domain %q is already in use", domain)
				}
			}
			t.InstitutionDomain = domain
		}
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.DisplayName != nil {
		t.DisplayName = *patch.DisplayName
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.ContactEmail != nil {
		t.ContactEmail = strings.ToLower(strings.TrimSpace(*patch.ContactEmail))
	}
	if patch.Branding != nil {
		mergeBranding(&t.Branding, patch.Branding)
	}
	if patch.Features != nil {
		mergeFeatures(&t.Features, patch.Features)
	}
	if patch.Sharetribe != nil {
		if patch.Sharetribe.ClientID != nil {
			t.Sharetribe.ClientID = *patch.Sharetribe.ClientID
		}
		if patch.Sharetribe.ClientSecret != nil {
			t.Sharetribe.ClientSecret = *patch.Sharetribe.ClientSecret
		}
	}

	t.UpdatedAt = time.Now().UTC()

	if err := r.persistLocked(); err != nil {
		*t = prev
		return nil, err
	}

	out := *t
	return &out, nil
}

// Delete removes a tenant. The default tenant can never be deleted.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.defaultID {
		return faults.Forbiddenf("the default tenant cannot be deleted")
	}

	idx := -1
	for i, t := range r.tenants {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return faults.NotFoundf("tenant %q not found", id)
	}

	orig := r.tenants
	r.tenants = append(append([]*models.Tenant{}, orig[:idx]...), orig[idx+1:]...)
	if err := r.persistLocked(); err != nil {
		r.tenants = orig
		return err
	}

	r.logger.Info("tenant deleted", zap.String("tenant_id", id))
	return nil
}

func (r *Registry) persistLocked() error {
	if err := r.store.Save(tenantsCollection, r.tenants); err != nil {
		r.logger.Error("failed to persist tenants", zap.Error(err))
		return faults.Internalf("persisting tenants: %v", err)
	}
	return nil
}

func validateSubdomain(subdomain string) error {
	if subdomain == "" {
		return faults.Validationf("subdomain is required")
	}
	if len(subdomain) > 63 || !subdomainPattern.MatchString(subdomain) {
		return faults.Validationf("subdomain %q must be lowercase alphanumeric with hyphens", subdomain)
	}
	if reservedSubdomains[subdomain] {
		return faults.Validationf("subdomain %q is reserved", subdomain)
	}
	return nil
}

func mergeBranding(dst *models.TenantBranding, patch *models.BrandingPatch) {
	if patch.PrimaryColor != nil {
		dst.PrimaryColor = *patch.PrimaryColor
	}
	if patch.SecondaryColor != nil {
		dst.SecondaryColor = *patch.SecondaryColor
	}
	if patch.MarketplaceName != nil {
		dst.MarketplaceName = *patch.MarketplaceName
	}
	if patch.LogoURL != nil {
		dst.LogoURL = *patch.LogoURL
	}
	if patch.FaviconURL != nil {
		dst.FaviconURL = *patch.FaviconURL
	}
	if patch.BrandImageURL != nil {
		dst.BrandImageURL = *patch.BrandImageURL
	}
	if patch.HeroImageURLs != nil {
		dst.HeroImageURLs = patch.HeroImageURLs
	}
}

func mergeFeatures(dst *models.TenantFeatures, patch *models.FeaturesPatch) {
	if patch.AICoaching != nil {
		dst.AICoaching = *patch.AICoaching
	}
	if patch.NDA != nil {
		dst.NDA = *patch.NDA
	}
	if patch.Assessments != nil {
		dst.Assessments = *patch.Assessments
	}
	if patch.Plan != nil {
		dst.Plan = *patch.Plan
	}
	if patch.PlanSeats != nil {
		dst.PlanSeats = *patch.PlanSeats
	}
}
