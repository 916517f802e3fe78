package models

import "time"

// TenantStatus is the lifecycle state of an institution's marketplace.
type TenantStatus string

const (
	TenantPendingRequest TenantStatus = "pending-request"
	TenantOnboarding     TenantStatus = "onboarding"
	TenantActive         TenantStatus = "active"
	TenantSuspended      TenantStatus = "suspended"
	TenantInactive       TenantStatus = "inactive"
)

// TenantBranding holds the per-institution look and feel. URLs point at
// uploaded assets or external CDN locations.
type TenantBranding struct {
	PrimaryColor    string   `json:"primary_color,omitempty"`
	SecondaryColor  string   `json:"secondary_color,omitempty"`
	MarketplaceName string   `json:"marketplace_name,omitempty"`
	LogoURL         string   `json:"logo_url,omitempty"`
	FaviconURL      string   `json:"favicon_url,omitempty"`
	BrandImageURL   string   `json:"brand_image_url,omitempty"`
	HeroImageURLs   []string `json:"hero_image_urls,omitempty"`
}

// TenantFeatures are the boolean feature switches plus plan metadata.
type TenantFeatures struct {
	AICoaching  bool   `json:"ai_coaching"`
	NDA         bool   `json:"nda"`
	Assessments bool   `json:"assessments"`
	Plan        string `json:"plan,omitempty"`
	PlanSeats   int    `json:"plan_seats,omitempty"`
}

// SharetribeCredentials are the per-tenant marketplace API credentials.
type SharetribeCredentials struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Tenant is one institution's isolated marketplace configuration.
// ID doubles as a URL-safe slug. Subdomain is empty only for the default
// tenant; InstitutionDomain scopes administrators and alumni to the tenant.
type Tenant struct {
	ID                  string                `json:"id"`
	Subdomain           string                `json:"subdomain,omitempty"`
	Name                string                `json:"name"`
	DisplayName         string                `json:"display_name,omitempty"`
	Status              TenantStatus          `json:"status"`
	InstitutionDomain   string                `json:"institution_domain,omitempty"`
	ContactEmail        string                `json:"contact_email,omitempty"`
	Sharetribe          SharetribeCredentials `json:"sharetribe"`
	IntegrationAPIKey   string                `json:"integration_api_key,omitempty"`
	Branding            TenantBranding        `json:"branding"`
	Features            TenantFeatures        `json:"features"`
	CorporatePartnerIDs []string              `json:"corporate_partner_ids,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// PublicTenant is the projection returned to unauthenticated callers.
// It must never carry credentials.
type PublicTenant struct {
	ID          string         `json:"id"`
	Subdomain   string         `json:"subdomain,omitempty"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name,omitempty"`
	Status      TenantStatus   `json:"status"`
	Branding    TenantBranding `json:"branding"`
	Features    TenantFeatures `json:"features"`
}

// Public returns the credential-free projection of the tenant.
func (t *Tenant) Public() PublicTenant {
	return PublicTenant{
		ID:          t.ID,
		Subdomain:   t.Subdomain,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Status:      t.Status,
		Branding:    t.Branding,
		Features:    t.Features,
	}
}

// MaskSecret hides a credential for display: "****" plus the last four
// characters, or just "****" when the value is too short to keep a suffix.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// Masked returns a copy of the tenant with every secret masked. All admin
// read paths must go through this before serializing a tenant.
func (t Tenant) Masked() Tenant {
	t.Sharetribe.ClientID = MaskSecret(t.Sharetribe.ClientID)
	t.Sharetribe.ClientSecret = MaskSecret(t.Sharetribe.ClientSecret)
	t.IntegrationAPIKey = MaskSecret(t.IntegrationAPIKey)
	return t
}
