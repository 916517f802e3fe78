package models

// Per-operation request payloads, validated at the handler boundary
// before any domain logic runs.

// CreateTenantInput is the system-admin tenant creation payload.
type CreateTenantInput struct {
	ID                   string   `json:"id" validate:"required,min=2,max=63"`
	Subdomain            string   `json:"subdomain" validate:"required,min=2,max=63"`
	Name                 string   `json:"name" validate:"required"`
	DisplayName          string   `json:"display_name"`
	InstitutionDomain    string   `json:"institution_domain" validate:"omitempty,fqdn"`
	ContactEmail         string   `json:"contact_email" validate:"omitempty,email"`
	SharetribeClientID   string   `json:"sharetribe_client_id" validate:"required"`
	SharetribeClientSecret string `json:"sharetribe_client_secret" validate:"required"`
	CorporatePartnerIDs  []string `json:"corporate_partner_ids"`
}

// UpdateTenantInput is the system-admin patch payload. Nil pointers mean
// "leave unchanged"; branding/features/sharetribe are deep-merged.
type UpdateTenantInput struct {
	Name              *string         `json:"name,omitempty"`
	DisplayName       *string         `json:"display_name,omitempty"`
	Status            *TenantStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending-request onboarding active suspended inactive"`
	Subdomain         *string         `json:"subdomain,omitempty"`
	InstitutionDomain *string         `json:"institution_domain,omitempty" validate:"omitempty,fqdn"`
	ContactEmail      *string         `json:"contact_email,omitempty" validate:"omitempty,email"`
	Branding          *BrandingPatch  `json:"branding,omitempty"`
	Features          *FeaturesPatch  `json:"features,omitempty"`
	Sharetribe        *SharetribePatch `json:"sharetribe,omitempty"`
}

// BrandingPatch deep-merges into TenantBranding; empty strings are skipped.
type BrandingPatch struct {
	PrimaryColor    *string  `json:"primary_color,omitempty"`
	SecondaryColor  *string  `json:"secondary_color,omitempty"`
	MarketplaceName *string  `json:"marketplace_name,omitempty"`
	LogoURL         *string  `json:"logo_url,omitempty"`
	FaviconURL      *string  `json:"favicon_url,omitempty"`
	BrandImageURL   *string  `json:"brand_image_url,omitempty"`
	HeroImageURLs   []string `json:"hero_image_urls,omitempty"`
}

// FeaturesPatch deep-merges into TenantFeatures.
type FeaturesPatch struct {
	AICoaching  *bool   `json:"ai_coaching,omitempty"`
	NDA         *bool   `json:"nda,omitempty"`
	Assessments *bool   `json:"assessments,omitempty"`
	Plan        *string `json:"plan,omitempty"`
	PlanSeats   *int    `json:"plan_seats,omitempty"`
}

// SharetribePatch deep-merges into SharetribeCredentials.
type SharetribePatch struct {
	ClientID     *string `json:"client_id,omitempty"`
	ClientSecret *string `json:"client_secret,omitempty"`
}

// SubmitTenantRequestInput is an institution's application to onboard.
type SubmitTenantRequestInput struct {
	InstitutionDomain string `json:"institution_domain" validate:"required,fqdn"`
	InstitutionName   string `json:"institution_name" validate:"required,min=2"`
	AdminName         string `json:"admin_name" validate:"required"`
	AdminEmail        string `json:"admin_email" validate:"required,email"`
	Reason            string `json:"reason"`
}

// RejectTenantRequestInput carries the optional rejection reason.
type RejectTenantRequestInput struct {
	Reason string `json:"reason"`
}

// InviteAlumniInput creates one alumni invitation.
type InviteAlumniInput struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	GraduationYear int    `json:"graduation_year" validate:"omitempty,gte=1900,lte=2100"`
	Program        string `json:"program"`
}

// AcceptInvitationInput redeems an invitation code for a marketplace
// user. When UserID is empty a marketplace account is provisioned from
// the invitation's name and email.
type AcceptInvitationInput struct {
	Code   string `json:"code" validate:"required,len=32"`
	UserID string `json:"user_id"`
}

// TestEmailInput asks the gateway to send a test notification.
type TestEmailInput struct {
	To           string `json:"to" validate:"required,email"`
	TemplateName string `json:"template_name"`
}
