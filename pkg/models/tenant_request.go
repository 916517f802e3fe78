package models

import "time"

// TenantRequestStatus tracks an institution's application to onboard.
type TenantRequestStatus string

const (
	RequestPending  TenantRequestStatus = "pending"
	RequestApproved TenantRequestStatus = "approved"
	RequestRejected TenantRequestStatus = "rejected"
)

// TenantRequest is one institution's application for a marketplace.
// At most one request per institution domain may be pending at a time.
type TenantRequest struct {
	ID                string              `json:"id"`
	InstitutionDomain string              `json:"institution_domain"`
	InstitutionName   string              `json:"institution_name"`
	AdminName         string              `json:"admin_name"`
	AdminEmail        string              `json:"admin_email"`
	Reason            string              `json:"reason,omitempty"`
	RequestingUserID  string              `json:"requesting_user_id,omitempty"`
	Status            TenantRequestStatus `json:"status"`
	SubmittedAt       time.Time           `json:"submitted_at"`
	ReviewedAt        *time.Time          `json:"reviewed_at,omitempty"`
	RejectionReason   string              `json:"rejection_reason,omitempty"`
}
