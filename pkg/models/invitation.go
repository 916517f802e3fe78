package models

import "time"

// InvitationStatus is the lifecycle state of an alumni invitation.
type InvitationStatus string

const (
	InvitationInvited  InvitationStatus = "invited"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// AlumniInvitation invites one alumnus into one institution's marketplace.
// The invitation code is single use; once the invitation leaves the
// "invited" state the code is permanently dead.
type AlumniInvitation struct {
	ID                string           `json:"id"`
	InstitutionDomain string           `json:"institution_domain"`
	Email             string           `json:"email"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	GraduationYear    int              `json:"graduation_year,omitempty"`
	Program           string           `json:"program,omitempty"`
	Status            InvitationStatus `json:"status"`
	InvitationCode    string           `json:"invitation_code"`
	InvitedBy         string           `json:"invited_by,omitempty"`
	InvitedAt         time.Time        `json:"invited_at"`
	AcceptedAt        *time.Time       `json:"accepted_at,omitempty"`
	UserID            string           `json:"user_id,omitempty"`
}

// InvitationPreview is the reduced projection returned by the public
// verify endpoint. No code, no inviter.
type InvitationPreview struct {
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	GraduationYear    int    `json:"graduation_year,omitempty"`
	Program           string `json:"program,omitempty"`
	InstitutionDomain string `json:"institution_domain"`
	Valid             bool   `json:"valid"`
}

// Preview returns the public projection of the invitation.
func (inv *AlumniInvitation) Preview() InvitationPreview {
	return InvitationPreview{
		Email:             inv.Email,
		FirstName:         inv.FirstName,
		LastName:          inv.LastName,
		GraduationYear:    inv.GraduationYear,
		Program:           inv.Program,
		InstitutionDomain: inv.InstitutionDomain,
		Valid:             inv.Status == InvitationInvited,
	}
}
