// Package alumni implements the per-tenant alumni invitation lifecycle:
// invited -> accepted | rejected, with resend regenerating the single-use
// code while the invitation is still open.
package alumni

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/utils"
)

const invitationsCollection = "alumni-invitations"

// MaxPerPage caps the listing page size.
const MaxPerPage = 100

// Notifier dispatches a notification without blocking or failing the
// triggering operation.
type Notifier interface {
	Dispatch(templateName, to string, data map[string]any)
}

// ListOptions filter and paginate invitation listings.
type ListOptions struct {
	Status  models.InvitationStatus
	Search  string
	Page    int
	PerPage int
}

// Service owns the alumni invitation collection. Invitations are scoped
// to one institution domain; administrators can only touch records in
// their own scope.
type Service struct {
	store    *storage.RecordStore
	notifier Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	invitations []*models.AlumniInvitation
}

// NewService hydrates the invitation collection from the store.
func NewService(store *storage.RecordStore, notifier Notifier, logger *zap.Logger) (*Service, error) {
	s := &Service{store: store, notifier: notifier, logger: logger}
	if err := store.Load(invitationsCollection, &s.invitations); err != nil {
		return nil, err
	}
	return s, nil
}

// Invite creates an invitation for one alumnus. The (email, institution
// domain) pair must be unique among live records. The invitation email
// is dispatched fire-and-forget after the record is durable.
func (s *Service) Invite(institutionDomain string, input models.InviteAlumniInput, invitedBy string) (*models.AlumniInvitation, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	domain := strings.ToLower(strings.TrimSpace(institutionDomain))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invitations {
		if inv.Email == email && inv.InstitutionDomain == domain {
			return nil, faults.Conflictf("%s has already been invited to %s", email, domain)
		}
	}

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}

	inv := &models.AlumniInvitation{
		ID:                uuid.New().String(),
		InstitutionDomain: domain,
		Email:             email,
		FirstName:         strings.TrimSpace(input.FirstName),
		LastName:          strings.TrimSpace(input.LastName),
		GraduationYear:    input.GraduationYear,
		Program:           input.Program,
		Status:            models.InvitationInvited,
		InvitationCode:    code,
		InvitedBy:         invitedBy,
		InvitedAt:         time.Now().UTC(),
	}

	s.invitations = append(s.invitations, inv)
	if err := s.persistLocked(); err != nil {
		s.invitations = s.invitations[:len(s.invitations)-1]
		return nil, err
	}

	s.logger.Info("alumni invited",
		zap.String("invitation_id", inv.ID),
		zap.String("institution_domain", domain))

	s.notifier.Dispatch("alumniInvitation", email, map[string]any{
		"firstName":         inv.FirstName,
		"institutionDomain": domain,
		"code":              code,
		"invitationId":      inv.ID,
	})

	out := *inv
	return &out, nil
}

// Verify checks an invitation code without authentication. Malformed
// codes are rejected by length before any lookup; codes whose invitation
// already terminated report gone, not not-found.
func (s *Service) Verify(code string) (*models.InvitationPreview, error) {
	if len(code) != utils.InvitationCodeLength {
		return nil, faults.Validationf("invitation code must be %d characters", utils.InvitationCodeLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.byCodeLocked(code)
	if inv == nil {
		return nil, faults.NotFoundf("invitation code not found")
	}
	if inv.Status != models.InvitationInvited {
		return nil, faults.Gonef("invitation has already been %s", inv.Status)
	}

	preview := inv.Preview()
	return &preview, nil
}

// PendingByCode returns a copy of the open invitation for a code. Callers
// that provision a marketplace account before accepting use it to read
// the invitee's name and email; state errors match Accept's.
func (s *Service) PendingByCode(code string) (*models.AlumniInvitation, error) {
	if len(code) != utils.InvitationCodeLength {
		return nil, faults.Validationf("invitation code must be %d characters", utils.InvitationCodeLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.byCodeLocked(code)
	if inv == nil {
		return nil, faults.NotFoundf("invitation code not found")
	}
	switch inv.Status {
	case models.InvitationAccepted:
		return nil, faults.Conflictf("invitation has already been accepted")
	case models.InvitationRejected:
		return nil, faults.Gonef("invitation has been rejected")
	}

	out := *inv
	return &out, nil
}

// Accept redeems a code for a marketplace user. A second acceptance is a
// conflict, not a duplicate success.
func (s *Service) Accept(code, userID string) (*models.AlumniInvitation, error) {
	if len(code) != utils.InvitationCodeLength {
		return nil, faults.Validationf("invitation code must be %d characters", utils.InvitationCodeLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.byCodeLocked(code)
	if inv == nil {
		return nil, faults.NotFoundf("invitation code not found")
	}
	switch inv.Status {
	case models.InvitationAccepted:
		return nil, faults.Conflictf("invitation has already been accepted")
	case models.InvitationRejected:
		return nil, faults.Gonef("invitation has been rejected")
	}

	now := time.Now().UTC()
	prev := *inv
	inv.Status = models.InvitationAccepted
	inv.UserID = userID
	inv.AcceptedAt = &now
	if err := s.persistLocked(); err != nil {
		*inv = prev
		return nil, err
	}

	s.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID),
		zap.String("user_id", userID))

	s.notifier.Dispatch("alumniWelcome", inv.Email, map[string]any{
		"firstName":         inv.FirstName,
		"institutionDomain": inv.InstitutionDomain,
		"invitationId":      inv.ID,
	})

	out := *inv
	return &out, nil
}

// Resend regenerates the code and refreshes the invitation timestamp.
// Only administrators of the record's own institution may resend, and an
// accepted invitation can never be re-opened.
func (s *Service) Resend(callerDomain, id string) (*models.AlumniInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.byIDLocked(id)
	if inv == nil {
		return nil, faults.NotFoundf("invitation %q not found", id)
	}
	if inv.InstitutionDomain != strings.ToLower(callerDomain) {
		return nil, faults.Forbiddenf("invitation %q belongs to another institution", id)
	}
	if inv.Status == models.InvitationAccepted {
		return nil, faults.Statef("invitation %q has already been accepted", id)
	}

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}

	prev := *inv
	inv.InvitationCode = code
	inv.Status = models.InvitationInvited
	inv.InvitedAt = time.Now().UTC()
	if err := s.persistLocked(); err != nil {
		*inv = prev
		return nil, err
	}

	s.logger.Info("invitation resent", zap.String("invitation_id", inv.ID))

	s.notifier.Dispatch("alumniInvitation", inv.Email, map[string]any{
		"firstName":         inv.FirstName,
		"institutionDomain": inv.InstitutionDomain,
		"code":              code,
		"invitationId":      inv.ID,
	})

	out := *inv
	return &out, nil
}

// Delete removes an invitation, freeing its (email, domain) pair. Scoped
// like Resend.
func (s *Service) Delete(callerDomain, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, inv := range s.invitations {
		if inv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return faults.NotFoundf("invitation %q not found", id)
	}
	if s.invitations[idx].InstitutionDomain != strings.ToLower(callerDomain) {
		return faults.Forbiddenf("invitation %q belongs to another institution", id)
	}

	orig := s.invitations
	s.invitations = append(append([]*models.AlumniInvitation{}, orig[:idx]...), orig[idx+1:]...)
	if err := s.persistLocked(); err != nil {
		s.invitations = orig
		return err
	}

	s.logger.Info("invitation deleted", zap.String("invitation_id", id))
	return nil
}

// List returns one page of the caller institution's invitations, newest
// first, with optional status filtering and free-text search over name
// and email. Returns the page and the total match count.
func (s *Service) List(callerDomain string, opts ListOptions) ([]models.AlumniInvitation, int) {
	domain := strings.ToLower(strings.TrimSpace(callerDomain))
	search := strings.ToLower(strings.TrimSpace(opts.Search))

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]models.AlumniInvitation, 0)
	for _, inv := range s.invitations {
		if inv.InstitutionDomain != domain {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(inv.FirstName + " " + inv.LastName + " " + inv.Email)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		matches = append(matches, *inv)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].InvitedAt.After(matches[j].InvitedAt)
	})

	total := len(matches)

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	start := (page - 1) * perPage
	if start >= total {
		return []models.AlumniInvitation{}, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matches[start:end], total
}

func (s *Service) byCodeLocked(code string) *models.AlumniInvitation {
	for _, inv := range s.invitations {
		if inv.InvitationCode == code {
			return inv
		}
	}
	return nil
}

func (s *Service) byIDLocked(id string) *models.AlumniInvitation {
	for _, inv := range s.invitations {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

// uniqueCodeLocked generates a code that collides with no live record.
func (s *Service) uniqueCodeLocked() (string, error) {
	for i := 0; i < 5; i++ {
		code, err := utils.GenerateInvitationCode()
		if err != nil {
			return "", faults.Internalf("generating invitation code: %v", err)
		}
		if s.byCodeLocked(code) == nil {
			return code, nil
		}
	}
	return "", faults.Internalf("could not generate a unique invitation code")
}

func (s *Service) persistLocked() error {
	if err := s.store.Save(invitationsCollection, s.invitations); err != nil {
		s.logger.Error("failed to persist alumni invitations", zap.Error(err))
		return faults.Internalf("persisting alumni invitations: %v", err)
	}
	return nil
}
