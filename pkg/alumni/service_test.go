package alumni

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/utils"
)

type recordingNotifier struct {
	dispatched []string
}

func (n *recordingNotifier) Dispatch(templateName, to string, data map[string]any) {
	n.dispatched = append(n.dispatched, templateName)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()

	store, err := storage.NewRecordStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	s, err := NewService(store, notifier, zap.NewNop())
	require.NoError(t, err)
	return s, notifier
}

func anaInput() models.InviteAlumniInput {
	return models.InviteAlumniInput{
		Email:          "Ana@Alumni.Exemplo.edu",
		FirstName:      "Ana",
		LastName:       "Souza",
		GraduationYear: 2020,
		Program:        "Engineering",
	}
}

func TestInvitationLifecycle(t *testing.T) {
	s, notifier := newTestService(t)

	inv, err := s.Invite("exemplo.edu", anaInput(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationInvited, inv.Status)
	assert.Equal(t, "ana@alumni.exemplo.edu", inv.Email)
	assert.Len(t, inv.InvitationCode, utils.InvitationCodeLength)
	assert.Equal(t, []string{"alumniInvitation"}, notifier.dispatched)

	// Duplicate (email, domain) is a conflict.
	_, err = s.Invite("exemplo.edu", anaInput(), "admin-1")
	assert.True(t, faults.IsKind(err, faults.KindConflict))

	// Same email in another institution is fine.
	_, err = s.Invite("other.edu", anaInput(), "admin-2")
	require.NoError(t, err)

	// Verify returns a code-free preview.
	preview, err := s.Verify(inv.InvitationCode)
	require.NoError(t, err)
	assert.True(t, preview.Valid)
	assert.Equal(t, "Ana", preview.FirstName)
	assert.Equal(t, "exemplo.edu", preview.InstitutionDomain)

	// Accept binds the user and fires the welcome.
	accepted, err := s.Accept(inv.InvitationCode, "user-99")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, accepted.Status)
	assert.Equal(t, "user-99", accepted.UserID)
	require.NotNil(t, accepted.AcceptedAt)
	assert.Contains(t, notifier.dispatched, "alumniWelcome")

	// Second acceptance is a conflict; the code is now dead for verify.
	_, err = s.Accept(inv.InvitationCode, "user-100")
	assert.True(t, faults.IsKind(err, faults.KindConflict))
	_, err = s.Verify(inv.InvitationCode)
	assert.True(t, faults.IsKind(err, faults.KindGone))
}

func TestVerifyCodeShapes(t *testing.T) {
	s, _ := newTestService(t)

	// Malformed length fails before any lookup.
	_, err := s.Verify("short")
	assert.True(t, faults.IsKind(err, faults.KindValidation))

	// Well-formed but unknown.
	_, err = s.Verify(strings.Repeat("a", utils.InvitationCodeLength))
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
}

func TestPendingByCode(t *testing.T) {
	s, _ := newTestService(t)

	inv, err := s.Invite("exemplo.edu", anaInput(), "admin-1")
	require.NoError(t, err)

	got, err := s.PendingByCode(inv.InvitationCode)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, "ana@alumni.exemplo.edu", got.Email)

	// The returned record is a copy.
	got.Email = "mutated@example.com"
	again, err := s.PendingByCode(inv.InvitationCode)
	require.NoError(t, err)
	assert.Equal(t, "ana@alumni.exemplo.edu", again.Email)

	_, err = s.Accept(inv.InvitationCode, "user-1")
	require.NoError(t, err)
	_, err = s.PendingByCode(inv.InvitationCode)
	assert.True(t, faults.IsKind(err, faults.KindConflict))

	_, err = s.PendingByCode("short")
	assert.True(t, faults.IsKind(err, faults.KindValidation))
}

func TestAcceptUnknownAndMalformed(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Accept("nope", "user-1")
	assert.True(t, faults.IsKind(err, faults.KindValidation))

	_, err = s.Accept(strings.Repeat("b", utils.InvitationCodeLength), "user-1")
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
}

func TestResendRotatesCode(t *testing.T) {
	s, notifier := newTestService(t)

	inv, err := s.Invite("exemplo.edu", anaInput(), "")
	require.NoError(t, err)
	oldCode := inv.InvitationCode

	resent, err := s.Resend("exemplo.edu", inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldCode, resent.InvitationCode)
	assert.Equal(t, models.InvitationInvited, resent.Status)
	assert.Equal(t, 2, countOf(notifier.dispatched, "alumniInvitation"))

	// The old code is dead.
	_, err = s.Verify(oldCode)
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
	_, err = s.Verify(resent.InvitationCode)
	require.NoError(t, err)
}

func countOf(list []string, want string) int {
	n := 0
	for _, v := range list {
		if v == want {
			n++
		}
	}
	return n
}

func TestResendScopingAndTerminalStates(t *testing.T) {
	s, _ := newTestService(t)

	inv, err := s.Invite("exemplo.edu", anaInput(), "")
	require.NoError(t, err)

	_, err = s.Resend("other.edu", inv.ID)
	assert.True(t, faults.IsKind(err, faults.KindForbidden))

	_, err = s.Accept(inv.InvitationCode, "user-1")
	require.NoError(t, err)

	_, err = s.Resend("exemplo.edu", inv.ID)
	assert.True(t, faults.IsKind(err, faults.KindState))
}

func TestDeleteFreesPair(t *testing.T) {
	s, _ := newTestService(t)

	inv, err := s.Invite("exemplo.edu", anaInput(), "")
	require.NoError(t, err)

	err = s.Delete("other.edu", inv.ID)
	assert.True(t, faults.IsKind(err, faults.KindForbidden))

	require.NoError(t, s.Delete("exemplo.edu", inv.ID))

	err = s.Delete("exemplo.edu", inv.ID)
	assert.True(t, faults.IsKind(err, faults.KindNotFound))

	// The pair is free to be invited again.
	_, err = s.Invite("exemplo.edu", anaInput(), "")
	require.NoError(t, err)
}

func TestListFilterSearchPagination(t *testing.T) {
	s, _ := newTestService(t)

	names := []struct{ first, last, email string }{
		{"Ana", "Souza", "ana@exemplo.edu"},
		{"Bruno", "Lima", "bruno@exemplo.edu"},
		{"Carla", "Mendes", "carla@exemplo.edu"},
	}
	var ids []string
	for _, n := range names {
		inv, err := s.Invite("exemplo.edu", models.InviteAlumniInput{
			Email:     n.email,
			FirstName: n.first,
			LastName:  n.last,
		}, "")
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}
	_, err := s.Invite("other.edu", anaInput(), "")
	require.NoError(t, err)

	// Scoped to the caller's institution only.
	page, total := s.List("exemplo.edu", ListOptions{})
	assert.Equal(t, 3, total)
	assert.Len(t, page, 3)

	// Case-insensitive search over names and email.
	page, total = s.List("exemplo.edu", ListOptions{Search: "BRUNO"})
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "bruno@exemplo.edu", page[0].Email)

	// Status filter.
	first, err := s.Resend("exemplo.edu", ids[0])
	require.NoError(t, err)
	_, err = s.Accept(first.InvitationCode, "user-1")
	require.NoError(t, err)
	page, total = s.List("exemplo.edu", ListOptions{Status: models.InvitationAccepted})
	assert.Equal(t, 1, total)

	// Pagination with clamped page size.
	page, total = s.List("exemplo.edu", ListOptions{Page: 2, PerPage: 2})
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	page, _ = s.List("exemplo.edu", ListOptions{Page: 9, PerPage: 2})
	assert.Empty(t, page)
}
