package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherDeliversQueuedJobs(t *testing.T) {
	tr := &fakeTransport{messageID: "msg-1"}
	g := newTestGateway(t, enabledConfig(), tr)
	d := NewDispatcher(g, NewTemplateRegistry(), zap.NewNop())

	d.Start()
	d.Dispatch("alumniWelcome", "ana@alumni.edu", map[string]any{
		"firstName":         "Ana",
		"institutionDomain": "exemplo.edu",
	})
	d.Dispatch("testEmail", "admin@exemplo.edu", nil)
	d.Stop()

	assert.Equal(t, 2, tr.sends)
	log := g.Log(0)
	require.Len(t, log, 2)
}

func TestDispatcherLogMetadata(t *testing.T) {
	tr := &fakeTransport{messageID: "msg-1"}
	g := newTestGateway(t, enabledConfig(), tr)
	d := NewDispatcher(g, NewTemplateRegistry(), zap.NewNop())

	d.Start()
	d.Dispatch("alumniInvitation", "ana@alumni.edu", map[string]any{
		"firstName":         "Ana",
		"institutionDomain": "exemplo.edu",
		"code":              "secret-code",
		"invitationId":      "inv-42",
	})
	d.Stop()

	log := g.Log(0)
	require.Len(t, log, 1)
	assert.Equal(t, "inv-42", log[0].Metadata["invitationId"])
	assert.Equal(t, "exemplo.edu", log[0].Metadata["institutionDomain"])
	// The single-use code stays out of the audit trail.
	assert.NotContains(t, log[0].Metadata, "code")
}

func TestDispatcherUnknownTemplateDoesNotSend(t *testing.T) {
	tr := &fakeTransport{messageID: "msg-1"}
	g := newTestGateway(t, enabledConfig(), tr)
	d := NewDispatcher(g, NewTemplateRegistry(), zap.NewNop())

	d.Start()
	d.Dispatch("noSuchTemplate", "ana@alumni.edu", nil)
	d.Stop()

	assert.Zero(t, tr.sends)
	assert.Empty(t, g.Log(0))
}

func TestDispatcherStartStopIdempotent(t *testing.T) {
	g := newTestGateway(t, enabledConfig(), nil)
	d := NewDispatcher(g, NewTemplateRegistry(), zap.NewNop())

	d.Start()
	d.Start()
	d.Stop()
	d.Stop()
}
