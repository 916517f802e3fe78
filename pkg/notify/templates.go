package notify

import (
	"fmt"
	"sort"
	"strings"

	"gradlink-backend/pkg/faults"
)

// Rendered is the output of a template: everything the gateway needs to
// deliver and log one notification.
type Rendered struct {
	Subject      string
	HTML         string
	TemplateName string
}

// TemplateFunc renders a named template from loosely-typed data.
type TemplateFunc func(data map[string]any) Rendered

// TemplateRegistry maps template names to pure rendering functions.
type TemplateRegistry struct {
	templates map[string]TemplateFunc
}

// NewTemplateRegistry returns the registry with every built-in template
// registered.
func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{templates: map[string]TemplateFunc{}}

	r.Register("alumniInvitation", func(data map[string]any) Rendered {
		first := str(data, "firstName")
		domain := str(data, "institutionDomain")
		code := str(data, "code")
		return Rendered{
			Subject:      fmt.Sprintf("You're invited to join the %s alumni marketplace", domain),
			HTML:         fmt.Sprintf("<p>Hi %s,</p><p>You have been invited to join the %s alumni marketplace. Use invitation code <strong>%s</strong> to get started.</p>", first, domain, code),
			TemplateName: "alumniInvitation",
		}
	})

	r.Register("alumniWelcome", func(data map[string]any) Rendered {
		first := str(data, "firstName")
		domain := str(data, "institutionDomain")
		return Rendered{
			Subject:      "Welcome aboard!",
			HTML:         fmt.Sprintf("<p>Hi %s,</p><p>Your %s alumni account is ready. Welcome!</p>", first, domain),
			TemplateName: "alumniWelcome",
		}
	})

	r.Register("tenantRequestReceived", func(data map[string]any) Rendered {
		name := str(data, "adminName")
		inst := str(data, "institutionName")
		return Rendered{
			Subject:      "We received your marketplace request",
			HTML:         fmt.Sprintf("<p>Hi %s,</p><p>Thanks for applying to bring %s onto GradLink. Our team will review your request shortly.</p>", name, inst),
			TemplateName: "tenantRequestReceived",
		}
	})

	r.Register("tenantRequestApproved", func(data map[string]any) Rendered {
		name := str(data, "adminName")
		inst := str(data, "institutionName")
		sub := str(data, "subdomain")
		return Rendered{
			Subject:      fmt.Sprintf("%s has been approved", inst),
			HTML:         fmt.Sprintf("<p>Hi %s,</p><p>Your marketplace for %s has been approved and is onboarding at <strong>%s</strong>. Finish setup to go live.</p>", name, inst, sub),
			TemplateName: "tenantRequestApproved",
		}
	})

	r.Register("tenantRequestRejected", func(data map[string]any) Rendered {
		name := str(data, "adminName")
		inst := str(data, "institutionName")
		reason := str(data, "reason")
		body := fmt.Sprintf("<p>Hi %s,</p><p>We're sorry, your marketplace request for %s was not approved.</p>", name, inst)
		if reason != "" {
			body += fmt.Sprintf("<p>Reason: %s</p>", reason)
		}
		return Rendered{
			Subject:      "About your marketplace request",
			HTML:         body,
			TemplateName: "tenantRequestRejected",
		}
	})

	r.Register("tenantWelcome", func(data map[string]any) Rendered {
		inst := str(data, "institutionName")
		return Rendered{
			Subject:      fmt.Sprintf("%s is live", inst),
			HTML:         fmt.Sprintf("<p>The %s marketplace is now active. Invite your alumni to get started.</p>", inst),
			TemplateName: "tenantWelcome",
		}
	})

	r.Register("testEmail", func(data map[string]any) Rendered {
		return Rendered{
			Subject:      "GradLink test notification",
			HTML:         "<p>This is a test notification. If you can read this, delivery works.</p>",
			TemplateName: "testEmail",
		}
	})

	return r
}

// Register adds a template under a name.
func (r *TemplateRegistry) Register(name string, fn TemplateFunc) {
	r.templates[name] = fn
}

// Render renders a named template. Unknown names fail with the set of
// available templates so callers can self-correct.
func (r *TemplateRegistry) Render(name string, data map[string]any) (Rendered, error) {
	fn, ok := r.templates[name]
	if !ok {
		return Rendered{}, faults.NotFoundf("unknown template %q; available: %s", name, strings.Join(r.Names(), ", "))
	}
	return fn(data), nil
}

// Names returns the sorted template names.
func (r *TemplateRegistry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func str(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
