package tenant

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
)

// MaxLogoBytes caps uploaded logo payloads.
const MaxLogoBytes = 2 << 20

var (
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	svgEventAttr    = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// Service exposes the tenant-scoped lifecycle operations used by
// institution administrators. Every write goes through the Registry.
type Service struct {
	registry   *Registry
	logger     *zap.Logger
	uploadsDir string
}

// NewService builds the lifecycle service; uploaded logos are stored
// under uploadsDir and referenced by URL path.
func NewService(registry *Registry, uploadsDir string, logger *zap.Logger) *Service {
	return &Service{registry: registry, uploadsDir: uploadsDir, logger: logger}
}

// UpdateBranding validates and merges a branding patch. Suspended
// tenants cannot be rebranded; colors must be 3- or 6-digit hex and
// URLs must be well-formed, with failures itemized per field.
func (s *Service) UpdateBranding(tenantID string, patch models.BrandingPatch) (*models.Tenant, error) {
	t := s.registry.ByID(tenantID)
	if t == nil {
		return nil, faults.NotFoundf("tenant %q not found", tenantID)
	}
	if t.Status == models.TenantSuspended {
		return nil, faults.Statef("tenant %q is suspended; branding cannot be changed", tenantID)
	}

	fields := map[string]string{}
	checkColor := func(name string, v *string) {
		if v != nil && *v != "" && !hexColorPattern.MatchString(*v) {
			fields[name] = fmt.Sprintf("%q is not a 3- or 6-digit hex color", *v)
		}
	}
	checkURL := func(name string, v *string) {
		if v == nil || *v == "" {
			return
		}
		if u, err := url.Parse(*v); err != nil || u.Scheme == "" || u.Host == "" {
			fields[name] = fmt.Sprintf("%q is not a valid URL", *v)
		}
	}

	checkColor("primary_color", patch.PrimaryColor)
	checkColor("secondary_color", patch.SecondaryColor)
	checkURL("logo_url", patch.LogoURL)
	checkURL("favicon_url", patch.FaviconURL)
	checkURL("brand_image_url", patch.BrandImageURL)
	for i, hero := range patch.HeroImageURLs {
		hero := hero
		checkURL(fmt.Sprintf("hero_image_urls[%d]", i), &hero)
	}

	if len(fields) > 0 {
		return nil, faults.Validation("branding validation failed", fields)
	}

	return s.registry.Update(tenantID, models.UpdateTenantInput{Branding: &patch})
}

// UpdateSettings merges a feature-flag patch. Blocked while suspended.
func (s *Service) UpdateSettings(tenantID string, patch models.FeaturesPatch) (*models.Tenant, error) {
	t := s.registry.ByID(tenantID)
	if t == nil {
		return nil, faults.NotFoundf("tenant %q not found", tenantID)
	}
	if t.Status == models.TenantSuspended {
		return nil, faults.Statef("tenant %q is suspended; settings cannot be changed", tenantID)
	}

	return s.registry.Update(tenantID, models.UpdateTenantInput{Features: &patch})
}

// Activate moves an onboarding tenant to active. Any other current
// status is a state error naming that status.
func (s *Service) Activate(tenantID string) (*models.Tenant, error) {
	t := s.registry.ByID(tenantID)
	if t == nil {
		return nil, faults.NotFoundf("tenant %q not found", tenantID)
	}
	if t.Status != models.TenantOnboarding {
		return nil, faults.Statef("tenant %q cannot be activated from status %q", tenantID, t.Status)
	}

	active := models.TenantActive
	return s.registry.Update(tenantID, models.UpdateTenantInput{Status: &active})
}

// UploadLogo verifies and stores a logo image, then points the tenant's
// branding at it. PNG and JPEG are checked by magic bytes; SVG payloads
// are scanned for script, event-handler and foreign-object injection.
func (s *Service) UploadLogo(tenantID string, data []byte, declaredMime string) (*models.Tenant, error) {
	t := s.registry.ByID(tenantID)
	if t == nil {
		return nil, faults.NotFoundf("tenant %q not found", tenantID)
	}
	if t.Status == models.TenantSuspended {
		return nil, faults.Statef("tenant %q is suspended; branding cannot be changed", tenantID)
	}

	if len(data) == 0 {
		return nil, faults.Validationf("logo payload is empty")
	}
	if len(data) > MaxLogoBytes {
		return nil, faults.Validationf("logo exceeds the %d byte limit", MaxLogoBytes)
	}

	ext, err := checkLogoPayload(data, declaredMime)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.uploadsDir, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, faults.Internalf("creating upload dir: %v", err)
	}
	path := filepath.Join(dir, "logo"+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, faults.Internalf("storing logo: %v", err)
	}

	logoURL := "/uploads/" + tenantID + "/logo" + ext
	s.logger.Info("tenant logo stored",
		zap.String("tenant_id", tenantID),
		zap.String("path", path))

	return s.registry.Update(tenantID, models.UpdateTenantInput{
		Branding: &models.BrandingPatch{LogoURL: &logoURL},
	})
}

func checkLogoPayload(data []byte, declaredMime string) (string, error) {
	switch strings.ToLower(declaredMime) {
	case "image/png":
		if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}) {
			return "", faults.Validationf("payload does not look like a PNG image")
		}
		return ".png", nil
	case "image/jpeg", "image/jpg":
		if !bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
			return "", faults.Validationf("payload does not look like a JPEG image")
		}
		return ".jpg", nil
	case "image/svg+xml":
		if err := checkSVG(data); err != nil {
			return "", err
		}
		return ".svg", nil
	default:
		return "", faults.Validationf("unsupported logo type %q; PNG, JPEG and SVG are accepted", declaredMime)
	}
}

func checkSVG(data []byte) error {
	body := strings.ToLower(string(data))
	if !strings.Contains(body, "<svg") {
		return faults.Validationf("payload does not look like an SVG document")
	}
	switch {
	case strings.Contains(body, "<script"):
		return faults.Validationf("svg contains a script element")
	case strings.Contains(body, "<foreignobject"):
		return faults.Validationf("svg contains a foreignObject element")
	case strings.Contains(body, "javascript:"):
		return faults.Validationf("svg contains a javascript: URL")
	case svgEventAttr.MatchString(body):
		return faults.Validationf("svg contains an event handler attribute")
	}
	return nil
}
