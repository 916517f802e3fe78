// Package notify implements the notification gateway: rate-limited,
// retried, transport-abstracted delivery with a persistent audit log and
// an in-process dispatch queue for fire-and-forget sends.
package notify

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradlink-backend/pkg/models"
	"gradlink-backend/pkg/storage"
)

const emailLogCollection = "email-log"

// RateWindow is the trailing interval the per-minute ceiling applies to.
const RateWindow = time.Minute

var (
	// ErrSendingDisabled reports that notifications are switched off by
	// configuration.
	ErrSendingDisabled = errors.New("notification sending is disabled")
	// ErrRateLimited reports that the sliding window is full.
	ErrRateLimited = errors.New("notification rate limit exceeded")
)

// GatewayConfig parameterizes the gateway.
type GatewayConfig struct {
	Enabled       bool
	FromName      string
	From          string
	RatePerMinute int
	MaxRetries    int
	Backoff       BackoffConfig
	LogMaxEntries int
}

// SendRequest is one notification to deliver.
type SendRequest struct {
	To           string
	Subject      string
	HTML         string
	Text         string // derived from HTML when empty
	TemplateName string
	Metadata     map[string]string
}

// SendResult describes the outcome of one send.
type SendResult struct {
	Success   bool      `json:"success"`
	Mode      string    `json:"mode,omitempty"` // "transport" or "console"
	MessageID string    `json:"message_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RateLimit *Snapshot `json:"rate_limit,omitempty"`
}

// Gateway delivers rendered notifications, or degrades gracefully. Every
// decision branch is terminal and writes exactly one log entry; the log
// never blocks or fails the send it audits.
type Gateway struct {
	cfg       GatewayConfig
	transport Transport
	window    *Window
	store     *storage.RecordStore
	logger    *zap.Logger

	// injectable for tests
	sleep  func(time.Duration)
	jitter func() float64

	mu      sync.Mutex
	entries []models.EmailLogEntry
}

// NewGateway hydrates the delivery log and returns a ready gateway.
// transport may be nil, which selects console mode for every send;
// callers holding a nil concrete transport value must pass a nil
// interface, not the typed value.
func NewGateway(cfg GatewayConfig, transport Transport, store *storage.RecordStore, logger *zap.Logger) (*Gateway, error) {
	if cfg.LogMaxEntries < 1 {
		cfg.LogMaxEntries = 1000
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = time.Second
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = 30 * time.Second
	}

	g := &Gateway{
		cfg:       cfg,
		transport: transport,
		window:    NewWindow(cfg.RatePerMinute, RateWindow),
		store:     store,
		logger:    logger,
		sleep:     time.Sleep,
		jitter:    rand.Float64,
	}

	if err := store.Load(emailLogCollection, &g.entries); err != nil {
		// The audit log must never block operation; start empty.
		logger.Warn("could not hydrate email log, starting empty", zap.Error(err))
		g.entries = nil
	}

	return g, nil
}

// Send runs the gateway decision sequence for one notification.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Text == "" {
		req.Text = StripHTML(req.HTML)
	}

	// 1. Global kill switch.
	if !g.cfg.Enabled {
		g.appendLog(req, models.EmailDisabled, "", "sending disabled by configuration")
		return &SendResult{Reason: "disabled"}, ErrSendingDisabled
	}

	// 2. Rate ceiling. The slot is consumed now, before the transport
	// attempt: the window counts attempts, not confirmed deliveries.
	allowed, snap := g.window.Allow()
	if !allowed {
		g.appendLog(req, models.EmailRateLimited, "", "rate limit exceeded")
		g.logger.Warn("notification rate limited",
			zap.String("to", req.To),
			zap.Int("sent", snap.Sent),
			zap.Int("limit", snap.Limit))
		return &SendResult{Reason: "rate_limited", RateLimit: &snap}, ErrRateLimited
	}

	// 3. No transport: log the content for audit and report success in
	// console mode so callers behave identically either way.
	if g.transport == nil {
		g.logger.Info("notification logged (no transport configured)",
			zap.String("to", req.To),
			zap.String("subject", req.Subject),
			zap.String("template", req.TemplateName))
		g.appendLog(req, models.EmailLogged, "", "")
		return &SendResult{Success: true, Mode: "console"}, nil
	}

	// 4. Transport delivery with bounded retry.
	msg := &Message{
		FromName: g.cfg.FromName,
		From:     g.cfg.From,
		To:       req.To,
		Subject:  req.Subject,
		HTML:     req.HTML,
		Text:     req.Text,
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			g.sleep(BackoffDelay(g.cfg.Backoff, attempt-1, g.jitter()))
		}

		messageID, err := g.transport.Send(ctx, msg)
		if err == nil {
			g.appendLog(req, models.EmailSent, messageID, "")
			g.logger.Info("notification sent",
				zap.String("to", req.To),
				zap.String("template", req.TemplateName),
				zap.String("message_id", messageID))
			return &SendResult{Success: true, Mode: "transport", MessageID: messageID}, nil
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
		g.logger.Warn("notification delivery failed, will retry",
			zap.String("to", req.To),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	g.appendLog(req, models.EmailFailed, "", lastErr.Error())
	g.logger.Error("notification delivery failed",
		zap.String("to", req.To),
		zap.String("template", req.TemplateName),
		zap.Error(lastErr))
	return &SendResult{Reason: "send_failed"}, lastErr
}

// Status reports the gateway's configuration and current window.
func (g *Gateway) Status() map[string]any {
	transportName := "none"
	if g.transport != nil {
		transportName = g.transport.Name()
	}

	g.mu.Lock()
	logLen := len(g.entries)
	g.mu.Unlock()

	return map[string]any{
		"enabled":     g.cfg.Enabled,
		"transport":   transportName,
		"rate_limit":  g.window.Peek(),
		"max_retries": g.cfg.MaxRetries,
		"log_entries": logLen,
	}
}

// Verify checks the configured transport.
func (g *Gateway) Verify(ctx context.Context) error {
	if g.transport == nil {
		return errors.New("no transport configured")
	}
	return g.transport.Verify(ctx)
}

// Log returns up to limit of the newest log entries, newest first.
func (g *Gateway) Log(limit int) []models.EmailLogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	if limit < 1 || limit > len(g.entries) {
		limit = len(g.entries)
	}
	out := make([]models.EmailLogEntry, 0, limit)
	for i := len(g.entries) - 1; i >= len(g.entries)-limit; i-- {
		out = append(out, g.entries[i])
	}
	return out
}

// appendLog records one attempt. Entries are append-only with capped
// retention; persistence failures are logged and swallowed because the
// audit log must never fail the operation it observes.
func (g *Gateway) appendLog(req SendRequest, status models.EmailStatus, messageID, errMsg string) {
	entry := models.EmailLogEntry{
		ID:           uuid.New().String(),
		To:           req.To,
		Subject:      req.Subject,
		TemplateName: req.TemplateName,
		Status:       status,
		MessageID:    messageID,
		Error:        errMsg,
		Metadata:     req.Metadata,
		Timestamp:    time.Now().UTC(),
	}

	g.mu.Lock()
	g.entries = append(g.entries, entry)
	if over := len(g.entries) - g.cfg.LogMaxEntries; over > 0 {
		g.entries = append(g.entries[:0], g.entries[over:]...)
	}
	snapshot := make([]models.EmailLogEntry, len(g.entries))
	copy(snapshot, g.entries)
	g.mu.Unlock()

	if err := g.store.Save(emailLogCollection, snapshot); err != nil {
		g.logger.Error("failed to persist email log", zap.Error(err))
	}
}

var (
	htmlTagPattern       = regexp.MustCompile(`<[^>]*>`)
	whitespaceRunPattern = regexp.MustCompile(`[ \t]+`)
	blankLineRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// StripHTML derives a plain-text body from an HTML one.
func StripHTML(html string) string {
	text := strings.ReplaceAll(html, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	text = blankLineRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
