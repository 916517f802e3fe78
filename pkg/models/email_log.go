package models

import "time"

// EmailStatus is the terminal outcome recorded for one send attempt.
type EmailStatus string

const (
	EmailSent        EmailStatus = "sent"
	EmailFailed      EmailStatus = "failed"
	EmailLogged      EmailStatus = "logged"
	EmailDisabled    EmailStatus = "disabled"
	EmailRateLimited EmailStatus = "rate_limited"
)

// EmailLogEntry is one append-only audit record per attempted send.
// Entries are never mutated; the log keeps a bounded number of entries
// with the oldest evicted first.
type EmailLogEntry struct {
	ID           string            `json:"id"`
	To           string            `json:"to"`
	Subject      string            `json:"subject"`
	TemplateName string            `json:"template_name,omitempty"`
	Status       EmailStatus       `json:"status"`
	MessageID    string            `json:"message_id,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
