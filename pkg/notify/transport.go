package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Transport delivers messages through a real provider. A nil transport
// means the deployment has none configured and the gateway degrades to
// console mode.
type Transport interface {
	// Send delivers the message and returns the provider's message id.
	Send(ctx context.Context, msg *Message) (string, error)
	// Verify checks that the transport is usable (credentials, reachability).
	Verify(ctx context.Context) error
	// Name identifies the transport in status reports.
	Name() string
}

// SendError is a provider rejection carrying the response status code,
// used by the retry classifier.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport rejected message: status=%d body=%s", e.StatusCode, e.Body)
}

// SendGridTransport delivers through the SendGrid v3 API.
type SendGridTransport struct {
	apiKey string
}

// NewSendGridTransport returns a SendGrid transport, or nil when no API
// key is configured.
func NewSendGridTransport(apiKey string) *SendGridTransport {
	if apiKey == "" {
		return nil
	}
	return &SendGridTransport{apiKey: apiKey}
}

// Name implements Transport.
func (t *SendGridTransport) Name() string {
	return "sendgrid"
}

// Send implements Transport.
func (t *SendGridTransport) Send(ctx context.Context, msg *Message) (string, error) {
	from := mail.NewEmail(msg.FromName, msg.From)
	to := mail.NewEmail("", msg.To)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	client := sendgrid.NewSendClient(t.apiKey)
	resp, err := client.SendWithContext(ctx, m)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &SendError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	var id string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	return id, nil
}

// Verify implements Transport. SendGrid has no cheap ping, so we only
// assert the key is present; a deeper check is the admin test send.
func (t *SendGridTransport) Verify(ctx context.Context) error {
	if t.apiKey == "" {
		return errors.New("sendgrid api key is empty")
	}
	return nil
}

var retryablePhrases = []string{
	"timeout",
	"timed out",
	"connection",
	"rate limit",
	"too many requests",
	"try again",
	"temporar",
}

// isRetryable classifies a delivery error. Connection-level errors,
// throttling and transient provider responses are retried; anything else
// aborts immediately.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *SendError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return se.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
