package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string, ttl time.Duration) error
}

const resendURL = "https://api.resend.com/emails"

// ResendMailer sends mail through the Resend HTTP API.
type ResendMailer struct {
	apiKey string
	from   string
	url    string
	http   *http.Client
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{apiKey: apiKey, from: from, url: resendURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (m *ResendMailer) SendPasswordReset(ctx context.Context, to, link string, ttl time.Duration) error {
	body, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{to},
		"subject": "Reset your Simple Sales password",
		"text": fmt.Sprintf("Hi,\n\nYou requested to reset your password.\n\n"+
			"Click the link below to set a new password:\n%s\n\n"+
			"This link will expire in %d minutes.\n\n"+
			"If you did not request this, you can safely ignore this email.\n\nSimple Sales Team\n",
			link, int(ttl.Minutes())),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// LogMailer writes reset links to the log. Used when no mail provider is
// configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, to, link string, ttl time.Duration) error {
	m.Logger.InfoContext(ctx, "password reset link", "to", to, "link", link, "expires_in", ttl.String())
	return nil
}
