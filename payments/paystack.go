package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrProviderRejected means Paystack answered but declined the request.
var ErrProviderRejected = errors.New("payments: provider rejected the request")

// InitRequest is the body of Paystack's transaction/initialize call.
type InitRequest struct {
	Email    string         `json:"email"`
	Amount   int64          `json:"amount"`
	Metadata map[string]any `json:"metadata"`
}

// Paystack is a minimal client for the Paystack REST API.
type Paystack struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewPaystack(baseURL, secret string) *Paystack {
	return &Paystack{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Initialize starts a hosted checkout and returns its authorization URL.
func (p *Paystack) Initialize(ctx context.Context, in InitRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paystack: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("paystack: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, raw)
	}

	var out struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("paystack: decode response: %w", err)
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return "", fmt.Errorf("%w: %s", ErrProviderRejected, raw)
	}
	return out.Data.AuthorizationURL, nil
}

// VerifySignature checks Paystack's x-paystack-signature header: the hex
// HMAC-SHA512 of the raw body keyed with the secret key.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
