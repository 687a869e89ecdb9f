// Package payment talks to the hosted payment-intent provider. The
// application never sees raw card data; the client the SPA runs confirms the
// intent with the provider directly, and this package only checks what state
// the intent has reached before an order is allowed to persist.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leafpress/go-bookstore/internal/database"
)

const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
	StatusCanceled       = "canceled"
)

type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

type Intent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetIntent retrieves the current state of a payment intent.
func (c *Client) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	if c.secretKey == "" {
		return nil, fmt.Errorf("payment secret key not configured")
	}
	if intentID == "" {
		return nil, fmt.Errorf("payment intent id is empty")
	}

	url := fmt.Sprintf("%s/v1/payment_intents/%s", c.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var provErr providerError
		if json.Unmarshal(body, &provErr) == nil && provErr.Error.Message != "" {
			return nil, fmt.Errorf("payment provider error (%d): %s", resp.StatusCode, provErr.Error.Message)
		}
		return nil, fmt.Errorf("payment provider error (%d)", resp.StatusCode)
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	return &intent, nil
}

// VerifySucceeded fails unless the intent has reached the succeeded state.
// Checkout calls this before any database write happens.
func (c *Client) VerifySucceeded(ctx context.Context, intentID string) error {
	intent, err := c.GetIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != StatusSucceeded {
		return fmt.Errorf("%w: intent %s is %s", database.ErrPaymentNotConfirmed, intent.ID, intent.Status)
	}
	return nil
}

// VerifyWebhookSignature checks the provider's HMAC-SHA256 signature over the
// raw request body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
