// Package gateway implements the payment.Gateway boundary against a
// Razorpay-style hosted checkout API.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/franchiseos/supply-api/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// Client talks to the hosted payment gateway. The key pair is the gateway
// merchant credential: the public key id is shared with browsers, the secret
// signs and verifies.
type Client struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  string
}

// NewClient creates a gateway Client.
func NewClient(baseURL, keyID, secret string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
	}
}

// PublicKey returns the publishable key id embedded into checkout sessions.
func (c *Client) PublicKey() string {
	return c.keyID
}

type createIntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createIntentResponse struct {
	ID string `json:"id"`
}

type gatewayError struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent registers a pre-authorization for the given amount in minor
// units and returns the gateway's intent id.
func (c *Client) CreateIntent(ctx context.Context, orderID string, amountMinor int64, notes map[string]string) (string, error) {
	body, err := json.Marshal(createIntentRequest{
		Amount:   amountMinor,
		Currency: "INR",
		Receipt:  orderID,
		Notes:    notes,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ge gatewayError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Description != "" {
			return "", fmt.Errorf("payment gateway: %s (status %d)", ge.Error.Description, resp.StatusCode)
		}
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var out createIntentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding gateway response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway response missing intent id")
	}
	return out.ID, nil
}

// Verify checks the gateway's settlement signature: hex HMAC-SHA256 of
// "<intentID>|<paymentID>" under the merchant secret, compared in constant
// time.
func (c *Client) Verify(intentID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(intentID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
