// Package payment talks to the PayPal Orders v2 REST API: it obtains an
// OAuth token, creates checkout orders, reads their status and captures
// them.  Responses are parsed with gjson because only a handful of nested
// fields are needed from PayPal's large payloads.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/storefront-api/internal/config"
)

// StatusCompleted is the provider status of a paid order or capture.
const StatusCompleted = "COMPLETED"

// APIError is returned when PayPal answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s", e.StatusCode, e.Message)
}

// IsAPIError reports whether err came from a PayPal non-2xx response.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// CreateOrderInput describes the purchase unit sent to PayPal.
type CreateOrderInput struct {
	ReferenceID string // local order_id
	Amount      decimal.Decimal
	ReturnURL   string
	CancelURL   string
}

// RemoteOrder is the subset of a PayPal order the checkout flow uses.
type RemoteOrder struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url,omitempty"`
	CaptureID   string `json:"capture_id,omitempty"`
}

// Client is a PayPal REST client.  It is safe for concurrent use; the OAuth
// token is cached until shortly before it expires.
type Client struct {
	cfg  config.PayPalConfig
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient returns a client for cfg.BaseURL.
func NewClient(cfg config.PayPalConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// accessToken returns a cached bearer token or fetches a new one with the
// client_credentials grant.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	tok := gjson.GetBytes(body, "access_token").String()
	if tok == "" {
		return "", errors.New("paypal: token response without access_token")
	}
	ttl := time.Duration(gjson.GetBytes(body, "expires_in").Int()) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	c.token = tok
	c.tokenExp = time.Now().Add(ttl - time.Minute)
	return tok, nil
}

// CreateOrder opens a CAPTURE intent order and returns its id and the
// approve link the buyer must visit.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (RemoteOrder, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": in.ReferenceID,
			"amount": map[string]string{
				"currency_code": c.cfg.Currency,
				"value":         in.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url":  in.ReturnURL,
			"cancel_url":  in.CancelURL,
			"user_action": "PAY_NOW",
		},
	}
	body, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return RemoteOrder{}, err
	}
	out := parseOrder(body)
	if out.ID == "" {
		return out, errors.New("paypal: create order response without id")
	}
	if out.ApprovalURL == "" {
		return out, errors.New("paypal: create order response without approve link")
	}
	return out, nil
}

// GetOrder reads the current state of a PayPal order.
func (c *Client) GetOrder(ctx context.Context, id string) (RemoteOrder, error) {
	body, err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return RemoteOrder{}, err
	}
	return parseOrder(body), nil
}

// Capture captures an approved order.
func (c *Client) Capture(ctx context.Context, id string) (RemoteOrder, error) {
	body, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", map[string]any{})
	if err != nil {
		return RemoteOrder{}, err
	}
	return parseOrder(body), nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paypal: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if d := gjson.GetBytes(body, "details.0.description").String(); d != "" {
			msg = d
		}
		if msg == "" {
			msg = gjson.GetBytes(body, "error_description").String()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Body: string(body)}
	}
	return body, nil
}

func parseOrder(body []byte) RemoteOrder {
	r := gjson.ParseBytes(body)
	out := RemoteOrder{
		ID:          r.Get("id").String(),
		Status:      r.Get("status").String(),
		ApprovalURL: r.Get(`links.#(rel=="approve").href`).String(),
		CaptureID:   r.Get("purchase_units.0.payments.captures.0.id").String(),
	}
	if out.ApprovalURL == "" {
		out.ApprovalURL = r.Get(`links.#(rel=="payer-action").href`).String()
	}
	return out
}
