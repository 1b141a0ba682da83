// Package khalti implements the outbound client for the Khalti epayment
// gateway: payment initiation and transaction status lookup.
package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransactionStatus enumerates the states the gateway reports on lookup.
type TransactionStatus string

const (
	StatusCompleted    TransactionStatus = "Completed"
	StatusPending      TransactionStatus = "Pending"
	StatusRefunded     TransactionStatus = "Refunded"
	StatusExpired      TransactionStatus = "Expired"
	StatusUserCanceled TransactionStatus = "User canceled"
)

// GatewayError indicates a failed gateway call: transport error, non-2xx
// response, or a malformed body.
type GatewayError struct {
	Op         string // "initiate" or "lookup"
	StatusCode int    // zero when the request never completed
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("khalti %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("khalti %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Config holds the gateway endpoint and merchant settings. SecretKey must
// come from configuration, never from source.
type Config struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	CancelURL  string
	WebsiteURL string
	// Timeout bounds each gateway call. Defaults to 10s when zero.
	Timeout time.Duration
}

// InitiateRequest is the payload for POST /epayment/initiate/.
type InitiateRequest struct {
	ReturnURL         string `json:"return_url"`
	CancelURL         string `json:"cancel_url"`
	PurchaseOrderID   string `json:"purchase_order_id"`
	Amount            int64  `json:"amount"` // minor units (paisa)
	WebsiteURL        string `json:"website_url"`
	PurchaseOrderName string `json:"purchase_order_name"`
}

// InitiateResponse carries the correlation id and the URL the customer is
// redirected to.
type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

// LookupResponse reports the current transaction status for a pidx.
type LookupResponse struct {
	Pidx   string            `json:"pidx"`
	Status TransactionStatus `json:"status"`
}

// Gateway is the interface consumed by the order service.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (*LookupResponse, error)
}

var _ Gateway = (*Client)(nil)

// Client calls the Khalti epayment API over HTTP. Calls do not retry;
// failures surface to the caller as *GatewayError.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a gateway client with an explicit request timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Initiate registers a payment with the gateway and returns the correlation
// id plus the customer redirect URL.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if req.ReturnURL == "" {
		req.ReturnURL = c.cfg.ReturnURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.cfg.CancelURL
	}
	if req.WebsiteURL == "" {
		req.WebsiteURL = c.cfg.WebsiteURL
	}

	var resp InitiateResponse
	if err := c.post(ctx, "initiate", "/epayment/initiate/", req, &resp); err != nil {
		return nil, err
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		return nil, &GatewayError{Op: "initiate", Err: fmt.Errorf("missing pidx or payment_url in response")}
	}
	return &resp, nil
}

// Lookup fetches the current transaction status for a correlation id.
func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	body := struct {
		Pidx string `json:"pidx"`
	}{Pidx: pidx}

	var resp LookupResponse
	if err := c.post(ctx, "lookup", "/epayment/lookup/", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		return nil, &GatewayError{Op: "lookup", Err: fmt.Errorf("missing status in response")}
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &GatewayError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
