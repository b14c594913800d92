// Package backend is the HTTP client for the ORB Lotto backend. The four
// endpoints and their shapes are dictated by the server; this client only
// adds transport plumbing and typed errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/orblotto/go-wallet-bridge/hostwallet"
)

const defaultTimeout = 15 * time.Second

// Client talks to the lottery backend.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the owned HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func New(base string, options ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
		log:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx backend response with its decoded error body.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// CompleteSIWEResponse is the verdict on a signed sign-in payload.
type CompleteSIWEResponse struct {
	Status  string `json:"status"`
	IsValid bool   `json:"isValid"`
}

// InitiatePaymentRequest asks the backend to open a payment.
type InitiatePaymentRequest struct {
	TicketCount int     `json:"ticketCount"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// InitiatePaymentResponse carries the reference the host payment must quote.
type InitiatePaymentResponse struct {
	PaymentID        string  `json:"paymentId"`
	RecipientAddress string  `json:"recipientAddress"`
	Amount           float64 `json:"amount"`
}

// Ticket is one purchased ticket as returned by payment verification.
type Ticket struct {
	Number string `json:"number"`
}

// VerifyPaymentResponse confirms a settled payment. Tickets may be absent
// when the backend defers materialization.
type VerifyPaymentResponse struct {
	Tickets []Ticket `json:"tickets,omitempty"`
}

// Nonce fetches a fresh single-use sign-in challenge. A nonce is consumed by
// exactly one attempt; retries must fetch a new one.
func (c *Client) Nonce(ctx context.Context) (string, error) {
	var out struct {
		Nonce string `json:"nonce"`
	}
	if err := c.getJSON(ctx, "/api/nonce", &out); err != nil {
		return "", errors.Wrap(err, "[Client.Nonce]")
	}
	if out.Nonce == "" {
		return "", errors.New("[Client.Nonce] backend returned empty nonce")
	}
	return out.Nonce, nil
}

// CompleteSIWE submits the signed payload and its nonce for verification.
func (c *Client) CompleteSIWE(ctx context.Context, payload *hostwallet.WalletAuthPayload, nonce string) (*CompleteSIWEResponse, error) {
	in := struct {
		Payload *hostwallet.WalletAuthPayload `json:"payload"`
		Nonce   string                        `json:"nonce"`
	}{Payload: payload, Nonce: nonce}

	var out CompleteSIWEResponse
	if err := c.postJSON(ctx, "/api/complete-siwe", in, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.CompleteSIWE]")
	}
	return &out, nil
}

// InitiatePayment opens a payment for the given purchase parameters.
func (c *Client) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	var out InitiatePaymentResponse
	if err := c.postJSON(ctx, "/api/initiate-payment", req, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.InitiatePayment]")
	}
	return &out, nil
}

// VerifyPayment confirms a host-settled payment server-side.
func (c *Client) VerifyPayment(ctx context.Context, paymentID, transactionID string) (*VerifyPaymentResponse, error) {
	in := struct {
		PaymentID     string `json:"paymentId"`
		TransactionID string `json:"transactionId"`
	}{PaymentID: paymentID, TransactionID: transactionID}

	var out VerifyPaymentResponse
	if err := c.postJSON(ctx, "/api/verify-payment", in, &out); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyPayment]")
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&body)
		c.log.Debug().Int("status", res.StatusCode).Str("path", req.URL.Path).Str("error", body.Error).Msg("backend request rejected")
		return &StatusError{StatusCode: res.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
