package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every outbound call when ClientConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 16 << 20

// Observer is notified after every upstream call. Status is zero when no
// response was received.
type Observer func(op string, status int, elapsed time.Duration)

// ClientConfig represents the configuration for the billing API client.
type ClientConfig struct {
	APIURL    string
	Timeout   time.Duration     // Default: 30 seconds
	Transport http.RoundTripper // Default: http.DefaultTransport
	Observer  Observer
}

// Client is a billing API client. It holds no per-user state; the bearer token
// is passed on every call, so one Client is shared by all requests.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	observer  Observer
}

// NewClient creates a new billing API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   strings.TrimRight(config.APIURL, "/"),
		timeout:   timeout,
		transport: transport,
		observer:  config.Observer,
	}
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ListInvoices returns every invoice visible to the token holder.
func (c *Client) ListInvoices(ctx context.Context, token string) ([]Invoice, error) {
	const op = "list invoices"

	body, err := c.do(ctx, op, token, http.MethodGet, "/api/invoices/get", nil)
	if err != nil {
		return nil, err
	}

	invoices, err := decodeInvoiceList(body)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return invoices, nil
}

// GetInvoiceDetail returns one invoice with its line items in upstream order.
func (c *Client) GetInvoiceDetail(ctx context.Context, token, invoiceID string) (*InvoiceDetail, error) {
	const op = "get invoice detail"

	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, ErrInvalidInvoiceID
	}

	payload := map[string]string{"invoice_id": invoiceID}
	body, err := c.do(ctx, op, token, http.MethodPost, "/api/invoices/get/detail", payload)
	if err != nil {
		return nil, err
	}

	detail, err := decodeInvoiceDetail(body)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return detail, nil
}

// ListPayments returns every payment recorded for the token holder.
func (c *Client) ListPayments(ctx context.Context, token string) ([]Payment, error) {
	const op = "list payments"

	body, err := c.do(ctx, op, token, http.MethodGet, "/api/payments/get", nil)
	if err != nil {
		return nil, err
	}

	payments, err := decodePaymentList(body)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return payments, nil
}

// ListNotifications returns the account notifications, newest first as sent upstream.
func (c *Client) ListNotifications(ctx context.Context, token string) ([]Notification, error) {
	const op = "list notifications"

	body, err := c.do(ctx, op, token, http.MethodGet, "/api/notifications", nil)
	if err != nil {
		return nil, err
	}

	notifications, err := decodeNotificationList(body)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return notifications, nil
}

// MarkNotificationsRead marks every notification of the token holder as read.
func (c *Client) MarkNotificationsRead(ctx context.Context, token string) error {
	_, err := c.do(ctx, "mark notifications read", token, http.MethodPut, "/api/notifications/mark-as-read", nil)
	return err
}

// do performs one authenticated call and returns the raw success body.
func (c *Client) do(ctx context.Context, op, token, method, path string, payload any) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("billing %s: failed to encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("billing %s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.observe(op, resp.StatusCode, start)
	if err != nil {
		return nil, c.transportError(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(op, resp.StatusCode, body)
	}
	return body, nil
}

// transportError classifies a failed round trip. Deadline expiry of our own
// timer is a TimeoutError; caller cancellation is passed through as-is.
func (c *Client) transportError(parent context.Context, op string, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("billing %s: %w", op, parentErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, After: c.timeout}
	}
	return &UnreachableError{Op: op, Err: err}
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer(op, status, time.Since(start))
	}
}

// errorResponse covers both error shapes the API uses.
type errorResponse struct {
	Code             int    `json:"code"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func parseError(op string, status int, body []byte) error {
	reason := http.StatusText(status)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Message != "":
			reason = errResp.Message
		case errResp.Error != "" && errResp.ErrorDescription != "":
			reason = fmt.Sprintf("%s - %s", errResp.Error, errResp.ErrorDescription)
		case errResp.Error != "":
			reason = errResp.Error
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		reason = text
	}

	return &FetchError{Op: op, StatusCode: status, Reason: reason}
}
