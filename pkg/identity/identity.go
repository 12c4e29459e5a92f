// Package identity exchanges user credentials for a bearer token with the
// authentication service.
package identity

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
)

var (
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("identity: email and password are required")

	// ErrInvalidCredentials is returned when the service rejects the credentials.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// Identity is the signed-in user. Token is opaque to the portal and is passed
// as a bearer token to the billing API.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// ClientConfig represents the configuration for the identity client.
type ClientConfig struct {
	APIURL  string
	Timeout time.Duration // Default: 30 seconds
}

// Client talks to the authentication service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new identity client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(config.APIURL, "/"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// userWire accepts a numeric or string id.
type userWire struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Token string          `json:"token"`
}

func (u userWire) id() string {
	var s string
	if err := json.Unmarshal(u.ID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(u.ID))
}

// Login authenticates email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("auth API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(loginResp.Data) == 0 || string(loginResp.Data) == "null" {
		return nil, ErrInvalidCredentials
	}

	var user userWire
	if err := json.Unmarshal(loginResp.Data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if user.Token == "" {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		ID:    user.id(),
		Name:  user.Name,
		Email: user.Email,
		Token: user.Token,
	}, nil
}
