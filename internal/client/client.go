package client

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

	"hostpanel/internal/models"
)

// StatusError is a non-2xx answer from the API. Transport failures are never
// reported as a StatusError.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type LoginResult struct {
	Profile models.Profile
	Token   string
}

type loginPayload struct {
	ID       string           `json:"id"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Role     models.AdminRole `json:"role"`
	Token    string           `json:"token"`
}

func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	var payload loginPayload
	body := map[string]string{"username": identifier, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, http.StatusOK, &payload); err != nil {
		return LoginResult{}, err
	}
	if payload.Token == "" {
		return LoginResult{}, fmt.Errorf("api: login response without token")
	}

	return LoginResult{
		Profile: models.Profile{
			ID:       payload.ID,
			Username: payload.Username,
			Email:    payload.Email,
			Role:     payload.Role,
		},
		Token: payload.Token,
	}, nil
}

func (c *Client) Profile(ctx context.Context, token string) (models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", token, nil, http.StatusOK, &profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

type RegisterRequest struct {
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     models.AdminRole `json:"role,omitempty"`
}

type RegisterResult struct {
	models.Profile
	Token string `json:"token"`
}

func (c *Client) Register(ctx context.Context, token string, req RegisterRequest) (RegisterResult, error) {
	var result RegisterResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", token, req, http.StatusCreated, &result); err != nil {
		return RegisterResult{}, err
	}
	return result, nil
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path, token string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		statusErr := &StatusError{Status: resp.StatusCode}
		var payload errorPayload
		if json.Unmarshal(raw, &payload) == nil {
			statusErr.Code = payload.Error
			statusErr.Message = payload.Message
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
