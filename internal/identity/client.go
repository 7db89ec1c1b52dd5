// Package identity talks to the Skyline identity backend: it resolves a
// user's stored Google OAuth access token and relays auth, Gmail, and
// Calendar traffic. The proxy layer never caches anything it learns here;
// identity is re-derived on every request.
package identity

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
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every backend call when no client is supplied.
const DefaultTimeout = 10 * time.Second

// Sentinel errors exposed by the client.
var (
	ErrMissingBaseURL = errors.New("identity.missing_base_url")
	// ErrGoogleTokenUnavailable means the backend has no usable Google
	// credential for the user. The caller's own session may still be valid.
	ErrGoogleTokenUnavailable = errors.New("identity.google_token_unavailable")
	// ErrBackendUnreachable is a network-level failure talking to the backend.
	ErrBackendUnreachable = errors.New("identity.backend_unreachable")
)

// Response carries an upstream status code and raw JSON body for
// passthrough routes.
type Response struct {
	StatusCode int
	Body       []byte
}

// Config configures the Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a thin HTTP client for the identity backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client after validating the supplied configuration.
func NewClient(configuration Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("identity.new_client: %w", ErrMissingBaseURL)
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// BaseURL returns the configured backend base URL without a trailing slash.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// GoogleAccessToken resolves the user's current Google OAuth access token.
// Every call pays the lookup cost: no caching, no retry. Any failure is
// reported as ErrGoogleTokenUnavailable so route handlers can map it to a
// single failure class.
func (client *Client) GoogleAccessToken(ctx context.Context, userID string) (string, error) {
	lookupURL := client.baseURL + "/api/auth/google/token/" + url.PathEscape(userID)
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if requestErr != nil {
		return "", fmt.Errorf("identity.google_token: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		client.logger.Warn("google token lookup failed",
			zap.String("code", "identity.google_token.transport"),
			zap.Error(doErr))
		return "", fmt.Errorf("identity.google_token: %w", ErrGoogleTokenUnavailable)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		client.logger.Warn("google token lookup rejected",
			zap.String("code", "identity.google_token.status"),
			zap.Int("status", response.StatusCode))
		return "", fmt.Errorf("identity.google_token: backend status %d: %w", response.StatusCode, ErrGoogleTokenUnavailable)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(&payload); decodeErr != nil {
		return "", fmt.Errorf("identity.google_token: decode: %w", ErrGoogleTokenUnavailable)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("identity.google_token: empty token: %w", ErrGoogleTokenUnavailable)
	}
	return payload.AccessToken, nil
}

// Forward relays a single request to the backend and returns the upstream
// status and body verbatim. Content-Type is always application/json; the
// bearer token is attached when present.
func (client *Client) Forward(ctx context.Context, method string, path string, query url.Values, bearerToken string, body []byte) (*Response, error) {
	forwardURL := client.baseURL + path
	if len(query) > 0 {
		forwardURL += "?" + query.Encode()
	}

	var requestBody io.Reader
	if len(body) > 0 {
		requestBody = bytes.NewReader(body)
	}
	request, requestErr := http.NewRequestWithContext(ctx, method, forwardURL, requestBody)
	if requestErr != nil {
		return nil, fmt.Errorf("identity.forward %s: %w", path, requestErr)
	}
	request.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		request.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		client.logger.Warn("backend forward failed",
			zap.String("code", "identity.forward.transport"),
			zap.String("path", path),
			zap.Error(doErr))
		return nil, fmt.Errorf("identity.forward %s: %w", path, ErrBackendUnreachable)
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, fmt.Errorf("identity.forward %s: read: %w", path, ErrBackendUnreachable)
	}
	return &Response{StatusCode: response.StatusCode, Body: responseBody}, nil
}

// Login forwards a login payload to the backend.
func (client *Client) Login(ctx context.Context, body []byte) (*Response, error) {
	return client.Forward(ctx, http.MethodPost, "/api/auth/login", nil, "", body)
}

// Register forwards a registration payload to the backend.
func (client *Client) Register(ctx context.Context, body []byte) (*Response, error) {
	return client.Forward(ctx, http.MethodPost, "/api/auth/register", nil, "", body)
}

// VerifyToken asks the backend to validate a session token and return the
// associated profile.
func (client *Client) VerifyToken(ctx context.Context, token string) (*Response, error) {
	return client.Forward(ctx, http.MethodGet, "/api/auth/me", nil, token, nil)
}

// GmailToken fetches the caller's Gmail access token from the backend.
func (client *Client) GmailToken(ctx context.Context, token string) (*Response, error) {
	return client.Forward(ctx, http.MethodGet, "/api/auth/gmail-token", nil, token, nil)
}
