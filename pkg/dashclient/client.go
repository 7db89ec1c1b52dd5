// Package dashclient is a typed Go client for the dashboard proxy. It
// unwraps the {success, data, message} envelope every route answers with
// and keeps the session token between calls.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// Sentinel errors exposed by the client.
var (
	ErrMissingBaseURL   = errors.New("dashclient.missing_base_url")
	ErrNotAuthenticated = errors.New("dashclient.not_authenticated")
	ErrTimeout          = errors.New("dashclient.timeout")
)

// APIError is a failure envelope returned by the proxy.
type APIError struct {
	StatusCode int
	Message    string
}

// Error describes the failed call.
func (apiErr *APIError) Error() string {
	return fmt.Sprintf("dashclient: %d %s", apiErr.StatusCode, apiErr.Message)
}

// Config configures the Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      SessionStore
}

// Client calls the dashboard proxy on behalf of one session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
}

// NewClient constructs a Client after validating the configuration.
func NewClient(configuration Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("dashclient.new: %w", ErrMissingBaseURL)
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	store := configuration.Store
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, store: store}, nil
}

// Session exposes the underlying session store.
func (client *Client) Session() SessionStore {
	return client.store
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// do performs one proxy call, unwraps the envelope, and decodes the data
// payload into out when out is non-nil.
func (client *Client) do(ctx context.Context, method string, path string, query url.Values, body any, requireAuth bool, out any) error {
	token := client.store.Token()
	if requireAuth && token == "" {
		return fmt.Errorf("dashclient.do: %w", ErrNotAuthenticated)
	}

	var bodyReader *bytes.Reader
	if body != nil {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("dashclient.do: encode body: %w", marshalErr)
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	target := client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	request, requestErr := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if requestErr != nil {
		return fmt.Errorf("dashclient.do: build request: %w", requestErr)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		var netErr net.Error
		if errors.Is(doErr, context.DeadlineExceeded) || (errors.As(doErr, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("dashclient.do: %w", ErrTimeout)
		}
		return fmt.Errorf("dashclient.do: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	var parsed responseEnvelope
	if decodeErr := json.NewDecoder(response.Body).Decode(&parsed); decodeErr != nil {
		return fmt.Errorf("dashclient.do: decode envelope: %w", decodeErr)
	}
	if !parsed.Success || response.StatusCode >= 400 {
		return &APIError{StatusCode: response.StatusCode, Message: parsed.Message}
	}
	if out != nil && len(parsed.Data) > 0 {
		if decodeErr := json.Unmarshal(parsed.Data, out); decodeErr != nil {
			return fmt.Errorf("dashclient.do: decode data: %w", decodeErr)
		}
	}
	return nil
}

type sessionPayload struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

// Login signs in with email and password and stores the issued session.
func (client *Client) Login(ctx context.Context, email string, password string) (*UserProfile, error) {
	var issued sessionPayload
	callErr := client.do(ctx, http.MethodPost, "/api/auth", nil, map[string]string{
		"action":   "login",
		"email":    email,
		"password": password,
	}, false, &issued)
	if callErr != nil {
		return nil, callErr
	}
	client.store.SetSession(issued.Token, issued.User)
	return issued.User, nil
}

// Register creates an account and stores the issued session.
func (client *Client) Register(ctx context.Context, email string, password string, name string) (*UserProfile, error) {
	var issued sessionPayload
	callErr := client.do(ctx, http.MethodPost, "/api/auth", nil, map[string]string{
		"action":   "register",
		"email":    email,
		"password": password,
		"name":     name,
	}, false, &issued)
	if callErr != nil {
		return nil, callErr
	}
	client.store.SetSession(issued.Token, issued.User)
	return issued.User, nil
}

// Verify checks the stored session token and refreshes the profile.
func (client *Client) Verify(ctx context.Context) (*UserProfile, error) {
	token := client.store.Token()
	if token == "" {
		return nil, fmt.Errorf("dashclient.verify: %w", ErrNotAuthenticated)
	}
	var verified struct {
		User *UserProfile `json:"user"`
	}
	callErr := client.do(ctx, http.MethodPost, "/api/auth", nil, map[string]string{
		"action": "verifyToken",
		"token":  token,
	}, false, &verified)
	if callErr != nil {
		var apiErr *APIError
		if errors.As(callErr, &apiErr) {
			// The token was rejected; a stale session is worse than none.
			client.store.Clear()
		}
		return nil, callErr
	}
	if verified.User != nil {
		client.store.SetSession(token, verified.User)
	}
	return verified.User, nil
}

// Logout forgets the stored session. The proxy keeps no server-side
// session state, so no request is sent.
func (client *Client) Logout() {
	client.store.Clear()
}
