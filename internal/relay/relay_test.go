package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/frenqai/skyline/internal/identity"
	"github.com/frenqai/skyline/internal/metrics"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

// fakeBackend mimics the identity backend: it records every request and
// answers with a canned status and body.
type fakeBackend struct {
	mutex    sync.Mutex
	requests []capturedRequest
	status   int
	body     string
}

func (backend *fakeBackend) handler() http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		backend.mutex.Lock()
		backend.requests = append(backend.requests, capturedRequest{
			method: request.Method,
			path:   request.URL.Path,
			query:  request.URL.RawQuery,
			auth:   request.Header.Get("Authorization"),
			body:   body,
		})
		backend.mutex.Unlock()
		status := backend.status
		if status == 0 {
			status = http.StatusOK
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)
		responseBody := backend.body
		if responseBody == "" {
			responseBody = `{"success":true}`
		}
		_, _ = writer.Write([]byte(responseBody))
	}
}

func (backend *fakeBackend) lastRequest(t *testing.T) capturedRequest {
	t.Helper()
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if len(backend.requests) == 0 {
		t.Fatalf("expected the backend to receive a request")
	}
	return backend.requests[len(backend.requests)-1]
}

type relayFixture struct {
	router   *gin.Engine
	backend  *fakeBackend
	recorder *metrics.CounterRecorder
}

func newRelayFixture(t *testing.T, aiWebhookURL string) *relayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &fakeBackend{}
	backendServer := httptest.NewServer(backend.handler())
	t.Cleanup(backendServer.Close)

	backendClient, clientErr := identity.NewClient(identity.Config{
		BaseURL: backendServer.URL,
		Logger:  zaptest.NewLogger(t),
	})
	if clientErr != nil {
		t.Fatalf("build identity client: %v", clientErr)
	}

	recorder := metrics.NewCounterRecorder()
	router := gin.New()
	MountRelayRoutes(router, Config{
		Backend:      backendClient,
		AIWebhookURL: aiWebhookURL,
		Logger:       zaptest.NewLogger(t),
		Recorder:     recorder,
	})
	return &relayFixture{router: router, backend: backend, recorder: recorder}
}

func (fixture *relayFixture) perform(method string, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	response := httptest.NewRecorder()
	fixture.router.ServeHTTP(response, request)
	return response
}

func decodeFailure(t *testing.T, response *httptest.ResponseRecorder) string {
	t.Helper()
	var parsed struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if decodeErr := json.Unmarshal(response.Body.Bytes(), &parsed); decodeErr != nil {
		t.Fatalf("decode failure envelope: %v", decodeErr)
	}
	if parsed.Success {
		t.Fatalf("expected success=false, got body %s", response.Body.String())
	}
	return parsed.Message
}

func TestAuthRedirectPointsAtBackendOAuthEntry(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet, "/api/auth", "", nil)

	if response.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", response.Code)
	}
	location := response.Header().Get("Location")
	if !strings.HasSuffix(location, "/api/auth/google") {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestAuthLoginForwardsPayloadWithoutAction(t *testing.T) {
	fixture := newRelayFixture(t, "")
	fixture.backend.body = `{"success":true,"data":{"token":"issued"}}`

	response := fixture.perform(http.MethodPost, "/api/auth",
		`{"action":"login","email":"dev@example.com","password":"hunter2"}`, nil)

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if response.Body.String() != `{"success":true,"data":{"token":"issued"}}` {
		t.Fatalf("expected backend body passed through, got %s", response.Body.String())
	}

	forwarded := fixture.backend.lastRequest(t)
	if forwarded.path != "/api/auth/login" {
		t.Fatalf("expected forward to /api/auth/login, got %s", forwarded.path)
	}
	var forwardedPayload map[string]string
	if decodeErr := json.Unmarshal(forwarded.body, &forwardedPayload); decodeErr != nil {
		t.Fatalf("decode forwarded body: %v", decodeErr)
	}
	if _, present := forwardedPayload["action"]; present {
		t.Fatalf("action field must be stripped before forwarding")
	}
	if forwardedPayload["email"] != "dev@example.com" {
		t.Fatalf("expected email to survive the forward, got %v", forwardedPayload)
	}
}

func TestAuthRegisterRelaysBackendStatus(t *testing.T) {
	fixture := newRelayFixture(t, "")
	fixture.backend.status = http.StatusConflict
	fixture.backend.body = `{"success":false,"message":"Email already registered"}`

	response := fixture.perform(http.MethodPost, "/api/auth",
		`{"action":"register","email":"dev@example.com"}`, nil)

	if response.Code != http.StatusConflict {
		t.Fatalf("expected the backend's 409 relayed, got %d", response.Code)
	}
}

func TestAuthVerifyTokenSendsBearerHeader(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodPost, "/api/auth",
		`{"action":"verifyToken","token":"session-token"}`, nil)

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	forwarded := fixture.backend.lastRequest(t)
	if forwarded.path != "/api/auth/me" {
		t.Fatalf("expected forward to /api/auth/me, got %s", forwarded.path)
	}
	if forwarded.auth != "Bearer session-token" {
		t.Fatalf("expected bearer header, got %q", forwarded.auth)
	}
}

func TestAuthGmailTokenFailureMapsToUnauthorized(t *testing.T) {
	fixture := newRelayFixture(t, "")
	fixture.backend.status = http.StatusNotFound
	fixture.backend.body = `{"success":false}`

	response := fixture.perform(http.MethodPost, "/api/auth",
		`{"action":"getGmailToken","token":"session-token"}`, nil)

	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when the Gmail linkage is missing, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "Gmail token not available" {
		t.Fatalf("unexpected message %q", message)
	}
	if count := fixture.recorder.Count("auth.action", metrics.OutcomeTokenUnavailable); count != 1 {
		t.Fatalf("expected one token_unavailable count, got %d", count)
	}
}

func TestAuthUnknownActionRejected(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodPost, "/api/auth", `{"action":"selfDestruct"}`, nil)

	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "Invalid action" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestGmailFetchRequiresBearerToken(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet, "/api/gmail", "", nil)

	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "Authentication token required" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestGmailFetchForwardsDefaultMaxResults(t *testing.T) {
	fixture := newRelayFixture(t, "")
	fixture.backend.body = `{"success":true,"data":{"emails":[]}}`

	response := fixture.perform(http.MethodGet, "/api/gmail", "",
		map[string]string{"Authorization": "Bearer session-token"})

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	forwarded := fixture.backend.lastRequest(t)
	if forwarded.path != "/api/gmail/emails" {
		t.Fatalf("expected forward to /api/gmail/emails, got %s", forwarded.path)
	}
	if forwarded.query != "maxResults=10" {
		t.Fatalf("expected default maxResults=10, got %q", forwarded.query)
	}
	if forwarded.auth != "Bearer session-token" {
		t.Fatalf("expected bearer header passed through, got %q", forwarded.auth)
	}
}

func TestGmailActionForwardsBodyVerbatim(t *testing.T) {
	fixture := newRelayFixture(t, "")

	requestBody := `{"action":"send","to":"team@example.com","subject":"standup"}`
	response := fixture.perform(http.MethodPost, "/api/gmail", requestBody,
		map[string]string{"Authorization": "Bearer session-token"})

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	forwarded := fixture.backend.lastRequest(t)
	if string(forwarded.body) != requestBody {
		t.Fatalf("expected verbatim body, got %s", forwarded.body)
	}
}

func TestCalendarFetchForwardsTimeWindow(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet,
		"/api/calendar?maxResults=5&timeMin=2026-09-01T00:00:00Z&timeMax=2026-09-08T00:00:00Z", "",
		map[string]string{"Authorization": "Bearer session-token"})

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	forwarded := fixture.backend.lastRequest(t)
	if forwarded.path != "/api/calendar/events" {
		t.Fatalf("expected forward to /api/calendar/events, got %s", forwarded.path)
	}
	for _, fragment := range []string{"maxResults=5", "timeMin=", "timeMax="} {
		if !strings.Contains(forwarded.query, fragment) {
			t.Fatalf("expected %s in forwarded query %q", fragment, forwarded.query)
		}
	}
}

func TestCalendarActionRequiresBearerToken(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodPost, "/api/calendar", `{"summary":"standup"}`, nil)

	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.Code)
	}
}

func TestGmailFetchBackendDownReturnsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deadServer := httptest.NewServer(http.NotFoundHandler())
	deadServer.Close()

	backendClient, clientErr := identity.NewClient(identity.Config{
		BaseURL: deadServer.URL,
		Logger:  zaptest.NewLogger(t),
	})
	if clientErr != nil {
		t.Fatalf("build identity client: %v", clientErr)
	}
	router := gin.New()
	MountRelayRoutes(router, Config{Backend: backendClient, Logger: zaptest.NewLogger(t)})

	request := httptest.NewRequest(http.MethodGet, "/api/gmail", nil)
	request.Header.Set("Authorization", "Bearer session-token")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the backend is unreachable, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "Failed to fetch Gmail data" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestAIPromptRequired(t *testing.T) {
	fixture := newRelayFixture(t, "http://unused.invalid/webhook")

	response := fixture.perform(http.MethodPost, "/api/ai", `{"prompt":"   "}`, nil)

	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "Prompt is required" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestAIPromptWithoutConfiguredWebhook(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodPost, "/api/ai", `{"prompt":"summarize my day"}`, nil)

	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.Code)
	}
	if message := decodeFailure(t, response); message != "AI service is not configured" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestAIPromptForwardsAndPassesAnswerThrough(t *testing.T) {
	var received struct {
		Prompt string `json:"prompt"`
	}
	webhook := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if decodeErr := json.NewDecoder(request.Body).Decode(&received); decodeErr != nil {
			t.Errorf("decode webhook body: %v", decodeErr)
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"answer":"you have 3 tasks due today"}`))
	}))
	defer webhook.Close()

	fixture := newRelayFixture(t, webhook.URL)

	response := fixture.perform(http.MethodPost, "/api/ai", `{"prompt":"summarize my day"}`, nil)

	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if received.Prompt != "summarize my day" {
		t.Fatalf("expected prompt forwarded, got %q", received.Prompt)
	}
	if response.Body.String() != `{"answer":"you have 3 tasks due today"}` {
		t.Fatalf("expected webhook answer passed through, got %s", response.Body.String())
	}
}

func TestAIWebhookErrorStatusSurfacesAsInternalError(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer webhook.Close()

	fixture := newRelayFixture(t, webhook.URL)

	response := fixture.perform(http.MethodPost, "/api/ai", `{"prompt":"summarize my day"}`, nil)

	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.Code)
	}
}

func TestCallbackRedirectsWithToken(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet, "/auth/callback?token=issued-token", "", nil)

	if response.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", response.Code)
	}
	if location := response.Header().Get("Location"); location != "/dashboard?token=issued-token" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestCallbackRedirectsWithOAuthError(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet, "/auth/callback?error=access+denied", "", nil)

	if response.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", response.Code)
	}
	if location := response.Header().Get("Location"); location != "/?auth=error&message=access+denied" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestCallbackWithoutResultRedirectsToFailure(t *testing.T) {
	fixture := newRelayFixture(t, "")

	response := fixture.perform(http.MethodGet, "/auth/callback", "", nil)

	if location := response.Header().Get("Location"); location != "/?auth=failed" {
		t.Fatalf("unexpected redirect %q", location)
	}
}
