package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/envelope"
	"github.com/frenqai/skyline/internal/metrics"
)

// Auth actions accepted by POST /api/auth.
const (
	actionLogin         = "login"
	actionRegister      = "register"
	actionVerifyToken   = "verifyToken"
	actionGetGmailToken = "getGmailToken"
)

// handleAuthRedirect starts the Google OAuth flow by redirecting the
// browser to the backend's OAuth entry point.
func (routes *relayRoutes) handleAuthRedirect(contextGin *gin.Context) {
	routes.record("auth.redirect", metrics.OutcomeSuccess)
	contextGin.Redirect(http.StatusFound, routes.backend.BaseURL()+"/api/auth/google")
}

// handleAuthAction dispatches the action switch: login and register
// forward the remaining payload; verifyToken and getGmailToken forward
// the token from the body as a bearer credential.
func (routes *relayRoutes) handleAuthAction(contextGin *gin.Context) {
	const routeName = "auth.action"

	var payload map[string]json.RawMessage
	if bindErr := contextGin.BindJSON(&payload); bindErr != nil {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	var action string
	if raw, present := payload["action"]; present {
		_ = json.Unmarshal(raw, &action)
	}
	delete(payload, "action")

	switch action {
	case actionLogin:
		forwardBody, _ := json.Marshal(payload)
		response, forwardErr := routes.backend.Login(contextGin.Request.Context(), forwardBody)
		if forwardErr != nil {
			routes.failAuthAction(contextGin, routeName, "Login failed", forwardErr)
			return
		}
		routes.record(routeName, metrics.OutcomeSuccess)
		envelope.Passthrough(contextGin, response.StatusCode, response.Body)
	case actionRegister:
		forwardBody, _ := json.Marshal(payload)
		response, forwardErr := routes.backend.Register(contextGin.Request.Context(), forwardBody)
		if forwardErr != nil {
			routes.failAuthAction(contextGin, routeName, "Registration failed", forwardErr)
			return
		}
		routes.record(routeName, metrics.OutcomeSuccess)
		envelope.Passthrough(contextGin, response.StatusCode, response.Body)
	case actionVerifyToken:
		response, forwardErr := routes.backend.VerifyToken(contextGin.Request.Context(), decodeTokenField(payload))
		if forwardErr != nil {
			routes.failAuthAction(contextGin, routeName, "Token verification failed", forwardErr)
			return
		}
		routes.record(routeName, metrics.OutcomeSuccess)
		envelope.Passthrough(contextGin, response.StatusCode, response.Body)
	case actionGetGmailToken:
		response, forwardErr := routes.backend.GmailToken(contextGin.Request.Context(), decodeTokenField(payload))
		if forwardErr != nil || response.StatusCode < 200 || response.StatusCode > 299 {
			// The session is valid but the Gmail linkage is not; this is
			// the same failure class as the Tasks routes and maps to 401.
			routes.logger.Warn("gmail token unavailable",
				zap.String("code", "relay.auth.gmail_token"),
				zap.Error(forwardErr))
			routes.record(routeName, metrics.OutcomeTokenUnavailable)
			envelope.Fail(contextGin, http.StatusUnauthorized, "Gmail token not available")
			return
		}
		routes.record(routeName, metrics.OutcomeSuccess)
		envelope.Passthrough(contextGin, response.StatusCode, response.Body)
	default:
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Invalid action")
	}
}

func (routes *relayRoutes) failAuthAction(contextGin *gin.Context, routeName string, message string, forwardErr error) {
	routes.logger.Warn("auth action failed",
		zap.String("code", "relay.auth.forward"),
		zap.Error(forwardErr))
	routes.record(routeName, metrics.OutcomeInternalError)
	envelope.Fail(contextGin, http.StatusInternalServerError, message)
}

func decodeTokenField(payload map[string]json.RawMessage) string {
	var token string
	if raw, present := payload["token"]; present {
		_ = json.Unmarshal(raw, &token)
	}
	return token
}
