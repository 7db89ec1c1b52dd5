package relay

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/envelope"
	"github.com/frenqai/skyline/internal/metrics"
	"github.com/frenqai/skyline/internal/sessionauth"
)

// handleGmailFetch forwards an email listing to the backend. The bearer
// token is only checked for presence here; the backend verifies it.
func (routes *relayRoutes) handleGmailFetch(contextGin *gin.Context) {
	const routeName = "gmail.fetch"

	token, found := sessionauth.BearerToken(contextGin.Request)
	if !found {
		routes.record(routeName, metrics.OutcomeUnauthenticated)
		envelope.Fail(contextGin, http.StatusUnauthorized, messageTokenRequired)
		return
	}

	maxResults := contextGin.DefaultQuery("maxResults", "10")
	query := url.Values{}
	query.Set("maxResults", maxResults)

	response, forwardErr := routes.backend.Forward(contextGin.Request.Context(), http.MethodGet, "/api/gmail/emails", query, token, nil)
	if forwardErr != nil {
		routes.logger.Warn("gmail fetch failed",
			zap.String("code", "relay.gmail.fetch"),
			zap.Error(forwardErr))
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to fetch Gmail data")
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.Passthrough(contextGin, response.StatusCode, response.Body)
}

// handleGmailAction forwards compose/send style requests verbatim.
func (routes *relayRoutes) handleGmailAction(contextGin *gin.Context) {
	const routeName = "gmail.action"

	token, found := sessionauth.BearerToken(contextGin.Request)
	if !found {
		routes.record(routeName, metrics.OutcomeUnauthenticated)
		envelope.Fail(contextGin, http.StatusUnauthorized, messageTokenRequired)
		return
	}

	body, readErr := io.ReadAll(contextGin.Request.Body)
	if readErr != nil {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, forwardErr := routes.backend.Forward(contextGin.Request.Context(), http.MethodPost, "/api/gmail", nil, token, body)
	if forwardErr != nil {
		routes.logger.Warn("gmail action failed",
			zap.String("code", "relay.gmail.action"),
			zap.Error(forwardErr))
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to process Gmail request")
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.Passthrough(contextGin, response.StatusCode, response.Body)
}
