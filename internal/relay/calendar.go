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

// handleCalendarFetch forwards an event listing with the time-window
// query parameters the calendar widget sends.
func (routes *relayRoutes) handleCalendarFetch(contextGin *gin.Context) {
	const routeName = "calendar.fetch"

	token, found := sessionauth.BearerToken(contextGin.Request)
	if !found {
		routes.record(routeName, metrics.OutcomeUnauthenticated)
		envelope.Fail(contextGin, http.StatusUnauthorized, messageTokenRequired)
		return
	}

	query := url.Values{}
	query.Set("maxResults", contextGin.DefaultQuery("maxResults", "20"))
	if timeMin := contextGin.Query("timeMin"); timeMin != "" {
		query.Set("timeMin", timeMin)
	}
	if timeMax := contextGin.Query("timeMax"); timeMax != "" {
		query.Set("timeMax", timeMax)
	}

	response, forwardErr := routes.backend.Forward(contextGin.Request.Context(), http.MethodGet, "/api/calendar/events", query, token, nil)
	if forwardErr != nil {
		routes.logger.Warn("calendar fetch failed",
			zap.String("code", "relay.calendar.fetch"),
			zap.Error(forwardErr))
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to fetch calendar data")
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.Passthrough(contextGin, response.StatusCode, response.Body)
}

// handleCalendarAction forwards event creation requests verbatim.
func (routes *relayRoutes) handleCalendarAction(contextGin *gin.Context) {
	const routeName = "calendar.action"

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

	response, forwardErr := routes.backend.Forward(contextGin.Request.Context(), http.MethodPost, "/api/calendar/events", nil, token, body)
	if forwardErr != nil {
		routes.logger.Warn("calendar action failed",
			zap.String("code", "relay.calendar.action"),
			zap.Error(forwardErr))
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to process calendar request")
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.Passthrough(contextGin, response.StatusCode, response.Body)
}
