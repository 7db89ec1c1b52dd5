package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/envelope"
	"github.com/frenqai/skyline/internal/metrics"
)

// handleAIPrompt forwards the chat prompt to the AI webhook and passes
// the webhook's JSON answer through unchanged.
func (routes *relayRoutes) handleAIPrompt(contextGin *gin.Context) {
	const routeName = "ai.prompt"

	var inbound struct {
		Prompt string `json:"prompt"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Prompt) == "" {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Prompt is required")
		return
	}

	if routes.aiWebhookURL == "" {
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "AI service is not configured")
		return
	}

	forwardBody, _ := json.Marshal(gin.H{"prompt": inbound.Prompt})
	request, requestErr := http.NewRequestWithContext(contextGin.Request.Context(), http.MethodPost, routes.aiWebhookURL, bytes.NewReader(forwardBody))
	if requestErr != nil {
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to process request")
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := routes.httpClient.Do(request)
	if doErr != nil {
		routes.logger.Warn("ai webhook unreachable",
			zap.String("code", "relay.ai.transport"),
			zap.Error(doErr))
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to process request")
		return
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		routes.logger.Warn("ai webhook rejected prompt",
			zap.String("code", "relay.ai.status"),
			zap.Int("status", response.StatusCode))
		routes.record(routeName, metrics.OutcomeUpstreamError)
		envelope.Fail(contextGin, http.StatusInternalServerError, fmt.Sprintf("AI service responded with status %d", response.StatusCode))
		return
	}

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		routes.record(routeName, metrics.OutcomeInternalError)
		envelope.Fail(contextGin, http.StatusInternalServerError, "Failed to process request")
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.Passthrough(contextGin, http.StatusOK, body)
}
