// Package relay hosts the single-hop proxy routes: Gmail, Calendar, Auth,
// and AI. Each forwards one request to one fixed upstream path and passes
// the response through; none of them call a third-party API directly.
package relay

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/identity"
	"github.com/frenqai/skyline/internal/metrics"
)

// Messages surfaced to the dashboard on relay failure paths.
const (
	messageTokenRequired = "Authentication token required"
)

// Config wires the relay routes.
type Config struct {
	Backend      *identity.Client
	AIWebhookURL string
	HTTPClient   *http.Client
	Logger       *zap.Logger
	Recorder     metrics.Recorder
}

type relayRoutes struct {
	backend      *identity.Client
	aiWebhookURL string
	httpClient   *http.Client
	logger       *zap.Logger
	recorder     metrics.Recorder
}

// MountRelayRoutes registers /api/auth, /api/gmail, /api/calendar,
// /api/ai, and /auth/callback.
func MountRelayRoutes(router gin.IRouter, configuration Config) {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	routes := &relayRoutes{
		backend:      configuration.Backend,
		aiWebhookURL: configuration.AIWebhookURL,
		httpClient:   httpClient,
		logger:       logger,
		recorder:     configuration.Recorder,
	}

	router.GET("/api/auth", routes.handleAuthRedirect)
	router.POST("/api/auth", routes.handleAuthAction)
	router.GET("/api/gmail", routes.handleGmailFetch)
	router.POST("/api/gmail", routes.handleGmailAction)
	router.GET("/api/calendar", routes.handleCalendarFetch)
	router.POST("/api/calendar", routes.handleCalendarAction)
	router.POST("/api/ai", routes.handleAIPrompt)
	router.GET("/auth/callback", routes.handleAuthCallback)
}

func (routes *relayRoutes) record(routeName string, outcome string) {
	if routes.recorder != nil {
		routes.recorder.Increment(routeName, outcome)
	}
}
