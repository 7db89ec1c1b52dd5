package web

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusOK       = "ok"
	healthStatusNotReady = "not ready"
)

// HealthChecker answers liveness and readiness probes. Readiness flips
// to false when shutdown starts so load balancers drain the instance.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

// NewHealthChecker creates a checker that reports ready immediately.
func NewHealthChecker() *HealthChecker {
	checker := &HealthChecker{startTime: time.Now()}
	checker.ready.Store(true)
	return checker
}

// SetReady sets the readiness state of the server.
func (checker *HealthChecker) SetReady(ready bool) {
	checker.ready.Store(ready)
}

// MountHealthRoutes registers /healthz and /readyz.
func (checker *HealthChecker) MountHealthRoutes(router gin.IRouter) {
	router.GET("/healthz", checker.handleLiveness)
	router.GET("/readyz", checker.handleReadiness)
}

func (checker *HealthChecker) handleLiveness(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, gin.H{
		"status": healthStatusOK,
		"uptime": time.Since(checker.startTime).Round(time.Second).String(),
	})
}

func (checker *HealthChecker) handleReadiness(contextGin *gin.Context) {
	if !checker.ready.Load() {
		contextGin.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusNotReady})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"status": healthStatusOK})
}
