package gtasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/envelope"
	"github.com/frenqai/skyline/internal/identity"
	"github.com/frenqai/skyline/internal/metrics"
	"github.com/frenqai/skyline/internal/sessionauth"
)

// Messages surfaced to the dashboard on the auth failure paths.
const (
	messageTokenRequired    = "Authentication token required"
	messageAuthRequired     = "Authentication required"
	messageGoogleTokenError = "Failed to get Google access token"
)

type taskRoutes struct {
	verifier *sessionauth.Verifier
	tokens   *identity.Client
	gateway  *Gateway
	logger   *zap.Logger
	recorder metrics.Recorder
}

// MountTaskRoutes registers the /api/gtasks surface. Every protected route
// runs the same chain: verify the bearer JWT, resolve the caller's Google
// access token from the identity backend, call the gateway, wrap the
// result in the response envelope.
func MountTaskRoutes(router gin.IRouter, verifier *sessionauth.Verifier, tokens *identity.Client, gateway *Gateway, logger *zap.Logger, recorder metrics.Recorder) {
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := &taskRoutes{
		verifier: verifier,
		tokens:   tokens,
		gateway:  gateway,
		logger:   logger,
		recorder: recorder,
	}

	group := router.Group("/api/gtasks")
	group.GET("", routes.handleIndex)
	group.GET("/lists", routes.handleListTaskLists)
	group.POST("/lists", routes.handleCreateTaskList)
	group.PUT("/lists/:listId", routes.handleUpdateTaskList)
	group.DELETE("/lists/:listId", routes.handleDeleteTaskList)
	group.GET("/:listId", routes.handleListTasks)
	group.POST("/:listId", routes.handleCreateTask)
	group.GET("/:listId/:taskId", routes.handleGetTask)
	group.PUT("/:listId/:taskId", routes.handleUpdateTask)
	group.DELETE("/:listId/:taskId", routes.handleDeleteTask)
	group.PATCH("/:listId/:taskId/toggle", routes.handleToggleTask)
}

// authorize runs the verify-then-resolve chain shared by every protected
// task route. It writes the failure envelope itself and reports ok=false
// when the handler must stop.
func (routes *taskRoutes) authorize(contextGin *gin.Context, routeName string) (string, bool) {
	claims, verifyErr := routes.verifier.VerifyRequest(contextGin.Request)
	if verifyErr != nil {
		if errors.Is(verifyErr, sessionauth.ErrMissingAuthorization) {
			routes.record(routeName, metrics.OutcomeUnauthenticated)
			envelope.Fail(contextGin, http.StatusUnauthorized, messageTokenRequired)
			return "", false
		}
		routes.logger.Warn("token verification failed",
			zap.String("code", "gtasks.routes.invalid_token"),
			zap.String("route", routeName),
			zap.Error(verifyErr))
		routes.record(routeName, metrics.OutcomeInvalidToken)
		envelope.Fail(contextGin, http.StatusUnauthorized, messageAuthRequired)
		return "", false
	}

	accessToken, resolveErr := routes.tokens.GoogleAccessToken(contextGin.Request.Context(), claims.GetUserID())
	if resolveErr != nil {
		routes.logger.Warn("google token resolution failed",
			zap.String("code", "gtasks.routes.token_unavailable"),
			zap.String("route", routeName),
			zap.String("user_id", claims.GetUserID()),
			zap.Error(resolveErr))
		routes.record(routeName, metrics.OutcomeTokenUnavailable)
		envelope.Fail(contextGin, http.StatusUnauthorized, messageGoogleTokenError)
		return "", false
	}
	return accessToken, true
}

// respondError maps gateway failures onto the envelope. Upstream Google
// statuses are relayed, never flattened to 500.
func (routes *taskRoutes) respondError(contextGin *gin.Context, routeName string, fallbackMessage string, err error) {
	if errors.Is(err, ErrTaskNotFound) {
		routes.record(routeName, metrics.OutcomeNotFound)
		envelope.Fail(contextGin, http.StatusNotFound, "Task not found")
		return
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		routes.logger.Warn("google tasks api error",
			zap.String("code", "gtasks.routes.upstream_error"),
			zap.String("route", routeName),
			zap.Int("status", apiErr.StatusCode))
		statusCode := apiErr.StatusCode
		if statusCode < http.StatusBadRequest {
			statusCode = http.StatusInternalServerError
		}
		routes.record(routeName, metrics.OutcomeUpstreamError)
		envelope.Fail(contextGin, statusCode, apiErr.Error())
		return
	}
	routes.logger.Error("task route failed",
		zap.String("code", "gtasks.routes.internal_error"),
		zap.String("route", routeName),
		zap.Error(err))
	routes.record(routeName, metrics.OutcomeInternalError)
	envelope.Fail(contextGin, http.StatusInternalServerError, fallbackMessage)
}

func (routes *taskRoutes) record(routeName string, outcome string) {
	if routes.recorder != nil {
		routes.recorder.Increment(routeName, outcome)
	}
}

func (routes *taskRoutes) handleIndex(contextGin *gin.Context) {
	envelope.OKWithMessage(contextGin, http.StatusOK, gin.H{
		"endpoints": gin.H{
			"GET /api/gtasks/lists":                      "Get all task lists",
			"POST /api/gtasks/lists":                     "Create a new task list",
			"PUT /api/gtasks/lists/{listId}":             "Rename a task list",
			"DELETE /api/gtasks/lists/{listId}":          "Delete a task list",
			"GET /api/gtasks/{listId}":                   "Get tasks from a specific list",
			"POST /api/gtasks/{listId}":                  "Create a new task in a specific list",
			"GET /api/gtasks/{listId}/{taskId}":          "Get a specific task",
			"PUT /api/gtasks/{listId}/{taskId}":          "Update a specific task",
			"DELETE /api/gtasks/{listId}/{taskId}":       "Delete a specific task",
			"PATCH /api/gtasks/{listId}/{taskId}/toggle": "Toggle task completion status",
		},
	}, "Google Tasks API endpoints")
}

func (routes *taskRoutes) handleListTaskLists(contextGin *gin.Context) {
	const routeName = "gtasks.lists.list"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	taskLists, listErr := routes.gateway.ListTaskLists(contextGin.Request.Context(), accessToken)
	if listErr != nil {
		routes.respondError(contextGin, routeName, "Failed to fetch task lists", listErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OK(contextGin, http.StatusOK, gin.H{"taskLists": taskLists})
}

func (routes *taskRoutes) handleCreateTaskList(contextGin *gin.Context) {
	const routeName = "gtasks.lists.create"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	var inbound struct {
		Title string `json:"title"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Title) == "" {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Task list title is required")
		return
	}
	created, createErr := routes.gateway.CreateTaskList(contextGin.Request.Context(), accessToken, inbound.Title)
	if createErr != nil {
		routes.respondError(contextGin, routeName, "Failed to create task list", createErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, gin.H{"taskList": created}, "Task list created successfully")
}

func (routes *taskRoutes) handleUpdateTaskList(contextGin *gin.Context) {
	const routeName = "gtasks.lists.update"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	var inbound struct {
		Title string `json:"title"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Title) == "" {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Task list title is required")
		return
	}
	updated, updateErr := routes.gateway.UpdateTaskList(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), inbound.Title)
	if updateErr != nil {
		routes.respondError(contextGin, routeName, "Failed to update task list", updateErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, gin.H{"taskList": updated}, "Task list updated successfully")
}

func (routes *taskRoutes) handleDeleteTaskList(contextGin *gin.Context) {
	const routeName = "gtasks.lists.delete"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	if deleteErr := routes.gateway.DeleteTaskList(contextGin.Request.Context(), accessToken, contextGin.Param("listId")); deleteErr != nil {
		routes.respondError(contextGin, routeName, "Failed to delete task list", deleteErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, nil, "Task list deleted successfully")
}

// taskPage is the data payload of a task listing. NextPageToken is omitted
// entirely when the listing is exhausted.
type taskPage struct {
	Tasks         any    `json:"tasks"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func (routes *taskRoutes) handleListTasks(contextGin *gin.Context) {
	const routeName = "gtasks.tasks.list"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}

	options := DefaultListTasksOptions()
	if rawMaxResults := contextGin.Query("maxResults"); rawMaxResults != "" {
		maxResults, parseErr := strconv.ParseInt(rawMaxResults, 10, 64)
		if parseErr != nil || maxResults <= 0 {
			routes.record(routeName, metrics.OutcomeBadRequest)
			envelope.Fail(contextGin, http.StatusBadRequest, "Invalid maxResults parameter")
			return
		}
		options.MaxResults = maxResults
	}
	if rawShowCompleted := contextGin.Query("showCompleted"); rawShowCompleted != "" {
		showCompleted, parseErr := strconv.ParseBool(rawShowCompleted)
		if parseErr != nil {
			routes.record(routeName, metrics.OutcomeBadRequest)
			envelope.Fail(contextGin, http.StatusBadRequest, "Invalid showCompleted parameter")
			return
		}
		options.ShowCompleted = showCompleted
	}
	if rawShowHidden := contextGin.Query("showHidden"); rawShowHidden != "" {
		showHidden, parseErr := strconv.ParseBool(rawShowHidden)
		if parseErr != nil {
			routes.record(routeName, metrics.OutcomeBadRequest)
			envelope.Fail(contextGin, http.StatusBadRequest, "Invalid showHidden parameter")
			return
		}
		options.ShowHidden = showHidden
	}
	options.PageToken = contextGin.Query("pageToken")

	items, nextPageToken, listErr := routes.gateway.ListTasks(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), options)
	if listErr != nil {
		routes.respondError(contextGin, routeName, "Failed to fetch tasks", listErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OK(contextGin, http.StatusOK, taskPage{Tasks: items, NextPageToken: nextPageToken})
}

func (routes *taskRoutes) handleCreateTask(contextGin *gin.Context) {
	const routeName = "gtasks.tasks.create"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	var input CreateTaskInput
	if bindErr := contextGin.BindJSON(&input); bindErr != nil || strings.TrimSpace(input.Title) == "" {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Task title is required")
		return
	}
	created, createErr := routes.gateway.CreateTask(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), input)
	if createErr != nil {
		routes.respondError(contextGin, routeName, "Failed to create task", createErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, gin.H{"task": created}, "Task created successfully")
}

func (routes *taskRoutes) handleGetTask(contextGin *gin.Context) {
	const routeName = "gtasks.task.get"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	task, getErr := routes.gateway.GetTask(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), contextGin.Param("taskId"))
	if getErr != nil {
		routes.respondError(contextGin, routeName, "Failed to fetch task", getErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OK(contextGin, http.StatusOK, gin.H{"task": task})
}

func (routes *taskRoutes) handleUpdateTask(contextGin *gin.Context) {
	const routeName = "gtasks.task.update"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if bindErr := contextGin.BindJSON(&patch); bindErr != nil {
		routes.record(routeName, metrics.OutcomeBadRequest)
		envelope.Fail(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, updateErr := routes.gateway.UpdateTask(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), contextGin.Param("taskId"), patch)
	if updateErr != nil {
		routes.respondError(contextGin, routeName, "Failed to update task", updateErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, gin.H{"task": updated}, "Task updated successfully")
}

func (routes *taskRoutes) handleDeleteTask(contextGin *gin.Context) {
	const routeName = "gtasks.task.delete"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	if deleteErr := routes.gateway.DeleteTask(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), contextGin.Param("taskId")); deleteErr != nil {
		routes.respondError(contextGin, routeName, "Failed to delete task", deleteErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	envelope.OKWithMessage(contextGin, http.StatusOK, nil, "Task deleted successfully")
}

func (routes *taskRoutes) handleToggleTask(contextGin *gin.Context) {
	const routeName = "gtasks.task.toggle"
	accessToken, ok := routes.authorize(contextGin, routeName)
	if !ok {
		return
	}
	task, message, toggleErr := routes.gateway.ToggleTask(contextGin.Request.Context(), accessToken, contextGin.Param("listId"), contextGin.Param("taskId"))
	if toggleErr != nil {
		routes.respondError(contextGin, routeName, "Failed to toggle task completion", toggleErr)
		return
	}
	routes.record(routeName, metrics.OutcomeSuccess)
	// The toggle payload carries its status message inside data; the
	// dashboard widget reads it from there.
	envelope.OK(contextGin, http.StatusOK, gin.H{"task": task, "message": message})
}
