// Package gtasks is the Google Tasks gateway: it translates route calls
// into Google Tasks REST calls on the caller's behalf and normalizes the
// results. Each call builds a service bound to the per-request access
// token; nothing is cached between requests.
package gtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"
)

// DefaultEndpoint is the production Google Tasks REST endpoint.
const DefaultEndpoint = "https://tasks.googleapis.com/tasks/v1/"

// DefaultListID is the sentinel id for the user's default task list. It
// passes through to the API without lookup.
const DefaultListID = "@default"

// Task status values defined by the Google Tasks API.
const (
	StatusNeedsAction = "needsAction"
	StatusCompleted   = "completed"
)

// Messages returned by the toggle operation.
const (
	ToggleMessageCompleted = "Task marked as completed"
	ToggleMessagePending   = "Task marked as pending"
)

// Clock provides the current time for completion timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Gateway. Endpoint is overridable for tests.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Clock      Clock
}

// Gateway issues Google Tasks API calls with a per-request access token.
type Gateway struct {
	endpoint   string
	httpClient *http.Client
	clock      Clock
}

// NewGateway constructs a Gateway, applying production defaults.
func NewGateway(configuration Config) *Gateway {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Gateway{
		endpoint:   endpoint,
		httpClient: configuration.HTTPClient,
		clock:      clock,
	}
}

func (gateway *Gateway) service(ctx context.Context, accessToken string) (*tasks.Service, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	if gateway.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, gateway.httpClient)
	}
	authenticatedClient := oauth2.NewClient(ctx, tokenSource)
	service, serviceErr := tasks.NewService(ctx,
		option.WithHTTPClient(authenticatedClient),
		option.WithEndpoint(gateway.endpoint))
	if serviceErr != nil {
		return nil, fmt.Errorf("gtasks.gateway.service: %w", serviceErr)
	}
	return service, nil
}

// ListTaskLists returns all task lists for the authenticated user. An
// empty upstream answer normalizes to an empty slice.
func (gateway *Gateway) ListTaskLists(ctx context.Context, accessToken string) ([]*tasks.TaskList, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}
	result, callErr := service.Tasklists.List().Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.list_task_lists", callErr)
	}
	if result.Items == nil {
		return []*tasks.TaskList{}, nil
	}
	return result.Items, nil
}

// CreateTaskList creates a new task list with the given title.
func (gateway *Gateway) CreateTaskList(ctx context.Context, accessToken string, title string) (*tasks.TaskList, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}
	created, callErr := service.Tasklists.Insert(&tasks.TaskList{Title: title}).Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.create_task_list", callErr)
	}
	return created, nil
}

// UpdateTaskList renames an existing task list.
func (gateway *Gateway) UpdateTaskList(ctx context.Context, accessToken string, listID string, title string) (*tasks.TaskList, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}
	updated, callErr := service.Tasklists.Update(listID, &tasks.TaskList{Id: listID, Title: title}).Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.update_task_list", callErr)
	}
	return updated, nil
}

// DeleteTaskList deletes a task list.
func (gateway *Gateway) DeleteTaskList(ctx context.Context, accessToken string, listID string) error {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return serviceErr
	}
	if callErr := service.Tasklists.Delete(listID).Context(ctx).Do(); callErr != nil {
		return wrapGoogleError("gtasks.gateway.delete_task_list", callErr)
	}
	return nil
}

// ListTasksOptions carry the query parameters of a task listing.
type ListTasksOptions struct {
	MaxResults    int64
	ShowCompleted bool
	ShowHidden    bool
	PageToken     string
}

// DefaultListTasksOptions mirrors the route-level defaults.
func DefaultListTasksOptions() ListTasksOptions {
	return ListTasksOptions{
		MaxResults:    100,
		ShowCompleted: true,
		ShowHidden:    true,
	}
}

// ListTasks returns one page of tasks from a list plus the next page
// token, empty when the listing is exhausted.
func (gateway *Gateway) ListTasks(ctx context.Context, accessToken string, listID string, options ListTasksOptions) ([]*tasks.Task, string, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, "", serviceErr
	}
	maxResults := options.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}
	call := service.Tasks.List(listID).
		MaxResults(maxResults).
		ShowCompleted(options.ShowCompleted).
		ShowHidden(options.ShowHidden)
	if options.PageToken != "" {
		call = call.PageToken(options.PageToken)
	}
	result, callErr := call.Context(ctx).Do()
	if callErr != nil {
		return nil, "", wrapGoogleError("gtasks.gateway.list_tasks", callErr)
	}
	items := result.Items
	if items == nil {
		items = []*tasks.Task{}
	}
	return items, result.NextPageToken, nil
}

// CreateTaskInput carries the accepted fields for a new task. Zero-valued
// fields are not forwarded upstream.
type CreateTaskInput struct {
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Due    string `json:"due,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// CreateTask creates a task in the given list. Only defined input fields
// reach the upstream call.
func (gateway *Gateway) CreateTask(ctx context.Context, accessToken string, listID string, input CreateTaskInput) (*tasks.Task, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}
	task := &tasks.Task{
		Title: input.Title,
		Notes: input.Notes,
		Due:   input.Due,
	}
	call := service.Tasks.Insert(listID, task)
	if input.Parent != "" {
		call = call.Parent(input.Parent)
	}
	created, callErr := call.Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.create_task", callErr)
	}
	return created, nil
}

// GetTask fetches a single task.
func (gateway *Gateway) GetTask(ctx context.Context, accessToken string, listID string, taskID string) (*tasks.Task, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}
	task, callErr := service.Tasks.Get(listID, taskID).Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.get_task", callErr)
	}
	return task, nil
}

// updatableFields maps inbound JSON keys to the Go field names the
// upstream serializer understands for ForceSendFields and NullFields.
var updatableFields = map[string]string{
	"title":     "Title",
	"notes":     "Notes",
	"due":       "Due",
	"status":    "Status",
	"completed": "Completed",
}

// UpdateTask issues a partial update: only keys present in the patch are
// forwarded, and an explicit JSON null clears the corresponding field.
func (gateway *Gateway) UpdateTask(ctx context.Context, accessToken string, listID string, taskID string, patch map[string]json.RawMessage) (*tasks.Task, error) {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, serviceErr
	}

	task := &tasks.Task{Id: taskID}
	for key, fieldName := range updatableFields {
		raw, present := patch[key]
		if !present {
			continue
		}
		if isJSONNull(raw) {
			task.NullFields = append(task.NullFields, fieldName)
			continue
		}
		var value string
		if decodeErr := json.Unmarshal(raw, &value); decodeErr != nil {
			return nil, fmt.Errorf("gtasks.gateway.update_task: field %s: %w", key, decodeErr)
		}
		switch key {
		case "title":
			task.Title = value
		case "notes":
			task.Notes = value
		case "due":
			task.Due = value
		case "status":
			task.Status = value
		case "completed":
			completed := value
			task.Completed = &completed
		}
		if value == "" && key != "completed" {
			task.ForceSendFields = append(task.ForceSendFields, fieldName)
		}
	}

	updated, callErr := service.Tasks.Update(listID, taskID, task).Context(ctx).Do()
	if callErr != nil {
		return nil, wrapGoogleError("gtasks.gateway.update_task", callErr)
	}
	return updated, nil
}

// DeleteTask deletes a task from a list.
func (gateway *Gateway) DeleteTask(ctx context.Context, accessToken string, listID string, taskID string) error {
	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return serviceErr
	}
	if callErr := service.Tasks.Delete(listID, taskID).Context(ctx).Do(); callErr != nil {
		return wrapGoogleError("gtasks.gateway.delete_task", callErr)
	}
	return nil
}

// ToggleTask flips a task's completion state with a read-modify-write:
// fetch the current task, invert the status, stamp or clear the completion
// time, then issue a full update. The two calls are not isolated from
// concurrent toggles on the same task; a lost update is an accepted
// limitation of the upstream API.
func (gateway *Gateway) ToggleTask(ctx context.Context, accessToken string, listID string, taskID string) (*tasks.Task, string, error) {
	current, getErr := gateway.GetTask(ctx, accessToken, listID, taskID)
	if getErr != nil {
		return nil, "", getErr
	}

	newStatus := StatusCompleted
	if current.Status == StatusCompleted {
		newStatus = StatusNeedsAction
	}

	task := &tasks.Task{Id: taskID, Status: newStatus}
	message := ToggleMessagePending
	if newStatus == StatusCompleted {
		completedAt := gateway.clock.Now().UTC().Format(time.RFC3339)
		task.Completed = &completedAt
		message = ToggleMessageCompleted
	} else {
		task.NullFields = append(task.NullFields, "Completed")
	}

	service, serviceErr := gateway.service(ctx, accessToken)
	if serviceErr != nil {
		return nil, "", serviceErr
	}
	updated, callErr := service.Tasks.Update(listID, taskID, task).Context(ctx).Do()
	if callErr != nil {
		return nil, "", wrapGoogleError("gtasks.gateway.toggle_task", callErr)
	}
	return updated, message, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
