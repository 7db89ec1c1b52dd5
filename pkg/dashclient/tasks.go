package dashclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// TaskList is one Google Tasks list as the proxy reports it.
type TaskList struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated string `json:"updated,omitempty"`
}

// Task is one task item. Completed is a pointer because the upstream API
// drops the field entirely while the task is pending.
type Task struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Notes     string  `json:"notes,omitempty"`
	Status    string  `json:"status,omitempty"`
	Due       string  `json:"due,omitempty"`
	Completed *string `json:"completed,omitempty"`
	Parent    string  `json:"parent,omitempty"`
	Position  string  `json:"position,omitempty"`
	Updated   string  `json:"updated,omitempty"`
}

// TaskListOptions filter a task listing.
type TaskListOptions struct {
	MaxResults    int64
	ShowCompleted *bool
	ShowHidden    *bool
	PageToken     string
}

func (options TaskListOptions) query() url.Values {
	query := url.Values{}
	if options.MaxResults > 0 {
		query.Set("maxResults", strconv.FormatInt(options.MaxResults, 10))
	}
	if options.ShowCompleted != nil {
		query.Set("showCompleted", strconv.FormatBool(*options.ShowCompleted))
	}
	if options.ShowHidden != nil {
		query.Set("showHidden", strconv.FormatBool(*options.ShowHidden))
	}
	if options.PageToken != "" {
		query.Set("pageToken", options.PageToken)
	}
	return query
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks         []Task `json:"tasks"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// TaskLists fetches the user's task lists.
func (client *Client) TaskLists(ctx context.Context) ([]TaskList, error) {
	var payload struct {
		TaskLists []TaskList `json:"taskLists"`
	}
	if callErr := client.do(ctx, http.MethodGet, "/api/gtasks/lists", nil, nil, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.TaskLists, nil
}

// CreateTaskList creates a task list with the given title.
func (client *Client) CreateTaskList(ctx context.Context, title string) (*TaskList, error) {
	var payload struct {
		TaskList *TaskList `json:"taskList"`
	}
	body := map[string]string{"title": title}
	if callErr := client.do(ctx, http.MethodPost, "/api/gtasks/lists", nil, body, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.TaskList, nil
}

// RenameTaskList changes a task list's title.
func (client *Client) RenameTaskList(ctx context.Context, listID string, title string) (*TaskList, error) {
	var payload struct {
		TaskList *TaskList `json:"taskList"`
	}
	body := map[string]string{"title": title}
	path := "/api/gtasks/lists/" + url.PathEscape(listID)
	if callErr := client.do(ctx, http.MethodPut, path, nil, body, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.TaskList, nil
}

// DeleteTaskList removes a task list and everything in it.
func (client *Client) DeleteTaskList(ctx context.Context, listID string) error {
	path := "/api/gtasks/lists/" + url.PathEscape(listID)
	return client.do(ctx, http.MethodDelete, path, nil, nil, true, nil)
}

// Tasks fetches one page of tasks from the given list.
func (client *Client) Tasks(ctx context.Context, listID string, options TaskListOptions) (*TaskPage, error) {
	var page TaskPage
	path := "/api/gtasks/" + url.PathEscape(listID)
	if callErr := client.do(ctx, http.MethodGet, path, options.query(), nil, true, &page); callErr != nil {
		return nil, callErr
	}
	return &page, nil
}

// TaskPager walks a task listing page by page, fetching each page only
// when Next is called.
type TaskPager struct {
	client   *Client
	listID   string
	options  TaskListOptions
	finished bool
}

// PageTasks returns a pager over the given list. The options apply to
// every page; any PageToken in them selects the starting page.
func (client *Client) PageTasks(listID string, options TaskListOptions) *TaskPager {
	return &TaskPager{client: client, listID: listID, options: options}
}

// More reports whether another page may be available.
func (pager *TaskPager) More() bool {
	return !pager.finished
}

// Next fetches the next page. It returns an error after the listing is
// exhausted; check More before calling.
func (pager *TaskPager) Next(ctx context.Context) ([]Task, error) {
	if pager.finished {
		return nil, fmt.Errorf("dashclient.pager: listing exhausted")
	}
	page, fetchErr := pager.client.Tasks(ctx, pager.listID, pager.options)
	if fetchErr != nil {
		return nil, fetchErr
	}
	pager.options.PageToken = page.NextPageToken
	if page.NextPageToken == "" {
		pager.finished = true
	}
	return page.Tasks, nil
}

type taskCreateBody struct {
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Due    string `json:"due,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// CreateTaskInput names the fields accepted when creating a task.
type CreateTaskInput struct {
	Title  string
	Notes  string
	Due    string
	Parent string
}

// CreateTask adds a task to the given list.
func (client *Client) CreateTask(ctx context.Context, listID string, input CreateTaskInput) (*Task, error) {
	var payload struct {
		Task *Task `json:"task"`
	}
	body := taskCreateBody{Title: input.Title, Notes: input.Notes, Due: input.Due, Parent: input.Parent}
	path := "/api/gtasks/" + url.PathEscape(listID)
	if callErr := client.do(ctx, http.MethodPost, path, nil, body, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.Task, nil
}

// GetTask fetches one task.
func (client *Client) GetTask(ctx context.Context, listID string, taskID string) (*Task, error) {
	var payload struct {
		Task *Task `json:"task"`
	}
	path := "/api/gtasks/" + url.PathEscape(listID) + "/" + url.PathEscape(taskID)
	if callErr := client.do(ctx, http.MethodGet, path, nil, nil, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.Task, nil
}

// UpdateTask patches a task. Only the fields present in patch change;
// a nil map value clears the field upstream.
func (client *Client) UpdateTask(ctx context.Context, listID string, taskID string, patch map[string]any) (*Task, error) {
	var payload struct {
		Task *Task `json:"task"`
	}
	path := "/api/gtasks/" + url.PathEscape(listID) + "/" + url.PathEscape(taskID)
	if callErr := client.do(ctx, http.MethodPut, path, nil, patch, true, &payload); callErr != nil {
		return nil, callErr
	}
	return payload.Task, nil
}

// DeleteTask removes a task.
func (client *Client) DeleteTask(ctx context.Context, listID string, taskID string) error {
	path := "/api/gtasks/" + url.PathEscape(listID) + "/" + url.PathEscape(taskID)
	return client.do(ctx, http.MethodDelete, path, nil, nil, true, nil)
}

// ToggleResult carries the flipped task and the proxy's status message.
type ToggleResult struct {
	Task    *Task  `json:"task"`
	Message string `json:"message"`
}

// ToggleTask flips a task between completed and pending.
func (client *Client) ToggleTask(ctx context.Context, listID string, taskID string) (*ToggleResult, error) {
	var result ToggleResult
	path := "/api/gtasks/" + url.PathEscape(listID) + "/" + url.PathEscape(taskID) + "/toggle"
	if callErr := client.do(ctx, http.MethodPatch, path, nil, nil, true, &result); callErr != nil {
		return nil, callErr
	}
	return &result, nil
}
