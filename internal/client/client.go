// Package client provides an HTTP client for the complycheck server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/complycheck/internal/models"
)

// Client talks to the complycheck REST and streaming endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses COMPLYCHECK_SERVER_URL or defaults to localhost:8585.
// Timeout can be configured via COMPLYCHECK_CLIENT_TIMEOUT (default 2m, uploads included).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("COMPLYCHECK_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("COMPLYCHECK_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// do sends a request and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ListChecklists returns the server's checklist catalog.
func (c *Client) ListChecklists(ctx context.Context) ([]models.ChecklistInfo, error) {
	var resp struct {
		Checklists []models.ChecklistInfo `json:"checklists"`
	}
	if err := c.do(ctx, http.MethodGet, "/checklists", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Checklists, nil
}

// SubmitFile uploads a document from disk and starts a check.
func (c *Client) SubmitFile(ctx context.Context, path string, checklistIDs []string) (*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return c.Submit(ctx, filepath.Base(path), data, checklistIDs)
}

// Submit uploads a document and starts a check against the given
// checklists.
func (c *Client) Submit(ctx context.Context, name string, document []byte, checklistIDs []string) (*models.Task, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, id := range checklistIDs {
		if err := mw.WriteField("checklist", id); err != nil {
			return nil, fmt.Errorf("write form: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("document", name)
	if err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if _, err := fw.Write(document); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}

	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", mw.FormDataContentType(), &buf, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns the tasks the server holds, most recent first. An
// empty status returns every task.
func (c *Client) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var resp struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// GetTask retrieves a task by ID.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), "", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Results retrieves the final rows of a finished task, including tasks the
// server has already dropped from memory.
func (c *Client) Results(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id)+"/results", "", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Cancel requests cancellation of a task.
func (c *Client) Cancel(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/cancel", "", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Watch streams a task's updates. onUpdate is called for each one, the
// first being the current state. Watch returns nil after the terminal
// update. Return an error from onUpdate to stop early.
func (c *Client) Watch(ctx context.Context, id string, onUpdate func(models.TaskUpdate) error) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/tasks/" + url.PathEscape(id) + "/stream")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return &APIError{StatusCode: resp.StatusCode, Message: "task not found"}
			}
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var update models.TaskUpdate
		if err := conn.ReadJSON(&update); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read update: %w", err)
		}
		if err := onUpdate(update); err != nil {
			return err
		}
		if update.Terminal {
			return nil
		}
	}
}
