// Package api exposes the task manager over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
)

// DefaultMaxUploadSize limits multipart uploads on POST /tasks.
const DefaultMaxUploadSize = 64 << 20

// Options configures a Handler.
type Options struct {
	// Results serves finished tasks that are no longer held in memory.
	Results       *service.FileSink
	Metrics       *metrics.Collector
	Logger        *slog.Logger
	MaxUploadSize int64
}

// Handler serves the REST and streaming endpoints.
type Handler struct {
	tasks    *service.TaskManager
	catalog  *parser.Catalog
	results  *service.FileSink
	metrics  *metrics.Collector
	logger   *slog.Logger
	maxBody  int64
	upgrader websocket.Upgrader
}

// NewHandler creates a handler over the given task manager and catalog.
func NewHandler(tasks *service.TaskManager, catalog *parser.Catalog, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxUploadSize
	if maxBody <= 0 {
		maxBody = DefaultMaxUploadSize
	}
	return &Handler{
		tasks:   tasks,
		catalog: catalog,
		results: opts.Results,
		metrics: opts.Metrics,
		logger:  logger,
		maxBody: maxBody,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the mux with every endpoint registered and request
// logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /checklists", h.handleChecklists)

	mux.HandleFunc("POST /tasks", h.handleSubmit)
	mux.HandleFunc("GET /tasks", h.handleList)
	mux.HandleFunc("GET /tasks/{id}", h.handleGet)
	mux.HandleFunc("GET /tasks/{id}/results", h.handleResults)
	mux.HandleFunc("GET /tasks/{id}/stream", h.handleStream)
	mux.HandleFunc("POST /tasks/{id}/cancel", h.handleCancel)

	mux.Handle("GET /metrics", h.metrics.Handler())
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, h.metrics.Snapshot())
	})

	return LoggingMiddleware(h.logger)(mux)
}

// ChecklistsResponse is the response for GET /checklists.
type ChecklistsResponse struct {
	Checklists []models.ChecklistInfo `json:"checklists"`
}

// TasksResponse is the response for GET /tasks.
type TasksResponse struct {
	Tasks []models.Task `json:"tasks"`
	Total int           `json:"total"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleChecklists(w http.ResponseWriter, r *http.Request) {
	infos, err := h.catalog.List()
	if err != nil {
		h.logger.Error("failed to list checklists", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list checklists")
		return
	}
	h.writeJSON(w, http.StatusOK, ChecklistsResponse{Checklists: infos})
}

// handleSubmit handles POST /tasks. The form carries the uploaded file in
// "document" and one "checklist" field per checklist ID.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	ids := checklistIDs(r.MultipartForm.Value["checklist"])
	if len(ids) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one checklist is required")
		return
	}
	for _, id := range ids {
		if _, err := h.catalog.Get(id); err != nil {
			if errors.Is(err, parser.ErrChecklistNotFound) {
				h.writeError(w, http.StatusBadRequest, "unknown checklist: "+id)
				return
			}
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("checklist %s: %v", id, err))
			return
		}
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read document")
		return
	}

	task, err := h.tasks.Submit(r.Context(), service.SubmitRequest{
		DocumentName: header.Filename,
		Document:     data,
		ChecklistIDs: ids,
		Checklist:    h.catalog.Source(ids...),
	})
	switch {
	case errors.Is(err, parser.ErrEmptyDocument):
		h.writeError(w, http.StatusBadRequest, "document is empty")
		return
	case errors.Is(err, service.ErrManagerClosed):
		h.writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		h.logger.Error("failed to submit task", "document", header.Filename, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	w.Header().Set("Location", "/tasks/"+task.ID)
	h.writeJSON(w, http.StatusAccepted, task)
}

// checklistIDs accepts repeated fields as well as comma-separated values
// and drops duplicates while keeping the first occurrence.
func checklistIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tasks := h.tasks.List()
	if status := r.URL.Query().Get("status"); status != "" {
		tasks = slices.DeleteFunc(tasks, func(t models.Task) bool {
			return string(t.Status) != status
		})
	}
	h.writeJSON(w, http.StatusOK, TasksResponse{Tasks: tasks, Total: len(tasks)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.PathValue("id"))
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// handleResults returns the final task. Tasks pruned from memory are read
// back from the results directory.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := h.tasks.Get(id)
	if errors.Is(err, service.ErrTaskNotFound) && h.results != nil {
		task, err = h.results.Load(id)
	}
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	if !task.Status.Terminal() {
		h.writeError(w, http.StatusConflict, "task is still "+string(task.Status))
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tasks.Cancel(id); err != nil {
		h.writeTaskError(w, err)
		return
	}
	task, err := h.tasks.Get(id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, task)
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		h.writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrAlreadyFinished):
		h.writeError(w, http.StatusConflict, "task already finished")
	default:
		h.logger.Error("task request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
