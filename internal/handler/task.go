package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/store"
	ws "github.com/dukerupert/homecal/internal/websocket"
)

type TaskHandler struct {
	tasks  *store.TaskStore
	hub    ws.Broadcaster
	logger *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, hub ws.Broadcaster, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, hub: hub, logger: logger}
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	DueDate     string   `json:"dueDate"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// Create handles POST /api/tasks. dueDate accepts RFC3339 or YYYY-MM-DD.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, h.logger, apperr.Invalid("title is required"))
		return
	}

	var due *time.Time
	if req.DueDate != "" {
		t, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			t, err = time.Parse(time.DateOnly, req.DueDate)
		}
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("dueDate must be RFC3339 or YYYY-MM-DD"))
			return
		}
		due = &t
	}

	hid := auth.HouseholdID(r.Context())
	task, err := h.tasks.Create(r.Context(), hid, req.Title, due, req.AssigneeIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage(hid, "task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

// Complete handles POST /api/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	hid := auth.HouseholdID(r.Context())

	task, err := h.tasks.Complete(r.Context(), id, hid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if task == nil || task.HouseholdID != hid {
		writeError(w, h.logger, apperr.Missing("task %s not found", id))
		return
	}

	h.hub.Broadcast(ws.NewMessage(hid, "task", "completed", task.ID, nil))
	writeJSON(w, http.StatusOK, task)
}
