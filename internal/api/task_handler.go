package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/controller"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

// SubmitTask создаёт новый task.
// POST /api/v1/tasks
//
// API-ключ берётся из тела запроса или заголовка X-Api-Key.
// Отказ mining actor'а — 422 с причиной.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.APIKey == "" {
		req.APIKey = r.Header.Get(HeaderAPIKey)
	}

	id, err := h.controller.Submit(r.Context(), req.ToSubmission())
	if err != nil {
		var rejected *controller.RejectedError
		if errors.As(err, &rejected) {
			Rejected(w, rejected.Reason)
			return
		}
		telemetry.FromContext(r.Context()).Error("failed to submit task", "error", err)
		Unavailable(w, "miner unavailable")
		return
	}

	Created(w, SubmitTaskResponse{ID: id, Accepted: true})
}

// GetTaskStatus возвращает состояние task.
// GET /api/v1/tasks/{id}
//
// Неизвестный task — 200 со статусом NOT_FOUND (is_active=false):
// это нормальный ответ протокола.
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	apiKey := r.Header.Get(HeaderAPIKey)
	if apiKey == "" {
		Unauthorized(w, "missing "+HeaderAPIKey+" header")
		return
	}

	resp, err := h.controller.Poll(r.Context(), apiKey, id)
	if err != nil {
		telemetry.FromContext(r.Context()).Error("failed to poll task", "task_id", id, "error", err)
		Unavailable(w, "miner unavailable")
		return
	}

	Success(w, TaskStatusFromDomain(id, resp))
}
