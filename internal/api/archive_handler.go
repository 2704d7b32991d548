package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/repo"
)

// ListArchivedTasks возвращает архив завершённых tasks.
// GET /api/v1/archive/tasks?status=...&worker_id=...&limit=...&offset=...
func (h *Handler) ListArchivedTasks(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Unavailable(w, "archive not configured")
		return
	}

	q := r.URL.Query()
	filter := repo.TaskFilter{
		WorkerID: q.Get("worker_id"),
		Limit:    parseIntDefault(q.Get("limit"), repo.DefaultListLimit),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}

	if status := q.Get("status"); status != "" {
		// Нефинальный статус отклоняется фильтром (400)
		filter.Status = domain.ParseTaskStatus(strings.ToUpper(status))
	}

	tasks, err := h.archive.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArchivedTaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = ArchivedTaskFromDomain(t)
	}

	List(w, result, len(result))
}

// GetArchivedTask возвращает архивную запись task.
// GET /api/v1/archive/tasks/{id}
func (h *Handler) GetArchivedTask(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Unavailable(w, "archive not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.archive.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "archived task not found") {
		return
	}

	Success(w, ArchivedTaskFromDomain(*task))
}

// parseIntDefault парсит строку в int с дефолтным значением.
func parseIntDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
