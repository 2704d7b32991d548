package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/controller"
	"github.com/shaiso/TaskMiner/internal/domain"
)

// HeaderAPIKey — заголовок с API-ключом пользователя.
const HeaderAPIKey = "X-Api-Key"

// Task DTOs

// SubmitTaskRequest — запрос на создание task.
// Body передаётся в JSON как base64.
type SubmitTaskRequest struct {
	APIKey         string            `json:"api_key,omitempty"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Body           []byte            `json:"body,omitempty"`
}

// ToSubmission конвертирует запрос в controller.Submission.
func (r SubmitTaskRequest) ToSubmission() controller.Submission {
	return controller.Submission{
		APIKey:         r.APIKey,
		MaxRunningTime: r.MaxRunningTime,
		Properties:     r.Properties,
		Body:           r.Body,
	}
}

// SubmitTaskResponse — ответ о принятии task.
type SubmitTaskResponse struct {
	ID       uuid.UUID `json:"id"`
	Accepted bool      `json:"accepted"`
	Message  string    `json:"message,omitempty"`
}

// TaskStatusResponse — состояние task.
type TaskStatusResponse struct {
	ID           uuid.UUID         `json:"id"`
	Status       domain.TaskStatus `json:"status"`
	IsActive     bool              `json:"is_active"`
	IsCompleted  bool              `json:"is_completed"`
	IsSuccessful bool              `json:"is_successful"`
	Message      string            `json:"message,omitempty"`
	Result       []byte            `json:"result"`
}

// TaskStatusFromDomain конвертирует ответ протокола в TaskStatusResponse.
func TaskStatusFromDomain(id uuid.UUID, r domain.TaskStatusResponse) TaskStatusResponse {
	result := r.Result
	if result == nil {
		result = []byte{}
	}
	return TaskStatusResponse{
		ID:           id,
		Status:       r.Status(),
		IsActive:     r.IsActive,
		IsCompleted:  r.IsCompleted,
		IsSuccessful: r.IsSuccessful,
		Message:      r.Message,
		Result:       result,
	}
}

// Archive DTOs

// ArchivedTaskResponse — архивная запись task.
type ArchivedTaskResponse struct {
	ID             uuid.UUID         `json:"id"`
	WorkerID       string            `json:"worker_id"`
	Executor       string            `json:"executor"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Status         domain.TaskStatus `json:"status"`
	Message        string            `json:"message,omitempty"`
	Result         []byte            `json:"result,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	DurationMs     int64             `json:"duration_ms"`
}

// ArchivedTaskFromDomain конвертирует domain.ArchivedTask в ArchivedTaskResponse.
func ArchivedTaskFromDomain(t domain.ArchivedTask) ArchivedTaskResponse {
	return ArchivedTaskResponse{
		ID:             t.ID,
		WorkerID:       t.WorkerID,
		Executor:       t.Executor,
		MaxRunningTime: t.MaxRunningTime,
		Properties:     t.Properties,
		Status:         t.Status,
		Message:        t.Message,
		Result:         t.Result,
		StartedAt:      t.StartedAt,
		FinishedAt:     t.FinishedAt,
		DurationMs:     t.Duration().Milliseconds(),
	}
}
