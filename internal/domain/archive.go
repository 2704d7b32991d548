package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArchivedTask — завершённый task, сохранённый для истории.
//
// Архив не участвует в ответах на TaskStatusRequest: после удаления
// записи из реестра task считается NOT_FOUND, даже если он есть в архиве.
// API-ключ в архив не попадает.
type ArchivedTask struct {
	ID             uuid.UUID         `json:"id"`
	WorkerID       string            `json:"worker_id"`
	Executor       string            `json:"executor"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Status         TaskStatus        `json:"status"`
	Message        string            `json:"message,omitempty"`
	Result         []byte            `json:"result,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// NewArchivedTask собирает запись архива из Record в финальном статусе.
func NewArchivedTask(rec *Record, workerID, executor string) *ArchivedTask {
	snap := rec.Snapshot()

	finishedAt := snap.StartedAt
	if snap.FinishedAt != nil {
		finishedAt = *snap.FinishedAt
	}

	return &ArchivedTask{
		ID:             rec.ID,
		WorkerID:       workerID,
		Executor:       executor,
		MaxRunningTime: rec.MaxRunningTime,
		Properties:     rec.Properties,
		Status:         snap.Status,
		Message:        snap.Message,
		Result:         snap.Result,
		StartedAt:      snap.StartedAt,
		FinishedAt:     finishedAt,
	}
}

// Duration возвращает продолжительность выполнения.
func (t *ArchivedTask) Duration() time.Duration {
	return t.FinishedAt.Sub(t.StartedAt)
}
