package domain

import (
	"bytes"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Record — авторитетное состояние одного task.
//
// Record создаётся mining actor'ом при принятии TaskInitRequest.
// Неизменяемые поля заполняются один раз в NewRecord.
// Изменяемое состояние (статус, сообщение, результат) публикуется
// целиком как неизменяемый Snapshot через atomic.Pointer, поэтому
// читатели никогда не видят статус без соответствующего результата.
type Record struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID

	// APIKey — ключ пользователя.
	APIKey string

	// MaxRunningTime — бюджет времени выполнения в минутах.
	MaxRunningTime int

	// Properties — свойства task (копия из запроса).
	Properties map[string]string

	// Body — тело task (копия из запроса).
	Body []byte

	// StartedAt — время принятия task.
	StartedAt time.Time

	// Deadline — момент, после которого task убивается.
	Deadline time.Time

	state atomic.Pointer[Snapshot]
}

// Snapshot — согласованный срез состояния Record на момент чтения.
type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	Status     TaskStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
	Result     []byte     `json:"result,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRecord создаёт Record в статусе RUNNING.
// budget — длительность, соответствующая MaxRunningTime.
func NewRecord(req TaskInitRequest, startedAt time.Time, budget time.Duration) *Record {
	r := &Record{
		ID:             req.ID,
		APIKey:         req.APIKey,
		MaxRunningTime: req.MaxRunningTime,
		Properties:     maps.Clone(req.Properties),
		Body:           bytes.Clone(req.Body),
		StartedAt:      startedAt,
		Deadline:       startedAt.Add(budget),
	}
	if r.Properties == nil {
		r.Properties = map[string]string{}
	}
	r.state.Store(&Snapshot{
		ID:        req.ID,
		Status:    TaskStatusRunning,
		StartedAt: startedAt,
	})
	return r
}

// Snapshot возвращает текущее состояние. Не блокируется.
func (r *Record) Snapshot() Snapshot {
	return *r.state.Load()
}

// Status возвращает текущий статус.
func (r *Record) Status() TaskStatus {
	return r.state.Load().Status
}

// IsFinished возвращает true, если task в финальном статусе.
func (r *Record) IsFinished() bool {
	return r.Status().IsTerminal()
}

// Succeed переводит task в SUCCEEDED с результатом.
// Возвращает false, если task уже в финальном статусе (переход игнорируется).
func (r *Record) Succeed(result []byte, now time.Time) bool {
	if result == nil {
		result = []byte{}
	}
	return r.finish(TaskStatusSucceeded, "", result, now)
}

// Fail переводит task в FAILED с сообщением.
// Возвращает false, если task уже в финальном статусе (переход игнорируется).
func (r *Record) Fail(message string, now time.Time) bool {
	return r.finish(TaskStatusFailed, message, nil, now)
}

// finish выполняет единственный допустимый переход RUNNING → terminal.
// Из RUNNING существует ровно одна версия состояния, поэтому
// CompareAndSwap выигрывает только первый переход.
func (r *Record) finish(status TaskStatus, message string, result []byte, now time.Time) bool {
	cur := r.state.Load()
	if cur.Status.IsTerminal() {
		return false
	}

	finishedAt := now
	next := &Snapshot{
		ID:         cur.ID,
		Status:     status,
		Message:    message,
		Result:     result,
		StartedAt:  cur.StartedAt,
		FinishedAt: &finishedAt,
	}
	return r.state.CompareAndSwap(cur, next)
}

// IsFinished возвращает true, если task завершён.
func (s Snapshot) IsFinished() bool {
	return s.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
func (s Snapshot) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// StatusResponse преобразует снимок в TaskStatusResponse.
// Result копируется, чтобы получатель не мог изменить состояние записи.
func (s Snapshot) StatusResponse() TaskStatusResponse {
	resp := TaskStatusResponse{Result: []byte{}}

	switch s.Status {
	case TaskStatusRunning:
		resp.IsActive = true
	case TaskStatusFailed:
		resp.IsActive = true
		resp.IsCompleted = true
		resp.Message = s.Message
	case TaskStatusSucceeded:
		resp.IsActive = true
		resp.IsCompleted = true
		resp.IsSuccessful = true
		resp.Result = bytes.Clone(s.Result)
		if resp.Result == nil {
			resp.Result = []byte{}
		}
	}

	return resp
}
