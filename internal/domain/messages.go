package domain

import (
	"fmt"
	"maps"
	"math"

	"github.com/google/uuid"
)

// MaxRunningTimeLimit — верхняя граница MaxRunningTime в минутах
// (колонка max_running_time в архиве — INTEGER).
const MaxRunningTimeLimit = math.MaxInt32

// MessageKind — тип сообщения протокола controller ↔ mining actor.
type MessageKind string

// Типы сообщений.
const (
	MessageKindInitRequest    MessageKind = "task.init.request"
	MessageKindInitResponse   MessageKind = "task.init.response"
	MessageKindStatusRequest  MessageKind = "task.status.request"
	MessageKindStatusResponse MessageKind = "task.status.response"
)

// RequestHeader — общие поля всех запросов от контроллера к mining actor'у.
type RequestHeader struct {
	// ID — идентификатор task. Генерируется контроллером.
	ID uuid.UUID `json:"id"`

	// APIKey — ключ пользователя EasyMiner. Ядро его не интерпретирует,
	// только передаёт исполнителю (по нему исполнитель получает датасеты).
	APIKey string `json:"api_key"`
}

// ResponseHeader — общие поля всех ответов mining actor'а.
type ResponseHeader struct {
	// Message — статус или текст ошибки.
	Message string `json:"message"`
}

// TaskInitRequest — запрос контроллера на создание нового task.
//
// Получивший его mining actor отвечает TaskInitResponse.
type TaskInitRequest struct {
	RequestHeader

	// MaxRunningTime — максимальное время выполнения в минутах.
	// По его истечении task принудительно завершается.
	MaxRunningTime int `json:"max_running_time"`

	// Properties — свойства task (key-value).
	Properties map[string]string `json:"properties,omitempty"`

	// Body — тело task (датасет или настройки). Может быть пустым.
	Body []byte `json:"body,omitempty"`
}

// Kind возвращает тип сообщения.
func (r TaskInitRequest) Kind() MessageKind { return MessageKindInitRequest }

// Validate проверяет запрос перед принятием task.
func (r TaskInitRequest) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	if r.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidRequest)
	}
	if r.MaxRunningTime <= 0 {
		return fmt.Errorf("%w: max running time must be positive, got %d", ErrInvalidRequest, r.MaxRunningTime)
	}
	if r.MaxRunningTime > MaxRunningTimeLimit {
		return fmt.Errorf("%w: max running time must not exceed %d minutes, got %d", ErrInvalidRequest, MaxRunningTimeLimit, r.MaxRunningTime)
	}
	for key := range r.Properties {
		if key == "" {
			return fmt.Errorf("%w: property key must not be empty", ErrInvalidRequest)
		}
	}
	return nil
}

// Clone возвращает копию запроса, не разделяющую properties и body с оригиналом.
func (r TaskInitRequest) Clone() TaskInitRequest {
	c := r
	c.Properties = maps.Clone(r.Properties)
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}

// TaskInitResponse — ответ mining actor'а на TaskInitRequest.
type TaskInitResponse struct {
	ResponseHeader

	// Accepted — true: task принят и выполняется;
	// false: task не принят, Message содержит причину.
	Accepted bool `json:"accepted"`
}

// Kind возвращает тип сообщения.
func (r TaskInitResponse) Kind() MessageKind { return MessageKindInitResponse }

// Accept создаёт ответ о принятии task.
func Accept() TaskInitResponse {
	return TaskInitResponse{Accepted: true}
}

// Reject создаёт ответ об отказе с причиной.
func Reject(reason string) TaskInitResponse {
	return TaskInitResponse{
		ResponseHeader: ResponseHeader{Message: reason},
		Accepted:       false,
	}
}

// TaskStatusRequest — запрос контроллера о текущем состоянии task.
type TaskStatusRequest struct {
	RequestHeader
}

// Kind возвращает тип сообщения.
func (r TaskStatusRequest) Kind() MessageKind { return MessageKindStatusRequest }

// NewStatusRequest создаёт запрос статуса.
func NewStatusRequest(id uuid.UUID, apiKey string) TaskStatusRequest {
	return TaskStatusRequest{RequestHeader: RequestHeader{ID: id, APIKey: apiKey}}
}

// TaskStatusResponse — ответ mining actor'а на TaskStatusRequest.
//
// Возможны 4 варианта:
//  1. task выполняется: active=true, completed=false, successful=false, result пустой
//  2. task упал:        active=true, completed=true, successful=false, result пустой, message = ошибка
//  3. task успешен:     active=true, completed=true, successful=true, result = результат
//  4. task не найден:   active=false, completed=false, successful=false, result пустой
type TaskStatusResponse struct {
	ResponseHeader

	IsActive     bool   `json:"is_active"`
	IsCompleted  bool   `json:"is_completed"`
	IsSuccessful bool   `json:"is_successful"`
	Result       []byte `json:"result"`
}

// Kind возвращает тип сообщения.
func (r TaskStatusResponse) Kind() MessageKind { return MessageKindStatusResponse }

// Status восстанавливает TaskStatus из флагов ответа.
func (r TaskStatusResponse) Status() TaskStatus {
	switch {
	case !r.IsActive:
		return TaskStatusNotFound
	case !r.IsCompleted:
		return TaskStatusRunning
	case r.IsSuccessful:
		return TaskStatusSucceeded
	default:
		return TaskStatusFailed
	}
}

// NotFoundResponse — ответ для неизвестного (или удалённого) task.
func NotFoundResponse() TaskStatusResponse {
	return TaskStatusResponse{Result: []byte{}}
}
