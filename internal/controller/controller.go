package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/registry"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval      = time.Second
	defaultMaxSubmitAttempts = 3
)

// Исходы отправки для метрик.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// MinerClient — транспорт к mining actor'ам.
//
// error означает сбой транспорта. Отказ в принятии task и
// "task не найден" — нормальные ответы протокола, не ошибки.
type MinerClient interface {
	Init(ctx context.Context, req domain.TaskInitRequest) (domain.TaskInitResponse, error)
	Status(ctx context.Context, req domain.TaskStatusRequest) (domain.TaskStatusResponse, error)
}

// Controller создаёт tasks и отслеживает их выполнение.
type Controller struct {
	client MinerClient

	// Configuration
	pollInterval time.Duration
	maxAttempts  int
	newID        func() uuid.UUID

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Controller.
type Config struct {
	// Client — транспорт (обязательно).
	Client MinerClient

	// PollInterval — интервал опроса статуса в Wait (default: 1s).
	PollInterval time.Duration

	// MaxSubmitAttempts — число попыток Submit при занятом ID (default: 3).
	MaxSubmitAttempts int

	// IDGenerator — генератор ID task (default: uuid.New). Используется в тестах.
	IDGenerator func() uuid.UUID

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// Submission — параметры нового task.
type Submission struct {
	APIKey         string            `json:"api_key"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Body           []byte            `json:"body,omitempty"`
}

// Outcome — итог завершённого task.
type Outcome struct {
	ID         uuid.UUID `json:"id"`
	Successful bool      `json:"successful"`
	Result     []byte    `json:"result,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Err возвращает *TaskFailedError для неуспешного исхода, иначе nil.
func (o *Outcome) Err() error {
	if o.Successful {
		return nil
	}
	return &TaskFailedError{ID: o.ID, Message: o.Message}
}

// New создаёт новый Controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxAttempts := cfg.MaxSubmitAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxSubmitAttempts
	}

	newID := cfg.IDGenerator
	if newID == nil {
		newID = uuid.New
	}

	return &Controller{
		client:       cfg.Client,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		newID:        newID,
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// Submit отправляет TaskInitRequest и возвращает ID принятого task.
//
// Отказ возвращается как *RejectedError. Отказ из-за занятого ID
// повторяется с новым ID, остальные отказы — сразу.
func (c *Controller) Submit(ctx context.Context, sub Submission) (uuid.UUID, error) {
	var rejected *RejectedError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req := domain.TaskInitRequest{
			RequestHeader:  domain.RequestHeader{ID: c.newID(), APIKey: sub.APIKey},
			MaxRunningTime: sub.MaxRunningTime,
			Properties:     sub.Properties,
			Body:           sub.Body,
		}

		resp, err := c.client.Init(ctx, req)
		if err != nil {
			c.metrics.Submission(outcomeError)
			return uuid.Nil, fmt.Errorf("init task %s: %w", req.ID, err)
		}

		if resp.Accepted {
			c.metrics.Submission(outcomeAccepted)
			c.logger.Info("task submitted", "task_id", req.ID, "attempt", attempt)
			return req.ID, nil
		}

		rejected = &RejectedError{ID: req.ID, Reason: resp.Message}
		if !isDuplicateID(resp.Message) {
			break
		}

		c.logger.Warn("task id already taken, retrying with a new id",
			"task_id", req.ID,
			"attempt", attempt,
		)
	}

	c.metrics.Submission(outcomeRejected)
	c.logger.Warn("task rejected", "task_id", rejected.ID, "reason", rejected.Reason)
	return uuid.Nil, rejected
}

// Poll выполняет один запрос статуса.
// Неизвестный task — ответ с isActive=false, не ошибка.
func (c *Controller) Poll(ctx context.Context, apiKey string, id uuid.UUID) (domain.TaskStatusResponse, error) {
	c.metrics.StatusPoll()

	resp, err := c.client.Status(ctx, domain.NewStatusRequest(id, apiKey))
	if err != nil {
		return domain.TaskStatusResponse{}, fmt.Errorf("status of task %s: %w", id, err)
	}
	return resp, nil
}

// Wait опрашивает статус каждые PollInterval до завершения task.
//
// Возвращает Outcome (в том числе неуспешный, см. Outcome.Err),
// ErrTaskNotFound, если worker не знает task, или ошибку ctx.
func (c *Controller) Wait(ctx context.Context, apiKey string, id uuid.UUID) (*Outcome, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.Poll(ctx, apiKey, id)
		if err != nil {
			return nil, err
		}

		switch resp.Status() {
		case domain.TaskStatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		case domain.TaskStatusSucceeded, domain.TaskStatusFailed:
			return &Outcome{
				ID:         id,
				Successful: resp.IsSuccessful,
				Result:     resp.Result,
				Message:    resp.Message,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run — Submit, затем Wait.
func (c *Controller) Run(ctx context.Context, sub Submission) (*Outcome, error) {
	id, err := c.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, sub.APIKey, id)
}

// isDuplicateID проверяет, что отказ вызван занятым ID.
// Протокол передаёт причину только текстом.
func isDuplicateID(message string) bool {
	return strings.HasPrefix(message, registry.ErrDuplicateID.Error())
}

// IsRejected сообщает, является ли err отказом в принятии task.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
