package controller

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors контроллера.
var (
	// ErrRejected — mining actor отклонил TaskInitRequest.
	ErrRejected = errors.New("task rejected")

	// ErrTaskNotFound — task неизвестен worker'у (не принят или удалён).
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFailed — task завершился со статусом FAILED.
	ErrTaskFailed = errors.New("task failed")
)

// RejectedError — отказ в принятии task с причиной от mining actor'а.
// ID отклонённого task никогда не опрашивается.
type RejectedError struct {
	ID     uuid.UUID
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRejected, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// TaskFailedError — task завершился неуспешно.
type TaskFailedError struct {
	ID      uuid.UUID
	Message string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrTaskFailed, e.ID, e.Message)
}

func (e *TaskFailedError) Unwrap() error {
	return ErrTaskFailed
}
