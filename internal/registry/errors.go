package registry

import "errors"

// Ошибки реестра.
var (
	// ErrDuplicateID — task с таким ID уже есть в реестре.
	ErrDuplicateID = errors.New("task id already registered")

	// ErrCapacityExceeded — достигнут лимит одновременно выполняющихся tasks.
	ErrCapacityExceeded = errors.New("too many running tasks")
)
