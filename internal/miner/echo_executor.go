package miner

import (
	"bytes"
	"context"
)

// EchoExecutor возвращает тело task как результат.
// Используется для проверки связности controller ↔ worker.
type EchoExecutor struct{}

// Execute возвращает копию job.Body.
func (e *EchoExecutor) Execute(_ context.Context, job *Job) ([]byte, error) {
	result := bytes.Clone(job.Body)
	if result == nil {
		result = []byte{}
	}
	return result, nil
}
