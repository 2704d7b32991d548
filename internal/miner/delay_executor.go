package miner

import (
	"bytes"
	"context"
	"strconv"
	"time"
)

// DelayExecutor ожидает указанное время и возвращает тело task.
//
// Поддерживает отмену через context: на нём удобно проверять
// принудительное завершение по MaxRunningTime.
//
// Properties:
//   - duration_sec: длительность задержки в секундах (default: 1)
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, job *Job) ([]byte, error) {
	durationSec := 1.0
	if val, ok := job.Properties["duration_sec"]; ok {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			durationSec = v
		}
	}

	if durationSec <= 0 {
		durationSec = 1
	}

	duration := time.Duration(durationSec * float64(time.Second))

	timer := time.NewTimer(duration)
	defer timer.Stop()

	// Context-aware ожидание
	select {
	case <-timer.C:
		return bytes.Clone(job.Body), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
