package domain

import "errors"

// Ошибки домена.
var (
	// ErrInvalidRequest — запрос не прошёл валидацию.
	ErrInvalidRequest = errors.New("invalid request")
)

// TimeoutMessage — сообщение для task, убитого по истечении MaxRunningTime.
const TimeoutMessage = "task killed: exceeded max running time"

// KilledMessage формирует сообщение для принудительно остановленного task.
func KilledMessage(reason string) string {
	return "task killed: " + reason
}
