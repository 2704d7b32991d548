package domain

// TaskStatus — статус task с точки зрения контроллера.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
//
// NOT_FOUND никогда не хранится: это отсутствие записи в реестре
// (task не был принят или уже удалён политикой хранения).
type TaskStatus string

const (
	// TaskStatusNotFound — записи нет в реестре.
	TaskStatusNotFound TaskStatus = "NOT_FOUND"

	// TaskStatusRunning — task принят и выполняется mining actor'ом.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusFailed — выполнение завершилось ошибкой или таймаутом.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusSucceeded — task успешно завершён, результат доступен.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если task известен реестру.
func (s TaskStatus) IsActive() bool {
	switch s {
	case TaskStatusRunning, TaskStatusFailed, TaskStatusSucceeded:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// ParseTaskStatus парсит строку в TaskStatus.
func ParseTaskStatus(s string) TaskStatus {
	switch s {
	case "RUNNING":
		return TaskStatusRunning
	case "FAILED":
		return TaskStatusFailed
	case "SUCCEEDED":
		return TaskStatusSucceeded
	default:
		return TaskStatusNotFound
	}
}
