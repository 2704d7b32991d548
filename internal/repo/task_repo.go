package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/TaskMiner/internal/domain"
)

// Лимиты выборки архива.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// TaskRepo — архив завершённых tasks (таблица task_records).
//
// Архив — только история: ответы на запросы статуса строятся
// из реестра worker'а и в архив не заглядывают.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// TaskFilter — параметры выборки архива.
type TaskFilter struct {
	Status   domain.TaskStatus
	WorkerID string
	Limit    int
	Offset   int
}

// Normalize проверяет фильтр и подставляет значения по умолчанию.
func (f TaskFilter) Normalize() (TaskFilter, error) {
	if f.Status != "" && !f.Status.IsTerminal() {
		return f, fmt.Errorf("%w: archive holds only finished tasks, got status %s", ErrInvalidFilter, f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return f, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidFilter)
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	f.Limit = min(f.Limit, MaxListLimit)
	return f, nil
}

// Archive сохраняет завершённый task.
//
// ID может быть переиспользован после удаления записи из реестра,
// поэтому существующая запись архива перезаписывается.
func (r *TaskRepo) Archive(ctx context.Context, task *domain.ArchivedTask) error {
	propsJSON, err := json.Marshal(task.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	query := `
		INSERT INTO task_records (id, worker_id, executor, max_running_time, properties,
		                          status, message, result, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET worker_id = EXCLUDED.worker_id, executor = EXCLUDED.executor,
		    max_running_time = EXCLUDED.max_running_time, properties = EXCLUDED.properties,
		    status = EXCLUDED.status, message = EXCLUDED.message, result = EXCLUDED.result,
		    started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at,
		    archived_at = now()
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.WorkerID,
		task.Executor,
		task.MaxRunningTime,
		propsJSON,
		task.Status,
		nullString(task.Message),
		task.Result,
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return nil
}

// GetByID возвращает архивную запись по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ArchivedTask, error) {
	query := `
		SELECT id, worker_id, executor, max_running_time, properties,
		       status, message, result, started_at, finished_at
		FROM task_records
		WHERE id = $1
	`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// List возвращает архивные записи, новые первыми.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.ArchivedTask, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, worker_id, executor, max_running_time, properties,
		       status, message, result, started_at, finished_at
		FROM task_records
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR worker_id = $2)
		ORDER BY finished_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		nullString(filter.WorkerID),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ArchivedTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// DeleteFinishedBefore удаляет записи, завершённые раньше before.
// Возвращает количество удалённых записей.
func (r *TaskRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM task_records WHERE finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete archived tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.ArchivedTask, error) {
	var task domain.ArchivedTask
	var propsJSON []byte
	var message *string

	err := row.Scan(
		&task.ID,
		&task.WorkerID,
		&task.Executor,
		&task.MaxRunningTime,
		&propsJSON,
		&task.Status,
		&message,
		&task.Result,
		&task.StartedAt,
		&task.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &task.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
	}
	if message != nil {
		task.Message = *message
	}

	return &task, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
