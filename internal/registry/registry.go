package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/domain"
)

// Registry — потокобезопасное хранилище Task Records.
type Registry struct {
	records   map[uuid.UUID]*domain.Record
	mu        sync.RWMutex
	maxActive int
	now       func() time.Time
}

// Config — конфигурация Registry.
type Config struct {
	// MaxActive — лимит tasks в статусе RUNNING (0 — без лимита).
	MaxActive int

	// Clock — источник времени (default: time.Now). Используется в тестах.
	Clock func() time.Time
}

// Stats — статистика реестра по статусам.
type Stats struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
}

// New создаёт пустой Registry.
func New(cfg Config) *Registry {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Registry{
		records:   make(map[uuid.UUID]*domain.Record),
		maxActive: cfg.MaxActive,
		now:       clock,
	}
}

// Insert добавляет принятую запись.
//
// Проверка дубликата и лимита выполняется под одной блокировкой,
// поэтому два одновременных запроса с одним ID не могут оба пройти.
func (r *Registry) Insert(rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}

	if r.maxActive > 0 && r.runningLocked() >= r.maxActive {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, r.maxActive)
	}

	r.records[rec.ID] = rec
	return nil
}

// Get возвращает запись по ID.
func (r *Registry) Get(id uuid.UUID) (*domain.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	return rec, ok
}

// Snapshot возвращает текущее состояние task по ID.
// false — task не найден (NOT_FOUND).
func (r *Registry) Snapshot(id uuid.UUID) (domain.Snapshot, bool) {
	rec, ok := r.Get(id)
	if !ok {
		return domain.Snapshot{ID: id, Status: domain.TaskStatusNotFound}, false
	}
	return rec.Snapshot(), true
}

// Remove удаляет запись. Возвращает false, если записи не было.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// ReclaimFinished удаляет завершённые записи, finished_at которых
// старше olderThan. RUNNING записи никогда не удаляются.
// Возвращает ID удалённых записей.
func (r *Registry) ReclaimFinished(olderThan time.Duration) []uuid.UUID {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	var reclaimed []uuid.UUID
	for id, rec := range r.records {
		snap := rec.Snapshot()
		if !snap.IsFinished() || snap.FinishedAt == nil {
			continue
		}
		if snap.FinishedAt.After(cutoff) {
			continue
		}
		delete(r.records, id)
		reclaimed = append(reclaimed, id)
	}
	return reclaimed
}

// Running возвращает записи в статусе RUNNING.
func (r *Registry) Running() []*domain.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var running []*domain.Record
	for _, rec := range r.records {
		if rec.Status() == domain.TaskStatusRunning {
			running = append(running, rec)
		}
	}
	return running
}

// Len возвращает количество записей.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Stats возвращает статистику по статусам.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.records)}
	for _, rec := range r.records {
		switch rec.Status() {
		case domain.TaskStatusRunning:
			stats.Running++
		case domain.TaskStatusFailed:
			stats.Failed++
		case domain.TaskStatusSucceeded:
			stats.Succeeded++
		}
	}
	return stats
}

// runningLocked считает RUNNING записи. Вызывается под r.mu.
func (r *Registry) runningLocked() int {
	n := 0
	for _, rec := range r.records {
		if rec.Status() == domain.TaskStatusRunning {
			n++
		}
	}
	return n
}
