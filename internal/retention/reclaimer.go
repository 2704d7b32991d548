package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/TaskMiner/internal/registry"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

// Default configuration values.
const (
	defaultSchedule = "@every 1m"
	defaultTTL      = 15 * time.Minute
	purgeTimeout    = 30 * time.Second
)

// ErrAlreadyStarted — Start вызван повторно.
var ErrAlreadyStarted = errors.New("reclaimer already started")

// ArchivePurger удаляет старые архивные записи.
// Реализация: repo.TaskRepo.
type ArchivePurger interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Reclaimer — политика хранения завершённых tasks.
type Reclaimer struct {
	registry   *registry.Registry
	ttl        time.Duration
	archive    ArchivePurger
	archiveTTL time.Duration
	schedule   string
	now        func() time.Time

	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// Config — конфигурация Reclaimer.
type Config struct {
	// Registry — реестр tasks (обязательно).
	Registry *registry.Registry

	// TTL — сколько хранить завершённую запись в реестре (default: 15m).
	TTL time.Duration

	// Archive — архив (опционально).
	Archive ArchivePurger

	// ArchiveTTL — сколько хранить архивную запись (0 — не удалять).
	ArchiveTTL time.Duration

	// Schedule — cron-расписание (default: "@every 1m").
	Schedule string

	// Clock — источник времени для архива (default: time.Now).
	Clock func() time.Time

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Result — итог одного тика.
type Result struct {
	Reclaimed int   `json:"reclaimed"`
	Purged    int64 `json:"purged"`
}

// New создаёт новый Reclaimer.
func New(cfg Config) *Reclaimer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Reclaimer{
		registry:   cfg.Registry,
		ttl:        ttl,
		archive:    cfg.Archive,
		archiveTTL: cfg.ArchiveTTL,
		schedule:   schedule,
		now:        clock,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// Tick выполняет один проход политики хранения.
//
// 1. Удаляет из реестра записи, завершённые раньше TTL назад
// 2. Удаляет из архива записи старше ArchiveTTL (если настроено)
//
// Ошибка архива не отменяет очистку реестра.
func (r *Reclaimer) Tick(ctx context.Context) (Result, error) {
	var res Result

	// 1. Реестр
	ids := r.registry.ReclaimFinished(r.ttl)
	res.Reclaimed = len(ids)
	r.metrics.TasksReclaimed(res.Reclaimed)

	// 2. Архив
	if r.archive != nil && r.archiveTTL > 0 {
		purgeCtx, cancel := context.WithTimeout(ctx, purgeTimeout)
		defer cancel()

		purged, err := r.archive.DeleteFinishedBefore(purgeCtx, r.now().Add(-r.archiveTTL))
		if err != nil {
			return res, fmt.Errorf("purge archive: %w", err)
		}
		res.Purged = purged
	}

	if res.Reclaimed > 0 || res.Purged > 0 {
		r.logger.Info("retention tick completed",
			"reclaimed", res.Reclaimed,
			"purged", res.Purged,
		)
	}

	return res, nil
}

// Start запускает Tick по расписанию. Не блокируется.
func (r *Reclaimer) Start(ctx context.Context) error {
	if err := ValidateSchedule(r.schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(r.schedule, func() {
		if _, err := r.Tick(ctx); err != nil {
			r.logger.Error("retention tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add retention job: %w", err)
	}

	c.Start()
	r.cron = c

	r.logger.Info("reclaimer started",
		"schedule", r.schedule,
		"ttl", r.ttl,
		"archive_ttl", r.archiveTTL,
	)

	return nil
}

// Stop останавливает расписание и ждёт завершения текущего тика.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	r.logger.Info("reclaimer stopped")
}
