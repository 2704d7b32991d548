package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/controller"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/repo"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

// ArchiveReader — чтение архива завершённых tasks.
// Реализация: repo.TaskRepo.
type ArchiveReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ArchivedTask, error)
	List(ctx context.Context, filter repo.TaskFilter) ([]domain.ArchivedTask, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	controller *controller.Controller
	archive    ArchiveReader
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Controller — отправка tasks и запросы статуса (обязательно).
	Controller *controller.Controller

	// Archive — архив (опционально; без него /archive отвечает 503).
	Archive ArchiveReader

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		controller: cfg.Controller,
		archive:    cfg.Archive,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}
