package miner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/registry"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

// Default configuration values.
const (
	defaultExecutorName = "echo"
	defaultMinuteUnit   = time.Minute
)

// Archiver сохраняет завершённые tasks для истории.
// Реализация: repo.TaskRepo.
type Archiver interface {
	Archive(ctx context.Context, task *domain.ArchivedTask) error
}

// Miner — worker-процесс, в котором живут mining actor'ы.
//
// Каждый TaskInitRequest обрабатывается новым Actor'ом.
// Запросы статуса обслуживаются напрямую из реестра и не блокируются
// выполнением tasks.
//
// Miner реализует controller.MinerClient, поэтому может
// использоваться контроллером напрямую (in-process транспорт).
type Miner struct {
	registry *registry.Registry
	env      *actorEnv

	// Живые actor'ы — принятые и ещё не завершённые
	actors map[*Actor]struct{}
	mu     sync.Mutex

	// Lifecycle
	logger    *slog.Logger
	cancel    context.CancelFunc
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Miner.
type Config struct {
	// Registry — реестр tasks (опционально; если nil — создаётся с MaxActive).
	Registry *registry.Registry

	// MaxActive — лимит одновременно выполняющихся tasks (0 — без лимита).
	// Игнорируется, если Registry передан явно.
	MaxActive int

	// Executors — реестр executor'ов (опционально; если nil — NewRegistry()).
	Executors *Registry

	// DefaultExecutor — executor для tasks без свойства "executor" (default: echo).
	DefaultExecutor string

	// MinuteUnit — длительность одной минуты MaxRunningTime (default: 1m).
	// Уменьшается в тестах.
	MinuteUnit time.Duration

	// WorkerID — идентификатор worker-процесса (default: случайный UUID).
	WorkerID string

	// Archiver — архив завершённых tasks (опционально).
	Archiver Archiver

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// Clock — источник времени (default: time.Now).
	Clock func() time.Time

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Miner.
func New(cfg Config) *Miner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	reg := cfg.Registry
	if reg == nil {
		reg = registry.New(registry.Config{MaxActive: cfg.MaxActive, Clock: clock})
	}

	executors := cfg.Executors
	if executors == nil {
		executors = NewRegistry()
	}

	defaultExecutor := cfg.DefaultExecutor
	if defaultExecutor == "" {
		defaultExecutor = defaultExecutorName
	}

	minuteUnit := cfg.MinuteUnit
	if minuteUnit <= 0 {
		minuteUnit = defaultMinuteUnit
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Miner{
		registry: reg,
		actors:   make(map[*Actor]struct{}),
		logger:   logger,
		cancel:   cancel,
	}

	m.env = &actorEnv{
		ctx:             ctx,
		registry:        reg,
		executors:       executors,
		defaultExecutor: defaultExecutor,
		minuteUnit:      minuteUnit,
		archiver:        cfg.Archiver,
		metrics:         cfg.Metrics,
		logger:          telemetry.WithWorkerID(logger, workerID),
		workerID:        workerID,
		now:             clock,
		admit:           m.admit,
		release:         m.release,
	}

	return m
}

// Init обрабатывает TaskInitRequest новым Actor'ом.
//
// Отказ возвращается в TaskInitResponse, error всегда nil:
// сигнатура совпадает с транспортными клиентами контроллера.
func (m *Miner) Init(ctx context.Context, req domain.TaskInitRequest) (domain.TaskInitResponse, error) {
	_, resp := m.Spawn(ctx, req)
	return resp, nil
}

// Spawn создаёт Actor и передаёт ему запрос.
// Возвращает actor вместе с ответом: по Done() можно дождаться
// финального статуса task.
func (m *Miner) Spawn(ctx context.Context, req domain.TaskInitRequest) (*Actor, domain.TaskInitResponse) {
	a := newActor(m.env)
	resp := a.Init(ctx, req)
	return a, resp
}

// Status возвращает TaskStatusResponse по текущему снимку записи.
//
// Неизвестный ID, удалённая запись или чужой API-ключ — NOT_FOUND
// (isActive=false). Это нормальный исход, не ошибка.
func (m *Miner) Status(_ context.Context, req domain.TaskStatusRequest) (domain.TaskStatusResponse, error) {
	rec, ok := m.registry.Get(req.ID)
	if !ok || rec.APIKey != req.APIKey {
		return domain.NotFoundResponse(), nil
	}
	return rec.Snapshot().StatusResponse(), nil
}

// Registry возвращает реестр tasks (для политики хранения).
func (m *Miner) Registry() *registry.Registry {
	return m.registry
}

// WorkerID возвращает идентификатор worker-процесса.
func (m *Miner) WorkerID() string {
	return m.env.workerID
}

// Running возвращает количество живых actor'ов.
func (m *Miner) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Stop останавливает Miner.
//
// Все выполняющиеся tasks переводятся в FAILED ("task killed: miner stopped"),
// чтобы ни одна запись не осталась в RUNNING. Новые запросы отклоняются.
// Stop ждёт финальных переходов, но не возврата из executor'ов,
// игнорирующих отмену context'а.
func (m *Miner) Stop() {
	m.stoppedMu.Lock()
	m.stopped = true
	m.stoppedMu.Unlock()

	m.logger.Info("stopping miner...")

	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	for _, a := range actors {
		a.Kill(ErrMinerStopped.Error())
	}
	for _, a := range actors {
		<-a.Done()
	}

	if m.cancel != nil {
		m.cancel()
	}

	m.logger.Info("miner stopped", "killed_tasks", len(actors))
}

// IsStopped проверяет, остановлен ли Miner.
func (m *Miner) IsStopped() bool {
	m.stoppedMu.RLock()
	defer m.stoppedMu.RUnlock()
	return m.stopped
}

// admit регистрирует actor перед созданием записи.
func (m *Miner) admit(a *Actor) error {
	// stoppedMu удерживается, пока actor добавляется в map:
	// Stop не может пропустить actor, прошедший проверку.
	m.stoppedMu.RLock()
	defer m.stoppedMu.RUnlock()

	if m.stopped {
		return fmt.Errorf("%w", ErrMinerStopped)
	}

	m.mu.Lock()
	m.actors[a] = struct{}{}
	m.mu.Unlock()
	return nil
}

// release удаляет завершённый actor.
func (m *Miner) release(a *Actor) {
	m.mu.Lock()
	delete(m.actors, a)
	m.mu.Unlock()
}
