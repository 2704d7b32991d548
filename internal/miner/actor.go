package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/registry"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

const archiveTimeout = 5 * time.Second

// Actor — mining actor: одна независимая единица выполнения одного task.
//
// Actor принимает ровно один TaskInitRequest за время жизни.
// После принятия:
//   - создаёт Record в реестре (RUNNING)
//   - выполняет тело task в отдельной горутине
//   - взводит таймер на MaxRunningTime
//
// Гонка "тело завершилось" / "таймер сработал" разрешается Record'ом:
// выигрывает первый переход, второй игнорируется.
type Actor struct {
	env *actorEnv

	initialized atomic.Bool

	// mu защищает record/killed на время приёма task.
	mu     sync.Mutex
	killed bool
	record *domain.Record

	// Устанавливаются при приёме task и больше не меняются.
	executorName string
	cancel       context.CancelFunc
	timer        *time.Timer
	logger       *slog.Logger

	done     chan struct{}
	doneOnce sync.Once
	bodyDone chan struct{}
}

// actorEnv — зависимости, общие для всех actor'ов одного Miner.
type actorEnv struct {
	ctx             context.Context
	registry        *registry.Registry
	executors       *Registry
	defaultExecutor string
	minuteUnit      time.Duration
	archiver        Archiver
	metrics         *telemetry.Metrics
	logger          *slog.Logger
	workerID        string
	now             func() time.Time

	// admit/release вызываются Miner'ом для учёта живых actor'ов.
	admit   func(a *Actor) error
	release func(a *Actor)
}

func newActor(env *actorEnv) *Actor {
	return &Actor{
		env:      env,
		logger:   env.logger,
		done:     make(chan struct{}),
		bodyDone: make(chan struct{}),
	}
}

// Init обрабатывает TaskInitRequest.
//
// Отказ (accepted=false) не создаёт записи в реестре и не запускает
// выполнение. Принятие (accepted=true) означает, что Record уже
// виден для запросов статуса.
func (a *Actor) Init(ctx context.Context, req domain.TaskInitRequest) domain.TaskInitResponse {
	if !a.initialized.CompareAndSwap(false, true) {
		// Повторный запрос не должен закрывать done уже принятого task
		return a.rejectOnly(req, "already_initialized", ErrActorInitialized)
	}

	// 1. Валидация
	if err := req.Validate(); err != nil {
		return a.reject(req, "invalid_request", err)
	}

	// 2. Выбор executor'а
	name := req.Properties[PropertyExecutor]
	if name == "" {
		name = a.env.defaultExecutor
	}
	executor, err := a.env.executors.Get(name)
	if err != nil {
		return a.reject(req, "unknown_executor", err)
	}

	// 3. Регистрация actor'а в miner'е
	if a.env.admit != nil {
		if err := a.env.admit(a); err != nil {
			return a.reject(req, "stopped", err)
		}
	}

	a.mu.Lock()
	if a.killed {
		a.mu.Unlock()
		return a.rejectAdmitted(req, "stopped", ErrMinerStopped)
	}

	// 4. Создание записи
	budget := runningBudget(req.MaxRunningTime, a.env.minuteUnit)
	rec := domain.NewRecord(req, a.env.now(), budget)
	if err := a.env.registry.Insert(rec); err != nil {
		a.mu.Unlock()
		reason := "internal"
		switch {
		case errors.Is(err, registry.ErrDuplicateID):
			reason = "duplicate_id"
		case errors.Is(err, registry.ErrCapacityExceeded):
			reason = "capacity"
		}
		return a.rejectAdmitted(req, reason, err)
	}

	// 5. Запуск выполнения и таймера
	runCtx, cancel := context.WithCancel(a.env.ctx)
	a.record = rec
	a.executorName = name
	a.cancel = cancel
	a.logger = telemetry.WithTaskID(a.env.logger, rec.ID.String())
	a.timer = time.AfterFunc(budget, a.onDeadline)
	a.mu.Unlock()

	a.env.metrics.TaskAccepted()
	a.logger.Info("task accepted",
		"executor", name,
		"max_running_time", req.MaxRunningTime,
		"deadline", rec.Deadline,
	)

	job := &Job{
		ID:         rec.ID,
		APIKey:     rec.APIKey,
		Properties: rec.Properties,
		Body:       rec.Body,
	}
	go a.run(runCtx, executor, job)

	return domain.Accept()
}

// runningBudget переводит минуты в time.Duration.
// Значения, не помещающиеся в time.Duration, ограничиваются максимумом.
func runningBudget(minutes int, unit time.Duration) time.Duration {
	if minutes <= 0 || unit <= 0 {
		return 0
	}
	if int64(minutes) > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(minutes) * unit
}

// Status возвращает состояние task этого actor'а. Не блокируется.
func (a *Actor) Status() domain.TaskStatusResponse {
	rec := a.Record()
	if rec == nil {
		return domain.NotFoundResponse()
	}
	return rec.Snapshot().StatusResponse()
}

// Record возвращает запись task или nil, если task не был принят.
func (a *Actor) Record() *domain.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record
}

// Done закрывается, когда actor закончил работу:
// task перешёл в финальный статус или запрос был отклонён.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Kill принудительно завершает task с сообщением "task killed: <reason>".
// Если task ещё не принят, последующий приём будет отклонён.
func (a *Actor) Kill(reason string) {
	a.mu.Lock()
	rec := a.record
	if rec == nil {
		a.killed = true
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.finish(func(now time.Time) bool {
		return rec.Fail(domain.KilledMessage(reason), now)
	}, false)
}

// run выполняет тело task и фиксирует результат.
func (a *Actor) run(ctx context.Context, executor Executor, job *Job) {
	defer close(a.bodyDone)

	result, err := a.execute(ctx, executor, job)

	if err != nil {
		// Если task уже убит по таймауту, переход будет проигнорирован
		a.finish(func(now time.Time) bool {
			return a.record.Fail(err.Error(), now)
		}, false)
		return
	}

	a.finish(func(now time.Time) bool {
		return a.record.Succeed(result, now)
	}, false)
}

// execute вызывает executor, превращая панику в ошибку.
func (a *Actor) execute(ctx context.Context, executor Executor, job *Job) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return executor.Execute(ctx, job)
}

// onDeadline срабатывает по таймеру MaxRunningTime.
func (a *Actor) onDeadline() {
	a.finish(func(now time.Time) bool {
		return a.record.Fail(domain.TimeoutMessage, now)
	}, true)
}

// finish выполняет переход в финальный статус.
//
// Побочные эффекты (отмена тела, метрики, архив, release) выполняются
// только победителем перехода. Тело отменяется после перехода, поэтому
// его ошибка context.Canceled уже не может перезаписать статус.
func (a *Actor) finish(transition func(now time.Time) bool, timedOut bool) {
	if !transition(a.env.now()) {
		return
	}

	// Таймер может сработать раньше, чем Init присвоит a.timer
	a.mu.Lock()
	timer, cancel := a.timer, a.cancel
	a.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	cancel()

	snap := a.record.Snapshot()
	a.env.metrics.TaskFinished(string(snap.Status), snap.Duration(), timedOut)

	if snap.Status == domain.TaskStatusSucceeded {
		a.logger.Info("task succeeded",
			"duration", snap.Duration(),
			"result_size", len(snap.Result),
		)
	} else {
		a.logger.Warn("task failed",
			"duration", snap.Duration(),
			"timed_out", timedOut,
			"error", snap.Message,
		)
	}

	a.archive()

	if a.env.release != nil {
		a.env.release(a)
	}
	a.closeDone()
}

// archive сохраняет завершённый task в архив (если настроен).
// Ошибка архива не влияет на статус task.
func (a *Actor) archive() {
	if a.env.archiver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.env.ctx), archiveTimeout)
	defer cancel()

	entry := domain.NewArchivedTask(a.record, a.env.workerID, a.executorName)
	if err := a.env.archiver.Archive(ctx, entry); err != nil {
		a.logger.Warn("failed to archive task", "error", err)
	}
}

// reject отклоняет запрос до регистрации actor'а в miner'е.
func (a *Actor) reject(req domain.TaskInitRequest, reason string, err error) domain.TaskInitResponse {
	resp := a.rejectOnly(req, reason, err)
	a.closeDone()
	return resp
}

// rejectAdmitted отклоняет запрос после регистрации actor'а в miner'е.
func (a *Actor) rejectAdmitted(req domain.TaskInitRequest, reason string, err error) domain.TaskInitResponse {
	if a.env.release != nil {
		a.env.release(a)
	}
	return a.reject(req, reason, err)
}

// rejectOnly формирует отказ без изменения состояния actor'а.
func (a *Actor) rejectOnly(req domain.TaskInitRequest, reason string, err error) domain.TaskInitResponse {
	a.env.metrics.TaskRejected(reason)
	a.env.logger.Warn("task rejected",
		"task_id", req.ID,
		"reason", reason,
		"error", err,
	)
	return domain.Reject(err.Error())
}

func (a *Actor) closeDone() {
	a.doneOnce.Do(func() { close(a.done) })
}
