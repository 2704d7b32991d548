// Package miner выполняет tasks EasyMiner: mining actor'ы и их хост.
//
// # Обзор
//
// Miner — worker-процесс, в котором живут mining actor'ы. Каждый
// TaskInitRequest обрабатывается новым Actor'ом, который:
//
//   - валидирует запрос и выбирает executor
//   - создаёт Record в реестре (RUNNING) до ответа accepted=true
//   - выполняет тело task в отдельной горутине
//   - взводит таймер на MaxRunningTime
//   - переводит Record в SUCCEEDED или FAILED ровно один раз
//
// Запросы статуса обслуживаются из реестра и никогда не ждут
// выполнения тела task.
//
// # Ключевые компоненты
//
// ## Miner
//
// Создаётся через New(cfg Config). Stop() убивает все выполняющиеся
// tasks, чтобы ни одна запись не осталась в RUNNING.
//
//	m := miner.New(miner.Config{
//	    MaxActive:  100,
//	    Archiver:   taskRepo,
//	    Metrics:    metrics,
//	    Logger:     logger,
//	})
//	defer m.Stop()
//
//	resp, _ := m.Init(ctx, req)
//
// ## Executor
//
// Тело task — чёрный ящик:
//
//	type Executor interface {
//	    Execute(ctx context.Context, job *Job) ([]byte, error)
//	}
//
// Реализации:
//   - EchoExecutor — возвращает тело task без изменений
//   - DelayExecutor — ожидает duration_sec секунд, учитывает отмену
//   - HTTPExecutor — передаёт тело внешнему mining backend'у
//
// Executor выбирается свойством task "executor" (default: echo).
//
// # Таймаут
//
// По истечении MaxRunningTime запись переводится в FAILED с сообщением
// "task killed: exceeded max running time", затем отменяется context тела.
// Поздний результат тела игнорируется.
package miner
