// Package telemetry — логирование и метрики TaskMiner.
//
// Логи: log/slog, уровень из LOG_LEVEL, формат из LOG_FORMAT (json|text).
// Логгер запроса передаётся через context (WithLogger/FromContext),
// атрибуты task_id и worker_id добавляются WithTaskID/WithWorkerID.
//
// Метрики: Prometheus-коллекторы жизненного цикла tasks (Metrics).
// nil *Metrics допустим везде и ничего не публикует.
package telemetry
