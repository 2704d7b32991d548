// Package api содержит HTTP API контроллера.
//
// Структура:
//   - handler.go         — Handler с DI (controller, архив, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery, metrics)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - task_handler.go    — обработчики для /tasks
//   - archive_handler.go — обработчики для /archive/tasks
//
// API позволяет создавать tasks, опрашивать их статус и читать
// архив завершённых tasks.
package api
