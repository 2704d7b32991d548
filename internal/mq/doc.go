// Package mq — RabbitMQ транспорт протокола controller ↔ mining actor.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — конверт сообщений и публикация
//   - consumer.go   — потребление сообщений из очередей
//   - server.go     — сторона worker'а: запросы → Miner → ответы
//   - rpc_client.go — сторона контроллера: request/reply через direct reply-to
//
// Типы сообщений (Envelope.Kind):
//   - task.init.request / task.init.response
//   - task.status.request / task.status.response
//
// Exchanges:
//   - taskminer.tasks — запросы к worker'ам
//   - taskminer.dlq   — dead letter queue
package mq
