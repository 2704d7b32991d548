// Package controller — сторона протокола EasyMiner, которая создаёт tasks
// и опрашивает их состояние.
//
// Контроллер генерирует ID task (UUID), отправляет TaskInitRequest
// через MinerClient и, если task принят, периодически запрашивает
// TaskStatusResponse до завершения.
//
// Транспорт скрыт за интерфейсом MinerClient:
//   - *miner.Miner — in-process
//   - *mq.RPCClient — RabbitMQ (request/reply)
//
// Ядро ничего не повторяет. Единственная политика повторов на стороне
// контроллера: отказ из-за занятого ID повторяется с новым ID.
package controller
