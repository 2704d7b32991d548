package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "taskminer.tasks"
	ExchangeDLQ   Exchange = "taskminer.dlq"

	// ExchangeDefault — default exchange, маршрутизирует по имени очереди.
	// Через него публикуются ответы в ReplyTo.
	ExchangeDefault Exchange = ""
)

// Queues — имена очередей.
const (
	QueueTasksInit Queue = "tasks.init"
	QueueDLQTasks  Queue = "dlq.tasks"

	// QueueDirectReplyTo — псевдо-очередь RabbitMQ direct reply-to.
	QueueDirectReplyTo Queue = "amq.rabbitmq.reply-to"

	statusQueuePrefix = "tasks.status."
)

// Routing keys.
const (
	RoutingKeyInit     RoutingKey = "init"
	RoutingKeyDLQTasks RoutingKey = "tasks"

	statusRoutingPrefix = "status."
)

// StatusQueue возвращает имя очереди запросов статуса worker'а.
func StatusQueue(workerID string) Queue {
	return Queue(statusQueuePrefix + workerID)
}

// StatusRoutingKey возвращает routing key запросов статуса worker'а.
func StatusRoutingKey(workerID string) RoutingKey {
	return RoutingKey(statusRoutingPrefix + workerID)
}

// SetupTopology объявляет общие exchanges, queues и bindings.
// Идемпотентна: вызывается каждым процессом при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		return bindQueues(ch)
	})
}

// DeclareWorkerQueue объявляет очередь статуса worker'а.
//
// Запрос статуса должен попасть к worker'у, принявшему task:
// записи tasks живут в памяти worker-процесса. Очередь удаляется
// вместе с worker'ом (auto-delete).
func DeclareWorkerQueue(ctx context.Context, conn *Connection, workerID string) (Queue, error) {
	queue := StatusQueue(workerID)

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(
			string(queue), // name
			false,         // durable
			true,          // delete when unused
			false,         // exclusive
			false,         // no-wait
			nil,           // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		err = ch.QueueBind(
			string(queue),
			string(StatusRoutingKey(workerID)),
			string(ExchangeTasks),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeTasks, err)
		}
		return nil
	})

	return queue, err
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, ex := range []Exchange{ExchangeTasks, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.init — с DLQ (некорректные сообщения)
		{QueueTasksInit, dlqArgs},

		// dlq.tasks — сама DLQ очередь
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTasksInit, RoutingKeyInit, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  TaskMiner RabbitMQ Topology:

    taskminer.tasks (direct)
    ├── tasks.init [routing: init]
    │       Consumer: Worker (competing)
    │       DLQ: dlq.tasks
    └── tasks.status.<worker_id> [routing: status.<worker_id>]
            Consumer: Worker <worker_id> (auto-delete)

    taskminer.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing

    replies: amq.rabbitmq.reply-to (direct reply-to)
  `
}
