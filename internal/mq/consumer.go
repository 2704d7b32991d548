package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack).
// Ошибка ErrMalformedMessage отправляет сообщение в DLQ без повтора.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Envelope — распарсенный конверт.
	Envelope *Envelope

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// ReplyTo возвращает очередь для ответа.
func (d *Delivery) ReplyTo() string {
	return d.Raw.ReplyTo
}

// CorrelationID возвращает correlation id запроса.
// Если отправитель его не указал — ID конверта.
func (d *Delivery) CorrelationID() string {
	if d.Raw.CorrelationId != "" {
		return d.Raw.CorrelationId
	}
	return d.Envelope.ID
}

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает потребление сообщений. Блокируется до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume — основной цикл потребления с переподключением.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		// Подписка до попытки: переподключение не будет пропущено
		reconnected := c.conn.ReconnectNotify()

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", c.queue)

			err = c.processDeliveries(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Done():
			return nil
		case <-reconnected:
			c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (мы ack вручную)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	env, err := DecodeEnvelope(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — отправляем в DLQ
		raw.Nack(false, false)
		return
	}

	delivery := &Delivery{
		Envelope: env,
		Raw:      raw,
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", env.ID,
		"kind", env.Kind,
	)

	if err := c.handler(ctx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", env.ID,
			"kind", env.Kind,
			"error", err,
		)
		// Некорректный payload — в DLQ, остальное — обратно в очередь
		raw.Nack(false, !errors.Is(err, ErrMalformedMessage))
		return
	}

	raw.Ack(false)
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}
