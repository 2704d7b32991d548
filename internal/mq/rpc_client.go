package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/TaskMiner/internal/domain"
)

const defaultRequestTimeout = 10 * time.Second

// ErrRequestTimeout — worker не ответил за отведённое время.
var ErrRequestTimeout = errors.New("request timed out")

// RPCClient — транспорт контроллера поверх RabbitMQ (request/reply).
//
// Ответы принимаются через direct reply-to (amq.rabbitmq.reply-to),
// поэтому клиенту не нужна собственная очередь.
//
// Клиент запоминает, какой worker принял task (AppId ответа), и
// направляет запросы статуса в очередь этого worker'а. Для task,
// о котором клиент ничего не знает, ответ NOT_FOUND формируется локально.
type RPCClient struct {
	conn      *Connection
	publisher *Publisher
	timeout   time.Duration
	logger    *slog.Logger

	// Ожидающие ответа запросы: correlation id → канал ответа
	pending   map[string]chan amqp.Delivery
	pendingMu sync.Mutex

	// Маршрутизация статуса: task id → worker id
	routes   map[uuid.UUID]string
	routesMu sync.RWMutex

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// RPCClientConfig — конфигурация RPCClient.
type RPCClientConfig struct {
	// Timeout — таймаут одного запроса (default: 10s).
	Timeout time.Duration
}

// NewRPCClient создаёт новый RPCClient.
func NewRPCClient(conn *Connection, logger *slog.Logger, cfg RPCClientConfig) *RPCClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &RPCClient{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		timeout:   timeout,
		logger:    logger,
		pending:   make(map[string]chan amqp.Delivery),
		routes:    make(map[uuid.UUID]string),
	}
}

// Start подписывается на direct reply-to. Не блокируется.
func (c *RPCClient) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	replies, err := c.consumeReplies()
	if err != nil {
		cancel()
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatchReplies(ctx, replies)
	}()

	return nil
}

// Stop прекращает приём ответов.
func (c *RPCClient) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

// Init отправляет TaskInitRequest в общую очередь tasks.init.
func (c *RPCClient) Init(ctx context.Context, req domain.TaskInitRequest) (domain.TaskInitResponse, error) {
	reply, err := c.call(ctx, RoutingKeyInit, req)
	if err != nil {
		return domain.TaskInitResponse{}, err
	}

	resp, err := ParsePayload[domain.TaskInitResponse](reply.env)
	if err != nil {
		return domain.TaskInitResponse{}, err
	}

	if resp.Accepted {
		c.remember(req.ID, reply.workerID)
	}
	return resp, nil
}

// Status отправляет TaskStatusRequest worker'у, принявшему task.
func (c *RPCClient) Status(ctx context.Context, req domain.TaskStatusRequest) (domain.TaskStatusResponse, error) {
	workerID, ok := c.route(req.ID)
	if !ok {
		return domain.NotFoundResponse(), nil
	}

	reply, err := c.call(ctx, StatusRoutingKey(workerID), req)
	if err != nil {
		return domain.TaskStatusResponse{}, err
	}

	resp, err := ParsePayload[domain.TaskStatusResponse](reply.env)
	if err != nil {
		return domain.TaskStatusResponse{}, err
	}

	if resp.Status() == domain.TaskStatusNotFound {
		c.forget(req.ID)
	}
	return resp, nil
}

// rpcReply — разобранный ответ worker'а.
type rpcReply struct {
	env      *Envelope
	workerID string
}

// call публикует запрос и ждёт ответа с тем же correlation id.
func (c *RPCClient) call(ctx context.Context, routingKey RoutingKey, msg Message) (*rpcReply, error) {
	env, err := NewEnvelope(msg)
	if err != nil {
		return nil, err
	}

	replyCh := make(chan amqp.Delivery, 1)
	c.pendingMu.Lock()
	c.pending[env.ID] = replyCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, env.ID)
		c.pendingMu.Unlock()
	}()

	err = c.publisher.Publish(ctx, ExchangeTasks, routingKey, env, PublishOptions{
		ReplyTo:       string(QueueDirectReplyTo),
		CorrelationID: env.ID,
		Expiration:    c.timeout,
	})
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s via %s", ErrRequestTimeout, env.Kind, routingKey)
	case raw := <-replyCh:
		replyEnv, err := DecodeEnvelope(raw.Body)
		if err != nil {
			return nil, err
		}
		return &rpcReply{env: replyEnv, workerID: raw.AppId}, nil
	}
}

// consumeReplies подписывается на direct reply-to (только no-ack).
func (c *RPCClient) consumeReplies() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	replies, err := ch.Consume(
		string(QueueDirectReplyTo), // queue
		"",                         // consumer tag
		true,                       // auto-ack (обязательно для direct reply-to)
		false,                      // exclusive
		false,                      // no-local
		false,                      // no-wait
		nil,                        // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume replies: %w", err)
	}
	return replies, nil
}

// dispatchReplies доставляет ответы ожидающим запросам.
// При разрыве соединения переподписывается после reconnect.
func (c *RPCClient) dispatchReplies(ctx context.Context, replies <-chan amqp.Delivery) {
	for {
		reconnected := c.conn.ReconnectNotify()

		c.deliver(ctx, replies)
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("reply channel closed, waiting for reconnect")

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.conn.Done():
				return
			case <-reconnected:
			}

			reconnected = c.conn.ReconnectNotify()
			var err error
			replies, err = c.consumeReplies()
			if err == nil {
				break
			}
			c.logger.Error("failed to resubscribe to replies", "error", err)
		}

		c.logger.Info("resubscribed to replies")
	}
}

// deliver читает ответы, пока канал открыт.
func (c *RPCClient) deliver(ctx context.Context, replies <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-replies:
			if !ok {
				return
			}

			c.pendingMu.Lock()
			replyCh, found := c.pending[raw.CorrelationId]
			c.pendingMu.Unlock()

			if !found {
				// Ответ на запрос, ожидание которого уже истекло
				c.logger.Debug("dropping late reply", "correlation_id", raw.CorrelationId)
				continue
			}

			select {
			case replyCh <- raw:
			default:
			}
		}
	}
}

func (c *RPCClient) remember(id uuid.UUID, workerID string) {
	c.routesMu.Lock()
	c.routes[id] = workerID
	c.routesMu.Unlock()
}

func (c *RPCClient) forget(id uuid.UUID) {
	c.routesMu.Lock()
	delete(c.routes, id)
	c.routesMu.Unlock()
}

func (c *RPCClient) route(id uuid.UUID) (string, bool) {
	c.routesMu.RLock()
	defer c.routesMu.RUnlock()
	workerID, ok := c.routes[id]
	return workerID, ok
}
