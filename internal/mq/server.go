package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/TaskMiner/internal/domain"
)

// TaskHandler обрабатывает запросы протокола на стороне worker'а.
// Реализация: *miner.Miner.
type TaskHandler interface {
	Init(ctx context.Context, req domain.TaskInitRequest) (domain.TaskInitResponse, error)
	Status(ctx context.Context, req domain.TaskStatusRequest) (domain.TaskStatusResponse, error)
}

// replyPublisher публикует ответы на запросы. Реализация: *Publisher.
type replyPublisher interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, env *Envelope, opts PublishOptions) error
}

// Server обслуживает запросы контроллера из RabbitMQ.
//
// Потребляет две очереди:
//   - tasks.init — общая для всех worker'ов (competing consumers)
//   - tasks.status.<worker_id> — запросы статуса tasks этого worker'а
//
// Ответ публикуется в ReplyTo запроса с тем же CorrelationId и
// идентификатором worker'а в AppId: по нему контроллер маршрутизирует
// последующие запросы статуса.
type Server struct {
	conn      *Connection
	publisher replyPublisher
	handler   TaskHandler
	workerID  string
	prefetch  int
	logger    *slog.Logger

	consumers []*Consumer
	wg        sync.WaitGroup
}

// ServerConfig — конфигурация Server.
type ServerConfig struct {
	// Handler — обработчик запросов (обязательно).
	Handler TaskHandler

	// WorkerID — идентификатор worker'а (обязательно).
	WorkerID string

	// Prefetch — prefetch consumer'ов (default: 16).
	Prefetch int
}

// NewServer создаёт новый Server.
func NewServer(conn *Connection, logger *slog.Logger, cfg ServerConfig) *Server {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 16
	}

	return &Server{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		handler:   cfg.Handler,
		workerID:  cfg.WorkerID,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start объявляет очередь worker'а и запускает consumer'ов.
// Не блокируется.
func (s *Server) Start(ctx context.Context) error {
	statusQueue, err := DeclareWorkerQueue(ctx, s.conn, s.workerID)
	if err != nil {
		return fmt.Errorf("declare worker queue: %w", err)
	}

	for _, queue := range []Queue{QueueTasksInit, statusQueue} {
		consumer := NewConsumer(s.conn, s.logger, ConsumerConfig{
			Queue:    string(queue),
			Handler:  s.handle,
			Prefetch: s.prefetch,
		})
		s.consumers = append(s.consumers, consumer)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("consumer stopped", "queue", queue, "error", err)
			}
		}()
	}

	s.logger.Info("mq server started",
		"init_queue", QueueTasksInit,
		"status_queue", statusQueue,
	)

	return nil
}

// Stop останавливает consumer'ов и ждёт их завершения.
func (s *Server) Stop() {
	for _, c := range s.consumers {
		c.Stop()
	}
	s.wg.Wait()
	s.logger.Info("mq server stopped")
}

// handle обрабатывает один запрос и публикует ответ.
//
// После успешного Dispatch delivery всегда подтверждается: Init уже
// применён, и повторная доставка запустила бы task второй раз.
// Ошибка публикации ответа только логируется, контроллер получит
// таймаут RPC.
func (s *Server) handle(ctx context.Context, d *Delivery) error {
	if d.Raw.Redelivered {
		s.logger.Warn("redelivered request", "message_id", d.Envelope.ID, "kind", d.Envelope.Kind)
	}

	reply, err := Dispatch(ctx, s.handler, d.Envelope)
	if err != nil {
		return err
	}

	if d.ReplyTo() == "" {
		// Запрос без адреса ответа: выполнен, но ответить некому
		s.logger.Warn("request without reply-to", "message_id", d.Envelope.ID, "kind", d.Envelope.Kind)
		return nil
	}

	err = s.publisher.Publish(ctx, ExchangeDefault, RoutingKey(d.ReplyTo()), reply, PublishOptions{
		CorrelationID: d.CorrelationID(),
		AppID:         s.workerID,
	})
	if err != nil {
		s.logger.Error("publish reply failed",
			"message_id", d.Envelope.ID,
			"kind", d.Envelope.Kind,
			"correlation_id", d.CorrelationID(),
			"error", err,
		)
	}
	return nil
}

// Dispatch разбирает запрос, вызывает handler и упаковывает ответ.
func Dispatch(ctx context.Context, handler TaskHandler, env *Envelope) (*Envelope, error) {
	switch env.Kind {
	case domain.MessageKindInitRequest:
		req, err := ParsePayload[domain.TaskInitRequest](env)
		if err != nil {
			return nil, err
		}
		resp, err := handler.Init(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("init task %s: %w", req.ID, err)
		}
		return NewEnvelope(resp)

	case domain.MessageKindStatusRequest:
		req, err := ParsePayload[domain.TaskStatusRequest](env)
		if err != nil {
			return nil, err
		}
		resp, err := handler.Status(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("status of task %s: %w", req.ID, err)
		}
		return NewEnvelope(resp)

	default:
		return nil, fmt.Errorf("%w: unexpected kind %q", ErrMalformedMessage, env.Kind)
	}
}
