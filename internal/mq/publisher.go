package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/TaskMiner/internal/domain"
)

// ErrMalformedMessage — сообщение нельзя разобрать.
// Такие сообщения не возвращаются в очередь, а уходят в DLQ.
var ErrMalformedMessage = errors.New("malformed message")

// Message — сообщение протокола, которое можно упаковать в Envelope.
type Message interface {
	Kind() domain.MessageKind
}

// Envelope — формат сообщения в очереди.
type Envelope struct {
	// ID — уникальный идентификатор сообщения (он же correlation id).
	ID string `json:"id"`

	// Kind — тип сообщения протокола.
	Kind domain.MessageKind `json:"kind"`

	// Payload — сообщение протокола в JSON.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope упаковывает сообщение протокола.
func NewEnvelope(msg Message) (*Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Envelope{
		ID:        uuid.New().String(),
		Kind:      msg.Kind(),
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}

// DecodeEnvelope разбирает тело AMQP сообщения.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformedMessage)
	}
	return &env, nil
}

// ParsePayload разбирает payload конверта в сообщение типа T,
// проверяя, что тип конверта совпадает с T.
func ParsePayload[T Message](env *Envelope) (T, error) {
	var result T

	if want := result.Kind(); env.Kind != want {
		return result, fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, want, env.Kind)
	}

	if err := json.Unmarshal(env.Payload, &result); err != nil {
		return result, fmt.Errorf("%w: unmarshal payload: %v", ErrMalformedMessage, err)
	}

	return result, nil
}

// PublishOptions — параметры публикации для request/reply.
type PublishOptions struct {
	// ReplyTo — очередь для ответа (у запросов).
	ReplyTo string

	// CorrelationID — связывает ответ с запросом.
	CorrelationID string

	// AppID — идентификатор отправителя (worker id у ответов).
	AppID string

	// Persistent — сообщение переживёт рестарт RabbitMQ.
	Persistent bool

	// Expiration — TTL сообщения в очереди (0 — без TTL).
	Expiration time.Duration
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует конверт в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, env *Envelope, opts PublishOptions) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			buildPublishing(env, body, opts),
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", env.ID,
			"kind", env.Kind,
		)

		return nil
	})
}

// buildPublishing собирает AMQP сообщение.
func buildPublishing(env *Envelope, body []byte, opts PublishOptions) amqp.Publishing {
	pub := amqp.Publishing{
		ContentType:   "application/json",
		Type:          string(env.Kind),
		MessageId:     env.ID,
		Timestamp:     env.Timestamp,
		ReplyTo:       opts.ReplyTo,
		CorrelationId: opts.CorrelationID,
		AppId:         opts.AppID,
		Body:          body,
	}
	if opts.Persistent {
		pub.DeliveryMode = amqp.Persistent
	}
	if opts.Expiration > 0 {
		pub.Expiration = fmt.Sprintf("%d", opts.Expiration.Milliseconds())
	}
	return pub
}
