package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/miner"
)

func newTestMiner(t *testing.T) *miner.Miner {
	t.Helper()
	m := miner.New(miner.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	t.Cleanup(m.Stop)
	return m
}

func TestEnvelope_RoundTrip(t *testing.T) {
	req := domain.TaskInitRequest{
		RequestHeader:  domain.RequestHeader{ID: uuid.New(), APIKey: "key"},
		MaxRunningTime: 5,
		Properties:     map[string]string{"algorithm": "apriori"},
		Body:           []byte{0, 1, 2},
	}

	env, err := NewEnvelope(req)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Kind != domain.MessageKindInitRequest {
		t.Errorf("unexpected kind: %s", env.Kind)
	}
	if env.ID == "" {
		t.Error("envelope id should be set")
	}

	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	got, err := ParsePayload[domain.TaskInitRequest](decoded)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if got.ID != req.ID || got.APIKey != "key" || got.MaxRunningTime != 5 {
		t.Errorf("unexpected request: %+v", got)
	}
	if string(got.Body) != string(req.Body) || got.Properties["algorithm"] != "apriori" {
		t.Errorf("body or properties lost: %+v", got)
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, body := range []string{"not json", `{"id":"1"}`} {
		if _, err := DecodeEnvelope([]byte(body)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("DecodeEnvelope(%q): expected ErrMalformedMessage, got %v", body, err)
		}
	}
}

func TestParsePayload_KindMismatch(t *testing.T) {
	env, _ := NewEnvelope(domain.NewStatusRequest(uuid.New(), "key"))

	if _, err := ParsePayload[domain.TaskInitRequest](env); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestStatusRouting(t *testing.T) {
	if got := StatusQueue("w1"); got != "tasks.status.w1" {
		t.Errorf("unexpected queue: %s", got)
	}
	if got := StatusRoutingKey("w1"); got != "status.w1" {
		t.Errorf("unexpected routing key: %s", got)
	}
}

func TestDispatch_InitAndStatus(t *testing.T) {
	m := newTestMiner(t)
	ctx := context.Background()

	req := domain.TaskInitRequest{
		RequestHeader:  domain.RequestHeader{ID: uuid.New(), APIKey: "key"},
		MaxRunningTime: 1,
		Properties:     map[string]string{miner.PropertyExecutor: "delay", "duration_sec": "30"},
	}
	env, _ := NewEnvelope(req)

	reply, err := Dispatch(ctx, m, env)
	if err != nil {
		t.Fatalf("Dispatch init: %v", err)
	}
	initResp, err := ParsePayload[domain.TaskInitResponse](reply)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if !initResp.Accepted {
		t.Fatalf("expected accepted, got %q", initResp.Message)
	}

	env, _ = NewEnvelope(domain.NewStatusRequest(req.ID, "key"))
	reply, err = Dispatch(ctx, m, env)
	if err != nil {
		t.Fatalf("Dispatch status: %v", err)
	}
	statusResp, err := ParsePayload[domain.TaskStatusResponse](reply)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if statusResp.Status() != domain.TaskStatusRunning {
		t.Errorf("expected RUNNING, got %s", statusResp.Status())
	}
}

func TestDispatch_Rejection(t *testing.T) {
	m := newTestMiner(t)

	env, _ := NewEnvelope(domain.TaskInitRequest{
		RequestHeader: domain.RequestHeader{ID: uuid.New(), APIKey: "key"},
	})

	reply, err := Dispatch(context.Background(), m, env)
	if err != nil {
		t.Fatalf("rejection is a reply, not an error: %v", err)
	}
	resp, _ := ParsePayload[domain.TaskInitResponse](reply)
	if resp.Accepted || resp.Message == "" {
		t.Errorf("expected rejection with reason, got %+v", resp)
	}
}

// failingPublisher считает попытки публикации и всегда возвращает ошибку.
type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, env *Envelope, opts PublishOptions) error {
	p.calls++
	return errors.New("channel closed")
}

func TestServer_ReplyFailureAcksInit(t *testing.T) {
	m := newTestMiner(t)
	pub := &failingPublisher{}
	srv := &Server{
		publisher: pub,
		handler:   m,
		workerID:  "w1",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	req := domain.TaskInitRequest{
		RequestHeader:  domain.RequestHeader{ID: uuid.New(), APIKey: "key"},
		MaxRunningTime: 1,
		Properties:     map[string]string{miner.PropertyExecutor: "delay", "duration_sec": "30"},
	}
	env, _ := NewEnvelope(req)
	d := &Delivery{
		Envelope: env,
		Raw:      amqp.Delivery{ReplyTo: "amq.rabbitmq.reply-to.abc", CorrelationId: "c1"},
	}

	// nil означает ack: сообщение не вернётся в очередь
	if err := srv.handle(context.Background(), d); err != nil {
		t.Fatalf("handle must ack after dispatch, got %v", err)
	}
	if pub.calls != 1 {
		t.Errorf("expected 1 publish attempt, got %d", pub.calls)
	}

	// Повторная доставка того же запроса не запускает task второй раз
	d.Raw.Redelivered = true
	if err := srv.handle(context.Background(), d); err != nil {
		t.Fatalf("redelivered handle: %v", err)
	}
	if n := m.Registry().Len(); n != 1 {
		t.Errorf("expected task accepted exactly once, registry has %d", n)
	}

	status, err := m.Status(context.Background(), domain.NewStatusRequest(req.ID, "key"))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status() != domain.TaskStatusRunning {
		t.Errorf("expected RUNNING, got %s", status.Status())
	}
}

func TestServer_DispatchErrorIsReturned(t *testing.T) {
	pub := &failingPublisher{}
	srv := &Server{
		publisher: pub,
		handler:   newTestMiner(t),
		workerID:  "w1",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env, _ := NewEnvelope(domain.Accept())

	err := srv.handle(context.Background(), &Delivery{Envelope: env})
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage, got %v", err)
	}
	if pub.calls != 0 {
		t.Errorf("no reply expected on dispatch error, got %d publishes", pub.calls)
	}
}

func TestDispatch_UnexpectedKind(t *testing.T) {
	m := newTestMiner(t)
	env, _ := NewEnvelope(domain.Accept())

	if _, err := Dispatch(context.Background(), m, env); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestRPCClient_StatusUnknownTask(t *testing.T) {
	c := NewRPCClient(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), RPCClientConfig{})

	resp, err := c.Status(context.Background(), domain.NewStatusRequest(uuid.New(), "key"))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Status() != domain.TaskStatusNotFound {
		t.Errorf("expected NOT_FOUND, got %s", resp.Status())
	}
}

func TestRPCClient_Routes(t *testing.T) {
	c := NewRPCClient(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), RPCClientConfig{})
	id := uuid.New()

	c.remember(id, "w1")
	if w, ok := c.route(id); !ok || w != "w1" {
		t.Errorf("expected route to w1, got %q %v", w, ok)
	}

	c.forget(id)
	if _, ok := c.route(id); ok {
		t.Error("route should be forgotten")
	}
}
