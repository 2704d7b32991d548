package miner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shaiso/TaskMiner/internal/domain"
	"github.com/shaiso/TaskMiner/internal/registry"
)

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testExecutors — реестр с тестовыми executor'ами.
func testExecutors() *Registry {
	r := NewRegistry()
	r.Register("fail", ExecutorFunc(func(_ context.Context, _ *Job) ([]byte, error) {
		return nil, errors.New("invalid dataset")
	}))
	r.Register("block", ExecutorFunc(func(ctx context.Context, _ *Job) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	r.Register("panic", ExecutorFunc(func(_ context.Context, _ *Job) ([]byte, error) {
		panic("boom")
	}))
	r.Register("fixed", ExecutorFunc(func(_ context.Context, _ *Job) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}))
	return r
}

func newTestMiner(t *testing.T, cfg Config) *Miner {
	t.Helper()
	if cfg.Executors == nil {
		cfg.Executors = testExecutors()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	m := New(cfg)
	t.Cleanup(m.Stop)
	return m
}

func newRequest(executor string, minutes int) domain.TaskInitRequest {
	req := domain.TaskInitRequest{
		RequestHeader:  domain.RequestHeader{ID: uuid.New(), APIKey: "key-1"},
		MaxRunningTime: minutes,
		Properties:     map[string]string{},
		Body:           []byte("payload"),
	}
	if executor != "" {
		req.Properties[PropertyExecutor] = executor
	}
	return req
}

func waitDone(t *testing.T, a *Actor) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not finish in time")
	}
}

func statusOf(t *testing.T, m *Miner, req domain.TaskInitRequest) domain.TaskStatusResponse {
	t.Helper()
	resp, err := m.Status(context.Background(), domain.NewStatusRequest(req.ID, req.APIKey))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return resp
}

// fakeArchiver собирает архивированные tasks.
type fakeArchiver struct {
	mu    sync.Mutex
	tasks []*domain.ArchivedTask
}

func (f *fakeArchiver) Archive(_ context.Context, task *domain.ArchivedTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeArchiver) all() []*domain.ArchivedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ArchivedTask(nil), f.tasks...)
}

// --- Miner / Actor Tests ---

func TestMiner_AcceptedTaskIsRunning(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("block", 10)

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got message %q", resp.Message)
	}

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusRunning {
		t.Fatalf("expected RUNNING, got %s", status.Status())
	}
	if len(status.Result) != 0 {
		t.Errorf("expected empty result, got %v", status.Result)
	}

	if a.Record() == nil || a.Record().ID != req.ID {
		t.Error("actor should hold the accepted record")
	}
}

func TestMiner_TaskSucceeds(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("fixed", 1)

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}
	waitDone(t, a)

	status := statusOf(t, m, req)
	if !status.IsActive || !status.IsCompleted || !status.IsSuccessful {
		t.Fatalf("expected succeeded flags, got %+v", status)
	}
	if !bytes.Equal(status.Result, []byte{1, 2, 3}) {
		t.Errorf("expected result [1 2 3], got %v", status.Result)
	}
}

func TestMiner_TaskFails(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("fail", 1)

	a, _ := m.Spawn(context.Background(), req)
	waitDone(t, a)

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", status.Status())
	}
	if status.Message != "invalid dataset" {
		t.Errorf("expected message 'invalid dataset', got %q", status.Message)
	}
	if len(status.Result) != 0 {
		t.Errorf("expected empty result, got %v", status.Result)
	}
}

func TestMiner_DefaultExecutorIsEcho(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("", 1)

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}
	waitDone(t, a)

	status := statusOf(t, m, req)
	if string(status.Result) != "payload" {
		t.Errorf("expected echoed body, got %q", status.Result)
	}
}

func TestMiner_Timeout(t *testing.T) {
	m := newTestMiner(t, Config{MinuteUnit: 20 * time.Millisecond})
	req := newRequest("block", 1)

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}
	waitDone(t, a)

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", status.Status())
	}
	if !strings.Contains(status.Message, "killed") {
		t.Errorf("expected kill message, got %q", status.Message)
	}
	if status.Message != domain.TimeoutMessage {
		t.Errorf("expected %q, got %q", domain.TimeoutMessage, status.Message)
	}
}

func TestMiner_TimeoutIgnoresLateResult(t *testing.T) {
	release := make(chan struct{})
	executors := testExecutors()
	executors.Register("stubborn", ExecutorFunc(func(_ context.Context, _ *Job) ([]byte, error) {
		// Не реагирует на отмену
		<-release
		return []byte("late"), nil
	}))

	m := newTestMiner(t, Config{Executors: executors, MinuteUnit: 20 * time.Millisecond})
	req := newRequest("stubborn", 1)

	a, _ := m.Spawn(context.Background(), req)
	waitDone(t, a)

	close(release)
	select {
	case <-a.bodyDone:
	case <-time.After(5 * time.Second):
		t.Fatal("body did not return")
	}

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED after late result, got %s", status.Status())
	}
	if len(status.Result) != 0 {
		t.Errorf("late result must be ignored, got %q", status.Result)
	}
}

func TestMiner_Panic(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("panic", 1)

	a, _ := m.Spawn(context.Background(), req)
	waitDone(t, a)

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", status.Status())
	}
	if !strings.Contains(status.Message, ErrTaskPanicked.Error()) {
		t.Errorf("expected panic message, got %q", status.Message)
	}
}

func TestMiner_RejectedNeverQueryable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.TaskInitRequest)
		want   string
	}{
		{"zero max running time", func(r *domain.TaskInitRequest) { r.MaxRunningTime = 0 }, "max running time"},
		{"negative max running time", func(r *domain.TaskInitRequest) { r.MaxRunningTime = -5 }, "max running time"},
		{"max running time above limit", func(r *domain.TaskInitRequest) { r.MaxRunningTime = domain.MaxRunningTimeLimit + 1 }, "max running time"},
		{"empty api key", func(r *domain.TaskInitRequest) { r.APIKey = "" }, "api key"},
		{"unknown executor", func(r *domain.TaskInitRequest) { r.Properties[PropertyExecutor] = "nope" }, "unknown executor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMiner(t, Config{})
			req := newRequest("echo", 1)
			tt.mutate(&req)

			a, resp := m.Spawn(context.Background(), req)
			if resp.Accepted {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(resp.Message, tt.want) {
				t.Errorf("expected message containing %q, got %q", tt.want, resp.Message)
			}
			waitDone(t, a)

			if m.Registry().Len() != 0 {
				t.Errorf("rejected request must not create a record")
			}
			status := statusOf(t, m, req)
			if status.Status() != domain.TaskStatusNotFound {
				t.Errorf("expected NOT_FOUND, got %s", status.Status())
			}
		})
	}
}

func TestMiner_LargeRunningTimeIsNotKilled(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("block", domain.MaxRunningTimeLimit)

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}

	select {
	case <-a.Done():
		t.Fatalf("task was killed early: %+v", statusOf(t, m, req))
	case <-time.After(50 * time.Millisecond):
	}

	status := statusOf(t, m, req)
	if status.Status() != domain.TaskStatusRunning {
		t.Fatalf("expected RUNNING, got %s (%q)", status.Status(), status.Message)
	}
	rec, _ := m.Registry().Get(req.ID)
	if !rec.Deadline.After(time.Now()) {
		t.Errorf("deadline must be in the future, got %v", rec.Deadline)
	}
}

func TestRunningBudget(t *testing.T) {
	tests := []struct {
		minutes int
		unit    time.Duration
		want    time.Duration
	}{
		{5, time.Minute, 5 * time.Minute},
		{1, 20 * time.Millisecond, 20 * time.Millisecond},
		{domain.MaxRunningTimeLimit, time.Minute, time.Duration(math.MaxInt64)},
		{domain.MaxRunningTimeLimit, time.Hour, time.Duration(math.MaxInt64)},
		{0, time.Minute, 0},
	}

	for _, tt := range tests {
		if got := runningBudget(tt.minutes, tt.unit); got != tt.want {
			t.Errorf("runningBudget(%d, %v) = %v, want %v", tt.minutes, tt.unit, got, tt.want)
		}
	}
}

func TestMiner_DuplicateID(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("block", 10)

	if _, resp := m.Spawn(context.Background(), req); !resp.Accepted {
		t.Fatalf("first request should be accepted: %q", resp.Message)
	}

	dup := req
	dup.Properties = map[string]string{PropertyExecutor: "fixed"}
	_, resp := m.Spawn(context.Background(), dup)
	if resp.Accepted {
		t.Fatal("duplicate id should be rejected")
	}
	if !strings.Contains(resp.Message, registry.ErrDuplicateID.Error()) {
		t.Errorf("unexpected message: %q", resp.Message)
	}

	// Первый task не затронут
	if status := statusOf(t, m, req); status.Status() != domain.TaskStatusRunning {
		t.Errorf("original task should still be RUNNING, got %s", status.Status())
	}
}

func TestMiner_Capacity(t *testing.T) {
	m := newTestMiner(t, Config{MaxActive: 1})

	first := newRequest("block", 10)
	a, resp := m.Spawn(context.Background(), first)
	if !resp.Accepted {
		t.Fatalf("first request should be accepted: %q", resp.Message)
	}

	second := newRequest("echo", 1)
	_, resp = m.Spawn(context.Background(), second)
	if resp.Accepted {
		t.Fatal("second request should be rejected by capacity")
	}
	if !strings.Contains(resp.Message, registry.ErrCapacityExceeded.Error()) {
		t.Errorf("unexpected message: %q", resp.Message)
	}

	// Освобождаем слот
	a.Kill("test")
	waitDone(t, a)

	third := newRequest("echo", 1)
	if _, resp := m.Spawn(context.Background(), third); !resp.Accepted {
		t.Errorf("request after release should be accepted: %q", resp.Message)
	}
}

func TestActor_SecondInitRejected(t *testing.T) {
	m := newTestMiner(t, Config{})
	first := newRequest("block", 10)

	a, resp := m.Spawn(context.Background(), first)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}

	second := newRequest("echo", 1)
	resp = a.Init(context.Background(), second)
	if resp.Accepted {
		t.Fatal("second init on the same actor should be rejected")
	}

	select {
	case <-a.Done():
		t.Fatal("rejected second init must not finish the running task")
	default:
	}

	if status := statusOf(t, m, second); status.Status() != domain.TaskStatusNotFound {
		t.Errorf("second task should be NOT_FOUND, got %s", status.Status())
	}
	if a.Record().ID != first.ID {
		t.Error("actor record should belong to the first request")
	}
}

func TestActor_Kill(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("block", 10)

	a, _ := m.Spawn(context.Background(), req)
	a.Kill("operator request")
	waitDone(t, a)

	status := statusOf(t, m, req)
	if status.Message != "task killed: operator request" {
		t.Errorf("unexpected message: %q", status.Message)
	}

	// Повторный Kill ничего не меняет
	a.Kill("again")
	if got := statusOf(t, m, req).Message; got != status.Message {
		t.Errorf("terminal message changed to %q", got)
	}
}

func TestMiner_StatusWrongAPIKey(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("fixed", 1)

	a, _ := m.Spawn(context.Background(), req)
	waitDone(t, a)

	resp, err := m.Status(context.Background(), domain.NewStatusRequest(req.ID, "other-key"))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Status() != domain.TaskStatusNotFound {
		t.Errorf("expected NOT_FOUND for foreign api key, got %s", resp.Status())
	}
}

func TestMiner_StatusUnknownID(t *testing.T) {
	m := newTestMiner(t, Config{})

	resp, err := m.Status(context.Background(), domain.NewStatusRequest(uuid.New(), "key-1"))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.IsActive || resp.IsCompleted || resp.IsSuccessful || len(resp.Result) != 0 {
		t.Errorf("expected not-found flags, got %+v", resp)
	}
}

func TestMiner_StatusDoesNotBlock(t *testing.T) {
	m := newTestMiner(t, Config{})
	req := newRequest("block", 10)
	m.Spawn(context.Background(), req)

	done := make(chan struct{})
	go func() {
		for range 100 {
			m.Status(context.Background(), domain.NewStatusRequest(req.ID, req.APIKey))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("status queries blocked by running task")
	}
}

func TestMiner_Stop(t *testing.T) {
	m := New(Config{Executors: testExecutors(), Logger: discardLogger()})

	reqs := []domain.TaskInitRequest{newRequest("block", 10), newRequest("block", 10)}
	for _, req := range reqs {
		if _, resp := m.Spawn(context.Background(), req); !resp.Accepted {
			t.Fatalf("expected accepted, got %q", resp.Message)
		}
	}

	m.Stop()

	if !m.IsStopped() {
		t.Error("miner should be stopped")
	}
	if m.Running() != 0 {
		t.Errorf("expected no live actors, got %d", m.Running())
	}

	for _, req := range reqs {
		status := statusOf(t, m, req)
		if status.Status() != domain.TaskStatusFailed {
			t.Errorf("task %s should be FAILED after stop, got %s", req.ID, status.Status())
		}
		if status.Message != domain.KilledMessage(ErrMinerStopped.Error()) {
			t.Errorf("unexpected message: %q", status.Message)
		}
	}

	late := newRequest("echo", 1)
	resp, _ := m.Init(context.Background(), late)
	if resp.Accepted {
		t.Fatal("stopped miner must reject new tasks")
	}
	if status := statusOf(t, m, late); status.Status() != domain.TaskStatusNotFound {
		t.Errorf("rejected task should be NOT_FOUND, got %s", status.Status())
	}
}

func TestMiner_Archive(t *testing.T) {
	archiver := &fakeArchiver{}
	m := newTestMiner(t, Config{Archiver: archiver, WorkerID: "worker-1"})
	req := newRequest("fixed", 1)

	a, _ := m.Spawn(context.Background(), req)
	waitDone(t, a)

	tasks := archiver.all()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 archived task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.ID != req.ID || got.WorkerID != "worker-1" || got.Executor != "fixed" {
		t.Errorf("unexpected archive entry: %+v", got)
	}
	if got.Status != domain.TaskStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", got.Status)
	}
}

func TestMiner_ConcurrentSubmissions(t *testing.T) {
	m := newTestMiner(t, Config{})

	var wg sync.WaitGroup
	actors := make([]*Actor, 20)
	reqs := make([]domain.TaskInitRequest, 20)
	for i := range actors {
		reqs[i] = newRequest("echo", 1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actors[i], _ = m.Spawn(context.Background(), reqs[i])
		}(i)
	}
	wg.Wait()

	for i, a := range actors {
		waitDone(t, a)
		if status := statusOf(t, m, reqs[i]); status.Status() != domain.TaskStatusSucceeded {
			t.Errorf("task %d: expected SUCCEEDED, got %s", i, status.Status())
		}
	}
}

// --- Executor Tests ---

func TestEchoExecutor(t *testing.T) {
	result, err := (&EchoExecutor{}).Execute(context.Background(), &Job{Body: []byte("abc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "abc" {
		t.Errorf("expected abc, got %q", result)
	}

	result, _ = (&EchoExecutor{}).Execute(context.Background(), &Job{})
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil result, got %v", result)
	}
}

func TestDelayExecutor_Success(t *testing.T) {
	job := &Job{Properties: map[string]string{"duration_sec": "0.01"}, Body: []byte("x")}

	start := time.Now()
	result, err := (&DelayExecutor{}).Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("delay executor returned too early")
	}
	if string(result) != "x" {
		t.Errorf("expected x, got %q", result)
	}
}

func TestDelayExecutor_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &Job{Properties: map[string]string{"duration_sec": "10"}}
	_, err := (&DelayExecutor{}).Execute(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPExecutor_Success(t *testing.T) {
	var gotKey, gotTaskID, gotProp, gotMethod string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get(HeaderAPIKey)
		gotTaskID = r.Header.Get(HeaderTaskID)
		gotProp = r.Header.Get(HeaderPropertyPrefix + "algorithm")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"rules":3}`))
	}))
	defer server.Close()

	id := uuid.New()
	job := &Job{
		ID:     id,
		APIKey: "secret",
		Properties: map[string]string{
			"url":       server.URL,
			"algorithm": "apriori",
		},
		Body: []byte("dataset"),
	}

	result, err := (&HTTPExecutor{}).Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"rules":3}` {
		t.Errorf("unexpected result: %q", result)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotKey != "secret" || gotTaskID != id.String() || gotProp != "apriori" {
		t.Errorf("unexpected headers: key=%q id=%q prop=%q", gotKey, gotTaskID, gotProp)
	}
	if string(gotBody) != "dataset" {
		t.Errorf("unexpected body: %q", gotBody)
	}
}

func TestHTTPExecutor_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid dataset"))
	}))
	defer server.Close()

	job := &Job{Properties: map[string]string{"url": server.URL, "method": "put"}}
	_, err := (&HTTPExecutor{}).Execute(context.Background(), job)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}
	if !strings.Contains(err.Error(), "HTTP 400") || !strings.Contains(err.Error(), "invalid dataset") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestHTTPExecutor_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer server.Close()

	job := &Job{Properties: map[string]string{"url": server.URL}}

	_, err := (&HTTPExecutor{MaxResponseSize: 63}).Execute(context.Background(), job)
	if !errors.Is(err, ErrHTTPRequest) || !strings.Contains(err.Error(), "exceeds 63 bytes") {
		t.Fatalf("expected size limit error, got %v", err)
	}

	result, err := (&HTTPExecutor{MaxResponseSize: 64}).Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("response at limit: %v", err)
	}
	if len(result) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(result))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"short", "abc", 10, "abc"},
		{"ascii", "abcdef", 3, "abc..."},
		{"cut inside rune", "ошибка", 3, "о..."},
		{"cut on rune boundary", "ошибка", 4, "ош..."},
		{"first rune too long", "日本", 2, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestHTTPExecutor_ErrorBodyIsValidUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("я", 150)))
	}))
	defer server.Close()

	job := &Job{Properties: map[string]string{"url": server.URL}}
	_, err := (&HTTPExecutor{}).Execute(context.Background(), job)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("error text is not valid UTF-8: %q", err.Error())
	}
}

func TestHTTPExecutor_MissingURL(t *testing.T) {
	_, err := (&HTTPExecutor{}).Execute(context.Background(), &Job{Properties: map[string]string{}})
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
}

func TestGetTimeout(t *testing.T) {
	tests := []struct {
		props map[string]string
		want  time.Duration
	}{
		{map[string]string{}, defaultHTTPTimeout},
		{map[string]string{"timeout_sec": "2"}, 2 * time.Second},
		{map[string]string{"timeout_sec": "0.5"}, 500 * time.Millisecond},
		{map[string]string{"timeout_sec": "-1"}, defaultHTTPTimeout},
		{map[string]string{"timeout_sec": "abc"}, defaultHTTPTimeout},
	}

	for _, tt := range tests {
		if got := getTimeout(tt.props); got != tt.want {
			t.Errorf("getTimeout(%v) = %v, want %v", tt.props, got, tt.want)
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"echo", "delay", "http", "template"} {
		if _, err := r.Get(name); err != nil {
			t.Errorf("expected executor %q: %v", name, err)
		}
	}

	if _, err := r.Get("unknown"); !errors.Is(err, ErrUnknownExecutor) {
		t.Errorf("expected ErrUnknownExecutor, got %v", err)
	}

	if len(r.Names()) != 4 {
		t.Errorf("expected 4 executors, got %v", r.Names())
	}
}

func TestTemplateExecutor(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		body    string
		want    string
		wantErr bool
	}{
		{"json body", `{{ range .Body }}{{ . }};{{ end }}`, `[1,2,3]`, "1;2;3;", false},
		{"plain body", `{{ upper .Body }}`, `abc`, "ABC", false},
		{"properties", `{{ .Properties.greeting }}, {{ default "world" .Body }}`, ``, "hello, world", false},
		{"json func", `{{ json .Body.items }}`, `{"items":["a","b"]}`, `["a","b"]`, false},
		{"parse error", `{{ .Body`, `x`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{
				Properties: map[string]string{PropertyTemplate: tt.tmpl, "greeting": "hello"},
				Body:       []byte(tt.body),
			}
			result, err := (&TemplateExecutor{}).Execute(context.Background(), job)
			if tt.wantErr {
				if !errors.Is(err, ErrTemplate) {
					t.Errorf("expected ErrTemplate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, result)
			}
		})
	}
}

func TestTemplateExecutor_MissingTemplate(t *testing.T) {
	_, err := (&TemplateExecutor{}).Execute(context.Background(), &Job{Properties: map[string]string{}})
	if !errors.Is(err, ErrTemplate) {
		t.Errorf("expected ErrTemplate, got %v", err)
	}
}

func TestMiner_TemplateTask(t *testing.T) {
	m := newTestMiner(t, Config{Executors: NewRegistry()})
	req := newRequest("template", 1)
	req.Properties[PropertyTemplate] = `{{ .ID }}`

	a, resp := m.Spawn(context.Background(), req)
	if !resp.Accepted {
		t.Fatalf("expected accepted, got %q", resp.Message)
	}
	waitDone(t, a)

	status := statusOf(t, m, req)
	if !status.IsSuccessful || string(status.Result) != req.ID.String() {
		t.Errorf("unexpected status: %+v", status)
	}
}
