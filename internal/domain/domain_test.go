package domain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validRequest() TaskInitRequest {
	return TaskInitRequest{
		RequestHeader:  RequestHeader{ID: uuid.New(), APIKey: "key"},
		MaxRunningTime: 5,
		Properties:     map[string]string{"alg": "apriori"},
	}
}

// --- Validate Tests ---

func TestTaskInitRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *TaskInitRequest)
		wantErr bool
	}{
		{"valid", func(r *TaskInitRequest) {}, false},
		{"empty body allowed", func(r *TaskInitRequest) { r.Body = nil }, false},
		{"nil properties allowed", func(r *TaskInitRequest) { r.Properties = nil }, false},
		{"nil id", func(r *TaskInitRequest) { r.ID = uuid.Nil }, true},
		{"empty api key", func(r *TaskInitRequest) { r.APIKey = "" }, true},
		{"zero running time", func(r *TaskInitRequest) { r.MaxRunningTime = 0 }, true},
		{"negative running time", func(r *TaskInitRequest) { r.MaxRunningTime = -1 }, true},
		{"max running time at limit", func(r *TaskInitRequest) { r.MaxRunningTime = MaxRunningTimeLimit }, false},
		{"max running time above limit", func(r *TaskInitRequest) { r.MaxRunningTime = MaxRunningTimeLimit + 1 }, true},
		{"empty property key", func(r *TaskInitRequest) { r.Properties[""] = "x" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTaskInitRequest_Clone(t *testing.T) {
	req := validRequest()
	req.Body = []byte{1, 2, 3}

	c := req.Clone()
	c.Properties["alg"] = "fpgrowth"
	c.Body[0] = 9

	if req.Properties["alg"] != "apriori" {
		t.Error("clone should not share properties")
	}
	if req.Body[0] != 1 {
		t.Error("clone should not share body")
	}
}

// --- Record Tests ---

func TestNewRecord_Running(t *testing.T) {
	req := validRequest()
	now := time.Now()

	rec := NewRecord(req, now, 5*time.Minute)

	if rec.Status() != TaskStatusRunning {
		t.Errorf("expected RUNNING, got %s", rec.Status())
	}
	if !rec.Deadline.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("unexpected deadline %v", rec.Deadline)
	}

	// Изменение запроса не влияет на запись
	req.Properties["alg"] = "other"
	if rec.Properties["alg"] != "apriori" {
		t.Error("record should copy properties")
	}

	resp := rec.Snapshot().StatusResponse()
	if !resp.IsActive || resp.IsCompleted || resp.IsSuccessful {
		t.Errorf("unexpected flags for running task: %+v", resp)
	}
	if resp.Result == nil || len(resp.Result) != 0 {
		t.Errorf("result should be empty, got %v", resp.Result)
	}
}

func TestRecord_Succeed(t *testing.T) {
	rec := NewRecord(validRequest(), time.Now(), time.Minute)

	if !rec.Succeed([]byte{1, 2, 3}, time.Now()) {
		t.Fatal("first transition should win")
	}

	resp := rec.Snapshot().StatusResponse()
	if !resp.IsActive || !resp.IsCompleted || !resp.IsSuccessful {
		t.Errorf("unexpected flags: %+v", resp)
	}
	if string(resp.Result) != string([]byte{1, 2, 3}) {
		t.Errorf("unexpected result %v", resp.Result)
	}
	if resp.Message != "" {
		t.Errorf("message should be empty, got %q", resp.Message)
	}

	// Ответ — копия
	resp.Result[0] = 42
	if rec.Snapshot().Result[0] != 1 {
		t.Error("status response should not expose record result")
	}
}

func TestRecord_Fail(t *testing.T) {
	rec := NewRecord(validRequest(), time.Now(), time.Minute)

	if !rec.Fail("invalid dataset", time.Now()) {
		t.Fatal("first transition should win")
	}

	resp := rec.Snapshot().StatusResponse()
	if !resp.IsActive || !resp.IsCompleted || resp.IsSuccessful {
		t.Errorf("unexpected flags: %+v", resp)
	}
	if resp.Message != "invalid dataset" {
		t.Errorf("expected message, got %q", resp.Message)
	}
	if len(resp.Result) != 0 {
		t.Errorf("result should be empty, got %v", resp.Result)
	}
}

func TestRecord_TerminalIsFinal(t *testing.T) {
	rec := NewRecord(validRequest(), time.Now(), time.Minute)

	rec.Fail(TimeoutMessage, time.Now())

	if rec.Succeed([]byte("late"), time.Now()) {
		t.Error("succeed after fail should be a no-op")
	}
	if rec.Fail("again", time.Now()) {
		t.Error("second fail should be a no-op")
	}

	snap := rec.Snapshot()
	if snap.Status != TaskStatusFailed || snap.Message != TimeoutMessage {
		t.Errorf("state changed after terminal transition: %+v", snap)
	}
}

func TestRecord_ConcurrentTransitions(t *testing.T) {
	rec := NewRecord(validRequest(), time.Now(), time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if rec.Succeed([]byte{1}, time.Now()) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if rec.Fail("boom", time.Now()) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning transition, got %d", wins)
	}
	if !rec.IsFinished() {
		t.Error("record should be terminal")
	}
}

func TestSnapshot_Duration(t *testing.T) {
	start := time.Now()
	rec := NewRecord(validRequest(), start, time.Minute)

	if rec.Snapshot().Duration() != 0 {
		t.Error("running task should have zero duration")
	}

	rec.Succeed(nil, start.Add(2*time.Second))
	if got := rec.Snapshot().Duration(); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}
}

// --- Status Tests ---

func TestNotFoundResponse(t *testing.T) {
	resp := NotFoundResponse()
	if resp.IsActive || resp.IsCompleted || resp.IsSuccessful {
		t.Errorf("unexpected flags: %+v", resp)
	}
	if resp.Status() != TaskStatusNotFound {
		t.Errorf("expected NOT_FOUND, got %s", resp.Status())
	}
}

func TestTaskStatusResponse_Status(t *testing.T) {
	tests := []struct {
		resp TaskStatusResponse
		want TaskStatus
	}{
		{TaskStatusResponse{}, TaskStatusNotFound},
		{TaskStatusResponse{IsActive: true}, TaskStatusRunning},
		{TaskStatusResponse{IsActive: true, IsCompleted: true}, TaskStatusFailed},
		{TaskStatusResponse{IsActive: true, IsCompleted: true, IsSuccessful: true}, TaskStatusSucceeded},
	}

	for _, tt := range tests {
		if got := tt.resp.Status(); got != tt.want {
			t.Errorf("%+v: expected %s, got %s", tt.resp, tt.want, got)
		}
	}
}

func TestTaskStatus_IsActive(t *testing.T) {
	if TaskStatusNotFound.IsActive() {
		t.Error("NOT_FOUND should not be active")
	}
	for _, s := range []TaskStatus{TaskStatusRunning, TaskStatusFailed, TaskStatusSucceeded} {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	if ParseTaskStatus("garbage") != TaskStatusNotFound {
		t.Error("unknown status should parse as NOT_FOUND")
	}
}
