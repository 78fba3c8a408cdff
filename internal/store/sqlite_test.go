package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"dispatchd/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRequest(id string, worker int) *model.Request {
	return &model.Request{
		ID:       id,
		Payload:  map[string]any{"data": "payload for " + id},
		WorkerID: worker,
		Status:   model.StatusCreated,
		// Round to milliseconds so the value survives the DATETIME column.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestCreateAndGetRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := map[string]any{
		"data":   "test data",
		"count":  float64(42),
		"active": true,
		"nested": map[string]any{"items": []any{"a", "b"}},
	}
	req := testRequest("req-1", 2)
	req.Payload = payload

	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	got, err := s.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}

	if got.ID != "req-1" {
		t.Errorf("ID = %q, want %q", got.ID, "req-1")
	}
	if got.WorkerID != 2 {
		t.Errorf("WorkerID = %d, want 2", got.WorkerID)
	}
	if got.Status != model.StatusCreated {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCreated)
	}
	if got.Result != nil {
		t.Errorf("Result = %+v, want nil", got.Result)
	}
	if !reflect.DeepEqual(got.Payload, payload) {
		t.Errorf("Payload = %#v, want %#v", got.Payload, payload)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRequest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRequest error = %v, want ErrNotFound", err)
	}
}

func TestCreateRequestDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRequest(ctx, testRequest("req-1", 0)); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	err := s.CreateRequest(ctx, testRequest("req-1", 1))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("CreateRequest error = %v, want ErrDuplicateID", err)
	}

	// The first record must be untouched.
	got, err := s.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.WorkerID != 0 {
		t.Errorf("WorkerID = %d, want 0", got.WorkerID)
	}
}

func TestSetResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := testRequest("req-1", 1)
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	res := &model.Result{
		ExecutionID: model.NewExecutionID(),
		WorkerID:    1,
		DurationMS:  120,
		ProcessedAt: &now,
		Payload:     req.Payload,
		Message:     "successfully processed request req-1",
	}
	if err := s.SetResult(ctx, "req-1", res); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	got, err := s.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCompleted)
	}
	if got.Result == nil {
		t.Fatal("Result is nil after SetResult")
	}
	if got.Result.DurationMS != 120 {
		t.Errorf("DurationMS = %d, want 120", got.Result.DurationMS)
	}
	if !reflect.DeepEqual(got.Result.Payload, req.Payload) {
		t.Errorf("echoed payload = %#v, want %#v", got.Result.Payload, req.Payload)
	}
}

func TestSetResultFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRequest(ctx, testRequest("req-1", 0)); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := s.SetResult(ctx, "req-1", &model.Result{Error: "unit of work exploded"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	got, err := s.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusFailed)
	}
	if got.Result.Error != "unit of work exploded" {
		t.Errorf("Result.Error = %q, want %q", got.Result.Error, "unit of work exploded")
	}
}

func TestSetResultOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRequest(ctx, testRequest("req-1", 0)); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := s.SetResult(ctx, "req-1", &model.Result{Message: "first"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	err := s.SetResult(ctx, "req-1", &model.Result{Message: "second"})
	if !errors.Is(err, ErrResultExists) {
		t.Errorf("second SetResult error = %v, want ErrResultExists", err)
	}

	got, _ := s.GetRequest(ctx, "req-1")
	if got.Result.Message != "first" {
		t.Errorf("Result.Message = %q, want %q", got.Result.Message, "first")
	}
}

func TestSetResultNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.SetResult(context.Background(), "missing", &model.Result{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetResult error = %v, want ErrNotFound", err)
	}
}

func TestListRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		req := testRequest(string(rune('a'+i)), i%3)
		req.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateRequest(ctx, req); err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
	}

	requests, total, err := s.ListRequests(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(requests) != 2 {
		t.Fatalf("len(requests) = %d, want 2", len(requests))
	}
	// Newest first.
	if requests[0].ID != "e" || requests[1].ID != "d" {
		t.Errorf("ids = [%q %q], want [e d]", requests[0].ID, requests[1].ID)
	}
}

func TestListRequestsEmpty(t *testing.T) {
	s := newTestStore(t)

	requests, total, err := s.ListRequests(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if total != 0 || len(requests) != 0 {
		t.Errorf("total = %d, len = %d, want 0, 0", total, len(requests))
	}
}

func TestGetRequestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := s.CreateRequest(ctx, testRequest(id, 0)); err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
	}
	if err := s.SetResult(ctx, "a", &model.Result{DurationMS: 100, Message: "ok"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if err := s.SetResult(ctx, "b", &model.Result{DurationMS: 200, Message: "ok"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if err := s.SetResult(ctx, "c", &model.Result{Error: "boom"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	stats, err := s.GetRequestStats(ctx)
	if err != nil {
		t.Fatalf("GetRequestStats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed = %d, want 2", stats.CountByStatus[model.StatusCompleted])
	}
	if stats.CountByStatus[model.StatusFailed] != 1 {
		t.Errorf("failed = %d, want 1", stats.CountByStatus[model.StatusFailed])
	}
	if stats.CountByStatus[model.StatusCreated] != 1 {
		t.Errorf("created = %d, want 1", stats.CountByStatus[model.StatusCreated])
	}
	if stats.AvgDurationMS != 150 {
		t.Errorf("AvgDurationMS = %f, want 150", stats.AvgDurationMS)
	}
}

func TestGetRequestStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetRequestStats(context.Background())
	if err != nil {
		t.Fatalf("GetRequestStats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("AvgDurationMS = %f, want 0", stats.AvgDurationMS)
	}
}
