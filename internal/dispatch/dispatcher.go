// Package dispatch implements the admission and execution core: two-tier
// duplicate detection (lookaside cache, then durable store), round-robin
// worker assignment, and asynchronous execution of accepted requests.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatchd/internal/cache"
	"dispatchd/internal/model"
	"dispatchd/internal/store"
	"dispatchd/internal/worker"
)

// Duplicate detection sources.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// DuplicateError reports that an identifier was already admitted. Source
// names the tier that detected the duplicate.
type DuplicateError struct {
	ID        string
	WorkerID  int
	CreatedAt time.Time
	Source    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("request %s already admitted (worker %d, source %s)", e.ID, e.WorkerID, e.Source)
}

// Dispatcher orchestrates request admission and schedules background
// execution. All collaborators are injected; the dispatcher owns no global
// state.
type Dispatcher struct {
	store  store.Store
	cache  *cache.Cache
	pool   *worker.Pool
	work   WorkFunc
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a dispatcher. work is invoked once per accepted request, off
// the admission path.
func New(s store.Store, c *cache.Cache, p *worker.Pool, work WorkFunc, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  s,
		cache:  c,
		pool:   p,
		work:   work,
		logger: logger,
	}
}

// Submit runs the admission protocol for one identifier. On acceptance it
// returns the created record after scheduling background execution; the
// caller never waits on the work itself. A resubmitted identifier yields a
// *DuplicateError carrying the existing record's worker and creation time.
//
// Admission is deliberately not wrapped in a cross-tier lock: two first-seen
// submissions for the same identifier may both reach the insert, and the
// store's uniqueness constraint picks the winner. The loser is reported as a
// duplicate, not a server error.
func (d *Dispatcher) Submit(ctx context.Context, id string, payload map[string]any) (*model.Request, error) {
	if e, ok := d.cache.Get(id); ok {
		duplicateHits.WithLabelValues(SourceCache).Inc()
		return nil, &DuplicateError{ID: id, WorkerID: e.WorkerID, CreatedAt: e.CreatedAt, Source: SourceCache}
	}

	existing, err := d.store.GetRequest(ctx, id)
	if err == nil {
		// Self-heal the cache from the authoritative record.
		d.cache.Put(id, cache.EntryFor(existing))
		duplicateHits.WithLabelValues(SourceDatabase).Inc()
		return nil, &DuplicateError{ID: id, WorkerID: existing.WorkerID, CreatedAt: existing.CreatedAt, Source: SourceDatabase}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up request: %w", err)
	}

	req := &model.Request{
		ID:        id,
		Payload:   payload,
		WorkerID:  d.pool.Next(),
		Status:    model.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			// Lost the create race; the winner's row is authoritative.
			winner, gerr := d.store.GetRequest(ctx, id)
			if gerr != nil {
				return nil, fmt.Errorf("look up request after duplicate insert: %w", gerr)
			}
			d.cache.Put(id, cache.EntryFor(winner))
			duplicateHits.WithLabelValues(SourceDatabase).Inc()
			return nil, &DuplicateError{ID: id, WorkerID: winner.WorkerID, CreatedAt: winner.CreatedAt, Source: SourceDatabase}
		}
		// Nothing was persisted, so the cache stays unpopulated.
		return nil, fmt.Errorf("create request: %w", err)
	}

	d.cache.Put(id, cache.EntryFor(req))
	submissionsTotal.Inc()

	// Execute on a copy so the goroutine never races with the caller's view
	// of the returned record.
	reqCopy := *req
	d.wg.Go(func() {
		d.execute(&reqCopy)
	})

	return req, nil
}

// Wait blocks until all in-flight executions complete.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// execute runs one request through the created→running→completed/failed
// state machine. The worker slot is freed on every path, including when the
// result write itself fails.
func (d *Dispatcher) execute(req *model.Request) {
	d.pool.MarkBusy(req.WorkerID)
	executionsInFlight.Inc()
	defer func() {
		d.pool.MarkFree(req.WorkerID)
		executionsInFlight.Dec()
	}()

	req.Status = model.StatusRunning
	d.cache.Put(req.ID, cache.EntryFor(req))

	d.logger.Info("worker started request", "worker_id", req.WorkerID, "request_id", req.ID)

	start := time.Now()
	msg, err := d.work(context.Background(), req)
	elapsed := time.Since(start)

	var res *model.Result
	if err != nil {
		res = &model.Result{Error: err.Error()}
	} else {
		now := time.Now().UTC()
		res = &model.Result{
			ExecutionID: model.NewExecutionID(),
			WorkerID:    req.WorkerID,
			DurationMS:  elapsed.Milliseconds(),
			ProcessedAt: &now,
			Payload:     req.Payload,
			Message:     msg,
		}
	}

	executionDuration.Observe(elapsed.Seconds())
	executionsTotal.WithLabelValues(model.DeriveStatus(res)).Inc()

	// The original caller already got an acceptance, so a failed result
	// write is only logged; the slot is still freed by the deferred cleanup.
	if perr := d.store.SetResult(context.Background(), req.ID, res); perr != nil {
		d.logger.Error("persist result", "request_id", req.ID, "error", perr)
	}

	req.Result = res
	req.Status = model.DeriveStatus(res)
	d.cache.Put(req.ID, cache.EntryFor(req))

	if err != nil {
		d.logger.Error("worker failed request", "worker_id", req.WorkerID, "request_id", req.ID, "error", err)
		return
	}
	d.logger.Info("worker completed request", "worker_id", req.WorkerID, "request_id", req.ID, "duration_ms", elapsed.Milliseconds())
}
