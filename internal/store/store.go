package store

import (
	"context"
	"errors"

	"dispatchd/internal/model"
)

// ErrNotFound is returned when no record exists for an identifier.
var ErrNotFound = errors.New("request not found")

// ErrDuplicateID is returned when creating a record whose identifier already
// exists. The uniqueness constraint in the store is the source of truth for
// first-seen races; callers translate this into a duplicate rejection.
var ErrDuplicateID = errors.New("request id already exists")

// ErrResultExists is returned when writing a result to a record that already
// has one. Results are written at most once.
var ErrResultExists = errors.New("result already set")

// RequestStats holds aggregate dispatch statistics.
type RequestStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for dispatched requests.
type Store interface {
	CreateRequest(ctx context.Context, r *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, limit, offset int) ([]*model.Request, int, error)
	SetResult(ctx context.Context, id string, res *model.Result) error
	GetRequestStats(ctx context.Context) (*RequestStats, error)
	Close() error
}
