package dispatch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"dispatchd/internal/model"
)

// WorkFunc is the opaque unit of work invoked for an accepted request. It
// returns a human-readable completion message; the dispatcher does not
// interpret payload semantics. Once scheduled it runs to completion or
// failure with no cancellation or timeout.
type WorkFunc func(ctx context.Context, req *model.Request) (string, error)

// SimulatedWork returns a WorkFunc that sleeps for a random duration in
// [min, max], standing in for real work.
func SimulatedWork(min, max time.Duration) WorkFunc {
	return func(_ context.Context, req *model.Request) (string, error) {
		d := min
		if max > min {
			d += rand.N(max - min)
		}
		time.Sleep(d)
		return fmt.Sprintf("successfully processed request %s", req.ID), nil
	}
}
