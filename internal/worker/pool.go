package worker

import "sync"

// Slot status constants.
const (
	StatusFree = "free"
	StatusBusy = "busy"
)

// Pool hands out logical worker slots in strict round-robin order and tracks
// each slot's busy/free status. Status is advisory bookkeeping: a busy slot
// can still be assigned new work, and the status never gates admission.
type Pool struct {
	mu     sync.Mutex
	next   int
	status []string
}

// NewPool creates a pool with n slots, all free. n must be positive.
func NewPool(n int) *Pool {
	if n < 1 {
		panic("worker: pool size must be positive")
	}
	status := make([]string, n)
	for i := range status {
		status[i] = StatusFree
	}
	return &Pool{status: status}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return len(p.status)
}

// Next returns the next slot in round-robin order: the i-th call (1-indexed)
// returns (i-1) mod Size, regardless of caller concurrency.
func (p *Pool) Next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next = (p.next + 1) % len(p.status)
	return id
}

// MarkBusy flags the slot as busy. Out-of-range ids are ignored.
func (p *Pool) MarkBusy(id int) {
	p.setStatus(id, StatusBusy)
}

// MarkFree flags the slot as free. Out-of-range ids are ignored.
func (p *Pool) MarkFree(id int) {
	p.setStatus(id, StatusFree)
}

func (p *Pool) setStatus(id int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || id >= len(p.status) {
		return
	}
	p.status[id] = status
}

// Snapshot returns a copy of every slot's status, indexed by slot id.
func (p *Pool) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.status))
	copy(out, p.status)
	return out
}
