// Package handle implements the handle table: the lifecycle of
// asynchronous host-call operations that fibers can AWAIT (spec §4.3).
package handle

import (
	"fmt"
	"sync"

	"brainvm/types"
)

// State is a handle's position in its lifecycle. PENDING is the only
// non-terminal state; the other three are immutable once reached.
type State int

const (
	PENDING State = iota
	RESOLVED
	REJECTED
	CANCELLED
)

func (s State) String() string {
	switch s {
	case PENDING:
		return "PENDING"
	case RESOLVED:
		return "RESOLVED"
	case REJECTED:
		return "REJECTED"
	case CANCELLED:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func (s State) Terminal() bool { return s != PENDING }

// Handle is one entry in the table (spec §3, §4.3). Waiters is kept in
// registration order so completion fan-out processes them FIFO (spec
// §5: "Handle completion events process all waiters in the order they
// registered with the handle").
type Handle struct {
	ID      uint32
	State   State
	Result  types.Value
	Err     *types.ErrValue
	Waiters []uint64
}

// FatalError reports a capacity or consistency violation in the handle
// table — an engine-corruption condition per spec §7.
type FatalError struct{ Msg string }

func (e *FatalError) Error() string { return e.Msg }

func fatalf(format string, args ...interface{}) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// CompletedFunc is invoked whenever a handle transitions from PENDING
// to a terminal state; the scheduler subscribes to fan out to waiters.
type CompletedFunc func(id uint32)

// Table owns every handle in one VM instance.
type Table struct {
	mu         sync.Mutex
	handles    map[uint32]*Handle
	nextID     uint32
	maxHandles int
	listeners  []CompletedFunc
}

func NewTable(maxHandles int) *Table {
	return &Table{
		handles:    make(map[uint32]*Handle),
		nextID:     1,
		maxHandles: maxHandles,
	}
}

// OnCompleted registers a listener invoked (synchronously, under no
// lock) after a handle settles. Per spec §9, completion handlers only
// enqueue resumptions; they must not call back into the interpreter
// directly — that contract is the listener's responsibility, not this
// table's.
func (t *Table) OnCompleted(fn CompletedFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// CreatePending allocates a new PENDING handle. Fatal if the table is
// at capacity.
func (t *Table) CreatePending() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxHandles > 0 && len(t.handles) >= t.maxHandles {
		return 0, fatalf("handle table full (limit %d)", t.maxHandles)
	}
	id := t.nextID
	t.nextID++
	t.handles[id] = &Handle{ID: id, State: PENDING}
	return id, nil
}

func (t *Table) Get(id uint32) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func (t *Table) Delete(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles, id)
}

// AddWaiter registers fiberID as waiting on handle id.
func (t *Table) AddWaiter(id uint32, fiberID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return fatalf("AddWaiter: unknown handle %d", id)
	}
	for _, existing := range h.Waiters {
		if existing == fiberID {
			return nil
		}
	}
	h.Waiters = append(h.Waiters, fiberID)
	return nil
}

// RemoveWaiter deregisters fiberID, e.g. on cancellation of the fiber
// itself rather than the handle.
func (t *Table) RemoveWaiter(id uint32, fiberID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return
	}
	for i, existing := range h.Waiters {
		if existing == fiberID {
			h.Waiters = append(h.Waiters[:i], h.Waiters[i+1:]...)
			break
		}
	}
}

// settle transitions a PENDING handle to a terminal state and fires
// completion listeners. No-op if already terminal.
func (t *Table) settle(id uint32, newState State, result types.Value, errVal *types.ErrValue) error {
	t.mu.Lock()
	h, ok := t.handles[id]
	if !ok {
		t.mu.Unlock()
		return fatalf("settle: unknown handle %d", id)
	}
	if h.State.Terminal() {
		t.mu.Unlock()
		return nil
	}
	h.State = newState
	h.Result = result
	h.Err = errVal
	listeners := make([]CompletedFunc, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return nil
}

func (t *Table) Resolve(id uint32, value types.Value) error {
	return t.settle(id, RESOLVED, value, nil)
}

func (t *Table) Reject(id uint32, errVal types.ErrValue) error {
	return t.settle(id, REJECTED, nil, &errVal)
}

func (t *Table) Cancel(id uint32) error {
	cancelled := types.NewErr(types.Cancelled, "handle cancelled")
	return t.settle(id, CANCELLED, nil, &cancelled)
}

// DrainWaiters returns the fiber ids waiting on id in registration
// order, and clears the handle's waiter set (spec §4.4: "collect all
// waiters, clear the handle's waiter set").
func (t *Table) DrainWaiters(id uint32) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return nil
	}
	out := h.Waiters
	h.Waiters = nil
	return out
}

// GC removes every non-pending handle with no waiters and returns the
// count removed (spec §4.3).
func (t *Table) GC() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, h := range t.handles {
		if h.State.Terminal() && len(h.Waiters) == 0 {
			delete(t.handles, id)
			removed++
		}
	}
	return removed
}
