package fiber

import "sync"

// Table is the scheduler's owned mapping of fiberId -> *Fiber (spec
// §4.4). Unlike the teacher's task.Manager, this is not a process-wide
// singleton: one Table belongs to one scheduler instance.
type Table struct {
	mu        sync.RWMutex
	fibers    map[uint64]*Fiber
	nextID    uint64
}

func NewTable() *Table {
	return &Table{
		fibers: make(map[uint64]*Fiber),
		nextID: 1,
	}
}

// NextID returns a fresh, monotonically increasing fiber id.
func (t *Table) NextID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return id
}

func (t *Table) Register(f *Fiber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fibers[f.ID] = f
}

func (t *Table) Get(id uint64) (*Fiber, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.fibers[id]
	return f, ok
}

func (t *Table) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fibers, id)
}

// All returns every tracked fiber, for inspection and Stats().
func (t *Table) All() []*Fiber {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Fiber, 0, len(t.fibers))
	for _, f := range t.fibers {
		out = append(out, f)
	}
	return out
}

// RemoveTerminal deletes every fiber in a terminal state and returns
// how many were removed (spec §4.4 gc()).
func (t *Table) RemoveTerminal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, f := range t.fibers {
		if f.State().Terminal() {
			delete(t.fibers, id)
			removed++
		}
	}
	return removed
}

// CountByState returns the number of fibers in each lifecycle state.
func (t *Table) CountByState() map[State]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[State]int, 5)
	for _, f := range t.fibers {
		counts[f.State()]++
	}
	return counts
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fibers)
}
