// Package scheduler multiplexes fibers over ticks: a runnable queue,
// per-tick instruction budgets, and handle-completion fan-out (spec
// §4.4), grounded on the teacher's task.Manager/server.Scheduler shape
// with all connection/networking machinery stripped.
package scheduler

import (
	"fmt"
	"sync"

	"brainvm/fiber"
	"brainvm/handle"
	"brainvm/trace"
	"brainvm/types"
	"brainvm/vm"
)

// Config bounds one Scheduler instance (spec §5).
type Config struct {
	MaxFibersPerTick int
	DefaultBudget    int
	AutoGcHandles    bool
}

// DefaultConfig matches conservative values suitable for tests and the
// cmd/vmrun driver.
var DefaultConfig = Config{
	MaxFibersPerTick: 64,
	DefaultBudget:    10000,
	AutoGcHandles:    true,
}

// Scheduler owns every fiber spawned against one Interpreter/Program
// and the FIFO run queue that orders their execution. Fiber storage is
// delegated to fiber.Table rather than a scheduler-local map, the way
// the teacher split task storage (task.Manager) from dispatch
// (server.Scheduler) into separate collaborators.
type Scheduler struct {
	mu       sync.Mutex
	fibers   *fiber.Table
	runQueue []uint64

	config      Config
	interp      *vm.Interpreter
	handles     *handle.Table
	fiberLimits fiber.Limits
}

// New constructs a Scheduler and subscribes it to the handle table's
// completion events, per spec §4.4 ("Subscribes to the handle table's
// completed event at construction").
func New(interp *vm.Interpreter, handles *handle.Table, config Config, fiberLimits fiber.Limits) *Scheduler {
	s := &Scheduler{
		fibers:      fiber.NewTable(),
		config:      config,
		interp:      interp,
		handles:     handles,
		fiberLimits: fiberLimits,
	}
	handles.OnCompleted(s.onHandleCompleted)
	return s
}

// Spawn validates argc, creates a new RUNNABLE fiber at funcId's entry
// point, writes its id into the context, and enqueues it (spec §4.4).
// The caller is responsible for exposing argument values to the
// function through ctx — the VM never reads args off a stack at spawn
// time (SPEC_FULL.md §5, Open Question #1).
func (s *Scheduler) Spawn(funcID int32, argc int, ctx types.ExecutionContext) (*fiber.Fiber, error) {
	if int(funcID) < 0 || int(funcID) >= len(s.interp.Program.Functions) {
		return nil, fmt.Errorf("scheduler: invalid funcId %d", funcID)
	}
	fn := &s.interp.Program.Functions[funcID]
	if fn.NumParams != argc {
		return nil, fmt.Errorf("scheduler: spawn argc %d does not match func %d's numParams %d", argc, funcID, fn.NumParams)
	}

	id := s.fibers.NextID()
	ctx.SetFiberID(id)
	f := fiber.New(id, funcID, ctx, s.fiberLimits)
	s.fibers.Register(f)

	s.mu.Lock()
	s.runQueue = append(s.runQueue, id)
	s.mu.Unlock()

	trace.FiberSpawn(id, funcID)
	return f, nil
}

// Get returns a fiber by id.
func (s *Scheduler) Get(id uint64) (*fiber.Fiber, bool) {
	return s.fibers.Get(id)
}

// Traceback renders the given fiber's current frame stack and last
// error as a human-readable traceback, for fault diagnostics.
func (s *Scheduler) Traceback(id uint64) (string, bool) {
	f, ok := s.fibers.Get(id)
	if !ok {
		return "", false
	}
	lastErr := f.LastError()
	if lastErr == nil {
		return "", false
	}
	return fiber.FormatTracebackString(f.Frames, *lastErr), true
}

// popRunnable removes and returns up to n fiber ids from the front of
// the run queue, FIFO.
func (s *Scheduler) popRunnable(n int) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.runQueue) {
		n = len(s.runQueue)
	}
	ids := append([]uint64(nil), s.runQueue[:n]...)
	s.runQueue = s.runQueue[n:]
	return ids
}

func (s *Scheduler) enqueue(id uint64) {
	s.mu.Lock()
	s.runQueue = append(s.runQueue, id)
	s.mu.Unlock()
}

// Tick pops up to MaxFibersPerTick runnable fibers and runs each one
// instruction budget's worth (spec §4.4). Returns the number of fibers
// actually executed.
func (s *Scheduler) Tick() (int, error) {
	ids := s.popRunnable(s.config.MaxFibersPerTick)
	executed := 0

	for _, id := range ids {
		f, ok := s.Get(id)
		if !ok {
			continue
		}
		if f.State() != fiber.RUNNABLE {
			continue
		}
		f.SetInstrBudget(s.config.DefaultBudget)
		status, err := s.interp.RunFiber(f)
		if err != nil {
			return executed, fmt.Errorf("scheduler: fiber %d: %w", id, err)
		}
		executed++

		switch status {
		case vm.YIELDED:
			s.enqueue(id)
		case vm.WAITING:
			// the handle this fiber is awaiting will re-enqueue it.
		case vm.DONE, vm.FAULT:
			// terminal; left in place for inspection until GC.
		}
	}

	return executed, nil
}

// onHandleCompleted is the handle table's completed listener (spec
// §4.4): it collects every waiter of the settled handle, in
// registration order, and resumes each via the interpreter.
func (s *Scheduler) onHandleCompleted(handleID uint32) {
	if h, ok := s.handles.Get(handleID); ok {
		trace.HandleComplete(handleID, h.State, len(h.Waiters))
	}
	waiters := s.handles.DrainWaiters(handleID)
	for _, fiberID := range waiters {
		f, ok := s.Get(fiberID)
		if !ok {
			continue
		}
		if err := s.interp.ResumeFiberFromHandle(f, handleID); err != nil {
			// A resume failure is engine corruption; there is no
			// handler-stack to report it through since it happened
			// outside a runFiber call, so it faults the fiber directly.
			ev := types.NewErr(types.ScriptError, err.Error())
			f.SetLastError(&ev)
			_ = f.Transition(fiber.FAULT)
			continue
		}
		if f.State() == fiber.RUNNABLE {
			s.enqueue(fiberID)
		}
	}
	if s.config.AutoGcHandles {
		if h, ok := s.handles.Get(handleID); ok && len(h.Waiters) == 0 {
			s.handles.Delete(handleID)
		}
	}
}

// Cancel implements spec §4.4's cancel(fiberId): a no-op on a terminal
// fiber, otherwise detaches it from any handle it is waiting on and
// transitions it to CANCELLED.
func (s *Scheduler) Cancel(fiberID uint64) error {
	f, ok := s.Get(fiberID)
	if !ok {
		return fmt.Errorf("scheduler: unknown fiber %d", fiberID)
	}
	if f.State().Terminal() {
		return nil
	}
	if await := f.Await(); await != nil {
		s.handles.RemoveWaiter(await.HandleID, fiberID)
		f.SetAwait(nil)
	}
	from := f.State()
	if err := f.Transition(fiber.CANCELLED); err != nil {
		return err
	}
	trace.FiberStateChange(fiberID, from, fiber.CANCELLED)
	cancelled := types.NewErr(types.Cancelled, "fiber cancelled")
	f.SetLastError(&cancelled)
	return nil
}

// GC removes every terminal fiber and returns the count removed (spec
// §4.4's "the scheduler never removes a fiber it still considers
// runnable" — only DONE/FAULT/CANCELLED fibers are swept), grounded on
// task.Manager.CleanupCompletedTasks.
func (s *Scheduler) GC() int {
	return s.fibers.RemoveTerminal()
}

// Stats reports total fiber count, per-state counts, and the number of
// live handles, mirroring task.Manager.GetAllTasks/GetQueuedTasks and
// HandleTable.Size.
type Stats struct {
	Total       int
	ByState     map[fiber.State]int
	LiveHandles int
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Total:       s.fibers.Len(),
		ByState:     s.fibers.CountByState(),
		LiveHandles: s.handles.Size(),
	}
}
