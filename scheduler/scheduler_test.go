package scheduler

import (
	"testing"

	"brainvm/fiber"
	"brainvm/handle"
	"brainvm/hostfunc"
	"brainvm/types"
	"brainvm/vm"
)

type testCtx struct {
	vars    map[string]types.Value
	fiberID uint64
}

func newTestCtx() *testCtx { return &testCtx{vars: map[string]types.Value{}} }

func (c *testCtx) GetVariable(name string) (types.Value, bool) { v, ok := c.vars[name]; return v, ok }
func (c *testCtx) SetVariable(name string, val types.Value)    { c.vars[name] = val }
func (c *testCtx) ClearVariable(name string)                   { delete(c.vars, name) }
func (c *testCtx) FiberID() uint64                              { return c.fiberID }
func (c *testCtx) SetFiberID(id uint64)                         { c.fiberID = id }
func (c *testCtx) SetCurrentCallSiteID(int32)                   {}
func (c *testCtx) CurrentCallSiteID() int32                     { return 0 }
func (c *testCtx) Time() int64                                  { return 0 }
func (c *testCtx) CurrentTick() int64                           { return 0 }

func simpleProgram() *vm.Program {
	return &vm.Program{
		Version:   vm.BYTECODE_VERSION,
		Constants: []types.Value{types.NewNumber(1)},
		Functions: []vm.FunctionBytecode{
			{Name: "main", NumParams: 0, Code: []vm.Instr{
				{Op: vm.PUSH_CONST, A: 0},
				{Op: vm.RET},
			}},
		},
		EntryPoint: 0,
	}
}

func newScheduler(program *vm.Program) (*Scheduler, *handle.Table, *hostfunc.Registry) {
	handles := handle.NewTable(0)
	hosts := hostfunc.NewRegistry()
	interp := vm.New(program, handles, hosts, nil)
	return New(interp, handles, DefaultConfig, fiber.DefaultLimits), handles, hosts
}

func TestSpawnRejectsArgcMismatch(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	if _, err := sched.Spawn(0, 1, newTestCtx()); err == nil {
		t.Error("Spawn with a mismatched argc should fail")
	}
}

func TestSpawnRejectsInvalidFuncID(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	if _, err := sched.Spawn(99, 0, newTestCtx()); err == nil {
		t.Error("Spawn with an out-of-range funcId should fail")
	}
}

func TestSpawnAndTickRunsToCompletion(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	f, err := sched.Spawn(0, 0, newTestCtx())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	executed, err := sched.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if executed != 1 {
		t.Errorf("Tick executed %d fibers, want 1", executed)
	}
	if f.State() != fiber.DONE {
		t.Errorf("fiber state = %s, want DONE", f.State())
	}
}

func TestGetUnknownFiber(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	if _, ok := sched.Get(999); ok {
		t.Error("Get on an unknown fiber id should report false")
	}
}

func TestCancelTerminalFiberIsNoop(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	f, _ := sched.Spawn(0, 0, newTestCtx())
	sched.Tick()
	if f.State() != fiber.DONE {
		t.Fatalf("precondition: expected fiber to be DONE, got %s", f.State())
	}
	if err := sched.Cancel(f.ID); err != nil {
		t.Errorf("Cancel on a terminal fiber should be a no-op, got %v", err)
	}
	if f.State() != fiber.DONE {
		t.Errorf("Cancel should not move a terminal fiber out of its state, got %s", f.State())
	}
}

func asyncProgram() *vm.Program {
	return &vm.Program{
		Version: vm.BYTECODE_VERSION,
		Functions: []vm.FunctionBytecode{
			{Name: "main", NumParams: 0, Code: []vm.Instr{
				{Op: vm.HOST_CALL_ARGS_ASYNC, A: 0, B: 0, C: 0},
				{Op: vm.AWAIT},
				{Op: vm.RET},
			}},
		},
		EntryPoint: 0,
	}
}

func TestCancelWaitingFiberDetachesFromHandle(t *testing.T) {
	sched, handles, hosts := newScheduler(asyncProgram())
	var handleID uint32
	hosts.RegisterAsync("never", func(ctx types.ExecutionContext, args types.MapValue, id uint32) {
		handleID = id
	})
	f, err := sched.Spawn(0, 0, newTestCtx())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	sched.Tick()
	if f.State() != fiber.WAITING {
		t.Fatalf("precondition: expected WAITING, got %s", f.State())
	}

	if err := sched.Cancel(f.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.State() != fiber.CANCELLED {
		t.Errorf("fiber state after Cancel = %s, want CANCELLED", f.State())
	}

	// Resolving the handle afterward must not resurrect the cancelled
	// fiber: it was removed from the handle's waiter set at cancel time.
	if err := handles.Resolve(handleID, types.Void); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if f.State() != fiber.CANCELLED {
		t.Errorf("fiber state after a late handle resolution = %s, want CANCELLED", f.State())
	}
}

func TestOnHandleCompletedResumesWaiter(t *testing.T) {
	sched, handles, hosts := newScheduler(asyncProgram())
	var handleID uint32
	hosts.RegisterAsync("fetch", func(ctx types.ExecutionContext, args types.MapValue, id uint32) {
		handleID = id
	})
	f, _ := sched.Spawn(0, 0, newTestCtx())
	sched.Tick()
	if f.State() != fiber.WAITING {
		t.Fatalf("precondition: expected WAITING, got %s", f.State())
	}

	if err := handles.Resolve(handleID, types.NewNumber(7)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if f.State() != fiber.RUNNABLE {
		t.Fatalf("resolving the awaited handle should make the fiber RUNNABLE again, got %s", f.State())
	}

	sched.Tick()
	if f.State() != fiber.DONE {
		t.Errorf("fiber state = %s, want DONE", f.State())
	}
}

func TestGCRemovesOnlyTerminalFibers(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	done, _ := sched.Spawn(0, 0, newTestCtx())
	sched.Tick()
	if done.State() != fiber.DONE {
		t.Fatalf("precondition: expected DONE, got %s", done.State())
	}

	removed := sched.GC()
	if removed != 1 {
		t.Errorf("GC() = %d, want 1", removed)
	}
	if _, ok := sched.Get(done.ID); ok {
		t.Error("a DONE fiber must not survive GC")
	}
}

func TestTracebackOnFault(t *testing.T) {
	program := &vm.Program{
		Version:   vm.BYTECODE_VERSION,
		Constants: []types.Value{types.NewString("boom")},
		Functions: []vm.FunctionBytecode{
			{Name: "main", NumParams: 0, Code: []vm.Instr{
				{Op: vm.PUSH_CONST, A: 0},
				{Op: vm.THROW},
				{Op: vm.RET},
			}},
		},
		EntryPoint: 0,
	}
	sched, _, _ := newScheduler(program)
	f, _ := sched.Spawn(0, 0, newTestCtx())
	sched.Tick()
	if f.State() != fiber.FAULT {
		t.Fatalf("precondition: expected FAULT, got %s", f.State())
	}

	tb, ok := sched.Traceback(f.ID)
	if !ok {
		t.Fatal("Traceback should succeed for a faulted fiber with a recorded error")
	}
	if tb == "" {
		t.Error("Traceback text should not be empty")
	}
}

func TestTracebackUnknownFiber(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	if _, ok := sched.Traceback(999); ok {
		t.Error("Traceback for an unknown fiber should report false")
	}
}

func TestStatsReportsCountsAndHandles(t *testing.T) {
	sched, _, _ := newScheduler(simpleProgram())
	sched.Spawn(0, 0, newTestCtx())
	sched.Spawn(0, 0, newTestCtx())
	sched.Tick()

	stats := sched.Stats()
	if stats.Total != 2 {
		t.Errorf("Stats().Total = %d, want 2", stats.Total)
	}
	if stats.ByState[fiber.DONE] != 2 {
		t.Errorf("Stats().ByState[DONE] = %d, want 2", stats.ByState[fiber.DONE])
	}
	if stats.LiveHandles != 0 {
		t.Errorf("Stats().LiveHandles = %d, want 0", stats.LiveHandles)
	}
}
