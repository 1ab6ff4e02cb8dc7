package vm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"brainvm/fiber"
	"brainvm/handle"
	"brainvm/hostfunc"
	"brainvm/trace"
	"brainvm/types"
)

// Status is what a single runFiber call reports back to the scheduler
// (spec §4.4, §4.5).
type Status int

const (
	YIELDED Status = iota
	WAITING
	DONE
	FAULT
)

func (s Status) String() string {
	switch s {
	case YIELDED:
		return "YIELDED"
	case WAITING:
		return "WAITING"
	case DONE:
		return "DONE"
	case FAULT:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// errYield is an internal sentinel dispatch returns for the explicit
// YIELD opcode, distinguishing "stop now, budget not exhausted" from
// budget-driven yielding, and from any genuine instruction error.
var errYield = errors.New("vm: yield")

// Interpreter drives fibers against one verified Program, consulting
// the host function registry and type registry the host supplied.
// It holds no per-fiber state of its own — everything mutable lives on
// the fiber.Fiber being run, so one Interpreter safely drives many
// fibers in turn (spec §5: single-threaded, cooperative).
type Interpreter struct {
	Program *Program
	Handles *handle.Table
	Hosts   *hostfunc.Registry
	Types   *types.TypeRegistry
}

func New(program *Program, handles *handle.Table, hosts *hostfunc.Registry, reg *types.TypeRegistry) *Interpreter {
	return &Interpreter{Program: program, Handles: handles, Hosts: hosts, Types: reg}
}

func statusForState(s fiber.State) Status {
	switch s {
	case fiber.WAITING:
		return WAITING
	case fiber.DONE:
		return DONE
	default:
		// FAULT and CANCELLED both end the fiber's involvement in this
		// tick; CANCELLED is driven by the scheduler between ticks and
		// should never be observed mid-runFiber, but is mapped
		// defensively rather than panicking.
		return FAULT
	}
}

// RunFiber executes instructions of f until it suspends, completes,
// faults, or exhausts its instruction budget (spec §4.5).
func (it *Interpreter) RunFiber(f *fiber.Fiber) (Status, error) {
	if f.State() != fiber.RUNNABLE {
		return FAULT, fmt.Errorf("vm: RunFiber called on fiber %d in state %s, want RUNNABLE", f.ID, f.State())
	}
	if f.InstrBudget() <= 0 {
		return FAULT, fmt.Errorf("vm: RunFiber called on fiber %d with non-positive budget", f.ID)
	}
	f.LastRunAt = time.Now()

	for {
		if st := f.State(); st != fiber.RUNNABLE {
			return statusForState(st), nil
		}
		if f.InstrBudget() <= 0 {
			return YIELDED, nil
		}
		f.DecrementBudget()

		if f.PendingInjectedThrow() {
			f.SetPendingInjectedThrow(false)
			ev := f.LastError()
			if ev == nil {
				return FAULT, fmt.Errorf("vm: fiber %d has pendingInjectedThrow set with no lastError", f.ID)
			}
			if err := it.throwValue(f, *ev); err != nil {
				return FAULT, err
			}
			continue
		}

		frame, err := f.TopFrame()
		if err != nil {
			return FAULT, err
		}
		fn, err := it.functionFor(frame.FuncID)
		if err != nil {
			return FAULT, err
		}
		ip := int(frame.PC)
		if ip < 0 || ip >= len(fn.Code) {
			return FAULT, fmt.Errorf("vm: fiber %d: pc %d out of bounds in func %d (len %d)", f.ID, ip, frame.FuncID, len(fn.Code))
		}
		instr := fn.Code[ip]

		derr := it.dispatch(f, frame, fn, instr)
		if derr == nil {
			continue
		}
		if derr == errYield {
			return YIELDED, nil
		}
		ev := types.NewErr(types.ScriptError, derr.Error()).WithSite(types.Site{FuncID: int(frame.FuncID), PC: ip})
		if threwErr := it.throwValue(f, ev); threwErr != nil {
			return FAULT, threwErr
		}
	}
}

func (it *Interpreter) functionFor(funcID int32) (*FunctionBytecode, error) {
	if int(funcID) < 0 || int(funcID) >= len(it.Program.Functions) {
		return nil, fmt.Errorf("vm: invalid funcId %d", funcID)
	}
	return &it.Program.Functions[funcID], nil
}

// throwValue implements exception unwinding (spec §4.2's THROW
// semantics, shared by the THROW opcode, AWAIT's rejected/cancelled
// branches, and the outer loop's generic error materialization).
// Any error it returns is itself a fatal engine-corruption condition,
// not a script-level exception.
func (it *Interpreter) throwValue(f *fiber.Fiber, ev types.ErrValue) error {
	f.SetAwait(nil)
	f.SetLastError(&ev)

	if trace.IsEnabled() {
		site := ev.Site
		funcID, pc := int32(-1), int32(-1)
		if site != nil {
			funcID, pc = int32(site.FuncID), int32(site.PC)
		}
		trace.Exception(f.ID, funcID, pc, ev)
	}

	h, ok := f.TopHandler()
	if !ok {
		if err := f.Transition(fiber.FAULT); err != nil {
			return err
		}
		trace.FiberStateChange(f.ID, fiber.RUNNABLE, fiber.FAULT)
		return nil
	}
	if err := f.TruncateFrames(h.FrameDepth); err != nil {
		return err
	}
	if err := f.TruncateStack(h.StackHeight); err != nil {
		return err
	}
	if err := f.Push(ev); err != nil {
		return err
	}
	frame, err := f.TopFrame()
	if err != nil {
		return err
	}
	frame.PC = h.CatchPC
	return nil
}

// dispatch executes exactly one instruction. A non-nil, non-errYield
// return is an internal/script-level failure the caller materializes
// into a thrown ScriptError; THROW and AWAIT's failure branches call
// throwValue themselves since they carry an already-structured error
// value with its own tag.
func (it *Interpreter) dispatch(f *fiber.Fiber, frame *fiber.Frame, fn *FunctionBytecode, instr Instr) error {
	ip := int(frame.PC)

	switch instr.Op {

	case PUSH_CONST:
		idx := int(instr.A)
		if idx < 0 || idx >= len(it.Program.Constants) {
			return fmt.Errorf("PUSH_CONST: constant index %d out of range", idx)
		}
		if err := f.Push(it.Program.Constants[idx]); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case POP:
		if _, err := f.Pop(); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case DUP:
		v, err := f.Top()
		if err != nil {
			return err
		}
		if err := f.Push(v); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case SWAP:
		a, err := f.Pop()
		if err != nil {
			return err
		}
		b, err := f.Pop()
		if err != nil {
			return err
		}
		if err := f.Push(a); err != nil {
			return err
		}
		if err := f.Push(b); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case LOAD_VAR:
		name, err := it.variableName(instr.A)
		if err != nil {
			return err
		}
		if v, ok := types.LoadVariable(f.Context, name); ok {
			if err := f.Push(v); err != nil {
				return err
			}
		} else if err := f.Push(types.Nil); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case STORE_VAR:
		name, err := it.variableName(instr.A)
		if err != nil {
			return err
		}
		val, err := f.Pop()
		if err != nil {
			return err
		}
		copied, err := types.DeepCopy(val, it.Types, f.Context)
		if err != nil {
			// spec's Open Question #3: a failing snapshotNative hook
			// propagates as an ordinary HostError, not an engine fault.
			if threwErr := it.fail(f, types.HostError, "STORE_VAR: %s", err); threwErr != nil {
				return threwErr
			}
			return nil
		}
		types.StoreVariable(f.Context, name, copied)
		frame.PC = int32(ip + 1)

	case JMP:
		target := ip + int(instr.A)
		if target < 0 || target > len(fn.Code) {
			return fmt.Errorf("JMP: target %d out of bounds", target)
		}
		frame.PC = int32(target)

	case JMP_IF_FALSE:
		v, err := f.Pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			target := ip + int(instr.A)
			if target < 0 || target > len(fn.Code) {
				return fmt.Errorf("JMP_IF_FALSE: target %d out of bounds", target)
			}
			frame.PC = int32(target)
		} else {
			frame.PC = int32(ip + 1)
		}

	case JMP_IF_TRUE:
		v, err := f.Pop()
		if err != nil {
			return err
		}
		if v.Truthy() {
			target := ip + int(instr.A)
			if target < 0 || target > len(fn.Code) {
				return fmt.Errorf("JMP_IF_TRUE: target %d out of bounds", target)
			}
			frame.PC = int32(target)
		} else {
			frame.PC = int32(ip + 1)
		}

	case CALL:
		argc := int(instr.B)
		if argc < 0 || len(f.VStack) < argc {
			return fmt.Errorf("CALL: insufficient arguments on stack (need %d, have %d)", argc, len(f.VStack))
		}
		base := len(f.VStack) - argc
		frame.PC = int32(ip + 1)
		if err := f.PushFrame(fiber.Frame{FuncID: instr.A, PC: 0, Base: base}); err != nil {
			return err
		}

	case RET:
		retVal, err := f.Pop()
		if err != nil {
			return err
		}
		popped, err := f.PopFrame()
		if err != nil {
			return err
		}
		if err := f.TruncateStack(popped.Base); err != nil {
			return err
		}
		if err := f.Push(retVal); err != nil {
			return err
		}
		if len(f.Frames) == 0 {
			if err := f.Transition(fiber.DONE); err != nil {
				return err
			}
			trace.FiberStateChange(f.ID, fiber.RUNNABLE, fiber.DONE)
		}

	case HOST_CALL:
		return it.dispatchHostCall(f, frame, instr, false)

	case HOST_CALL_ARGS:
		return it.dispatchHostCallArgs(f, frame, instr, false)

	case HOST_CALL_ASYNC:
		return it.dispatchHostCall(f, frame, instr, true)

	case HOST_CALL_ARGS_ASYNC:
		return it.dispatchHostCallArgs(f, frame, instr, true)

	case AWAIT:
		return it.dispatchAwait(f, frame)

	case YIELD:
		frame.PC = int32(ip + 1)
		return errYield

	case TRY:
		target := ip + int(instr.A)
		if target < 0 || target > len(fn.Code) {
			return fmt.Errorf("TRY: catch target %d out of bounds", target)
		}
		if err := f.PushHandler(fiber.Handler{
			CatchPC:     int32(target),
			StackHeight: len(f.VStack),
			FrameDepth:  len(f.Frames),
		}); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case END_TRY:
		if _, err := f.PopHandler(); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case THROW:
		val, err := f.Pop()
		if err != nil {
			return err
		}
		var ev types.ErrValue
		if existing, ok := val.(types.ErrValue); ok {
			ev = existing
		} else {
			ev = types.NewErr(types.ScriptError, "uncaught thrown value").WithDetail(val)
		}
		if ev.Site == nil {
			ev = ev.WithSite(types.Site{FuncID: int(frame.FuncID), PC: ip})
		}
		return it.throwValue(f, ev)

	case WHEN_START, DO_START, DO_END:
		frame.PC = int32(ip + 1)

	case WHEN_END:
		v, err := f.Pop()
		if err != nil {
			return err
		}
		if v.Truthy() {
			frame.PC = int32(ip + 1)
		} else {
			target := ip + int(instr.A)
			if target < 0 || target > len(fn.Code) {
				return fmt.Errorf("WHEN_END: skip target %d out of bounds", target)
			}
			frame.PC = int32(target)
		}

	case LIST_NEW:
		if err := f.Push(types.NewEmptyList("")); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case LIST_PUSH:
		item, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		lst, ok := v.(types.ListValue)
		if !ok {
			return fmt.Errorf("LIST_PUSH: top of stack is not a List")
		}
		if err := f.Push(lst.Push(item)); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case LIST_GET:
		idxVal, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		lst, ok := v.(types.ListValue)
		if !ok {
			return fmt.Errorf("LIST_GET: not a List")
		}
		idx, ok := idxVal.(types.NumberValue)
		if !ok {
			return fmt.Errorf("LIST_GET: index is not a Number")
		}
		if elem, found := lst.Get(int(math.Floor(idx.Val))); found {
			if err := f.Push(elem); err != nil {
				return err
			}
		} else if err := f.Push(types.Nil); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case LIST_SET:
		val, err := f.Pop()
		if err != nil {
			return err
		}
		idxVal, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		lst, ok := v.(types.ListValue)
		if !ok {
			return fmt.Errorf("LIST_SET: not a List")
		}
		idx, ok := idxVal.(types.NumberValue)
		if !ok {
			return fmt.Errorf("LIST_SET: index is not a Number")
		}
		if !lst.Set(int(math.Floor(idx.Val)), val) {
			return it.fail(f, types.ScriptError, "LIST_SET: index %v out of range", idx.Val)
		}
		if err := f.Push(lst); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case LIST_LEN:
		v, err := f.Pop()
		if err != nil {
			return err
		}
		lst, ok := v.(types.ListValue)
		if !ok {
			return fmt.Errorf("LIST_LEN: not a List")
		}
		if err := f.Push(types.NewNumber(float64(lst.Len()))); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case MAP_NEW:
		if err := f.Push(types.NewMap("")); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case MAP_SET:
		val, err := f.Pop()
		if err != nil {
			return err
		}
		key, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(types.MapValue)
		if !ok {
			return fmt.Errorf("MAP_SET: not a Map")
		}
		if !types.IsValidMapKey(key) {
			return it.fail(f, types.ScriptError, "MAP_SET: invalid key type %s", key.Type())
		}
		m.Set(key, val)
		if err := f.Push(m); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case MAP_GET:
		key, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(types.MapValue)
		if !ok {
			return fmt.Errorf("MAP_GET: not a Map")
		}
		if val, found := m.Get(key); found {
			if err := f.Push(val); err != nil {
				return err
			}
		} else if err := f.Push(types.Nil); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case MAP_HAS:
		key, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(types.MapValue)
		if !ok {
			return fmt.Errorf("MAP_HAS: not a Map")
		}
		if err := f.Push(types.NewBoolean(m.Has(key))); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case MAP_DELETE:
		key, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(types.MapValue)
		if !ok {
			return fmt.Errorf("MAP_DELETE: not a Map")
		}
		m.Delete(key)
		if err := f.Push(m); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case STRUCT_NEW:
		numFields := int(instr.A)
		if numFields < 0 || len(f.VStack) < numFields*2 {
			return fmt.Errorf("STRUCT_NEW: insufficient (name, value) pairs on stack")
		}
		fields := make(map[string]types.Value, numFields)
		for i := 0; i < numFields; i++ {
			val, err := f.Pop()
			if err != nil {
				return err
			}
			nameVal, err := f.Pop()
			if err != nil {
				return err
			}
			name, ok := nameVal.(types.StringValue)
			if !ok {
				return fmt.Errorf("STRUCT_NEW: field name is not a String")
			}
			fields[name.Val] = val
		}
		typeID := ""
		if instr.B >= 0 {
			idx := int(instr.B)
			if idx < 0 || idx >= len(it.Program.Constants) {
				return fmt.Errorf("STRUCT_NEW: type id constant index %d out of range", idx)
			}
			if s, ok := it.Program.Constants[idx].(types.StringValue); ok {
				typeID = s.Val
			}
		}
		if err := f.Push(types.NewStruct(typeID, fields)); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case STRUCT_GET:
		name, err := it.constantString(instr.A)
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		sv, ok := v.(types.StructValue)
		if !ok {
			return fmt.Errorf("STRUCT_GET: not a Struct")
		}
		if val, found := sv.GetField(name); found {
			if err := f.Push(val); err != nil {
				return err
			}
		} else if err := f.Push(types.Nil); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case STRUCT_SET:
		name, err := it.constantString(instr.A)
		if err != nil {
			return err
		}
		val, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		sv, ok := v.(types.StructValue)
		if !ok {
			return fmt.Errorf("STRUCT_SET: not a Struct")
		}
		sv.SetField(name, val)
		if err := f.Push(sv); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case GET_FIELD:
		nameVal, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		sv, ok := v.(types.StructValue)
		if !ok {
			return fmt.Errorf("GET_FIELD: not a Struct")
		}
		name, ok := nameVal.(types.StringValue)
		if !ok {
			return fmt.Errorf("GET_FIELD: field name is not a String")
		}
		val, found := it.getField(sv, name.Val, f.Context)
		if found {
			if err := f.Push(val); err != nil {
				return err
			}
		} else if err := f.Push(types.Nil); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)

	case SET_FIELD:
		val, err := f.Pop()
		if err != nil {
			return err
		}
		nameVal, err := f.Pop()
		if err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		sv, ok := v.(types.StructValue)
		if !ok {
			return fmt.Errorf("SET_FIELD: not a Struct")
		}
		name, ok := nameVal.(types.StringValue)
		if !ok {
			return fmt.Errorf("SET_FIELD: field name is not a String")
		}
		copied, err := types.DeepCopy(val, it.Types, f.Context)
		if err != nil {
			if threwErr := it.fail(f, types.HostError, "SET_FIELD: %s", err); threwErr != nil {
				return threwErr
			}
			return nil
		}
		it.setField(sv, name.Val, copied, f.Context)
		frame.PC = int32(ip + 1)

	default:
		return fmt.Errorf("unimplemented opcode %s", instr.Op)
	}

	return nil
}

func (it *Interpreter) variableName(idx int32) (string, error) {
	i := int(idx)
	if i < 0 || i >= len(it.Program.VariableNames) {
		return "", fmt.Errorf("variable index %d out of range", i)
	}
	return it.Program.VariableNames[i], nil
}

func (it *Interpreter) constantString(idx int32) (string, error) {
	i := int(idx)
	if i < 0 || i >= len(it.Program.Constants) {
		return "", fmt.Errorf("constant index %d out of range", i)
	}
	s, ok := it.Program.Constants[i].(types.StringValue)
	if !ok {
		return "", fmt.Errorf("constant %d is not a String", i)
	}
	return s.Val, nil
}

func (it *Interpreter) getField(sv types.StructValue, name string, ctx types.ExecutionContext) (types.Value, bool) {
	if it.Types == nil {
		return sv.GetField(name)
	}
	return it.Types.GetField(sv, name, ctx)
}

func (it *Interpreter) setField(sv types.StructValue, name string, val types.Value, ctx types.ExecutionContext) {
	if it.Types == nil {
		sv.SetField(name, val)
		return
	}
	it.Types.SetField(sv, name, val, ctx)
}

// fail raises a script-visible error through the normal exception
// path, as an alternative to returning a plain Go error for failures
// that spec §4.2 calls out as entering the exception path directly
// (e.g. LIST_SET out of range) rather than being treated as engine
// corruption.
func (it *Interpreter) fail(f *fiber.Fiber, tag types.ErrorTag, format string, args ...interface{}) error {
	frame, err := f.TopFrame()
	ev := types.NewErr(tag, fmt.Sprintf(format, args...))
	if err == nil {
		ev = ev.WithSite(types.Site{FuncID: int(frame.FuncID), PC: int(frame.PC)})
	}
	return it.throwValue(f, ev)
}

// bindRule refreshes the context's host-facing rule association, if
// the context opts into it, before a host call is dispatched (spec
// §4.2: "the context's current rule ... is refreshed before the
// call"). Keyed by the calling script function, the only funcId space
// this VM shares with the host.
func bindRule(ctx types.ExecutionContext, callerFuncID int32) {
	if binder, ok := ctx.(types.RuleBinder); ok {
		binder.BindRule(callerFuncID)
	}
}

func (it *Interpreter) settleHostError(f *fiber.Fiber, err error) error {
	if ev, ok := err.(types.ErrValue); ok {
		return it.throwValue(f, ev)
	}
	return it.fail(f, types.HostError, "%s", err)
}

func (it *Interpreter) dispatchHostCall(f *fiber.Fiber, frame *fiber.Frame, instr Instr, async bool) error {
	ip := int(frame.PC)
	v, err := f.Pop()
	if err != nil {
		return err
	}
	argsMap, ok := v.(types.MapValue)
	if !ok {
		return fmt.Errorf("HOST_CALL: argument is not a Map")
	}
	return it.invokeHost(f, frame, instr.A, instr.C, argsMap, async, ip)
}

func (it *Interpreter) dispatchHostCallArgs(f *fiber.Fiber, frame *fiber.Frame, instr Instr, async bool) error {
	ip := int(frame.PC)
	n := int(instr.B)
	if n < 0 || len(f.VStack) < n {
		return fmt.Errorf("HOST_CALL_ARGS: insufficient values on stack (need %d)", n)
	}
	raw := make([]types.Value, n)
	for i := n - 1; i >= 0; i-- {
		val, err := f.Pop()
		if err != nil {
			return err
		}
		raw[i] = val
	}
	argsMap := types.NewMap("")
	for i, val := range raw {
		argsMap.Set(types.NewNumber(float64(i)), val)
	}
	return it.invokeHost(f, frame, instr.A, instr.C, argsMap, async, ip)
}

func (it *Interpreter) invokeHost(f *fiber.Fiber, frame *fiber.Frame, funcID, callSiteID int32, argsMap types.MapValue, async bool, ip int) error {
	ctx := f.Context
	ctx.SetCurrentCallSiteID(callSiteID)
	bindRule(ctx, frame.FuncID)

	if trace.IsEnabled() {
		name, ok := it.Hosts.NameFor(funcID)
		if !ok {
			name = fmt.Sprintf("host:%d", funcID)
		}
		trace.HostCall(f.ID, name, async)
	}

	if async {
		handleID, err := it.Handles.CreatePending()
		if err != nil {
			return err
		}
		if err := f.Push(types.NewHandle(handleID)); err != nil {
			return err
		}
		if err := it.Hosts.CallAsync(funcID, ctx, argsMap, handleID); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)
		return nil
	}

	if !it.Hosts.HasSync(funcID) {
		return fmt.Errorf("HOST_CALL: no synchronous host function registered for id %d", funcID)
	}
	result, err := it.Hosts.CallSync(funcID, ctx, argsMap)
	if err != nil {
		return it.settleHostError(f, err)
	}
	if err := f.Push(result); err != nil {
		return err
	}
	frame.PC = int32(ip + 1)
	return nil
}

func (it *Interpreter) dispatchAwait(f *fiber.Fiber, frame *fiber.Frame) error {
	ip := int(frame.PC)
	v, err := f.Pop()
	if err != nil {
		return err
	}
	hv, ok := v.(types.HandleValue)
	if !ok {
		return fmt.Errorf("AWAIT: not a Handle")
	}
	h, ok := it.Handles.Get(hv.ID)
	if !ok {
		return fmt.Errorf("AWAIT: unknown handle %d", hv.ID)
	}

	switch h.State {
	case handle.RESOLVED:
		if err := f.Push(h.Result); err != nil {
			return err
		}
		frame.PC = int32(ip + 1)
		return nil
	case handle.REJECTED, handle.CANCELLED:
		ev := types.NewErr(types.HostError, "handle rejected")
		if h.Err != nil {
			ev = *h.Err
		}
		return it.throwValue(f, ev)
	default: // PENDING
		record := fiber.AwaitRecord{
			ResumePC:    int32(ip + 1),
			StackHeight: len(f.VStack),
			FrameDepth:  len(f.Frames),
			HandleID:    hv.ID,
		}
		f.SetAwait(&record)
		if err := f.Transition(fiber.WAITING); err != nil {
			return err
		}
		trace.FiberStateChange(f.ID, fiber.RUNNABLE, fiber.WAITING)
		if err := it.Handles.AddWaiter(hv.ID, f.ID); err != nil {
			return err
		}
		return nil
	}
}

// ResumeFiberFromHandle implements the scheduler's resumption contract
// (spec §4.4). It is exported here because it touches interpreter/fiber
// internals the scheduler package otherwise has no need to know.
func (it *Interpreter) ResumeFiberFromHandle(f *fiber.Fiber, handleID uint32) error {
	await := f.Await()
	if f.State() != fiber.WAITING || await == nil || await.HandleID != handleID {
		return nil
	}
	h, ok := it.Handles.Get(handleID)
	if !ok {
		return fmt.Errorf("ResumeFiberFromHandle: unknown handle %d", handleID)
	}

	if err := f.TruncateFrames(await.FrameDepth); err != nil {
		return err
	}
	if err := f.TruncateStack(await.StackHeight); err != nil {
		return err
	}
	frame, err := f.TopFrame()
	if err != nil {
		return err
	}
	frame.PC = await.ResumePC
	f.SetAwait(nil)
	if err := f.Transition(fiber.RUNNABLE); err != nil {
		return err
	}
	trace.FiberStateChange(f.ID, fiber.WAITING, fiber.RUNNABLE)
	trace.HandleComplete(handleID, h.State, 0)

	switch h.State {
	case handle.RESOLVED:
		return f.Push(h.Result)
	default:
		ev := types.NewErr(types.HostError, "handle settled unsuccessfully")
		if h.Err != nil {
			ev = *h.Err
		}
		f.SetLastError(&ev)
		f.SetPendingInjectedThrow(true)
		return nil
	}
}
