package conformance

import (
	"fmt"
	"strings"
	"sync"

	"brainvm/fiber"
	"brainvm/handle"
	"brainvm/hostfunc"
	"brainvm/scheduler"
	"brainvm/types"
	"brainvm/vm"
)

// Result is the outcome of running one scenario.
type Result struct {
	Scenario Scenario
	Passed   bool
	Error    error
}

// Runner wires up a fresh interpreter/scheduler/handle table per
// scenario and drives it through the scenario's action sequence.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run builds the scenario's program, spawns its single fiber, drives
// the action sequence, and checks the final expectation.
func (r *Runner) Run(s Scenario) Result {
	program, err := buildProgram(s.Program)
	if err != nil {
		return Result{Scenario: s, Error: fmt.Errorf("building program: %w", err)}
	}
	if err := vm.Verify(program); err != nil {
		return Result{Scenario: s, Error: fmt.Errorf("verification: %w", err)}
	}

	handles := handle.NewTable(0)
	hosts := hostfunc.NewRegistry()
	pending := &pendingAsyncCalls{}
	if err := registerHosts(hosts, handles, s.Hosts, pending); err != nil {
		return Result{Scenario: s, Error: fmt.Errorf("registering hosts: %w", err)}
	}

	interp := vm.New(program, handles, hosts, nil)
	sched := scheduler.New(interp, handles, scheduler.DefaultConfig, fiber.DefaultLimits)

	ctx := newScenarioContext()
	f, err := sched.Spawn(int32(s.Program.Entry), 0, ctx)
	if err != nil {
		return Result{Scenario: s, Error: fmt.Errorf("spawn: %w", err)}
	}

	budget := s.Run.Budget
	if budget <= 0 {
		budget = 10000
	}

	var lastStatus vm.Status
	for i, action := range s.Run.Actions {
		switch {
		case action.Tick:
			if f.State() != fiber.RUNNABLE {
				continue
			}
			f.SetInstrBudget(budget)
			status, err := interp.RunFiber(f)
			if err != nil {
				return Result{Scenario: s, Error: fmt.Errorf("action %d (tick): %w", i, err)}
			}
			lastStatus = status
		case action.Cancel:
			if err := sched.Cancel(f.ID); err != nil {
				return Result{Scenario: s, Error: fmt.Errorf("action %d (cancel): %w", i, err)}
			}
		case action.Settle != nil:
			if err := applySettle(handles, pending, *action.Settle); err != nil {
				return Result{Scenario: s, Error: fmt.Errorf("action %d (settle): %w", i, err)}
			}
		default:
			return Result{Scenario: s, Error: fmt.Errorf("action %d: no operation specified", i)}
		}
	}

	return checkExpectation(s, f, lastStatus)
}

// RunAll runs every scenario and returns one Result per scenario.
func (r *Runner) RunAll(scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))
	for i, s := range scenarios {
		results[i] = r.Run(s)
	}
	return results
}

func buildProgram(p ProgramSpec) (*vm.Program, error) {
	constants := make([]types.Value, len(p.Constants))
	for i, raw := range p.Constants {
		v, err := valueFromYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		constants[i] = v
	}

	functions := make([]vm.FunctionBytecode, len(p.Functions))
	for i, fn := range p.Functions {
		code := make([]vm.Instr, len(fn.Code))
		for j, row := range fn.Code {
			instr, err := instrFromYAML(row)
			if err != nil {
				return nil, fmt.Errorf("function %d instr %d: %w", i, j, err)
			}
			code[j] = instr
		}
		functions[i] = vm.FunctionBytecode{Name: fn.Name, NumParams: fn.NumParams, Code: code}
	}

	return &vm.Program{
		Version:       vm.BYTECODE_VERSION,
		Constants:     constants,
		VariableNames: append([]string(nil), p.Variables...),
		Functions:     functions,
		EntryPoint:    p.Entry,
	}, nil
}

func instrFromYAML(row []interface{}) (vm.Instr, error) {
	if len(row) == 0 {
		return vm.Instr{}, fmt.Errorf("empty instruction row")
	}
	name, ok := row[0].(string)
	if !ok {
		return vm.Instr{}, fmt.Errorf("opcode mnemonic must be a string, got %T", row[0])
	}
	op, ok := vm.ByName[strings.ToUpper(name)]
	if !ok {
		return vm.Instr{}, fmt.Errorf("unknown opcode mnemonic %q", name)
	}
	operands := [3]int32{}
	for i := 1; i < len(row) && i <= 3; i++ {
		n, err := toInt32(row[i])
		if err != nil {
			return vm.Instr{}, fmt.Errorf("operand %d: %w", i, err)
		}
		operands[i-1] = n
	}
	return vm.Instr{Op: op, A: operands[0], B: operands[1], C: operands[2]}, nil
}

func toInt32(v interface{}) (int32, error) {
	switch n := v.(type) {
	case int:
		return int32(n), nil
	case int32:
		return n, nil
	case int64:
		return int32(n), nil
	case float64:
		return int32(n), nil
	default:
		return 0, fmt.Errorf("expected integer operand, got %T", v)
	}
}

// pendingAsyncCalls records the handle id allocated by each async host
// call that was declared Pending, in call order, so a "settle" action
// can resolve/reject it by index.
type pendingAsyncCalls struct {
	mu  sync.Mutex
	ids []uint32
}

func (p *pendingAsyncCalls) record(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

func (p *pendingAsyncCalls) at(i int) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.ids) {
		return 0, false
	}
	return p.ids[i], true
}

func registerHosts(reg *hostfunc.Registry, handles *handle.Table, specs []HostSpec, pending *pendingAsyncCalls) error {
	for _, spec := range specs {
		spec := spec
		var resultVal types.Value
		if spec.Result != nil {
			v, err := valueFromYAML(spec.Result)
			if err != nil {
				return fmt.Errorf("host %q result: %w", spec.Name, err)
			}
			resultVal = v
		} else {
			resultVal = types.VoidValue{}
		}

		if !spec.Async {
			reg.RegisterSync(spec.Name, func(ctx types.ExecutionContext, args types.MapValue) (types.Value, error) {
				if spec.Reject {
					return nil, types.NewErr(tagFromString(spec.ErrorTag), spec.ErrorMessage)
				}
				return resultVal, nil
			})
			continue
		}

		reg.RegisterAsync(spec.Name, func(ctx types.ExecutionContext, args types.MapValue, handleID uint32) {
			if spec.Pending {
				pending.record(handleID)
				return
			}
			if spec.Reject {
				handles.Reject(handleID, types.NewErr(tagFromString(spec.ErrorTag), spec.ErrorMessage))
				return
			}
			handles.Resolve(handleID, resultVal)
		})
	}
	return nil
}

func applySettle(handles *handle.Table, pending *pendingAsyncCalls, action SettleAction) error {
	id, ok := pending.at(action.Call)
	if !ok {
		return fmt.Errorf("no pending async call #%d recorded", action.Call)
	}
	if action.Reject {
		return handles.Reject(id, types.NewErr(tagFromString(action.ErrorTag), action.ErrorMessage))
	}
	val, err := valueFromYAML(action.Value)
	if err != nil {
		return fmt.Errorf("settle value: %w", err)
	}
	return handles.Resolve(id, val)
}

func checkExpectation(s Scenario, f *fiber.Fiber, status vm.Status) Result {
	e := s.Expect

	if e.Status != "" && status.String() != e.Status {
		return Result{Scenario: s, Error: fmt.Errorf("expected status %s, got %s", e.Status, status)}
	}
	if e.FiberState != "" && f.State().String() != e.FiberState {
		return Result{Scenario: s, Error: fmt.Errorf("expected fiber state %s, got %s", e.FiberState, f.State())}
	}
	if e.ErrorTag != "" {
		last := f.LastError()
		if last == nil {
			return Result{Scenario: s, Error: fmt.Errorf("expected error tag %s, fiber has no last error", e.ErrorTag)}
		}
		if last.Tag.String() != e.ErrorTag {
			return Result{Scenario: s, Error: fmt.Errorf("expected error tag %s, got %s", e.ErrorTag, last.Tag)}
		}
	}
	if e.Value != nil {
		expected, err := valueFromYAML(e.Value)
		if err != nil {
			return Result{Scenario: s, Error: fmt.Errorf("expected value: %w", err)}
		}
		top, err := f.Top()
		if err != nil {
			return Result{Scenario: s, Error: fmt.Errorf("reading fiber result: %w", err)}
		}
		if !valuesEqual(expected, top) {
			return Result{Scenario: s, Error: fmt.Errorf("expected value %s, got %s", expected, top)}
		}
	}

	return Result{Scenario: s, Passed: true}
}

func tagFromString(s string) types.ErrorTag {
	switch strings.ToLower(s) {
	case "hosterror":
		return types.HostError
	case "cancelled", "canceled":
		return types.Cancelled
	default:
		return types.ScriptError
	}
}

func valuesEqual(a, b types.Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case types.NumberValue:
		return av.Val == b.(types.NumberValue).Val
	case types.BooleanValue:
		return av.Val == b.(types.BooleanValue).Val
	case types.StringValue:
		return av.Val == b.(types.StringValue).Val
	default:
		return a.String() == b.String()
	}
}

func valueFromYAML(v interface{}) (types.Value, error) {
	switch val := v.(type) {
	case nil:
		return types.NilValue{}, nil
	case bool:
		return types.NewBoolean(val), nil
	case int:
		return types.NewNumber(float64(val)), nil
	case int64:
		return types.NewNumber(float64(val)), nil
	case float64:
		return types.NewNumber(val), nil
	case string:
		return types.NewString(val), nil
	case []interface{}:
		elements := make([]types.Value, len(val))
		for i, elem := range val {
			ev, err := valueFromYAML(elem)
			if err != nil {
				return nil, err
			}
			elements[i] = ev
		}
		return types.NewList("", elements), nil
	case map[string]interface{}:
		m := types.NewMap("")
		for k, raw := range val {
			ev, err := valueFromYAML(raw)
			if err != nil {
				return nil, err
			}
			m.Set(types.NewString(k), ev)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported YAML scalar type %T", v)
	}
}
