package types

// ExecutionContext is the per-fiber object the host provides and the VM
// consumes for variable storage and a handful of domain hooks. The VM
// never assumes a particular scoping strategy beyond these methods.
type ExecutionContext interface {
	// GetVariable resolves name through plain variable storage.
	// ok is false when the variable is absent (LOAD_VAR then pushes Nil).
	GetVariable(name string) (val Value, ok bool)
	// SetVariable writes a value into plain variable storage.
	SetVariable(name string, val Value)
	// ClearVariable removes a variable binding.
	ClearVariable(name string)

	// FiberID is written by the scheduler on spawn.
	FiberID() uint64
	SetFiberID(id uint64)

	// CurrentCallSiteID is written by the interpreter before every
	// host call instruction.
	SetCurrentCallSiteID(id int32)
	CurrentCallSiteID() int32

	// Time and CurrentTick are informational clocks host functions may
	// read; the VM never writes either of them.
	Time() int64
	CurrentTick() int64
}

// VariableResolver is an optional extension of ExecutionContext for
// hosts that need a custom scoping chain (e.g. lexical closures) instead
// of flat variable storage. When a context implements it, LOAD_VAR and
// STORE_VAR prefer ResolveVariable/SetResolvedVariable over
// GetVariable/SetVariable.
type VariableResolver interface {
	ResolveVariable(name string) (val Value, ok bool)
	SetResolvedVariable(name string, val Value)
}

// RuleBinder is an optional extension for hosts that associate host-call
// side effects with a surface-language "rule". The interpreter refreshes
// this binding immediately before every host call, keyed by the funcId
// of the script function making the call, when the context implements it.
type RuleBinder interface {
	BindRule(funcID int32)
}

// LoadVariable resolves a variable using the custom resolution chain
// when the context provides one, falling back to plain GetVariable.
func LoadVariable(ctx ExecutionContext, name string) (Value, bool) {
	if r, ok := ctx.(VariableResolver); ok {
		if v, found := r.ResolveVariable(name); found {
			return v, true
		}
		return nil, false
	}
	return ctx.GetVariable(name)
}

// StoreVariable writes a variable using the custom resolution chain
// when the context provides one, falling back to plain SetVariable.
func StoreVariable(ctx ExecutionContext, name string, val Value) {
	if r, ok := ctx.(VariableResolver); ok {
		r.SetResolvedVariable(name, val)
		return
	}
	ctx.SetVariable(name, val)
}
