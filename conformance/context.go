package conformance

import (
	"sync"

	"brainvm/types"
)

// scenarioContext is the minimal types.ExecutionContext a conformance
// scenario's fiber runs against: flat variable storage, no rule
// binding, a clock that only ever reports zero. Scenario authors that
// need variables populate them through STORE_VAR in the program itself,
// not through pre-seeded context state.
type scenarioContext struct {
	mu         sync.Mutex
	vars       map[string]types.Value
	fiberID    uint64
	callSiteID int32
}

func newScenarioContext() *scenarioContext {
	return &scenarioContext{vars: make(map[string]types.Value)}
}

func (c *scenarioContext) GetVariable(name string) (types.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vars[name]
	return v, ok
}

func (c *scenarioContext) SetVariable(name string, val types.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = val
}

func (c *scenarioContext) ClearVariable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vars, name)
}

func (c *scenarioContext) FiberID() uint64 { return c.fiberID }

func (c *scenarioContext) SetFiberID(id uint64) { c.fiberID = id }

func (c *scenarioContext) SetCurrentCallSiteID(id int32) { c.callSiteID = id }

func (c *scenarioContext) CurrentCallSiteID() int32 { return c.callSiteID }

func (c *scenarioContext) Time() int64 { return 0 }

func (c *scenarioContext) CurrentTick() int64 { return 0 }
