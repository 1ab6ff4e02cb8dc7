// Package conformance runs YAML-defined bytecode scenarios against the
// interpreter and scheduler, covering the spec's concrete scenarios
// (push/return, conditional jump, budget exhaustion, async await,
// try/throw, cancellation) plus whatever else a suite author adds.
// Keeps the teacher's schema/loader/runner split, retargeted from MOO
// expression/statement suites at raw bytecode programs.
package conformance

// Scenario represents one complete YAML scenario file.
type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Program     ProgramSpec  `yaml:"program"`
	Hosts       []HostSpec   `yaml:"hosts,omitempty"`
	Run         RunSpec      `yaml:"run"`
	Expect      ExpectSpec   `yaml:"expect"`
}

// ProgramSpec is the YAML-friendly mirror of vm.Program.
type ProgramSpec struct {
	Constants []interface{}  `yaml:"constants,omitempty"`
	Variables []string       `yaml:"variables,omitempty"`
	Functions []FunctionSpec `yaml:"functions"`
	Entry     int            `yaml:"entry"`
}

// FunctionSpec is the YAML-friendly mirror of vm.FunctionBytecode. Each
// entry in Code is [mnemonic, a, b, c] with a/b/c optional (default 0).
type FunctionSpec struct {
	Name      string          `yaml:"name,omitempty"`
	NumParams int             `yaml:"numParams,omitempty"`
	Code      [][]interface{} `yaml:"code"`
}

// HostSpec declares a fixed-behavior host function a scenario's program
// calls by name. Sync functions return Result (or reject with
// ErrorTag/ErrorMessage) immediately. Async functions settle
// immediately unless Pending is set, in which case a "settle" run
// action must resolve/reject them later by call order.
type HostSpec struct {
	Name         string      `yaml:"name"`
	Async        bool        `yaml:"async,omitempty"`
	Result       interface{} `yaml:"result,omitempty"`
	Reject       bool        `yaml:"reject,omitempty"`
	ErrorTag     string      `yaml:"errorTag,omitempty"`
	ErrorMessage string      `yaml:"errorMessage,omitempty"`
	Pending      bool        `yaml:"pending,omitempty"`
}

// RunSpec drives the scenario: how much budget the fiber gets per tick
// and the ordered sequence of scheduler actions to take.
type RunSpec struct {
	Budget  int      `yaml:"budget"`
	Actions []Action `yaml:"actions"`
}

// Action is a single scheduler-driving step. Exactly one field should
// be set per entry.
type Action struct {
	Tick    bool          `yaml:"tick,omitempty"`
	Cancel  bool          `yaml:"cancel,omitempty"`
	Settle  *SettleAction `yaml:"settle,omitempty"`
}

// SettleAction resolves or rejects the Nth pending async host call (in
// call order, zero-indexed) made by the scenario's fiber.
type SettleAction struct {
	Call         int         `yaml:"call"`
	Value        interface{} `yaml:"value,omitempty"`
	Reject       bool        `yaml:"reject,omitempty"`
	ErrorTag     string      `yaml:"errorTag,omitempty"`
	ErrorMessage string      `yaml:"errorMessage,omitempty"`
}

// ExpectSpec checks the scenario's final observable state. Any blank
// field is not checked.
type ExpectSpec struct {
	Status     string      `yaml:"status,omitempty"`     // DONE|YIELDED|WAITING|FAULT
	Value      interface{} `yaml:"value,omitempty"`      // compared against the fiber's top-of-stack/return value
	ErrorTag   string      `yaml:"errorTag,omitempty"`   // compared against the fiber's last error tag
	FiberState string      `yaml:"fiberState,omitempty"` // RUNNABLE|WAITING|DONE|FAULT|CANCELLED
}
