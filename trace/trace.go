// Package trace provides execution tracing for the VM: fiber lifecycle
// transitions, handle completions, host calls, and exceptions. It
// keeps the teacher's filter+writer shape (a global tracer, pattern
// filters, fmt.Fprintf lines to an io.Writer), retargeted at this VM's
// own event vocabulary instead of MOO verb calls.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"brainvm/types"
)

// Tracer writes filtered trace lines to an io.Writer.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// Global tracer instance, installed by Init.
var globalTracer *Tracer

// Init installs the global tracer. filters are glob patterns matched
// against a trace event's subject (a host function name, "fiber:N", or
// "handle:N");
// an empty filter set traces everything. A nil writer defaults to
// os.Stderr.
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled reports whether the global tracer is installed and active.
func IsEnabled() bool {
	if globalTracer == nil {
		return false
	}
	return globalTracer.enabled
}

func (t *Tracer) matches(subject string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, subject); matched {
			return true
		}
	}
	return false
}

// FiberSpawn logs a fiber being spawned at a function's entry point.
func (t *Tracer) FiberSpawn(fiberID uint64, funcID int32) {
	subject := fmt.Sprintf("fiber:%d", fiberID)
	if !t.enabled || !t.matches(subject) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] SPAWN fiber=%d func=%d\n", fiberID, funcID)
}

// FiberStateChange logs a fiber lifecycle transition.
func (t *Tracer) FiberStateChange(fiberID uint64, from, to fmt.Stringer) {
	subject := fmt.Sprintf("fiber:%d", fiberID)
	if !t.enabled || !t.matches(subject) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] STATE fiber=%d %s -> %s\n", fiberID, from, to)
}

// HostCall logs a host function invocation.
func (t *Tracer) HostCall(fiberID uint64, name string, async bool) {
	if !t.enabled || !t.matches(name) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kind := "sync"
	if async {
		kind = "async"
	}
	fmt.Fprintf(t.writer, "[TRACE] HOST_CALL fiber=%d %s (%s)\n", fiberID, name, kind)
}

// HandleComplete logs a handle settling to a terminal state.
func (t *Tracer) HandleComplete(handleID uint32, state fmt.Stringer, waiterCount int) {
	subject := fmt.Sprintf("handle:%d", handleID)
	if !t.enabled || !t.matches(subject) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] HANDLE_COMPLETE handle=%d state=%s waiters=%d\n", handleID, state, waiterCount)
}

// Exception logs a fiber throwing an exception.
func (t *Tracer) Exception(fiberID uint64, funcID int32, pc int32, ev types.ErrValue) {
	subject := fmt.Sprintf("fiber:%d", fiberID)
	if !t.enabled || !t.matches(subject) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] EXCEPTION fiber=%d func=%d pc=%d %s\n", fiberID, funcID, pc, ev.String())
}

// Global convenience functions, mirroring the teacher's package-level
// forwarders so callers needn't thread a *Tracer through every layer.

func FiberSpawn(fiberID uint64, funcID int32) {
	if globalTracer != nil {
		globalTracer.FiberSpawn(fiberID, funcID)
	}
}

func FiberStateChange(fiberID uint64, from, to fmt.Stringer) {
	if globalTracer != nil {
		globalTracer.FiberStateChange(fiberID, from, to)
	}
}

func HostCall(fiberID uint64, name string, async bool) {
	if globalTracer != nil {
		globalTracer.HostCall(fiberID, name, async)
	}
}

func HandleComplete(handleID uint32, state fmt.Stringer, waiterCount int) {
	if globalTracer != nil {
		globalTracer.HandleComplete(handleID, state, waiterCount)
	}
}

func Exception(fiberID uint64, funcID int32, pc int32, ev types.ErrValue) {
	if globalTracer != nil {
		globalTracer.Exception(fiberID, funcID, pc, ev)
	}
}
