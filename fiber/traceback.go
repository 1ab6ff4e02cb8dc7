package fiber

import (
	"fmt"
	"strings"

	"brainvm/types"
)

// FormatTraceback renders a fiber's frame stack and terminal error into
// a human-readable traceback, newest frame first, for onFiberFault
// diagnostics. Adapted from the teacher's verb-call traceback, which
// walked ActivationFrame{VerbLoc,Verb,This,LineNumber}; here a frame
// only knows its funcId and program counter, so the format follows
// suit.
func FormatTraceback(frames []Frame, err types.ErrValue) []string {
	if len(frames) == 0 {
		return []string{
			fmt.Sprintf("(no frames): %s", err.Message),
			"(end of traceback)",
		}
	}

	lines := make([]string, 0, len(frames)+1)
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if i == len(frames)-1 {
			lines = append(lines, fmt.Sprintf("func %d, pc %d: %s", f.FuncID, f.PC, err.Message))
		} else {
			lines = append(lines, fmt.Sprintf("... called from func %d, pc %d", f.FuncID, f.PC))
		}
	}
	lines = append(lines, "(end of traceback)")
	return lines
}

// FormatTracebackString joins FormatTraceback's lines with newlines.
func FormatTracebackString(frames []Frame, err types.ErrValue) string {
	return strings.Join(FormatTraceback(frames, err), "\n")
}
