package fiber

import (
	"strings"
	"testing"

	"brainvm/types"
)

func TestFormatTracebackNoFrames(t *testing.T) {
	err := types.NewErr(types.ScriptError, "boom")
	lines := FormatTraceback(nil, err)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines for an empty frame stack, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "boom") {
		t.Errorf("first line should mention the error message, got %q", lines[0])
	}
}

func TestFormatTracebackNewestFrameFirst(t *testing.T) {
	frames := []Frame{
		{FuncID: 0, PC: 1},
		{FuncID: 1, PC: 2},
		{FuncID: 2, PC: 3},
	}
	err := types.NewErr(types.ScriptError, "failure")
	lines := FormatTraceback(frames, err)

	if len(lines) != len(frames)+1 {
		t.Fatalf("expected %d lines, got %d: %v", len(frames)+1, len(lines), lines)
	}
	if !strings.Contains(lines[0], "func 2, pc 3") || !strings.Contains(lines[0], "failure") {
		t.Errorf("first line should describe the innermost frame with the error, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "func 1, pc 2") {
		t.Errorf("second line should describe the caller, got %q", lines[1])
	}
	if lines[len(lines)-1] != "(end of traceback)" {
		t.Errorf("last line should be the traceback terminator, got %q", lines[len(lines)-1])
	}
}

func TestFormatTracebackString(t *testing.T) {
	frames := []Frame{{FuncID: 0, PC: 0}}
	err := types.NewErr(types.ScriptError, "x")
	joined := FormatTracebackString(frames, err)
	if !strings.Contains(joined, "\n") {
		t.Error("FormatTracebackString should join lines with newlines")
	}
}
