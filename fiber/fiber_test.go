package fiber

import (
	"testing"

	"brainvm/types"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{RUNNABLE, WAITING, true},
		{RUNNABLE, DONE, true},
		{RUNNABLE, FAULT, true},
		{RUNNABLE, CANCELLED, true},
		{WAITING, RUNNABLE, true},
		{WAITING, CANCELLED, true},
		{WAITING, FAULT, true},
		{WAITING, DONE, false},
		{DONE, RUNNABLE, false},
		{FAULT, RUNNABLE, false},
		{CANCELLED, WAITING, false},
	}
	for _, tt := range tests {
		f := &Fiber{state: tt.from}
		err := f.Transition(tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: expected success, got %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s -> %s: expected failure, got nil", tt.from, tt.to)
		}
	}
}

func TestTransitionToSameStateIsNoop(t *testing.T) {
	f := &Fiber{state: RUNNABLE}
	if err := f.Transition(RUNNABLE); err != nil {
		t.Errorf("transitioning to the same state should be a no-op, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	for s, want := range map[State]bool{
		RUNNABLE:  false,
		WAITING:   false,
		DONE:      true,
		FAULT:     true,
		CANCELLED: true,
	} {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestStackOverflowAndUnderflow(t *testing.T) {
	f := New(1, 0, nil, Limits{MaxFrameDepth: 4, MaxStackSize: 2, MaxHandlers: 2})

	if err := f.Push(types.NewNumber(1)); err != nil {
		t.Fatalf("first push should fit: %v", err)
	}
	if err := f.Push(types.NewNumber(2)); err != nil {
		t.Fatalf("second push should fit: %v", err)
	}
	if err := f.Push(types.NewNumber(3)); err == nil {
		t.Error("push beyond MaxStackSize should overflow")
	}

	if _, err := f.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if _, err := f.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if _, err := f.Pop(); err == nil {
		t.Error("pop on an empty stack should underflow")
	}
}

func TestFrameDepthLimit(t *testing.T) {
	f := New(1, 0, nil, Limits{MaxFrameDepth: 2, MaxStackSize: 16, MaxHandlers: 2})
	// New already pushes one frame; one more should fit, a third should not.
	if err := f.PushFrame(Frame{FuncID: 1}); err != nil {
		t.Fatalf("second frame should fit: %v", err)
	}
	if err := f.PushFrame(Frame{FuncID: 2}); err == nil {
		t.Error("push beyond MaxFrameDepth should overflow")
	}
}

func TestHandlerStack(t *testing.T) {
	f := New(1, 0, nil, DefaultLimits)
	if _, ok := f.TopHandler(); ok {
		t.Error("a fresh fiber should have no handler installed")
	}
	if err := f.PushHandler(Handler{CatchPC: 5, StackHeight: 0, FrameDepth: 1}); err != nil {
		t.Fatalf("PushHandler: %v", err)
	}
	h, ok := f.TopHandler()
	if !ok || h.CatchPC != 5 {
		t.Fatalf("TopHandler = %v, %v", h, ok)
	}
	popped, err := f.PopHandler()
	if err != nil || popped.CatchPC != 5 {
		t.Fatalf("PopHandler = %v, %v", popped, err)
	}
	if _, err := f.PopHandler(); err == nil {
		t.Error("pop on an empty handler stack should underflow")
	}
}

func TestDecrementBudget(t *testing.T) {
	f := New(1, 0, nil, DefaultLimits)
	f.SetInstrBudget(2)
	if got := f.DecrementBudget(); got != 1 {
		t.Errorf("DecrementBudget() = %d, want 1", got)
	}
	if got := f.DecrementBudget(); got != 0 {
		t.Errorf("DecrementBudget() = %d, want 0", got)
	}
}
