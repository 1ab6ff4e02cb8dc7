package types

import "testing"

func TestStructFieldAccess(t *testing.T) {
	s := NewStruct("point", map[string]Value{"x": NewNumber(1)})

	if v, ok := s.GetField("x"); !ok || v.(NumberValue).Val != 1 {
		t.Fatalf("GetField(x) = %v, %v", v, ok)
	}
	if _, ok := s.GetField("y"); ok {
		t.Error("GetField(y) should fail for an absent field")
	}
	s.SetField("y", NewNumber(2))
	if v, ok := s.GetField("y"); !ok || v.(NumberValue).Val != 2 {
		t.Error("SetField should add a new field")
	}
}

func TestStructAlwaysTruthy(t *testing.T) {
	if !NewStruct("empty", nil).Truthy() {
		t.Error("a struct with no fields should still be truthy")
	}
}

func TestStructNativePayload(t *testing.T) {
	s := NewStruct("wrapped", nil)
	s.SetNative(42)
	if s.Native() != 42 {
		t.Error("SetNative/Native should round-trip the opaque payload")
	}
}

func TestEnumStringAndTruthy(t *testing.T) {
	e := NewEnum("Color", "RED")
	if e.String() != "Color.RED" {
		t.Errorf("String() = %q, want %q", e.String(), "Color.RED")
	}
	if !e.Truthy() {
		t.Error("enums are always truthy")
	}
}

func TestHandleValue(t *testing.T) {
	h := NewHandle(7)
	if h.String() != "handle#7" {
		t.Errorf("String() = %q, want %q", h.String(), "handle#7")
	}
	if !h.Truthy() {
		t.Error("handles are always truthy, even for a rejected/cancelled operation")
	}
}
