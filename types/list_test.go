package types

import "testing"

func TestListGetSetOutOfRange(t *testing.T) {
	l := NewList("int", []Value{NewNumber(1), NewNumber(2), NewNumber(3)})

	if v, ok := l.Get(1); !ok || v.(NumberValue).Val != 2 {
		t.Fatalf("Get(1) = %v, %v", v, ok)
	}
	if _, ok := l.Get(-1); ok {
		t.Error("Get(-1) should fail")
	}
	if _, ok := l.Get(3); ok {
		t.Error("Get(len) should fail")
	}
	if !l.Set(0, NewNumber(9)) {
		t.Fatal("Set(0, ...) should succeed")
	}
	if v, _ := l.Get(0); v.(NumberValue).Val != 9 {
		t.Error("Set(0, 9) did not take effect")
	}
	if l.Set(10, NewNumber(0)) {
		t.Error("Set out of range should fail")
	}
}

func TestListIsReferenceShared(t *testing.T) {
	l := NewList("int", []Value{NewNumber(1)})
	alias := l
	alias.Push(NewNumber(2))

	if l.Len() != 2 {
		t.Errorf("expected mutation through alias to be visible, got len %d", l.Len())
	}
}

func TestListTruthyEmpty(t *testing.T) {
	if NewEmptyList("int").Truthy() {
		t.Error("empty list should not be truthy")
	}
	if !NewList("int", []Value{NewNumber(0)}).Truthy() {
		t.Error("non-empty list should be truthy even if its sole element is falsy")
	}
}
