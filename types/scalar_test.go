package types

import "testing"

func TestBooleanTruthy(t *testing.T) {
	if !True.Truthy() {
		t.Error("True should be truthy")
	}
	if False.Truthy() {
		t.Error("False should not be truthy")
	}
	if NewBoolean(true).String() != "true" {
		t.Error("NewBoolean(true).String() should be \"true\"")
	}
	if NewBoolean(false).String() != "false" {
		t.Error("NewBoolean(false).String() should be \"false\"")
	}
}

func TestNumberTruthy(t *testing.T) {
	tests := []struct {
		val    float64
		truthy bool
	}{
		{0, false},
		{1, true},
		{-1, true},
		{0.5, true},
	}
	for _, tt := range tests {
		n := NewNumber(tt.val)
		if n.Truthy() != tt.truthy {
			t.Errorf("NewNumber(%v).Truthy() = %v, want %v", tt.val, n.Truthy(), tt.truthy)
		}
	}
}

func TestStringTruthy(t *testing.T) {
	if NewString("").Truthy() {
		t.Error("empty string should not be truthy")
	}
	if !NewString("x").Truthy() {
		t.Error("non-empty string should be truthy")
	}
}

func TestSingletonsFalsy(t *testing.T) {
	for name, v := range map[string]Value{"Void": Void, "Nil": Nil, "Unknown": Unknown} {
		if v.Truthy() {
			t.Errorf("%s should be falsy", name)
		}
	}
}
