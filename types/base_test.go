package types

import "testing"

func TestTypeCodeString(t *testing.T) {
	tests := []struct {
		code TypeCode
		name string
	}{
		{TypeUnknown, "Unknown"},
		{TypeVoid, "Void"},
		{TypeNil, "Nil"},
		{TypeBoolean, "Boolean"},
		{TypeNumber, "Number"},
		{TypeString, "String"},
		{TypeEnum, "Enum"},
		{TypeList, "List"},
		{TypeMap, "Map"},
		{TypeStruct, "Struct"},
		{TypeHandle, "Handle"},
		{TypeErr, "Err"},
		{TypeCode(999), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.String(); got != tt.name {
				t.Errorf("TypeCode(%d).String() = %q, want %q", tt.code, got, tt.name)
			}
		})
	}
}

func TestErrorTagString(t *testing.T) {
	tests := []struct {
		tag  ErrorTag
		name string
	}{
		{ScriptError, "ScriptError"},
		{HostError, "HostError"},
		{Cancelled, "Cancelled"},
		{ErrorTag(99), "UnknownError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.String(); got != tt.name {
				t.Errorf("ErrorTag(%d).String() = %q, want %q", tt.tag, got, tt.name)
			}
		})
	}
}
