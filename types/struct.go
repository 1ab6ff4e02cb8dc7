package types

import "strings"

// Struct is the backing storage for a StructValue. It is always
// referenced through a pointer so that two StructValue handles can
// observe the same fields until one of them is deep-copied by
// STORE_VAR/SET_FIELD.
type Struct struct {
	TypeID string
	Fields map[string]Value
	// Native is an opaque payload a host-defined type may attach;
	// the VM never interprets it, only carries it through copies via
	// the type registry's SnapshotNative hook.
	Native interface{}
}

// StructValue is the script-visible handle to a Struct.
type StructValue struct {
	s *Struct
}

// NewStruct builds a struct value with the given type id (empty for an
// anonymous struct) and fields. The fields map is taken by reference;
// callers should not mutate it after construction outside of STRUCT_SET
// / SET_FIELD.
func NewStruct(typeID string, fields map[string]Value) StructValue {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return StructValue{s: &Struct{TypeID: typeID, Fields: fields}}
}

func (v StructValue) Type() TypeCode { return TypeStruct }

func (v StructValue) String() string {
	var b strings.Builder
	b.WriteString(v.s.TypeID)
	b.WriteString("{")
	first := true
	for name, val := range v.s.Fields {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(val.String())
	}
	b.WriteString("}")
	return b.String()
}

// Truthy: all structs are truthy, regardless of field count.
func (v StructValue) Truthy() bool { return true }

func (v StructValue) TypeID() string { return v.s.TypeID }

func (v StructValue) Native() interface{} { return v.s.Native }

func (v StructValue) SetNative(n interface{}) { v.s.Native = n }

// Identity returns the backing pointer, used by DeepCopy's cycle guard
// and by hosts that need reference equality.
func (v StructValue) Identity() *Struct { return v.s }

func (v StructValue) GetField(name string) (Value, bool) {
	val, ok := v.s.Fields[name]
	return val, ok
}

func (v StructValue) SetField(name string, val Value) {
	v.s.Fields[name] = val
}

func (v StructValue) FieldNames() []string {
	names := make([]string, 0, len(v.s.Fields))
	for name := range v.s.Fields {
		names = append(names, name)
	}
	return names
}
