package types

import "strings"

// List is the backing storage for a ListValue, always held behind a
// pointer so every ListValue handle observes the same underlying
// elements — lists are reference-shared and mutated in place (spec
// §3), unlike the teacher's copy-on-write sliceList.
type List struct {
	TypeID string
	items  []Value
}

// ListValue is the script-visible handle to a List.
type ListValue struct {
	l *List
}

func NewList(typeID string, elements []Value) ListValue {
	if elements == nil {
		elements = []Value{}
	}
	return ListValue{l: &List{TypeID: typeID, items: elements}}
}

func NewEmptyList(typeID string) ListValue {
	return NewList(typeID, nil)
}

func (v ListValue) Type() TypeCode { return TypeList }

func (v ListValue) String() string {
	if len(v.l.items) == 0 {
		return "[]"
	}
	parts := make([]string, len(v.l.items))
	for i, e := range v.l.items {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Truthy: a list is truthy unless it is empty.
func (v ListValue) Truthy() bool { return len(v.l.items) > 0 }

func (v ListValue) Identity() *List { return v.l }

func (v ListValue) Len() int { return len(v.l.items) }

// Get returns the zero-based element at i, or (nil, false) if out of
// range. LIST_GET's index is floored by the caller before this call.
func (v ListValue) Get(i int) (Value, bool) {
	if i < 0 || i >= len(v.l.items) {
		return nil, false
	}
	return v.l.items[i], true
}

// Set mutates the element at i in place. Returns false if i is out of
// range (the caller raises a ScriptError in that case).
func (v ListValue) Set(i int, val Value) bool {
	if i < 0 || i >= len(v.l.items) {
		return false
	}
	v.l.items[i] = val
	return true
}

// Push appends val in place and returns the same ListValue handle.
func (v ListValue) Push(val Value) ListValue {
	v.l.items = append(v.l.items, val)
	return v
}

// Elements returns the live backing slice; callers must not retain a
// reference across further in-place mutation of this list.
func (v ListValue) Elements() []Value {
	return v.l.items
}
