package types

import (
	"strconv"
	"strings"
)

// Map is the backing storage for a MapValue, always held behind a
// pointer so every MapValue handle observes the same underlying
// entries — maps are reference-shared and mutated in place (spec §3),
// unlike the teacher's copy-on-write goMap. Keys are restricted to
// String or Number values (spec §4.2); insertion order is preserved.
type Map struct {
	TypeID string
	order  []string // key hashes, in insertion order
	keys   map[string]Value
	vals   map[string]Value
}

// MapValue is the script-visible handle to a Map.
type MapValue struct {
	m *Map
}

func NewMap(typeID string) MapValue {
	return MapValue{m: &Map{
		TypeID: typeID,
		keys:   make(map[string]Value),
		vals:   make(map[string]Value),
	}}
}

// mapKeyHash returns a stable hash for a valid map key (String or
// Number). Any other variant is hashed by its String() form under a
// separate "?:" prefix; it does not panic, and IsValidMapKey is the
// check that rejects such keys.
func mapKeyHash(key Value) string {
	switch k := key.(type) {
	case StringValue:
		return "s:" + k.Val
	case NumberValue:
		return "n:" + strconv.FormatFloat(k.Val, 'g', -1, 64)
	default:
		return "?:" + key.String()
	}
}

// IsValidMapKey reports whether v may be used as a map key (spec §4.2:
// key ∈ {string, number}).
func IsValidMapKey(v Value) bool {
	switch v.(type) {
	case StringValue, NumberValue:
		return true
	default:
		return false
	}
}

func (v MapValue) Type() TypeCode { return TypeMap }

func (v MapValue) String() string {
	pairs := v.Pairs()
	if len(pairs) == 0 {
		return "{:}"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0].String() + ": " + p[1].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Truthy: a map is truthy unless it is empty.
func (v MapValue) Truthy() bool { return len(v.m.order) > 0 }

func (v MapValue) Identity() *Map { return v.m }

func (v MapValue) Len() int { return len(v.m.order) }

func (v MapValue) Get(key Value) (Value, bool) {
	val, ok := v.m.vals[mapKeyHash(key)]
	return val, ok
}

func (v MapValue) Has(key Value) bool {
	_, ok := v.m.vals[mapKeyHash(key)]
	return ok
}

// Set mutates the map in place, preserving the original insertion
// position when the key already exists.
func (v MapValue) Set(key, val Value) {
	hash := mapKeyHash(key)
	if _, exists := v.m.vals[hash]; !exists {
		v.m.order = append(v.m.order, hash)
	}
	v.m.keys[hash] = key
	v.m.vals[hash] = val
}

// Delete mutates the map in place. Returns false if the key was absent.
func (v MapValue) Delete(key Value) bool {
	hash := mapKeyHash(key)
	if _, exists := v.m.vals[hash]; !exists {
		return false
	}
	delete(v.m.vals, hash)
	delete(v.m.keys, hash)
	for i, h := range v.m.order {
		if h == hash {
			v.m.order = append(v.m.order[:i], v.m.order[i+1:]...)
			break
		}
	}
	return true
}

func (v MapValue) Keys() []Value {
	keys := make([]Value, len(v.m.order))
	for i, h := range v.m.order {
		keys[i] = v.m.keys[h]
	}
	return keys
}

func (v MapValue) Pairs() [][2]Value {
	pairs := make([][2]Value, len(v.m.order))
	for i, h := range v.m.order {
		pairs[i] = [2]Value{v.m.keys[h], v.m.vals[h]}
	}
	return pairs
}
