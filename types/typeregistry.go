package types

import "sync"

// StructTypeDef lets a host virtualize field access and native-payload
// snapshotting for one struct type id. All three hooks are optional;
// a nil hook means "fall back to the underlying field map" (for the
// getter/setter) or "no native payload to snapshot" (for
// SnapshotNative).
type StructTypeDef struct {
	FieldGetter    func(s StructValue, name string, ctx ExecutionContext) (Value, bool)
	FieldSetter    func(s StructValue, name string, val Value, ctx ExecutionContext) bool
	SnapshotNative func(s StructValue, ctx ExecutionContext) (interface{}, error)
}

// TypeRegistry is the VM's consumed view of host-registered struct
// types, keyed by type id string.
type TypeRegistry struct {
	mu   sync.RWMutex
	defs map[string]*StructTypeDef
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{defs: make(map[string]*StructTypeDef)}
}

func (r *TypeRegistry) Register(typeID string, def *StructTypeDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[typeID] = def
}

func (r *TypeRegistry) Get(typeID string) (*StructTypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typeID]
	return def, ok
}

// GetField resolves a struct field through the registered type's
// FieldGetter hook, if any, else the struct's own field map.
func (r *TypeRegistry) GetField(s StructValue, name string, ctx ExecutionContext) (Value, bool) {
	if def, ok := r.Get(s.TypeID()); ok && def.FieldGetter != nil {
		if v, found := def.FieldGetter(s, name, ctx); found {
			return v, true
		}
	}
	return s.GetField(name)
}

// SetField writes a struct field through the registered type's
// FieldSetter hook, if any and it reports having handled the write,
// else the struct's own field map.
func (r *TypeRegistry) SetField(s StructValue, name string, val Value, ctx ExecutionContext) {
	if def, ok := r.Get(s.TypeID()); ok && def.FieldSetter != nil {
		if def.FieldSetter(s, name, val, ctx) {
			return
		}
	}
	s.SetField(name, val)
}
