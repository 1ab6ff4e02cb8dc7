package types

import "strconv"

// HandleValue is a script-visible reference to an entry in the VM's
// handle table. It carries no behavior of its own; the handle table
// (package handle) owns the lifecycle this id points at.
type HandleValue struct {
	ID uint32
}

func NewHandle(id uint32) HandleValue { return HandleValue{ID: id} }

func (h HandleValue) Type() TypeCode { return TypeHandle }
func (h HandleValue) String() string { return "handle#" + strconv.FormatUint(uint64(h.ID), 10) }

// Truthy: handles are always truthy, per spec — even a handle
// referring to a rejected or cancelled operation is a live reference.
func (h HandleValue) Truthy() bool { return true }
