package types

import "fmt"

// EnumValue identifies a member of a host-defined enumerated type by its
// type id and string key. Enums are immutable and compare by value.
type EnumValue struct {
	TypeID string
	Key    string
}

func NewEnum(typeID, key string) EnumValue {
	return EnumValue{TypeID: typeID, Key: key}
}

func (e EnumValue) Type() TypeCode { return TypeEnum }
func (e EnumValue) String() string { return fmt.Sprintf("%s.%s", e.TypeID, e.Key) }
func (e EnumValue) Truthy() bool   { return true }
