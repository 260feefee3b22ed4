package domain

import "maps"

// Value is a payload or local variable value.
// Machines own their values: anything stored in a buffer, frame or continuation
// is deep-copied on Clone via CloneValue.
type Value = any

// Cloner lets user-defined payload types take part in deep copies.
type Cloner interface {
	CloneValue() Value
}

// CloneValue returns a deep copy of v.
// Scalars, strings, machine handles and event descriptors are returned as-is.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case nil:
		return nil
	case Cloner:
		return t.CloneValue()
	case []Value:
		return CloneValues(t)
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case map[Value]Value:
		out := make(map[Value]Value, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []int:
		return append([]int(nil), t...)
	case []string:
		return append([]string(nil), t...)
	case map[string]int:
		return maps.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}

// CloneValues deep-copies a slice of values. nil stays nil.
func CloneValues(vs []Value) []Value {
	if vs == nil {
		return nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = CloneValue(v)
	}
	return out
}

// MachineID is the handle of a machine instance.
type MachineID string

// MachineKey implements schema.MachineRef.
func (id MachineID) MachineKey() string { return string(id) }

func (id MachineID) String() string { return string(id) }

// StateID names a state within one machine definition.
type StateID string
