package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type defines the contract for payload validation.
// Every event descriptor carries one; drivers validate payloads against it before enqueueing.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "int").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// MachineRef is implemented by machine handles so that payload validation
// does not depend on the runtime packages.
type MachineRef interface {
	MachineKey() string
}

// --- Built-in Type Implementations ---

// NullType accepts only nil. It is the payload type of events that carry nothing.
type NullType struct{}

func (t *NullType) Name() string { return "null" }

func (t *NullType) Validate(value any) error {
	if value != nil {
		return fmt.Errorf("expected null, got %T", value)
	}
	return nil
}

// AnyType accepts every value, nil included.
type AnyType struct{}

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Validate(any) error { return nil }

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	_, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

// IntType validates integer values.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return nil
	case float64:
		// Accept floats that are whole numbers (from JSON unmarshaling)
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

// FloatType validates floating-point values.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	_, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// MachineType validates machine handles (anything implementing MachineRef).
type MachineType struct{}

func (t *MachineType) Name() string { return "machine" }

func (t *MachineType) Validate(value any) error {
	ref, ok := value.(MachineRef)
	if !ok {
		return fmt.Errorf("expected machine, got %T", value)
	}
	if ref.MachineKey() == "" {
		return fmt.Errorf("expected machine, got empty handle")
	}
	return nil
}

// SliceType validates slices of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}

	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if err := t.elemType.Validate(elem); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// MapType validates maps whose keys and values conform to the given types.
type MapType struct {
	keyType  Type
	elemType Type
}

func (t *MapType) Name() string {
	return fmt.Sprintf("map[%s]%s", t.keyType.Name(), t.elemType.Name())
}

func (t *MapType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return fmt.Errorf("expected map, got %T", value)
	}

	iter := rv.MapRange()
	for iter.Next() {
		if err := t.keyType.Validate(iter.Key().Interface()); err != nil {
			return fmt.Errorf("key %v: %w", iter.Key().Interface(), err)
		}
		if err := t.elemType.Validate(iter.Value().Interface()); err != nil {
			return fmt.Errorf("value at %v: %w", iter.Key().Interface(), err)
		}
	}
	return nil
}

// TupleType validates fixed-length positional tuples represented as []any.
type TupleType struct {
	elems []Type
}

func (t *TupleType) Name() string {
	names := make([]string, len(t.elems))
	for i, e := range t.elems {
		names[i] = e.Name()
	}
	return "(" + strings.Join(names, ",") + ")"
}

func (t *TupleType) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected tuple, got %T", value)
	}
	if len(items) != len(t.elems) {
		return fmt.Errorf("expected tuple of %d fields, got %d", len(t.elems), len(items))
	}
	for i, elem := range t.elems {
		if err := elem.Validate(items[i]); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

// RecordType validates named tuples represented as map[string]any against a Schema.
type RecordType struct {
	fields Schema
}

func (t *RecordType) Name() string {
	keys := t.fields.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + t.fields[k].Name()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (t *RecordType) Validate(value any) error {
	data, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected record, got %T", value)
	}
	return Validate(t.fields, data)
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(any) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value any) error {
	return t.validate(value)
}

// --- Factory Functions ---

// Null creates the null type.
func Null() Type { return &NullType{} }

// Any creates a type accepting every value.
func Any() Type { return &AnyType{} }

// String creates a string type validator.
func String() Type { return &StringType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Float creates a float type validator.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Machine creates a machine handle validator.
func Machine() Type { return &MachineType{} }

// Slice creates a slice type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Map creates a map type validator.
func Map(keyType, elemType Type) Type {
	return &MapType{keyType: keyType, elemType: elemType}
}

// Tuple creates a positional tuple validator.
func Tuple(elems ...Type) Type {
	return &TupleType{elems: elems}
}

// Record creates a named tuple validator.
func Record(fields Schema) Type {
	return &RecordType{fields: fields}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(any) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ParseType converts a string type name to a Type.
// Supports "null", "any", "bool", "int", "float", "string", "machine" and slices such as "[int]".
func ParseType(typeStr string) (Type, error) {
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elemType), nil
	}

	switch typeStr {
	case "null", "":
		return Null(), nil
	case "any":
		return Any(), nil
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "machine":
		return Machine(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}
