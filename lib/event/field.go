// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"strconv"
)

// ValueKind is the scalar type stored in a Value.
type ValueKind uint8

const (
	ValueBool ValueKind = iota + 1
	ValueString
	ValueUint
	ValueInt
	// ValueDebug is a preformatted representation of a non-scalar.
	ValueDebug
)

// Value is a scalar field value.
type Value struct {
	Kind ValueKind
	Bool bool
	Str  string
	Uint uint64
	Int  int64
}

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: ValueBool, Bool: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: ValueString, Str: v} }

// Uint returns an unsigned Value.
func Uint(v uint64) Value { return Value{Kind: ValueUint, Uint: v} }

// Int returns a signed Value.
func Int(v int64) Value { return Value{Kind: ValueInt, Int: v} }

// Debug returns a preformatted Value.
func Debug(v string) Value { return Value{Kind: ValueDebug, Str: v} }

// Empty reports whether v is a string or debug value with no text.
func (v Value) Empty() bool {
	return (v.Kind == ValueString || v.Kind == ValueDebug) && v.Str == ""
}

// Format renders v for display.
func (v Value) Format() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Str
	}
}

// Field is a named Value.
type Field struct {
	Name  string
	Value Value
}

// F builds a Field from a Go value. Unsupported types are rendered
// with fmt as Debug values.
func F(name string, value any) Field {
	switch v := value.(type) {
	case bool:
		return Field{Name: name, Value: Bool(v)}
	case string:
		return Field{Name: name, Value: String(v)}
	case int:
		return Field{Name: name, Value: Int(int64(v))}
	case int64:
		return Field{Name: name, Value: Int(v)}
	case int32:
		return Field{Name: name, Value: Int(int64(v))}
	case uint:
		return Field{Name: name, Value: Uint(uint64(v))}
	case uint64:
		return Field{Name: name, Value: Uint(v)}
	case uint32:
		return Field{Name: name, Value: Uint(uint64(v))}
	default:
		return Field{Name: name, Value: Debug(sprint(v))}
	}
}
