// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package corewasm

import "math"

// NullReference is the internal representation of a null funcref/externref.
// It is invalid as a function or table index.
const NullReference int32 = -1

// Value is a 64-bit union holding the raw bits of an i32, i64, f32 or f64.
// Sign is purely interpretive: the same bit pattern answers both i32()
// and the unsigned accessors u32()/u64() below.
type Value struct {
	bits uint64
}

func i32Value(v int32) Value   { return Value{bits: uint64(uint32(v))} }
func i64Value(v int64) Value   { return Value{bits: uint64(v)} }
func f32Value(v float32) Value { return Value{bits: uint64(math.Float32bits(v))} }
func f64Value(v float64) Value { return Value{bits: math.Float64bits(v)} }

func (v Value) i32() int32     { return int32(uint32(v.bits)) }
func (v Value) u32() uint32    { return uint32(v.bits) }
func (v Value) i64() int64     { return int64(v.bits) }
func (v Value) u64() uint64    { return v.bits }
func (v Value) f32() float32   { return math.Float32frombits(uint32(v.bits)) }
func (v Value) f64() float64   { return math.Float64frombits(v.bits) }

// TypedValue pairs a Value with the type it should be interpreted as.
type TypedValue struct {
	Type  ValueType
	Value Value
}

// Any converts a TypedValue to a boxed Go value of the matching type, for
// the host-facing API (Invoke results, global reads).
func (tv TypedValue) Any() any {
	switch tv.Type {
	case I32:
		return tv.Value.i32()
	case I64:
		return tv.Value.i64()
	case F32:
		return tv.Value.f32()
	case F64:
		return tv.Value.f64()
	case FuncRefType, ExternRefType:
		return tv.Value.i32()
	default:
		panic("corewasm: unreachable value type")
	}
}

// TypedValueOf boxes a Go value together with the ValueType the interpreter
// should treat it as, inferring the type when t is nil.
func TypedValueOf(v any, t ValueType) TypedValue {
	switch val := v.(type) {
	case int32:
		return TypedValue{Type: orType(t, I32), Value: i32Value(val)}
	case int64:
		return TypedValue{Type: orType(t, I64), Value: i64Value(val)}
	case float32:
		return TypedValue{Type: orType(t, F32), Value: f32Value(val)}
	case float64:
		return TypedValue{Type: orType(t, F64), Value: f64Value(val)}
	default:
		panic("corewasm: unsupported host value type")
	}
}

func orType(t, fallback ValueType) ValueType {
	if t != nil {
		return t
	}
	return fallback
}

func zeroValue(t ValueType) TypedValue {
	switch t {
	case FuncRefType, ExternRefType:
		return TypedValue{Type: t, Value: i32Value(NullReference)}
	default:
		return TypedValue{Type: t, Value: Value{}}
	}
}
