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

// Package corewasm is an embeddable interpreter for WebAssembly 1.0, with
// optional exceptions, threads/atomics and non-trapping float-to-int
// conversion extensions. It decodes binary modules into an immutable
// representation, links them against each other and against host-supplied
// modules, and executes exported functions by stack-machine interpretation.
package corewasm

import "slices"

// Index, Address and Offset alias the integer types used to address module
// and instance space. Address and Index are always 32-bit on the wire;
// Offset is native so that linear-memory math on 64-bit hosts never wraps
// inside the interpreter itself.
type (
	Index   = uint32
	Address = uint32
	Offset  = uint
)

// sentinelIndex marks an invalid slot: an unresolved import, or an
// uninitialized table element.
const sentinelIndex Index = ^Index(0)

// ValueType classifies the values WebAssembly code computes with. It is
// either a NumberType or a ReferenceType; this interpreter has no vector
// (SIMD) type.
type ValueType interface {
	isValueType()
	String() string
}

// NumberType classifies the four numeric value types.
type NumberType byte

const (
	I32 NumberType = 0x7f
	I64 NumberType = 0x7e
	F32 NumberType = 0x7d
	F64 NumberType = 0x7c
)

func (NumberType) isValueType() {}

func (t NumberType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "number?"
	}
}

// ReferenceType classifies first-class references into the runtime store.
type ReferenceType byte

const (
	FuncRefType   ReferenceType = 0x70
	ExternRefType ReferenceType = 0x6f
)

func (ReferenceType) isValueType() {}

func (t ReferenceType) String() string {
	switch t {
	case FuncRefType:
		return "funcref"
	case ExternRefType:
		return "externref"
	default:
		return "ref?"
	}
}

// Limits is a (initial, max?) pair shared by memories (unit = page) and
// tables (unit = element), with a flag for a shared (threads) backing.
type Limits struct {
	Min    uint32
	Max    *uint32
	Shared bool
}

// HasMax reports whether the limits declare an upper bound.
func (l Limits) HasMax() bool { return l.Max != nil }

// Signature is a function's parameter/result type vectors.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports structural equality: function import resolution and
// call_indirect both require this, not identity.
func (s *Signature) Equal(other *Signature) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	return slices.Equal(s.Params, other.Params) &&
		slices.Equal(s.Results, other.Results)
}

// ExternalKind tags an import or export by the kind of object it names.
type ExternalKind byte

const (
	FuncKind   ExternalKind = 0x00
	TableKind  ExternalKind = 0x01
	MemoryKind ExternalKind = 0x02
	GlobalKind ExternalKind = 0x03
	ExceptKind ExternalKind = 0x04
)

func (k ExternalKind) String() string {
	switch k {
	case FuncKind:
		return "func"
	case TableKind:
		return "table"
	case MemoryKind:
		return "memory"
	case GlobalKind:
		return "global"
	case ExceptKind:
		return "except"
	default:
		return "kind?"
	}
}

// TableType classifies a table: its element type (funcref or externref)
// plus its limits.
type TableType struct {
	ElementType ReferenceType
	Limits      Limits
}

// MemoryType classifies a linear memory by its page limits.
type MemoryType struct {
	Limits Limits
}

// GlobalType classifies a global by value type and mutability.
type GlobalType struct {
	ValueType ValueType
	Mutable   bool
}

// Import is tagged by ExternalKind; exactly one of the payload fields is
// meaningful for a given Kind.
type Import struct {
	Module     string
	Field      string
	Kind       ExternalKind
	TypeIndex  Index // FuncKind
	TableType  TableType
	MemoryType MemoryType
	GlobalType GlobalType
}

// Export names an object in instance space by kind and index.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index Index
}
