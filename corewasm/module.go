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

// Module is the immutable, decoded representation of one binary WASM
// module. It holds no runtime state; Environment.Instantiate turns a
// Module plus a set of linked imports into a RuntimeInstance.
type Module struct {
	Types []Signature

	Imports []Import

	// Funcs holds only the module's own (non-imported) functions, in
	// module-index order after the imported functions; SignatureOf and
	// FuncIndexSpace below map a global function index onto this slice
	// or onto Imports.
	Funcs []Function

	Tables  []TableType
	Memories []MemoryType
	Globals []GlobalDef

	Exports []Export

	Elements []ElementSegment
	Data     []DataSegment

	// StartFunc is the module-level start function's global function
	// index, or sentinelIndex if the module declares none.
	StartFunc Index

	// DataCount is the declared data-segment count from the bulk-memory
	// data count section (id 12). It is recorded only; the decoder does
	// not check memory.init/data.drop operands against it. -1 if absent.
	DataCount int

	// Names carries the optional "name" custom section's function-name
	// map, kept for embedders; nothing in the interpreter reads it and it
	// never affects execution semantics.
	Names map[Index]string
}

// Function is one module-defined (non-imported) function body: its
// signature, its additional local slots beyond the parameters, and its
// flattened, branch-resolved instruction stream.
type Function struct {
	SignatureIndex Index
	Locals         []ValueType // additional locals, not counting params
	Code []Instruction
	// BrTables holds br_table target lists out of line since they're
	// variable-length. Each entry packs a resolved branch the same way
	// Br/BrIf's own immediates do: the low 32 bits are the absolute
	// target pc, the high 32 bits are (dropCount<<1 | preserveCount).
	BrTables [][]uint64
}

// GlobalDef is a module-defined (non-imported) global: its type and its
// constant initializer expression. The binary format restricts global
// initializers to either a plain constant (captured directly in Init) or
// a global.get of an already-linked import (captured as an index into
// the instance's global index space in InitGlobalIndex, since an
// imported global's value isn't known until link time, after decode has
// already finished). InitGlobalIndex is sentinelIndex when Init itself
// already holds the resolved constant.
type GlobalDef struct {
	Type            GlobalType
	Init            TypedValue
	InitGlobalIndex Index
}

// ElementSegment initializes a range of one table with function indices.
// TableIndex is always 0 in a MVP module (multi-table requires reference
// types); Passive marks a bulk-memory passive segment with no Offset.
type ElementSegment struct {
	TableIndex      Index
	Passive         bool
	Offset          TypedValue // i32.const; or sentinelIndex'd via OffsetGlobalIndex
	OffsetGlobalIndex Index
	Funcs           []Index
	dropped         bool
}

// DataSegment initializes a range of one linear memory with bytes.
// MemoryIndex is always 0 in a MVP module; Passive marks a bulk-memory
// passive segment with no Offset, used only via memory.init.
type DataSegment struct {
	MemoryIndex       Index
	Passive           bool
	Offset            TypedValue
	OffsetGlobalIndex Index
	Bytes             []byte
	dropped           bool
}

// FuncIndexSpace returns the total number of functions visible at a
// global function index: imported functions first, then module-defined
// ones, matching the WASM binary format's single shared index space.
func (m *Module) FuncIndexSpace() int {
	return m.importCount(FuncKind) + len(m.Funcs)
}

func (m *Module) importCount(kind ExternalKind) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// SignatureOf resolves a global function index to its Signature, whether
// the function is imported or module-defined.
func (m *Module) SignatureOf(funcIndex Index) *Signature {
	importedFuncs := m.importCount(FuncKind)
	if funcIndex < uint32(importedFuncs) {
		n := Index(0)
		for _, imp := range m.Imports {
			if imp.Kind != FuncKind {
				continue
			}
			if n == funcIndex {
				return &m.Types[imp.TypeIndex]
			}
			n++
		}
		return nil
	}
	f := &m.Funcs[funcIndex-uint32(importedFuncs)]
	return &m.Types[f.SignatureIndex]
}
