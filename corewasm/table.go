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

import "github.com/corewasm/corewasm/corewasm/corewasmerr"

// Table holds a resizable vector of references, sentinel-filled
// (NullReference) at allocation. In this interpreter every element is a
// function index into the owning Environment's function space or
// NullReference; externref tables carry opaque host-assigned int32
// handles with the same sentinel convention.
type Table struct {
	elemType ReferenceType
	limits   Limits
	elems    []int32
}

// NewTable allocates a Table at its type's minimum size, every slot
// initialized to NullReference.
func NewTable(t TableType) *Table {
	elems := make([]int32, t.Limits.Min)
	for i := range elems {
		elems[i] = NullReference
	}
	return &Table{elemType: t.elemType(), limits: t.Limits, elems: elems}
}

func (t TableType) elemType() ReferenceType { return t.ElementType }

func (t *Table) Size() uint32 { return uint32(len(t.elems)) }

// Get returns the element at index, trapping TrapUndefinedTableIndex if
// index is out of range.
func (t *Table) Get(index uint32) (int32, error) {
	if index >= t.Size() {
		return 0, corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table index out of bounds")
	}
	return t.elems[index], nil
}

func (t *Table) Set(index uint32, val int32) error {
	if index >= t.Size() {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table index out of bounds")
	}
	t.elems[index] = val
	return nil
}

// Grow appends n elements initialized to val, returning the previous
// size, or -1 if doing so would exceed the table's declared maximum.
func (t *Table) Grow(n uint32, val int32) int32 {
	prev := t.Size()
	if t.limits.Max != nil && uint64(prev)+uint64(n) > uint64(*t.limits.Max) {
		return -1
	}
	grown := make([]int32, uint64(prev)+uint64(n))
	copy(grown, t.elems)
	for i := prev; i < uint32(len(grown)); i++ {
		grown[i] = val
	}
	t.elems = grown
	return int32(prev)
}

// Init copies n function indices from src[srcOffset:] into the table
// starting at destOffset (the table.init opcode).
func (t *Table) Init(src []Index, srcOffset, destOffset, n uint32) error {
	if uint64(srcOffset)+uint64(n) > uint64(len(src)) {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.init source out of bounds")
	}
	if uint64(destOffset)+uint64(n) > uint64(t.Size()) {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.init destination out of bounds")
	}
	for i := uint32(0); i < n; i++ {
		t.elems[destOffset+i] = int32(src[srcOffset+i])
	}
	return nil
}

// Copy moves n elements within or between tables (the table.copy
// opcode), correctly handling overlap when dest == t.
func (t *Table) Copy(dest *Table, srcOffset, destOffset, n uint32) error {
	if uint64(srcOffset)+uint64(n) > uint64(t.Size()) {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.copy source out of bounds")
	}
	if uint64(destOffset)+uint64(n) > uint64(dest.Size()) {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.copy destination out of bounds")
	}
	copy(dest.elems[destOffset:uint64(destOffset)+uint64(n)], t.elems[srcOffset:uint64(srcOffset)+uint64(n)])
	return nil
}

// Fill sets n elements starting at index to val (the table.fill opcode).
func (t *Table) Fill(index, n uint32, val int32) error {
	if uint64(index)+uint64(n) > uint64(t.Size()) {
		return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.fill out of bounds")
	}
	for i := index; i < index+n; i++ {
		t.elems[i] = val
	}
	return nil
}
