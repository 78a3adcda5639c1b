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

const (
	pageSize = 65536
	maxPages = uint32(1 << 16) // 4 GiB address space ceiling (32-bit linear memory)
)

// Memory is one instance of linear memory, growable in 64KiB pages. Grow
// is a copy-and-zero-fill operation: the backing slice is reallocated and
// the new tail is zeroed, never left as stale reused bytes.
// Concurrent growth across a Runtime's Threads is serialized by the
// sync context in sync.go, which takes the grow barrier before calling
// Grow; Memory itself assumes single-writer access during a call.
type Memory struct {
	limits Limits
	data   []byte
}

// NewMemory allocates a Memory at its type's minimum size.
func NewMemory(t MemoryType) *Memory {
	return &Memory{limits: t.Limits, data: make([]byte, uint64(t.Limits.Min)*pageSize)}
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 { return uint32(len(m.data) / pageSize) }

func (m *Memory) byteLen() uint64 { return uint64(len(m.data)) }

// Bytes exposes the backing slice directly for the opcode dispatcher's
// load/store fast paths; callers must bounds-check before slicing it.
func (m *Memory) Bytes() []byte { return m.data }

// Grow extends memory by delta pages, zero-filling the new tail, and
// returns the previous size in pages, or -1 if the limits or the 4GiB
// ceiling would be exceeded.
func (m *Memory) Grow(delta uint32) int32 {
	prev := m.Size()
	limit := maxPages
	if m.limits.Max != nil && *m.limits.Max < limit {
		limit = *m.limits.Max
	}
	newSize := uint64(prev) + uint64(delta)
	if newSize > uint64(limit) {
		return -1
	}
	grown := make([]byte, newSize*pageSize)
	copy(grown, m.data)
	m.data = grown
	return int32(prev)
}

// checkBounds reports whether a length-n access starting at addr+offset
// lies entirely within memory, without wrapping the uint64 computation.
func (m *Memory) checkBounds(addr Address, offset uint32, n uint32) (uint64, bool) {
	start := uint64(addr) + uint64(offset)
	end := start + uint64(n)
	return start, end <= m.byteLen() && end >= start
}

// Read returns the n bytes starting at addr+offset as a slice that shares
// the memory's backing array (not a copy), trapping
// TrapMemoryAccessOutOfBounds if the range isn't entirely in bounds.
func (m *Memory) Read(addr Address, offset uint32, n uint32) ([]byte, error) {
	start, ok := m.checkBounds(addr, offset, n)
	if !ok {
		return nil, corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "load out of bounds")
	}
	return m.data[start : start+uint64(n)], nil
}

// Write copies src into memory starting at addr+offset.
func (m *Memory) Write(addr Address, offset uint32, src []byte) error {
	start, ok := m.checkBounds(addr, offset, uint32(len(src)))
	if !ok {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "store out of bounds")
	}
	copy(m.data[start:], src)
	return nil
}

// Init copies n bytes from a data segment's content, starting at
// srcOffset, into memory at destOffset (the memory.init opcode).
func (m *Memory) Init(content []byte, srcOffset, destOffset, n uint32) error {
	if uint64(srcOffset)+uint64(n) > uint64(len(content)) {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.init source out of bounds")
	}
	dst, ok := m.checkBounds(destOffset, 0, n)
	if !ok {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.init destination out of bounds")
	}
	copy(m.data[dst:], content[srcOffset:srcOffset+n])
	return nil
}

// Copy moves n bytes within memory (the memory.copy opcode), correctly
// handling overlap via Go's copy semantics.
func (m *Memory) Copy(dest, src, n uint32) error {
	s, ok := m.checkBounds(src, 0, n)
	if !ok {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.copy source out of bounds")
	}
	d, ok := m.checkBounds(dest, 0, n)
	if !ok {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.copy destination out of bounds")
	}
	copy(m.data[d:d+uint64(n)], m.data[s:s+uint64(n)])
	return nil
}

// Fill sets n bytes starting at addr to val (the memory.fill opcode).
func (m *Memory) Fill(addr, n uint32, val byte) error {
	start, ok := m.checkBounds(addr, 0, n)
	if !ok {
		return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.fill out of bounds")
	}
	region := m.data[start : start+uint64(n)]
	for i := range region {
		region[i] = val
	}
	return nil
}
