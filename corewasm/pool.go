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

// Script allocator: a bump-and-reuse allocator whose
// arena lives inside a module's linear memory, exposed to guest code
// through the mem_pool_* host functions registered by
// RegisterScriptAllocator. Every allocation no free block satisfies
// bumps one Thread-wide arena frontier. Below smallAllocThreshold bytes,
// blocks are never individually freed; at or above it, freed blocks are
// returned to their pool's size-classed free list and reused by a later
// allocation of a compatible size, avoiding frontier growth under
// churn. Clearing or destroying a pool drops its bookkeeping only: the
// frontier never moves back, so those bytes are not handed out again.
//
// This implementation keeps block bookkeeping (the free lists and
// frontier/parent/child/sibling tree) on the Go side rather than encoded
// into the guest bytes themselves: the guest only ever sees the
// addresses it allocated, which is all mem_pool_* promises callers. The
// on-wire header layout the original script allocator uses is not
// reproduced.
const (
	shadowStackSize     = 8192
	maxFreeListIndex    = 20
	smallAllocThreshold = 256
)

// DefaultScriptArenaBase is the arenaBase an embedder can pass to
// RegisterScriptAllocator when the guest toolchain reserves the
// customary shadow-stack region at the bottom of linear memory and the
// script allocator's arena should start right after it.
const DefaultScriptArenaBase = Address(shadowStackSize)

// block is one allocated or free region of the arena.
type block struct {
	addr Address
	size uint32
	free bool
}

// pool is one allocation arena: frontier records the Thread-wide arena
// frontier when the pool was created (allocations advance
// threadPool.arenaNext, not this field), plus a size-classed free list (indexed by log2(size), capped at
// maxFreeListIndex) for requests at or above smallAllocThreshold.
type pool struct {
	id       uint32
	parent   *pool
	children []*pool

	frontier  Address
	limit     Address
	freeLists [maxFreeListIndex + 1][]*block
	oversize  []*block
	live      map[Address]*block
}

// threadPool is one Thread's view of the script allocator: its arena
// frontier, its pool table and the stack of pools it has entered via
// mem_pool_push/pop.
type threadPool struct {
	thread      *Thread
	nextPoolID  uint32
	pools       map[uint32]*pool
	activeStack []*pool
	arenaBase   Address
	arenaNext   Address
}

func newThreadPool(t *Thread) *threadPool {
	return &threadPool{
		thread: t,
		pools:  map[uint32]*pool{},
	}
}

// bindArena designates the region of mem starting at base as the
// arena every pool created by this Thread bumps into, inside guest
// linear memory. mem_pool_create_unmanaged calls it on every call; only
// the first binding takes effect, so a later unmanaged pool does not
// restart the frontier over blocks that are still live.
func (tp *threadPool) bindArena(base Address) {
	if tp.arenaNext != 0 {
		return
	}
	tp.arenaBase = base
	tp.arenaNext = base
}

// sizeClass buckets size into the free list holding every freed block
// whose size falls in (smallAllocThreshold*2^(class-1), smallAllocThreshold*2^class],
// i.e. the class is a ceiling, not an exact size. Two requests that land
// in the same class can still need very different amounts of actual
// space, so a block pulled from a class must still be checked against
// the size that put it there before it is handed back; see takeFree.
func sizeClass(size uint32) int {
	class := 0
	for n := uint32(smallAllocThreshold); n < size && class < maxFreeListIndex; n <<= 1 {
		class++
	}
	return class
}

// takeFree removes and returns a free block able to satisfy size, or nil
// if none can. It first scans size's own class (a ceiling bucket can
// still hold blocks smaller than the current request, so a hit there
// must be verified, not assumed) and only then walks upward through the
// higher classes, from which any block is big enough by construction
// since its class's floor already exceeds size — mirroring the
// smallest-up free-list walk the original script allocator does over
// its exact size-indexed buckets.
func (p *pool) takeFree(class int, size uint32) *block {
	if b := p.takeFreeInClass(class, size); b != nil {
		return b
	}
	for c := class + 1; c <= maxFreeListIndex; c++ {
		list := p.freeLists[c]
		if len(list) == 0 {
			continue
		}
		b := list[len(list)-1]
		p.freeLists[c] = list[:len(list)-1]
		return b
	}
	return nil
}

// takeFreeInClass scans freeLists[class] for a block whose own size
// covers size: a block freed at ceiling(class-1)+1 bytes and one freed
// at ceiling(class) bytes both land in this same bucket, so popping
// blindly (as opposed to checking b.size) could hand out a block
// smaller than what the caller asked for and let it write past the
// region the arena actually reserved for it.
func (p *pool) takeFreeInClass(class int, size uint32) *block {
	list := p.freeLists[class]
	for i, b := range list {
		if b.size >= size {
			p.freeLists[class] = append(list[:i], list[i+1:]...)
			return b
		}
	}
	return nil
}

// createPool allocates a new pool, optionally nested under parentID (0
// for a root/unmanaged pool), mapping mem_pool_create/
// mem_pool_create_unmanaged.
func (tp *threadPool) createPool(parentID uint32, managed bool) uint32 {
	tp.nextPoolID++
	id := tp.nextPoolID
	p := &pool{id: id, frontier: tp.arenaNext, live: map[Address]*block{}}
	if managed {
		if parent, ok := tp.pools[parentID]; ok {
			p.parent = parent
			parent.children = append(parent.children, p)
		}
	}
	tp.pools[id] = p
	return id
}

// push enters a pool, mapping mem_pool_push: subsequent alloc/palloc/
// calloc calls without an explicit pool id use the top of this stack.
func (tp *threadPool) push(id uint32) bool {
	p, ok := tp.pools[id]
	if !ok {
		return false
	}
	tp.activeStack = append(tp.activeStack, p)
	return true
}

// pop leaves the current top-of-stack pool, mapping mem_pool_pop.
func (tp *threadPool) pop() bool {
	if len(tp.activeStack) == 0 {
		return false
	}
	tp.activeStack = tp.activeStack[:len(tp.activeStack)-1]
	return true
}

func (tp *threadPool) current() *pool {
	if len(tp.activeStack) == 0 {
		return nil
	}
	return tp.activeStack[len(tp.activeStack)-1]
}

// alloc services mem_pool_alloc/mem_pool_palloc/mem_pool_calloc: it
// first tries the pool's size-classed free list, then bumps the arena
// frontier, growing linear memory when needed by the pages the request
// lacks plus one, in a single Grow.
func (tp *threadPool) alloc(p *pool, size uint32, zero bool) (Address, error) {
	if size == 0 {
		return 0, nil
	}
	if size >= smallAllocThreshold {
		class := sizeClass(size)
		if b := p.takeFree(class, size); b != nil {
			b.free = false
			p.live[b.addr] = b
			if zero {
				tp.zero(b.addr, b.size)
			}
			return b.addr, nil
		}
	}

	addr := tp.arenaNext
	needed := uint64(addr) + uint64(size)
	mem := tp.thread.memOf(0)
	if needed > uint64(mem.byteLen()) {
		deltaPages := (needed-uint64(mem.byteLen())+pageSize-1)/pageSize + 1
		if mem.Grow(uint32(deltaPages)) < 0 {
			return 0, corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "script allocator out of memory")
		}
	}
	tp.arenaNext = addr + size
	b := &block{addr: addr, size: size}
	p.live[addr] = b
	if zero {
		tp.zero(addr, size)
	}
	return addr, nil
}

func (tp *threadPool) zero(addr Address, size uint32) {
	mem := tp.thread.memOf(0)
	buf := make([]byte, size)
	_ = mem.Write(addr, 0, buf)
}

// free returns addr to its pool's free list (for size-classed blocks) or
// is a no-op (for bump-only small blocks, whose bytes are never handed
// out again), mapping mem_pool_free.
func (tp *threadPool) free(p *pool, addr Address) {
	b, ok := p.live[addr]
	if !ok {
		return
	}
	if b.size < smallAllocThreshold {
		return
	}
	class := sizeClass(b.size)
	b.free = true
	p.freeLists[class] = append(p.freeLists[class], b)
	delete(p.live, addr)
}

// clear discards every live allocation in p (and recursively in its
// children) without destroying the pool itself, mapping mem_pool_clear.
func (tp *threadPool) clear(p *pool) {
	for _, child := range p.children {
		tp.clear(child)
	}
	p.live = map[Address]*block{}
	for i := range p.freeLists {
		p.freeLists[i] = nil
	}
}

// destroy clears p, detaches it from its parent and removes it from the
// Thread's pool table, mapping mem_pool_destroy.
func (tp *threadPool) destroy(id uint32) {
	p, ok := tp.pools[id]
	if !ok {
		return
	}
	tp.clear(p)
	if p.parent != nil {
		for i, c := range p.parent.children {
			if c == p {
				p.parent.children = append(p.parent.children[:i], p.parent.children[i+1:]...)
				break
			}
		}
	}
	delete(tp.pools, id)
}

// RegisterScriptAllocator builds the mem_pool_* host module under
// moduleName on e, so any subsequent Instantiate can import from it, and
// binds the arena every pool it creates bumps into to arenaBase in the
// importing instance's first memory. Call before Instantiate-ing the
// guest module that imports moduleName.
func (e *Environment) RegisterScriptAllocator(moduleName string, arenaBase Address) *HostModule {
	hm := NewHostModule()
	hm.Funcs["mem_pool_create_unmanaged"] = &HostFunc{
		Sig: Signature{Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			t.pool.bindArena(arenaBase)
			id := t.pool.createPool(0, false)
			return []TypedValue{TypedValueOf(int32(id), I32)}, nil
		},
	}
	hm.Funcs["mem_pool_create"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			parent := uint32(args[0].Value.i32())
			id := t.pool.createPool(parent, true)
			return []TypedValue{TypedValueOf(int32(id), I32)}, nil
		},
	}
	hm.Funcs["mem_pool_acquire"] = &HostFunc{
		Sig: Signature{Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			if p := t.pool.current(); p != nil {
				return []TypedValue{TypedValueOf(int32(p.id), I32)}, nil
			}
			return []TypedValue{TypedValueOf(int32(0), I32)}, nil
		},
	}
	hm.Funcs["mem_pool_push"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			t.pool.push(uint32(args[0].Value.i32()))
			return nil, nil
		},
	}
	hm.Funcs["mem_pool_pop"] = &HostFunc{
		Sig: Signature{},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			t.pool.pop()
			return nil, nil
		},
	}
	hm.Funcs["mem_pool_destroy"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			t.pool.destroy(uint32(args[0].Value.i32()))
			return nil, nil
		},
	}
	hm.Funcs["mem_pool_clear"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			if p, ok := t.pool.pools[uint32(args[0].Value.i32())]; ok {
				t.pool.clear(p)
			}
			return nil, nil
		},
	}
	allocFn := func(zero bool) func(*Thread, []TypedValue) ([]TypedValue, error) {
		return func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			size := uint32(args[0].Value.i32())
			p := t.pool.current()
			if p == nil {
				return nil, corewasmerr.Execute(corewasmerr.TrapHostTrapped, "mem_pool_alloc with no active pool")
			}
			addr, err := t.pool.alloc(p, size, zero)
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(addr), I32)}, nil
		}
	}
	hm.Funcs["mem_pool_alloc"] = &HostFunc{Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}}, Fn: allocFn(false)}
	hm.Funcs["mem_pool_palloc"] = &HostFunc{Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}}, Fn: allocFn(false)}
	hm.Funcs["mem_pool_calloc"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			n := uint32(args[0].Value.i32())
			elemSize := uint32(args[1].Value.i32())
			p := t.pool.current()
			if p == nil {
				return nil, corewasmerr.Execute(corewasmerr.TrapHostTrapped, "mem_pool_calloc with no active pool")
			}
			addr, err := t.pool.alloc(p, n*elemSize, true)
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(addr), I32)}, nil
		},
	}
	hm.Funcs["mem_pool_free"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			if p := t.pool.current(); p != nil {
				t.pool.free(p, uint32(args[0].Value.i32()))
			}
			return nil, nil
		},
	}
	e.RegisterHostModule(moduleName, hm)
	return hm
}
