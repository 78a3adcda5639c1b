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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const poolTestWat = `(module
	(import "env" "mem_pool_create_unmanaged" (func $create_unmanaged (result i32)))
	(import "env" "mem_pool_create" (func $create (param i32) (result i32)))
	(import "env" "mem_pool_acquire" (func $acquire (result i32)))
	(import "env" "mem_pool_push" (func $mpush (param i32)))
	(import "env" "mem_pool_pop" (func $mpop))
	(import "env" "mem_pool_alloc" (func $malloc (param i32) (result i32)))
	(import "env" "mem_pool_calloc" (func $mcalloc (param i32 i32) (result i32)))
	(import "env" "mem_pool_free" (func $mfree (param i32)))
	(import "env" "mem_pool_clear" (func $mclear (param i32)))
	(import "env" "mem_pool_destroy" (func $mdestroy (param i32)))
	(memory (export "memory") 4)
	(func (export "pool_create_unmanaged") (result i32) call $create_unmanaged)
	(func (export "pool_create") (param i32) (result i32) local.get 0 call $create)
	(func (export "pool_acquire") (result i32) call $acquire)
	(func (export "pool_push") (param i32) local.get 0 call $mpush)
	(func (export "pool_pop") call $mpop)
	(func (export "pool_alloc") (param i32) (result i32) local.get 0 call $malloc)
	(func (export "pool_calloc") (param i32 i32) (result i32) local.get 0 local.get 1 call $mcalloc)
	(func (export "pool_free") (param i32) local.get 0 call $mfree)
	(func (export "pool_clear") (param i32) local.get 0 call $mclear)
	(func (export "pool_destroy") (param i32) local.get 0 call $mdestroy)
	(func (export "store32") (param $addr i32) (param $val i32)
		local.get $addr
		local.get $val
		i32.store)
	(func (export "load32") (param $addr i32) (result i32)
		local.get $addr
		i32.load))`

func newPoolTestInstance(t *testing.T) (*Environment, *Instance, *Thread) {
	t.Helper()
	env := NewEnvironment(nil)
	env.RegisterScriptAllocator("env", DefaultScriptArenaBase)
	inst, err := env.Instantiate("m", decodeWat(t, poolTestWat))
	require.NoError(t, err)
	return env, inst, env.NewThread()
}

func invokeI32(t *testing.T, inst *Instance, th *Thread, name string, args ...any) int32 {
	t.Helper()
	results, err := inst.Invoke(th, name, args...)
	require.NoError(t, err)
	require.Len(t, results, 1)
	v, ok := results[0].(int32)
	require.True(t, ok)
	return v
}

func invokeVoid(t *testing.T, inst *Instance, th *Thread, name string, args ...any) {
	t.Helper()
	_, err := inst.Invoke(th, name, args...)
	require.NoError(t, err)
}

func TestScriptAllocatorLifecycle(t *testing.T) {
	_, inst, th := newPoolTestInstance(t)

	root := invokeI32(t, inst, th, "pool_create_unmanaged")
	invokeVoid(t, inst, th, "pool_push", root)
	require.Equal(t, root, invokeI32(t, inst, th, "pool_acquire"))

	child := invokeI32(t, inst, th, "pool_create", root)
	invokeVoid(t, inst, th, "pool_push", child)
	require.Equal(t, child, invokeI32(t, inst, th, "pool_acquire"))

	a := invokeI32(t, inst, th, "pool_alloc", int32(64))
	b := invokeI32(t, inst, th, "pool_calloc", int32(4), int32(16))
	require.NotEqual(t, a, b)

	invokeVoid(t, inst, th, "store32", a, int32(123))
	require.Equal(t, int32(123), invokeI32(t, inst, th, "load32", a))

	// calloc must zero its region.
	require.Equal(t, int32(0), invokeI32(t, inst, th, "load32", b))

	invokeVoid(t, inst, th, "pool_clear", child)
	invokeVoid(t, inst, th, "pool_pop")
	require.Equal(t, root, invokeI32(t, inst, th, "pool_acquire"))

	invokeVoid(t, inst, th, "pool_destroy", child)
	invokeVoid(t, inst, th, "pool_pop")
	invokeVoid(t, inst, th, "pool_destroy", root)
}

func TestScriptAllocatorFreeListReusesExactFit(t *testing.T) {
	_, inst, th := newPoolTestInstance(t)

	root := invokeI32(t, inst, th, "pool_create_unmanaged")
	invokeVoid(t, inst, th, "pool_push", root)

	a := invokeI32(t, inst, th, "pool_alloc", int32(300))
	_ = invokeI32(t, inst, th, "pool_alloc", int32(300))
	invokeVoid(t, inst, th, "pool_free", a)

	c := invokeI32(t, inst, th, "pool_alloc", int32(300))
	require.Equal(t, a, c, "a freed block of the exact requested size should be reused")
}

// A freed block files into a size class covering a whole range
// (e.g. (256,512]), not an exact size. A later request that lands in the
// same class must never be handed a block smaller than what it asked
// for: doing so lets the caller write past the bytes the arena actually
// reserved for that block and corrupt whatever live allocation follows.
func TestScriptAllocatorNeverReusesUndersizedBlock(t *testing.T) {
	_, inst, th := newPoolTestInstance(t)

	root := invokeI32(t, inst, th, "pool_create_unmanaged")
	invokeVoid(t, inst, th, "pool_push", root)

	small := invokeI32(t, inst, th, "pool_alloc", int32(257))
	invokeVoid(t, inst, th, "pool_free", small)

	// Bumps a tiny allocation right after the freed 257-byte block so a
	// wrongly-reused block's overrun has something live to stomp on.
	guard := invokeI32(t, inst, th, "pool_alloc", int32(8))
	invokeVoid(t, inst, th, "store32", guard, int32(0x6be))

	big := invokeI32(t, inst, th, "pool_alloc", int32(500))
	require.NotEqual(t, small, big,
		"a 257-byte freed block must not satisfy a 500-byte request from the same size class")

	for off := int32(0); off < 500; off += 4 {
		invokeVoid(t, inst, th, "store32", big+off, int32(-1))
	}

	require.Equal(t, int32(0x6be), invokeI32(t, inst, th, "load32", guard),
		"writing the full requested size into the reused block corrupted an adjacent live allocation")
}

func TestScriptAllocatorFallsBackToHigherClassBlock(t *testing.T) {
	_, inst, th := newPoolTestInstance(t)

	root := invokeI32(t, inst, th, "pool_create_unmanaged")
	invokeVoid(t, inst, th, "pool_push", root)

	// 900 bytes lands one class above 500; with nothing in the 500
	// class yet, a request for 500 should be satisfied by walking up
	// into the 900 block rather than falling through to a fresh bump.
	big := invokeI32(t, inst, th, "pool_alloc", int32(900))
	invokeVoid(t, inst, th, "pool_free", big)

	reused := invokeI32(t, inst, th, "pool_alloc", int32(500))
	require.Equal(t, big, reused, "a sufficiently large block from a higher class should be reused")
}

func TestScriptAllocatorSubThresholdAllocationsAreNeverFreed(t *testing.T) {
	_, inst, th := newPoolTestInstance(t)

	root := invokeI32(t, inst, th, "pool_create_unmanaged")
	invokeVoid(t, inst, th, "pool_push", root)

	a := invokeI32(t, inst, th, "pool_alloc", int32(16))
	invokeVoid(t, inst, th, "pool_free", a)

	b := invokeI32(t, inst, th, "pool_alloc", int32(16))
	require.NotEqual(t, a, b, "sub-threshold blocks bump past, they are never individually reused")
}
