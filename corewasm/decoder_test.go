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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/wabt"
)

func decodeWat(t *testing.T, wat string) *Module {
	t.Helper()
	wasm, err := wabt.Wat2Wasm(wat)
	require.NoError(t, err)
	mod, err := Decode(bytes.NewReader(wasm), nil)
	require.NoError(t, err)
	return mod
}

func TestDecodeEmptyModule(t *testing.T) {
	mod := decodeWat(t, "(module)")
	require.Empty(t, mod.Funcs)
	require.Equal(t, sentinelIndex, mod.StartFunc)
}

func TestDecodeStartFunction(t *testing.T) {
	// Regression test: Decode used to silently discard a module's start
	// function because the reconciliation flag that tracked whether a
	// start section was seen was never set.
	wat := `(module
		(global $counter (mut i32) (i32.const 0))
		(func $init
			i32.const 42
			global.set $counter)
		(start $init)
		(func (export "counter") (result i32)
			global.get $counter))`
	mod := decodeWat(t, wat)
	require.NotEqual(t, sentinelIndex, mod.StartFunc)

	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	th := inst.env.NewThread()
	results, err := inst.Invoke(th, "counter")
	require.NoError(t, err)
	require.Equal(t, []any{int32(42)}, results)
}

func TestDecodeBranchUnwindsExtraOperands(t *testing.T) {
	// The WASM validator allows extra values above a branch's target
	// arity to still sit on the stack at the branch site; the decoder
	// must compute a per-branch-site drop count rather than a single
	// per-label one, or this leaves garbage under the block's result.
	wat := `(module
		(func (export "run") (result i32)
			(block (result i32)
				i32.const 1
				i32.const 2
				i32.const 3
				br 0)))`
	mod := decodeWat(t, wat)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	th := inst.env.NewThread()
	results, err := inst.Invoke(th, "run")
	require.NoError(t, err)
	require.Equal(t, []any{int32(3)}, results)
}

func TestDecodeLoopBranchUsesInputArityNotResultArity(t *testing.T) {
	// A branch targeting a loop's head must use the loop's input arity
	// (always 0 here), not its result arity: only the loop's own "end"
	// consumes the result type.
	wat := `(module
		(func (export "run") (result i32)
			(local $i i32)
			(local $sum i32)
			(loop $l (result i32)
				local.get $i
				i32.const 1
				i32.add
				local.set $i
				local.get $sum
				local.get $i
				i32.add
				local.set $sum
				local.get $i
				i32.const 5
				i32.lt_s
				br_if $l
				local.get $sum)))`
	mod := decodeWat(t, wat)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	th := inst.env.NewThread()
	results, err := inst.Invoke(th, "run")
	require.NoError(t, err)
	require.Equal(t, []any{int32(1 + 2 + 3 + 4 + 5)}, results)
}

func TestDecodeBrTable(t *testing.T) {
	wat := `(module
		(func (export "pick") (param i32) (result i32)
			(block $two (result i32)
				(block $one (result i32)
					(block $zero (result i32)
						i32.const 0
						local.get 0
						br_table $zero $one $two $two)
					i32.const 100
					i32.add
					return)
				i32.const 200
				i32.add
				return)
			i32.const 300
			i32.add))`
	mod := decodeWat(t, wat)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	for arg, want := range map[int32]int32{0: 100, 1: 200, 2: 300, 3: 300} {
		th := inst.env.NewThread()
		results, err := inst.Invoke(th, "pick", arg)
		require.NoError(t, err)
		require.Equal(t, []any{want}, results, "arg %d", arg)
	}
}
