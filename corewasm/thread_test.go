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

	"github.com/corewasm/corewasm/corewasm/corewasmerr"
)

func invokeTrap(t *testing.T, env *Environment, inst *Instance, name string, args ...any) *corewasmerr.Error {
	t.Helper()
	th := env.NewThread()
	_, err := inst.Invoke(th, name, args...)
	require.Error(t, err)
	var wasmErr *corewasmerr.Error
	require.ErrorAs(t, err, &wasmErr)
	return wasmErr
}

func TestUnreachableTraps(t *testing.T) {
	env := NewEnvironment(nil)
	inst, err := env.Instantiate("m", decodeWat(t, `(module (func (export "f") unreachable))`))
	require.NoError(t, err)

	wasmErr := invokeTrap(t, env, inst, "f")
	require.Equal(t, corewasmerr.TrapUnreachable, wasmErr.Trap)
}

func TestIntegerDivideByZeroTraps(t *testing.T) {
	wat := `(module (func (export "f") (param i32) (result i32)
		i32.const 10
		local.get 0
		i32.div_s))`
	env := NewEnvironment(nil)
	inst, err := env.Instantiate("m", decodeWat(t, wat))
	require.NoError(t, err)

	wasmErr := invokeTrap(t, env, inst, "f", int32(0))
	require.Equal(t, corewasmerr.TrapIntegerDivideByZero, wasmErr.Trap)
}

func TestMemoryAccessOutOfBoundsTraps(t *testing.T) {
	wat := `(module (memory 1) (func (export "f") (result i32)
		i32.const 65536
		i32.load))`
	env := NewEnvironment(nil)
	inst, err := env.Instantiate("m", decodeWat(t, wat))
	require.NoError(t, err)

	wasmErr := invokeTrap(t, env, inst, "f")
	require.Equal(t, corewasmerr.TrapMemoryAccessOutOfBounds, wasmErr.Trap)
}

func TestCallStackExhaustionTraps(t *testing.T) {
	wat := `(module (func $rec (export "rec") (result i32)
		call $rec))`
	cfg := DefaultConfig()
	cfg.MaxCallStackDepth = 8
	env := NewEnvironment(cfg)
	inst, err := env.Instantiate("m", decodeWat(t, wat))
	require.NoError(t, err)

	wasmErr := invokeTrap(t, env, inst, "rec")
	require.Equal(t, corewasmerr.TrapCallStackExhausted, wasmErr.Trap)
}

func TestTrapUnwindsOperandStack(t *testing.T) {
	// A trap mid-function must reset the operand stack to the pre-call
	// height, not leave partially-pushed garbage for the next call on
	// the same Thread to trip over.
	wat := `(module (func (export "trap") unreachable)
		(func (export "add") (param i32 i32) (result i32)
			local.get 0 local.get 1 i32.add))`
	env := NewEnvironment(nil)
	inst, err := env.Instantiate("m", decodeWat(t, wat))
	require.NoError(t, err)

	th := env.NewThread()
	_, err = inst.Invoke(th, "trap")
	require.Error(t, err)

	results, err := inst.Invoke(th, "add", int32(2), int32(3))
	require.NoError(t, err)
	require.Equal(t, []any{int32(5)}, results)
}
