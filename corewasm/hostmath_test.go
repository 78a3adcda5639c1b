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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const hostMathTestWat = `(module
	(import "env" "_ws_sqrtd" (func $sqrtd (param f64) (result f64)))
	(import "env" "_ws_powd" (func $powd (param f64 f64) (result f64)))
	(import "env" "_ws_atan2f" (func $atan2f (param f32 f32) (result f32)))
	(import "env" "_ws_modfd" (func $modfd (param f64 i32) (result f64)))
	(import "env" "_ws_frexpd" (func $frexpd (param f64 i32) (result f64)))
	(memory (export "memory") 1)
	(func (export "sqrtd") (param f64) (result f64) local.get 0 call $sqrtd)
	(func (export "powd") (param f64 f64) (result f64) local.get 0 local.get 1 call $powd)
	(func (export "atan2f") (param f32 f32) (result f32) local.get 0 local.get 1 call $atan2f)
	(func (export "modfd") (param f64 i32) (result f64) local.get 0 local.get 1 call $modfd)
	(func (export "frexpd") (param f64 i32) (result f64) local.get 0 local.get 1 call $frexpd)
	(func (export "load64") (param $addr i32) (result f64) local.get $addr f64.load)
	(func (export "loadi32") (param $addr i32) (result i32) local.get $addr i32.load))`

func newHostMathTestInstance(t *testing.T) (*Instance, *Thread) {
	t.Helper()
	env := NewEnvironment(nil)
	env.RegisterHostMath("env")
	inst, err := env.Instantiate("m", decodeWat(t, hostMathTestWat))
	require.NoError(t, err)
	return inst, env.NewThread()
}

func invokeF64(t *testing.T, inst *Instance, th *Thread, name string, args ...any) float64 {
	t.Helper()
	results, err := inst.Invoke(th, name, args...)
	require.NoError(t, err)
	require.Len(t, results, 1)
	v, ok := results[0].(float64)
	require.True(t, ok)
	return v
}

func TestHostMathUnaryAndBinary(t *testing.T) {
	inst, th := newHostMathTestInstance(t)

	require.InDelta(t, 3.0, invokeF64(t, inst, th, "sqrtd", 9.0), 1e-9)
	require.InDelta(t, 8.0, invokeF64(t, inst, th, "powd", 2.0, 3.0), 1e-9)

	results, err := inst.Invoke(th, "atan2f", float32(1), float32(1))
	require.NoError(t, err)
	require.InDelta(t, float64(math.Atan2(1, 1)), float64(results[0].(float32)), 1e-6)
}

func TestHostMathModfWritesIntegerPartToMemory(t *testing.T) {
	inst, th := newHostMathTestInstance(t)

	const ptr = 64
	frac := invokeF64(t, inst, th, "modfd", 3.25, int32(ptr))
	require.InDelta(t, 0.25, frac, 1e-9)
	require.InDelta(t, 3.0, invokeF64(t, inst, th, "load64", int32(ptr)), 1e-9)
}

func TestHostMathFrexpWritesExponentToMemory(t *testing.T) {
	inst, th := newHostMathTestInstance(t)

	const ptr = 64
	frac := invokeF64(t, inst, th, "frexpd", 8.0, int32(ptr))
	require.InDelta(t, 0.5, frac, 1e-9)

	results, err := inst.Invoke(th, "loadi32", int32(ptr))
	require.NoError(t, err)
	require.Equal(t, int32(4), results[0].(int32))
}
