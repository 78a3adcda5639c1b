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

const hostStdTestWat = `(module
	(import "env" "memcpy" (func $memcpy (param i32 i32 i32) (result i32)))
	(import "env" "memcmp" (func $memcmp (param i32 i32 i32) (result i32)))
	(import "env" "memset" (func $memset (param i32 i32 i32) (result i32)))
	(import "env" "strlen" (func $strlen (param i32) (result i32)))
	(import "env" "strcmp" (func $strcmp (param i32 i32) (result i32)))
	(import "env" "strncmp" (func $strncmp (param i32 i32 i32) (result i32)))
	(memory (export "memory") 1)
	(func (export "memcpy") (param i32 i32 i32) (result i32) local.get 0 local.get 1 local.get 2 call $memcpy)
	(func (export "memcmp") (param i32 i32 i32) (result i32) local.get 0 local.get 1 local.get 2 call $memcmp)
	(func (export "memset") (param i32 i32 i32) (result i32) local.get 0 local.get 1 local.get 2 call $memset)
	(func (export "strlen") (param i32) (result i32) local.get 0 call $strlen)
	(func (export "strcmp") (param i32 i32) (result i32) local.get 0 local.get 1 call $strcmp)
	(func (export "strncmp") (param i32 i32 i32) (result i32) local.get 0 local.get 1 local.get 2 call $strncmp)
	(func (export "store8") (param $addr i32) (param $val i32)
		local.get $addr
		local.get $val
		i32.store8)
	(func (export "load8") (param $addr i32) (result i32)
		local.get $addr
		i32.load8_u))`

func newHostStdTestInstance(t *testing.T) (*Instance, *Thread) {
	t.Helper()
	env := NewEnvironment(nil)
	env.RegisterCStdlib("env", nil)
	inst, err := env.Instantiate("m", decodeWat(t, hostStdTestWat))
	require.NoError(t, err)
	return inst, env.NewThread()
}

func writeCString(t *testing.T, inst *Instance, th *Thread, addr int32, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		invokeVoid(t, inst, th, "store8", addr+int32(i), int32(s[i]))
	}
	invokeVoid(t, inst, th, "store8", addr+int32(len(s)), int32(0))
}

func TestHostStdlibMemFuncs(t *testing.T) {
	inst, th := newHostStdTestInstance(t)

	invokeVoid(t, inst, th, "store8", int32(0), int32('a'))
	invokeVoid(t, inst, th, "store8", int32(1), int32('b'))
	invokeVoid(t, inst, th, "store8", int32(2), int32('c'))

	invokeI32(t, inst, th, "memcpy", int32(100), int32(0), int32(3))
	require.Equal(t, int32(0), invokeI32(t, inst, th, "memcmp", int32(0), int32(100), int32(3)))

	invokeI32(t, inst, th, "memset", int32(200), int32('x'), int32(4))
	require.Equal(t, int32('x'), invokeI32(t, inst, th, "load8", int32(203)))
}

func TestHostStdlibStringFuncs(t *testing.T) {
	inst, th := newHostStdTestInstance(t)

	writeCString(t, inst, th, 0, "hello")
	require.Equal(t, int32(5), invokeI32(t, inst, th, "strlen", int32(0)))

	writeCString(t, inst, th, 100, "hello")
	require.Equal(t, int32(0), invokeI32(t, inst, th, "strcmp", int32(0), int32(100)))

	writeCString(t, inst, th, 200, "help")
	require.Equal(t, int32(0), invokeI32(t, inst, th, "strncmp", int32(0), int32(200), int32(3)))
	require.NotEqual(t, int32(0), invokeI32(t, inst, th, "strcmp", int32(0), int32(200)))
}
