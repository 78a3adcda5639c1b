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

func TestInstantiateWithHostFunctionImport(t *testing.T) {
	wat := `(module
		(import "env" "double" (func $double (param i32) (result i32)))
		(func (export "quad") (param i32) (result i32)
			local.get 0
			call $double
			call $double))`
	mod := decodeWat(t, wat)

	env := NewEnvironment(nil)
	hm := NewHostModule()
	hm.Funcs["double"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{TypedValueOf(args[0].Value.i32()*2, I32)}, nil
		},
	}
	env.RegisterHostModule("env", hm)

	inst, err := env.Instantiate("m", mod)
	require.NoError(t, err)

	th := env.NewThread()
	results, err := inst.Invoke(th, "quad", int32(5))
	require.NoError(t, err)
	require.Equal(t, []any{int32(20)}, results)
}

func TestInstantiateImportSignatureMismatchFails(t *testing.T) {
	wat := `(module
		(import "env" "f" (func $f (param i32 i32) (result i32))))`
	mod := decodeWat(t, wat)

	env := NewEnvironment(nil)
	hm := NewHostModule()
	hm.Funcs["f"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) { return nil, nil },
	}
	env.RegisterHostModule("env", hm)

	_, err := env.Instantiate("m", mod)
	require.Error(t, err)
}

func TestInstantiateMissingImportFails(t *testing.T) {
	wat := `(module (import "env" "missing" (func (result i32))))`
	mod := decodeWat(t, wat)

	_, err := NewEnvironment(nil).Instantiate("m", mod)
	require.Error(t, err)
}

func TestCrossModuleImport(t *testing.T) {
	producer := decodeWat(t, `(module (func (export "answer") (result i32) i32.const 42))`)
	consumer := decodeWat(t, `(module
		(import "producer" "answer" (func $answer (result i32)))
		(func (export "run") (result i32) call $answer))`)

	env := NewEnvironment(nil)
	_, err := env.Instantiate("producer", producer)
	require.NoError(t, err)

	consumerInst, err := env.Instantiate("consumer", consumer)
	require.NoError(t, err)

	th := env.NewThread()
	results, err := consumerInst.Invoke(th, "run")
	require.NoError(t, err)
	require.Equal(t, []any{int32(42)}, results)
}

func TestRegisterInstanceAlias(t *testing.T) {
	producer := decodeWat(t, `(module (func (export "answer") (result i32) i32.const 7))`)
	consumer := decodeWat(t, `(module
		(import "aliased" "answer" (func $answer (result i32)))
		(func (export "run") (result i32) call $answer))`)

	env := NewEnvironment(nil)
	producerInst, err := env.Instantiate("producer", producer)
	require.NoError(t, err)
	env.RegisterInstance("aliased", producerInst)

	consumerInst, err := env.Instantiate("consumer", consumer)
	require.NoError(t, err)

	th := env.NewThread()
	results, err := consumerInst.Invoke(th, "run")
	require.NoError(t, err)
	require.Equal(t, []any{int32(7)}, results)
}

func TestExportKindMismatch(t *testing.T) {
	mod := decodeWat(t, `(module (func (export "f") (result i32) i32.const 1))`)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	_, err = inst.Export("f", MemoryKind)
	require.Error(t, err)
	var wasmErr *corewasmerr.Error
	require.ErrorAs(t, err, &wasmErr)
	require.Equal(t, corewasmerr.TrapExportKindMismatch, wasmErr.Trap)
}

func TestExportNamesInDeclarationOrder(t *testing.T) {
	mod := decodeWat(t, `(module
		(func (export "a") (result i32) i32.const 1)
		(func (export "b") (result i32) i32.const 2))`)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, inst.ExportNames())
}

func TestStartFunctionRunsDuringInstantiate(t *testing.T) {
	wat := `(module
		(memory (export "mem") 1)
		(func $init
			i32.const 0
			i32.const 99
			i32.store)
		(start $init))`
	mod := decodeWat(t, wat)
	inst, err := NewEnvironment(nil).Instantiate("m", mod)
	require.NoError(t, err)

	obj, err := inst.Export("mem", MemoryKind)
	require.NoError(t, err)
	got, err := obj.(*Memory).Read(0, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{99, 0, 0, 0}, got)
}
