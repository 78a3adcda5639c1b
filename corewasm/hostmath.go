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
	"encoding/binary"
	"math"
)

// RegisterHostMath builds a libm-style host module under moduleName on e,
// exposing each wrapped function as an F64 "_ws_<name>d" paired with an
// F32 "_ws_<name>f", the naming and signature convention guest toolchains
// compiled against a math.h shim expect from their host environment.
func (e *Environment) RegisterHostMath(moduleName string) *HostModule {
	hm := NewHostModule()

	unary := []struct {
		name string
		fn   func(float64) float64
	}{
		{"cos", math.Cos}, {"sin", math.Sin}, {"tan", math.Tan},
		{"acos", math.Acos}, {"asin", math.Asin}, {"atan", math.Atan},
		{"cosh", math.Cosh}, {"sinh", math.Sinh}, {"tanh", math.Tanh},
		{"acosh", math.Acosh}, {"asinh", math.Asinh}, {"atanh", math.Atanh},
		{"exp", math.Exp}, {"log", math.Log}, {"log10", math.Log10},
		{"exp2", math.Exp2}, {"sqrt", math.Sqrt}, {"ceil", math.Ceil},
		{"floor", math.Floor}, {"trunc", math.Trunc}, {"round", math.Round},
		{"fabs", math.Abs},
	}
	for _, u := range unary {
		registerUnaryMathFunc(hm, u.name, u.fn)
	}

	binaryFns := []struct {
		name string
		fn   func(float64, float64) float64
	}{
		{"atan2", math.Atan2}, {"fmod", math.Mod}, {"pow", math.Pow},
	}
	for _, b := range binaryFns {
		registerBinaryMathFunc(hm, b.name, b.fn)
	}

	hm.Funcs["_ws_lroundd"] = hostMathFunc1To1(F64, I32, func(x float64) TypedValue {
		return TypedValueOf(int32(math.Round(x)), I32)
	})
	hm.Funcs["_ws_lroundf"] = hostMathFuncF32To1(I32, func(x float32) TypedValue {
		return TypedValueOf(int32(math.Round(float64(x))), I32)
	})

	hm.Funcs["_ws_ldexpd"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F64, I32}, Results: []ValueType{F64}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{TypedValueOf(math.Ldexp(args[0].Value.f64(), int(args[1].Value.i32())), F64)}, nil
		},
	}
	hm.Funcs["_ws_ldexpf"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F32, I32}, Results: []ValueType{F32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			v := float32(math.Ldexp(float64(args[0].Value.f32()), int(args[1].Value.i32())))
			return []TypedValue{TypedValueOf(v, F32)}, nil
		},
	}

	hm.Funcs["_ws_modfd"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F64, I32}, Results: []ValueType{F64}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			intPart, frac := math.Modf(args[0].Value.f64())
			mem := t.memOf(0)
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(intPart))
			if err := mem.Write(Address(args[1].Value.i32()), 0, buf[:]); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(frac, F64)}, nil
		},
	}
	hm.Funcs["_ws_modff"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F32, I32}, Results: []ValueType{F32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			intPart, frac := math.Modf(float64(args[0].Value.f32()))
			mem := t.memOf(0)
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(intPart)))
			if err := mem.Write(Address(args[1].Value.i32()), 0, buf[:]); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(float32(frac), F32)}, nil
		},
	}

	hm.Funcs["_ws_frexpd"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F64, I32}, Results: []ValueType{F64}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			frac, exp := math.Frexp(args[0].Value.f64())
			if err := writeI32(t.memOf(0), Address(args[1].Value.i32()), int32(exp)); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(frac, F64)}, nil
		},
	}
	hm.Funcs["_ws_frexpf"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F32, I32}, Results: []ValueType{F32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			frac, exp := math.Frexp(float64(args[0].Value.f32()))
			if err := writeI32(t.memOf(0), Address(args[1].Value.i32()), int32(exp)); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(float32(frac), F32)}, nil
		},
	}

	hm.Funcs["_ws_nand"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{F64}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{TypedValueOf(math.NaN(), F64)}, nil
		},
	}
	hm.Funcs["_ws_nanf"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{F32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{TypedValueOf(float32(math.NaN()), F32)}, nil
		},
	}

	e.RegisterHostModule(moduleName, hm)
	return hm
}

func registerUnaryMathFunc(hm *HostModule, name string, fn func(float64) float64) {
	hm.Funcs["_ws_"+name+"d"] = hostMathFunc1To1(F64, F64, func(x float64) TypedValue {
		return TypedValueOf(fn(x), F64)
	})
	hm.Funcs["_ws_"+name+"f"] = hostMathFuncF32To1(F32, func(x float32) TypedValue {
		return TypedValueOf(float32(fn(float64(x))), F32)
	})
}

func registerBinaryMathFunc(hm *HostModule, name string, fn func(a, b float64) float64) {
	hm.Funcs["_ws_"+name+"d"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F64, F64}, Results: []ValueType{F64}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{TypedValueOf(fn(args[0].Value.f64(), args[1].Value.f64()), F64)}, nil
		},
	}
	hm.Funcs["_ws_"+name+"f"] = &HostFunc{
		Sig: Signature{Params: []ValueType{F32, F32}, Results: []ValueType{F32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			v := float32(fn(float64(args[0].Value.f32()), float64(args[1].Value.f32())))
			return []TypedValue{TypedValueOf(v, F32)}, nil
		},
	}
}

// hostMathFunc1To1 wraps an F64-in function that produces one TypedValue
// result of resultType.
func hostMathFunc1To1(paramType, resultType ValueType, fn func(float64) TypedValue) *HostFunc {
	return &HostFunc{
		Sig: Signature{Params: []ValueType{paramType}, Results: []ValueType{resultType}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{fn(args[0].Value.f64())}, nil
		},
	}
}

// hostMathFuncF32To1 wraps an F32-in function that produces one TypedValue
// result of resultType.
func hostMathFuncF32To1(resultType ValueType, fn func(float32) TypedValue) *HostFunc {
	return &HostFunc{
		Sig: Signature{Params: []ValueType{F32}, Results: []ValueType{resultType}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			return []TypedValue{fn(args[0].Value.f32())}, nil
		},
	}
}

func writeI32(mem *Memory, addr Address, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return mem.Write(addr, 0, buf[:])
}
