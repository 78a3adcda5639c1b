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

// Package spectest drives the upstream .wast conformance suite against
// the corewasm interpreter: each .wast file is expanded to JSON plus a
// set of compiled .wasm fixtures by wast2json, then replayed command by
// command.
package spectest

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/corewasm/corewasm/corewasm"
	"github.com/corewasm/corewasm/wabt"
)

const spectestModuleName = "spectest"

// runner holds the state needed to replay one .wast file's commands
// against a fresh Environment.
type runner struct {
	t               *testing.T
	wasmDict        map[string][]byte
	env             *corewasm.Environment
	instancesByName map[string]*corewasm.Instance
	lastInstance    *corewasm.Instance
}

func newRunner(t *testing.T, wasmDict map[string][]byte) *runner {
	env := corewasm.NewEnvironment(nil)
	env.RegisterHostModule(spectestModuleName, buildSpectestHostModule())
	return &runner{
		t:               t,
		wasmDict:        wasmDict,
		env:             env,
		instancesByName: make(map[string]*corewasm.Instance),
	}
}

// buildSpectestHostModule assembles the fixed "spectest" import module
// the upstream suite expects every test harness to provide: a handful
// of globals, one table, one memory and a family of print_* functions
// that discard their arguments.
func buildSpectestHostModule() *corewasm.HostModule {
	hm := corewasm.NewHostModule()

	hm.Globals["global_i32"] = corewasm.NewGlobal(
		corewasm.GlobalType{ValueType: corewasm.I32, Mutable: false},
		corewasm.TypedValueOf(int32(666), corewasm.I32),
	)
	hm.Globals["global_i64"] = corewasm.NewGlobal(
		corewasm.GlobalType{ValueType: corewasm.I64, Mutable: false},
		corewasm.TypedValueOf(int64(666), corewasm.I64),
	)
	hm.Globals["global_f32"] = corewasm.NewGlobal(
		corewasm.GlobalType{ValueType: corewasm.F32, Mutable: false},
		corewasm.TypedValueOf(float32(666.6), corewasm.F32),
	)
	hm.Globals["global_f64"] = corewasm.NewGlobal(
		corewasm.GlobalType{ValueType: corewasm.F64, Mutable: false},
		corewasm.TypedValueOf(float64(666.6), corewasm.F64),
	)

	tableMax := uint32(20)
	hm.Tables["table"] = corewasm.NewTable(corewasm.TableType{
		ElementType: corewasm.FuncRefType,
		Limits:      corewasm.Limits{Min: 10, Max: &tableMax},
	})

	memMax := uint32(2)
	hm.Memories["memory"] = corewasm.NewMemory(corewasm.MemoryType{
		Limits: corewasm.Limits{Min: 1, Max: &memMax},
	})

	noop := func(t *corewasm.Thread, args []corewasm.TypedValue) ([]corewasm.TypedValue, error) {
		return nil, nil
	}
	hm.Funcs["print"] = &corewasm.HostFunc{Fn: noop}
	hm.Funcs["print_i32"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.I32}}, Fn: noop,
	}
	hm.Funcs["print_i64"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.I64}}, Fn: noop,
	}
	hm.Funcs["print_f32"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.F32}}, Fn: noop,
	}
	hm.Funcs["print_f64"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.F64}}, Fn: noop,
	}
	hm.Funcs["print_i32_f32"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.I32, corewasm.F32}}, Fn: noop,
	}
	hm.Funcs["print_f64_f64"] = &corewasm.HostFunc{
		Sig: corewasm.Signature{Params: []corewasm.ValueType{corewasm.F64, corewasm.F64}}, Fn: noop,
	}

	return hm
}

func (r *runner) run(commands []wabt.Command) {
	for _, cmd := range commands {
		switch cmd.Type {
		case "module":
			r.handleModule(cmd)
		case "assert_return":
			r.handleAssertReturn(cmd)
		case "assert_trap":
			r.handleAssertTrap(cmd)
		case "assert_exhaustion":
			r.handleAssertExhaustion(cmd)
		case "assert_uninstantiable":
			r.handleAssertFails(cmd, "expected uninstantiable module")
		case "assert_unlinkable":
			r.handleAssertFails(cmd, "expected unlinkable module")
		case "assert_invalid", "assert_malformed":
			r.handleAssertDecodeFails(cmd)
		case "register":
			r.handleRegister(cmd)
		case "action":
			if _, err := r.handleAction(cmd.Action); err != nil {
				r.fatalf(cmd.Line, "action failed: %v", err)
			}
		default:
			r.t.Logf("line %d: skipping unsupported command %q", cmd.Line, cmd.Type)
		}
	}
}

func (r *runner) handleModule(cmd wabt.Command) {
	mod, err := corewasm.Decode(bytes.NewReader(r.wasmDict[cmd.Filename]), nil)
	if err != nil {
		r.fatalf(cmd.Line, "failed to decode module %s: %v", cmd.Filename, err)
		return
	}
	name := cmd.Name
	if name == "" {
		name = fmt.Sprintf("anon$%d", cmd.Line)
	}
	inst, err := r.env.Instantiate(name, mod)
	if err != nil {
		r.fatalf(cmd.Line, "failed to instantiate module %s: %v", cmd.Filename, err)
		return
	}
	r.lastInstance = inst
	r.instancesByName[name] = inst
	if cmd.Name != "" {
		r.instancesByName[cmd.Name] = inst
	}
}

func (r *runner) handleRegister(cmd wabt.Command) {
	if r.lastInstance == nil {
		r.fatalf(cmd.Line, "no module to register")
		return
	}
	r.env.RegisterInstance(cmd.As, r.lastInstance)
}

func (r *runner) handleAssertReturn(cmd wabt.Command) {
	actual, err := r.handleAction(cmd.Action)
	if err != nil {
		r.fatalf(cmd.Line, "action failed unexpectedly: %v", err)
		return
	}
	if len(actual) != len(cmd.Expected) {
		r.fatalf(cmd.Line, "expected %d results, got %d", len(cmd.Expected), len(actual))
		return
	}
	for i := range actual {
		want, err := valueToGo(cmd.Expected[i])
		if err != nil {
			r.fatalf(cmd.Line, "bad expected value: %v", err)
			return
		}
		if !valuesEqual(want, actual[i]) {
			r.fatalf(cmd.Line, "mismatch: want %v (%T), got %v (%T)", want, want, actual[i], actual[i])
		}
	}
}

func (r *runner) handleAssertTrap(cmd wabt.Command) {
	if cmd.Filename != "" {
		r.handleAssertFails(cmd, "expected instantiation trap")
		return
	}
	if _, err := r.handleAction(cmd.Action); err == nil {
		r.fatalf(cmd.Line, "expected trap, got no error")
	}
}

func (r *runner) handleAssertExhaustion(cmd wabt.Command) {
	_, err := r.handleAction(cmd.Action)
	if err == nil {
		r.fatalf(cmd.Line, "expected stack exhaustion, got no error")
	}
}

func (r *runner) handleAssertFails(cmd wabt.Command, msg string) {
	mod, err := corewasm.Decode(bytes.NewReader(r.wasmDict[cmd.Filename]), nil)
	if err != nil {
		return
	}
	name := fmt.Sprintf("assert$%d", cmd.Line)
	if _, err := r.env.Instantiate(name, mod); err == nil {
		r.fatalf(cmd.Line, "%s, but it wasn't", msg)
	}
}

func (r *runner) handleAssertDecodeFails(cmd wabt.Command) {
	if strings.HasSuffix(cmd.Filename, ".wat") {
		// Text-format malformed cases never reach us as binaries.
		return
	}
	mod, err := corewasm.Decode(bytes.NewReader(r.wasmDict[cmd.Filename]), nil)
	if err != nil {
		return
	}
	name := fmt.Sprintf("assert$%d", cmd.Line)
	if _, err := r.env.Instantiate(name, mod); err == nil {
		r.fatalf(cmd.Line, "expected decode/validation error, got none")
	}
}

func (r *runner) handleAction(action *wabt.Action) ([]any, error) {
	inst := r.resolveInstance(action.Module)
	switch action.Type {
	case "invoke":
		args := make([]any, len(action.Args))
		for i, a := range action.Args {
			v, err := valueToGo(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = v
		}
		th := r.env.NewThread()
		return inst.Invoke(th, action.Field, args...)
	case "get":
		obj, err := inst.Export(action.Field, corewasm.GlobalKind)
		if err != nil {
			return nil, err
		}
		return []any{obj.(*corewasm.Global).Get().Any()}, nil
	default:
		return nil, fmt.Errorf("unsupported action type %q", action.Type)
	}
}

func (r *runner) resolveInstance(name string) *corewasm.Instance {
	if name == "" {
		if r.lastInstance == nil {
			r.t.Fatal("no module instance available for action")
		}
		return r.lastInstance
	}
	inst, ok := r.instancesByName[name]
	if !ok {
		r.t.Fatalf("module instance %q not found", name)
	}
	return inst
}

func (r *runner) fatalf(line int, format string, args ...any) {
	r.t.Helper()
	r.t.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func valuesEqual(want, got any) bool {
	switch w := want.(type) {
	case float32:
		g, ok := got.(float32)
		return ok && floatsEqual(w, g)
	case float64:
		g, ok := got.(float64)
		return ok && floatsEqual(w, g)
	default:
		return want == got
	}
}

func floatsEqual[T float32 | float64](want, got T) bool {
	if math.IsNaN(float64(want)) {
		return math.IsNaN(float64(got))
	}
	return want == got
}

func valueToGo(v wabt.Value) (any, error) {
	s, ok := v.Value.(string)
	if !ok {
		return nil, fmt.Errorf("value for type %s is not a string: %T", v.Type, v.Value)
	}
	switch v.Type {
	case "i32":
		n, err := strconv.ParseUint(s, 10, 32)
		return int32(n), err
	case "i64":
		n, err := strconv.ParseUint(s, 10, 64)
		return int64(n), err
	case "f32":
		return parseF32(s)
	case "f64":
		return parseF64(s)
	case "externref", "funcref":
		if s == "null" {
			return corewasm.NullReference, nil
		}
		n, err := strconv.ParseUint(s, 10, 32)
		return int32(n), err
	default:
		return nil, fmt.Errorf("unsupported value type %q", v.Type)
	}
}

func parseF32(s string) (float32, error) {
	if pattern, ok := strings.CutPrefix(s, "nan:"); ok {
		switch pattern {
		case "canonical":
			return math.Float32frombits(0x7fc00000), nil
		case "arithmetic":
			return math.Float32frombits(0x7fc00001), nil
		default:
			return 0, fmt.Errorf("unknown NaN pattern %q", s)
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(n)), nil
}

func parseF64(s string) (float64, error) {
	if pattern, ok := strings.CutPrefix(s, "nan:"); ok {
		switch pattern {
		case "canonical":
			return math.Float64frombits(0x7ff8000000000000), nil
		case "arithmetic":
			return math.Float64frombits(0x7ff8000000000001), nil
		default:
			return 0, fmt.Errorf("unknown NaN pattern %q", s)
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(n), nil
}
