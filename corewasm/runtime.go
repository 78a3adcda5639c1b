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

// Environment is the top-level embedding surface: a registry of host
// modules an embedder supplies in Go, and of module instances that have
// already been instantiated and may be imported by later ones, a named
// multi-module linking space rather than a single fixed runtime.
type Environment struct {
	config      *Config
	hostModules map[string]*HostModule
	instances   map[string]*Instance
	sync        *syncContext
}

// NewEnvironment creates an Environment. A nil config uses
// DefaultConfig().
func NewEnvironment(config *Config) *Environment {
	if config == nil {
		config = DefaultConfig()
	}
	return &Environment{
		config:      config,
		hostModules: map[string]*HostModule{},
		instances:   map[string]*Instance{},
		sync:        newSyncContext(),
	}
}

// RegisterHostModule makes hm's functions/memories/tables/globals
// available as imports under the given module name.
func (e *Environment) RegisterHostModule(name string, hm *HostModule) {
	e.hostModules[name] = hm
}

// Instance returns a previously instantiated module by its registered
// name, or nil.
func (e *Environment) Instance(name string) *Instance { return e.instances[name] }

// RegisterInstance makes an already-instantiated module's exports
// importable under an additional name, for embedders that instantiate
// once and then want to expose the result under an alias.
func (e *Environment) RegisterInstance(name string, inst *Instance) {
	e.instances[name] = inst
}

// Instance is one instantiated module. exportsByName maps each export
// name to its resolved value (a FunctionInstance, *Memory, *Table or
// *Global) for fast import lookup by modules that import this
// instance's exports.
type Instance struct {
	env           *Environment
	module        *Module
	funcs         []FunctionInstance
	tables        []*Table
	memories      []*Memory
	globals       []*Global
	exportsByName map[string]any
}

// Instantiate decodes no further (mod is already a decoded Module): it
// links mod's imports, allocates its own tables/memories/globals/
// functions, places data and element segments, and runs its start
// function if it declares one. On success the instance is registered
// under name so later Instantiate calls can import its exports.
func (e *Environment) Instantiate(name string, mod *Module) (*Instance, error) {
	linked, err := e.resolveImports(mod, name)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		env:           e,
		module:        mod,
		funcs:         append([]FunctionInstance{}, linked.funcs...),
		tables:        append([]*Table{}, linked.tables...),
		memories:      append([]*Memory{}, linked.mems...),
		globals:       append([]*Global{}, linked.globals...),
		exportsByName: map[string]any{},
	}

	for _, t := range mod.Tables {
		inst.tables = append(inst.tables, NewTable(t))
	}
	for _, mt := range mod.Memories {
		inst.memories = append(inst.memories, NewMemory(mt))
	}
	for _, g := range mod.Globals {
		inst.globals = append(inst.globals, NewGlobal(g.Type, resolveGlobalInit(inst, g)))
	}
	for i := range mod.Funcs {
		def := &mod.Funcs[i]
		inst.funcs = append(inst.funcs, &WasmFunc{Instance: inst, Def: def, Sig: &mod.Types[def.SignatureIndex]})
	}

	if err := inst.placeElements(); err != nil {
		return nil, err
	}
	if err := inst.placeData(); err != nil {
		return nil, err
	}

	for _, exp := range mod.Exports {
		inst.exportsByName[exp.Name] = inst.exportObject(exp)
	}

	if mod.StartFunc != sentinelIndex {
		th := e.NewThread()
		if _, err := th.Call(inst.funcs[mod.StartFunc], nil); err != nil {
			return nil, err
		}
	}

	e.instances[name] = inst
	return inst, nil
}

func (inst *Instance) exportObject(exp Export) any {
	switch exp.Kind {
	case FuncKind:
		return inst.funcs[exp.Index]
	case TableKind:
		return inst.tables[exp.Index]
	case MemoryKind:
		return inst.memories[exp.Index]
	case GlobalKind:
		return inst.globals[exp.Index]
	default:
		return nil
	}
}

// resolveGlobalInit evaluates a global's constant initializer, which the
// binary format restricts to either a plain constant or a global.get of
// an already-linked (necessarily imported) global: at the point the
// decoder encounters a global.get initializer it can only name a global
// earlier in the index space, and the MVP binary format only allows
// globals to import, never to precede another module-defined global, so
// that earlier global is always one of inst's already-linked imports.
func resolveGlobalInit(inst *Instance, g GlobalDef) TypedValue {
	if g.InitGlobalIndex == sentinelIndex {
		return g.Init
	}
	return inst.globals[g.InitGlobalIndex].Get()
}

// resolveOffset evaluates an element/data segment's offset expression,
// the same constant-or-imported-global-get restriction as global
// initializers.
func resolveOffset(inst *Instance, offset TypedValue, globalIndex Index) uint32 {
	if globalIndex == sentinelIndex {
		return uint32(offset.Value.i32())
	}
	return uint32(inst.globals[globalIndex].Get().Value.i32())
}

func (inst *Instance) placeElements() error {
	for i := range inst.module.Elements {
		seg := &inst.module.Elements[i]
		if seg.Passive {
			continue
		}
		tbl := inst.tables[seg.TableIndex]
		offset := resolveOffset(inst, seg.Offset, seg.OffsetGlobalIndex)
		if err := tbl.Init(seg.Funcs, 0, offset, uint32(len(seg.Funcs))); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) placeData() error {
	for i := range inst.module.Data {
		seg := &inst.module.Data[i]
		if seg.Passive {
			continue
		}
		mem := inst.memories[seg.MemoryIndex]
		offset := resolveOffset(inst, seg.Offset, seg.OffsetGlobalIndex)
		if err := mem.Init(seg.Bytes, 0, offset, uint32(len(seg.Bytes))); err != nil {
			return err
		}
	}
	return nil
}

// ExportNames lists inst's export names in module declaration order, for
// embedder tooling like the REPL's /list command.
func (inst *Instance) ExportNames() []string {
	names := make([]string, len(inst.module.Exports))
	for i, exp := range inst.module.Exports {
		names[i] = exp.Name
	}
	return names
}

// Export looks up one of inst's exports by name and kind, returning
// TrapUnknownExport / TrapExportKindMismatch as structured errors rather
// than panicking, since this is the embedder-facing boundary.
func (inst *Instance) Export(name string, kind ExternalKind) (any, error) {
	obj, ok := inst.exportsByName[name]
	if !ok {
		return nil, corewasmerr.Execute(corewasmerr.TrapUnknownExport, "no export named "+name)
	}
	switch kind {
	case FuncKind:
		if _, ok := obj.(FunctionInstance); !ok {
			return nil, corewasmerr.Execute(corewasmerr.TrapExportKindMismatch, name+" is not a function")
		}
	case TableKind:
		if _, ok := obj.(*Table); !ok {
			return nil, corewasmerr.Execute(corewasmerr.TrapExportKindMismatch, name+" is not a table")
		}
	case MemoryKind:
		if _, ok := obj.(*Memory); !ok {
			return nil, corewasmerr.Execute(corewasmerr.TrapExportKindMismatch, name+" is not a memory")
		}
	case GlobalKind:
		if _, ok := obj.(*Global); !ok {
			return nil, corewasmerr.Execute(corewasmerr.TrapExportKindMismatch, name+" is not a global")
		}
	}
	return obj, nil
}

// Invoke calls an exported function by name with boxed Go arguments and
// returns boxed Go results, the primary embedder-facing entry point.
func (inst *Instance) Invoke(th *Thread, name string, args ...any) ([]any, error) {
	obj, err := inst.Export(name, FuncKind)
	if err != nil {
		return nil, err
	}
	fn := obj.(FunctionInstance)
	sig := fn.signature()
	if len(args) != len(sig.Params) {
		return nil, corewasmerr.Execute(corewasmerr.TrapArgumentTypeMismatch, "argument count mismatch")
	}
	typed := make([]TypedValue, len(args))
	for i, a := range args {
		typed[i] = TypedValueOf(a, sig.Params[i])
	}
	results, err := th.Call(fn, typed)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Any()
	}
	return out, nil
}
