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

// FunctionInstance is either a *WasmFunc (decoded bytecode, executed by
// Thread.call) or a *HostFunc (a Go closure registered on a HostModule).
type FunctionInstance interface {
	signature() *Signature
}

// Signature exposes fn's parameter/result types, for embedders that need
// to type-check or coerce arguments before calling Instance.Invoke
// directly with a FunctionInstance obtained from Instance.Export.
func Signature(fn FunctionInstance) *Signature { return fn.signature() }

// WasmFunc is one module-defined function ready to execute: its static
// definition plus the Instance it closes over (for memory/table/global
// and call-indirect access).
type WasmFunc struct {
	Instance *Instance
	Def      *Function
	Sig      *Signature
}

func (f *WasmFunc) signature() *Signature { return f.Sig }

// HostFunc is a function the embedder supplies in Go.
type HostFunc struct {
	Sig Signature
	Fn  func(t *Thread, args []TypedValue) ([]TypedValue, error)
}

func (f *HostFunc) signature() *Signature { return &f.Sig }

// HostModule is a named collection of host-provided imports: functions,
// and optionally memories/tables/globals an embedder pre-allocates and
// shares with one or more guest instances.
type HostModule struct {
	Funcs    map[string]*HostFunc
	Memories map[string]*Memory
	Tables   map[string]*Table
	Globals  map[string]*Global
}

func NewHostModule() *HostModule {
	return &HostModule{
		Funcs:    map[string]*HostFunc{},
		Memories: map[string]*Memory{},
		Tables:   map[string]*Table{},
		Globals:  map[string]*Global{},
	}
}

// linkResult is everything resolveImports gathered, in import order
// filtered by kind, ready for Instance allocation to append to.
type linkResult struct {
	funcs   []FunctionInstance
	tables  []*Table
	mems    []*Memory
	globals []*Global
}

// resolveImports resolves every import declared by mod against the
// Environment's registered host modules and already-instantiated
// modules, in declaration order. A module can import from another
// already-instantiated module by referencing that module's registered
// name as the import's module name.
func (e *Environment) resolveImports(mod *Module, instanceName string) (*linkResult, error) {
	res := &linkResult{}
	for _, imp := range mod.Imports {
		obj, err := e.lookupImport(imp)
		if err != nil {
			return nil, wrapLinkErr(instanceName, imp, err)
		}
		switch imp.Kind {
		case FuncKind:
			fn, ok := obj.(FunctionInstance)
			if !ok {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonWrongKind, "not a function")
			}
			want := &mod.Types[imp.TypeIndex]
			if !fn.signature().Equal(want) {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonSignatureMismatch, "function signature mismatch")
			}
			res.funcs = append(res.funcs, fn)
		case TableKind:
			tbl, ok := obj.(*Table)
			if !ok {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonWrongKind, "not a table")
			}
			if tbl.elemType != imp.TableType.ElementType {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonWrongKind, "table element type mismatch")
			}
			if !limitsSatisfy(tableProvidedLimits(tbl), imp.TableType.Limits) {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonLimitsMismatch, "table limits mismatch")
			}
			res.tables = append(res.tables, tbl)
		case MemoryKind:
			mem, ok := obj.(*Memory)
			if !ok {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonWrongKind, "not a memory")
			}
			if !limitsSatisfy(Limits{Min: mem.Size(), Max: mem.limits.Max}, imp.MemoryType.Limits) {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonLimitsMismatch, "memory limits mismatch")
			}
			res.mems = append(res.mems, mem)
		case GlobalKind:
			g, ok := obj.(*Global)
			if !ok {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonWrongKind, "not a global")
			}
			if g.Type.Mutable != imp.GlobalType.Mutable || g.Type.ValueType != imp.GlobalType.ValueType {
				return nil, corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonSignatureMismatch, "global type mismatch")
			}
			res.globals = append(res.globals, g)
		}
	}
	return res, nil
}

func wrapLinkErr(instanceName string, imp Import, err error) error {
	if _, ok := err.(*corewasmerr.Error); ok {
		return err
	}
	return corewasmerr.Link(instanceName, imp.Module, imp.Field, corewasmerr.ReasonMissingExport, err.Error())
}

func tableProvidedLimits(t *Table) Limits {
	return Limits{Min: t.Size(), Max: t.limits.Max}
}

// limitsSatisfy reports whether the object actually provided (provided)
// meets or exceeds what the import declaration (required) demands.
func limitsSatisfy(provided, required Limits) bool {
	if provided.Min < required.Min {
		return false
	}
	if required.Max != nil {
		if provided.Max == nil || *provided.Max > *required.Max {
			return false
		}
	}
	return true
}

// lookupImport finds the object an Import names, first among the
// Environment's registered host modules, then among already-instantiated
// guest modules' exports.
func (e *Environment) lookupImport(imp Import) (any, error) {
	if hm, ok := e.hostModules[imp.Module]; ok {
		switch imp.Kind {
		case FuncKind:
			if f, ok := hm.Funcs[imp.Field]; ok {
				return f, nil
			}
		case MemoryKind:
			if m, ok := hm.Memories[imp.Field]; ok {
				return m, nil
			}
		case TableKind:
			if t, ok := hm.Tables[imp.Field]; ok {
				return t, nil
			}
		case GlobalKind:
			if g, ok := hm.Globals[imp.Field]; ok {
				return g, nil
			}
		}
	}
	if inst, ok := e.instances[imp.Module]; ok {
		if exp, ok := inst.exportsByName[imp.Field]; ok {
			return exp, nil
		}
	}
	return nil, corewasmerr.Link("", imp.Module, imp.Field, corewasmerr.ReasonMissingExport, "no such import")
}
