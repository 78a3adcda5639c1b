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

// Opcode identifies one WASM instruction. Multi-byte encodings (the 0xfc
// "misc" prefix for saturating truncation and bulk-memory ops, and the
// 0xfe "atomic" prefix for the threads proposal) are folded into this
// single flat space at decode time so the interpreter dispatch loop never
// has to re-read a prefix byte.
type Opcode uint16

const (
	Unreachable Opcode = iota
	Nop
	Block
	Loop
	If
	Else
	End
	Br
	BrIf
	BrTable
	Return
	Call
	CallIndirect
	Drop
	Select

	LocalGet
	LocalSet
	LocalTee
	GlobalGet
	GlobalSet

	I32Load
	I64Load
	F32Load
	F64Load
	I32Load8S
	I32Load8U
	I32Load16S
	I32Load16U
	I64Load8S
	I64Load8U
	I64Load16S
	I64Load16U
	I64Load32S
	I64Load32U
	I32Store
	I64Store
	F32Store
	F64Store
	I32Store8
	I32Store16
	I64Store8
	I64Store16
	I64Store32
	MemorySize
	MemoryGrow

	I32Const
	I64Const
	F32Const
	F64Const

	I32Eqz
	I32Eq
	I32Ne
	I32LtS
	I32LtU
	I32GtS
	I32GtU
	I32LeS
	I32LeU
	I32GeS
	I32GeU
	I64Eqz
	I64Eq
	I64Ne
	I64LtS
	I64LtU
	I64GtS
	I64GtU
	I64LeS
	I64LeU
	I64GeS
	I64GeU
	F32Eq
	F32Ne
	F32Lt
	F32Gt
	F32Le
	F32Ge
	F64Eq
	F64Ne
	F64Lt
	F64Gt
	F64Le
	F64Ge

	I32Clz
	I32Ctz
	I32Popcnt
	I32Add
	I32Sub
	I32Mul
	I32DivS
	I32DivU
	I32RemS
	I32RemU
	I32And
	I32Or
	I32Xor
	I32Shl
	I32ShrS
	I32ShrU
	I32Rotl
	I32Rotr

	I64Clz
	I64Ctz
	I64Popcnt
	I64Add
	I64Sub
	I64Mul
	I64DivS
	I64DivU
	I64RemS
	I64RemU
	I64And
	I64Or
	I64Xor
	I64Shl
	I64ShrS
	I64ShrU
	I64Rotl
	I64Rotr

	F32Abs
	F32Neg
	F32Ceil
	F32Floor
	F32Trunc
	F32Nearest
	F32Sqrt
	F32Add
	F32Sub
	F32Mul
	F32Div
	F32Min
	F32Max
	F32Copysign

	F64Abs
	F64Neg
	F64Ceil
	F64Floor
	F64Trunc
	F64Nearest
	F64Sqrt
	F64Add
	F64Sub
	F64Mul
	F64Div
	F64Min
	F64Max
	F64Copysign

	I32WrapI64
	I32TruncF32S
	I32TruncF32U
	I32TruncF64S
	I32TruncF64U
	I64ExtendI32S
	I64ExtendI32U
	I64TruncF32S
	I64TruncF32U
	I64TruncF64S
	I64TruncF64U
	F32ConvertI32S
	F32ConvertI32U
	F32ConvertI64S
	F32ConvertI64U
	F32DemoteF64
	F64ConvertI32S
	F64ConvertI32U
	F64ConvertI64S
	F64ConvertI64U
	F64PromoteF32
	I32ReinterpretF32
	I64ReinterpretF64
	F32ReinterpretI32
	F64ReinterpretI64

	I32Extend8S
	I32Extend16S
	I64Extend8S
	I64Extend16S
	I64Extend32S

	// 0xfc "misc" prefix: saturating truncation + bulk memory/table.
	I32TruncSatF32S
	I32TruncSatF32U
	I32TruncSatF64S
	I32TruncSatF64U
	I64TruncSatF32S
	I64TruncSatF32U
	I64TruncSatF64S
	I64TruncSatF64U
	MemoryInit
	DataDrop
	MemoryCopy
	MemoryFill
	TableInit
	ElemDrop
	TableCopy
	TableGrow
	TableSize
	TableFill

	RefNull
	RefIsNull
	RefFunc
	TableGet
	TableSet

	// Atomics (threads proposal, 0xfe prefix).
	AtomicFence
	I32AtomicLoad
	I64AtomicLoad
	I32AtomicLoad8U
	I32AtomicLoad16U
	I64AtomicLoad8U
	I64AtomicLoad16U
	I64AtomicLoad32U
	I32AtomicStore
	I64AtomicStore
	I32AtomicStore8
	I32AtomicStore16
	I64AtomicStore8
	I64AtomicStore16
	I64AtomicStore32
	I32AtomicRmwAdd
	I64AtomicRmwAdd
	I32AtomicRmw8AddU
	I32AtomicRmw16AddU
	I64AtomicRmw8AddU
	I64AtomicRmw16AddU
	I64AtomicRmw32AddU
	I32AtomicRmwSub
	I64AtomicRmwSub
	I32AtomicRmw8SubU
	I32AtomicRmw16SubU
	I64AtomicRmw8SubU
	I64AtomicRmw16SubU
	I64AtomicRmw32SubU
	I32AtomicRmwAnd
	I64AtomicRmwAnd
	I32AtomicRmw8AndU
	I32AtomicRmw16AndU
	I64AtomicRmw8AndU
	I64AtomicRmw16AndU
	I64AtomicRmw32AndU
	I32AtomicRmwOr
	I64AtomicRmwOr
	I32AtomicRmw8OrU
	I32AtomicRmw16OrU
	I64AtomicRmw8OrU
	I64AtomicRmw16OrU
	I64AtomicRmw32OrU
	I32AtomicRmwXor
	I64AtomicRmwXor
	I32AtomicRmw8XorU
	I32AtomicRmw16XorU
	I64AtomicRmw8XorU
	I64AtomicRmw16XorU
	I64AtomicRmw32XorU
	I32AtomicRmwXchg
	I64AtomicRmwXchg
	I32AtomicRmw8XchgU
	I32AtomicRmw16XchgU
	I64AtomicRmw8XchgU
	I64AtomicRmw16XchgU
	I64AtomicRmw32XchgU
	I32AtomicRmwCmpxchg
	I64AtomicRmwCmpxchg
	I32AtomicRmw8CmpxchgU
	I32AtomicRmw16CmpxchgU
	I64AtomicRmw8CmpxchgU
	I64AtomicRmw16CmpxchgU
	I64AtomicRmw32CmpxchgU
	MemoryAtomicWait32
	MemoryAtomicWait64
	MemoryAtomicNotify

	// Exception handling. The decoder does not produce these opcodes (it
	// has no case for their bytes); the interpreter traps Unreachable if
	// one is executed.
	Try
	Catch
	Throw
	Rethrow
	Delegate
	CatchAll

	// Stack pointer intrinsics for the script allocator. They have a
	// table entry under FeatureStackIntrinsics, but the decoder does not
	// produce them whatever features are enabled.
	InterpGetStack
	InterpSetStack

	opcodeCount
)

// Feature gates one of the interpreter's optional extensions.
type Feature uint32

const (
	FeatureExceptions Feature = 1 << iota
	FeatureThreads
	FeatureSaturatingFloatToInt
	FeatureBulkMemory
	FeatureReferenceTypes
	FeatureStackIntrinsics
)

// immKind is the immediate layout recorded in opcodeTable, which holds
// per-opcode metadata: mnemonic, immediate layout and the feature the
// opcode belongs to. Only Opcode.String reads the table (the mnemonic);
// the decoder does not consult it.
type immKind int

const (
	immNone immKind = iota
	immBlockType        // block/loop/if: value type or void, + fixup target
	immBranchTarget     // br/br_if/end: absolute target (+ drop/keep for end)
	immBrTable          // br_table: N labels + default
	immLocalIndex
	immGlobalIndex
	immFuncIndex
	immTypeIndex        // call_indirect: (sig index, table index)
	immTableIndex
	immMemArg           // (align, offset) pair
	immMemoryIndex      // memory.size/grow, memory.copy/fill's memory operand
	immI32
	immI64
	immRefType
	immDataIndex
	immElemIndex
	immSelectT // unused in this interpreter (no multi-value select types)
)

type opcodeInfo struct {
	name    string
	imm     immKind
	feature Feature
}

var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [opcodeCount]opcodeInfo {
	var t [opcodeCount]opcodeInfo
	set := func(op Opcode, name string, imm immKind, feature Feature) {
		t[op] = opcodeInfo{name: name, imm: imm, feature: feature}
	}
	set(Unreachable, "unreachable", immNone, 0)
	set(Nop, "nop", immNone, 0)
	set(Block, "block", immBlockType, 0)
	set(Loop, "loop", immBlockType, 0)
	set(If, "if", immBlockType, 0)
	set(Else, "else", immBranchTarget, 0)
	set(End, "end", immBranchTarget, 0)
	set(Br, "br", immBranchTarget, 0)
	set(BrIf, "br_if", immBranchTarget, 0)
	set(BrTable, "br_table", immBrTable, 0)
	set(Return, "return", immNone, 0)
	set(Call, "call", immFuncIndex, 0)
	set(CallIndirect, "call_indirect", immTypeIndex, 0)
	set(Drop, "drop", immNone, 0)
	set(Select, "select", immNone, 0)

	set(LocalGet, "local.get", immLocalIndex, 0)
	set(LocalSet, "local.set", immLocalIndex, 0)
	set(LocalTee, "local.tee", immLocalIndex, 0)
	set(GlobalGet, "global.get", immGlobalIndex, 0)
	set(GlobalSet, "global.set", immGlobalIndex, 0)

	loads := []struct {
		op   Opcode
		name string
	}{
		{I32Load, "i32.load"}, {I64Load, "i64.load"}, {F32Load, "f32.load"}, {F64Load, "f64.load"},
		{I32Load8S, "i32.load8_s"}, {I32Load8U, "i32.load8_u"},
		{I32Load16S, "i32.load16_s"}, {I32Load16U, "i32.load16_u"},
		{I64Load8S, "i64.load8_s"}, {I64Load8U, "i64.load8_u"},
		{I64Load16S, "i64.load16_s"}, {I64Load16U, "i64.load16_u"},
		{I64Load32S, "i64.load32_s"}, {I64Load32U, "i64.load32_u"},
		{I32Store, "i32.store"}, {I64Store, "i64.store"}, {F32Store, "f32.store"}, {F64Store, "f64.store"},
		{I32Store8, "i32.store8"}, {I32Store16, "i32.store16"},
		{I64Store8, "i64.store8"}, {I64Store16, "i64.store16"}, {I64Store32, "i64.store32"},
	}
	for _, l := range loads {
		set(l.op, l.name, immMemArg, 0)
	}
	set(MemorySize, "memory.size", immMemoryIndex, 0)
	set(MemoryGrow, "memory.grow", immMemoryIndex, 0)

	set(I32Const, "i32.const", immI32, 0)
	set(I64Const, "i64.const", immI64, 0)
	set(F32Const, "f32.const", immI32, 0)
	set(F64Const, "f64.const", immI64, 0)

	cmps := []struct {
		op   Opcode
		name string
	}{
		{I32Eqz, "i32.eqz"}, {I32Eq, "i32.eq"}, {I32Ne, "i32.ne"},
		{I32LtS, "i32.lt_s"}, {I32LtU, "i32.lt_u"}, {I32GtS, "i32.gt_s"}, {I32GtU, "i32.gt_u"},
		{I32LeS, "i32.le_s"}, {I32LeU, "i32.le_u"}, {I32GeS, "i32.ge_s"}, {I32GeU, "i32.ge_u"},
		{I64Eqz, "i64.eqz"}, {I64Eq, "i64.eq"}, {I64Ne, "i64.ne"},
		{I64LtS, "i64.lt_s"}, {I64LtU, "i64.lt_u"}, {I64GtS, "i64.gt_s"}, {I64GtU, "i64.gt_u"},
		{I64LeS, "i64.le_s"}, {I64LeU, "i64.le_u"}, {I64GeS, "i64.ge_s"}, {I64GeU, "i64.ge_u"},
		{F32Eq, "f32.eq"}, {F32Ne, "f32.ne"}, {F32Lt, "f32.lt"}, {F32Gt, "f32.gt"}, {F32Le, "f32.le"}, {F32Ge, "f32.ge"},
		{F64Eq, "f64.eq"}, {F64Ne, "f64.ne"}, {F64Lt, "f64.lt"}, {F64Gt, "f64.gt"}, {F64Le, "f64.le"}, {F64Ge, "f64.ge"},
	}
	for _, c := range cmps {
		set(c.op, c.name, immNone, 0)
	}

	arith32 := []struct {
		op   Opcode
		name string
	}{
		{I32Clz, "i32.clz"}, {I32Ctz, "i32.ctz"}, {I32Popcnt, "i32.popcnt"},
		{I32Add, "i32.add"}, {I32Sub, "i32.sub"}, {I32Mul, "i32.mul"},
		{I32DivS, "i32.div_s"}, {I32DivU, "i32.div_u"}, {I32RemS, "i32.rem_s"}, {I32RemU, "i32.rem_u"},
		{I32And, "i32.and"}, {I32Or, "i32.or"}, {I32Xor, "i32.xor"},
		{I32Shl, "i32.shl"}, {I32ShrS, "i32.shr_s"}, {I32ShrU, "i32.shr_u"},
		{I32Rotl, "i32.rotl"}, {I32Rotr, "i32.rotr"},
	}
	for _, a := range arith32 {
		set(a.op, a.name, immNone, 0)
	}
	arith64 := []struct {
		op   Opcode
		name string
	}{
		{I64Clz, "i64.clz"}, {I64Ctz, "i64.ctz"}, {I64Popcnt, "i64.popcnt"},
		{I64Add, "i64.add"}, {I64Sub, "i64.sub"}, {I64Mul, "i64.mul"},
		{I64DivS, "i64.div_s"}, {I64DivU, "i64.div_u"}, {I64RemS, "i64.rem_s"}, {I64RemU, "i64.rem_u"},
		{I64And, "i64.and"}, {I64Or, "i64.or"}, {I64Xor, "i64.xor"},
		{I64Shl, "i64.shl"}, {I64ShrS, "i64.shr_s"}, {I64ShrU, "i64.shr_u"},
		{I64Rotl, "i64.rotl"}, {I64Rotr, "i64.rotr"},
	}
	for _, a := range arith64 {
		set(a.op, a.name, immNone, 0)
	}
	floats := []struct {
		op   Opcode
		name string
	}{
		{F32Abs, "f32.abs"}, {F32Neg, "f32.neg"}, {F32Ceil, "f32.ceil"}, {F32Floor, "f32.floor"},
		{F32Trunc, "f32.trunc"}, {F32Nearest, "f32.nearest"}, {F32Sqrt, "f32.sqrt"},
		{F32Add, "f32.add"}, {F32Sub, "f32.sub"}, {F32Mul, "f32.mul"}, {F32Div, "f32.div"},
		{F32Min, "f32.min"}, {F32Max, "f32.max"}, {F32Copysign, "f32.copysign"},
		{F64Abs, "f64.abs"}, {F64Neg, "f64.neg"}, {F64Ceil, "f64.ceil"}, {F64Floor, "f64.floor"},
		{F64Trunc, "f64.trunc"}, {F64Nearest, "f64.nearest"}, {F64Sqrt, "f64.sqrt"},
		{F64Add, "f64.add"}, {F64Sub, "f64.sub"}, {F64Mul, "f64.mul"}, {F64Div, "f64.div"},
		{F64Min, "f64.min"}, {F64Max, "f64.max"}, {F64Copysign, "f64.copysign"},
	}
	for _, f := range floats {
		set(f.op, f.name, immNone, 0)
	}

	convs := []struct {
		op   Opcode
		name string
	}{
		{I32WrapI64, "i32.wrap_i64"},
		{I32TruncF32S, "i32.trunc_f32_s"}, {I32TruncF32U, "i32.trunc_f32_u"},
		{I32TruncF64S, "i32.trunc_f64_s"}, {I32TruncF64U, "i32.trunc_f64_u"},
		{I64ExtendI32S, "i64.extend_i32_s"}, {I64ExtendI32U, "i64.extend_i32_u"},
		{I64TruncF32S, "i64.trunc_f32_s"}, {I64TruncF32U, "i64.trunc_f32_u"},
		{I64TruncF64S, "i64.trunc_f64_s"}, {I64TruncF64U, "i64.trunc_f64_u"},
		{F32ConvertI32S, "f32.convert_i32_s"}, {F32ConvertI32U, "f32.convert_i32_u"},
		{F32ConvertI64S, "f32.convert_i64_s"}, {F32ConvertI64U, "f32.convert_i64_u"},
		{F32DemoteF64, "f32.demote_f64"},
		{F64ConvertI32S, "f64.convert_i32_s"}, {F64ConvertI32U, "f64.convert_i32_u"},
		{F64ConvertI64S, "f64.convert_i64_s"}, {F64ConvertI64U, "f64.convert_i64_u"},
		{F64PromoteF32, "f64.promote_f32"},
		{I32ReinterpretF32, "i32.reinterpret_f32"}, {I64ReinterpretF64, "i64.reinterpret_f64"},
		{F32ReinterpretI32, "f32.reinterpret_i32"}, {F64ReinterpretI64, "f64.reinterpret_i64"},
		{I32Extend8S, "i32.extend8_s"}, {I32Extend16S, "i32.extend16_s"},
		{I64Extend8S, "i64.extend8_s"}, {I64Extend16S, "i64.extend16_s"}, {I64Extend32S, "i64.extend32_s"},
	}
	for _, c := range convs {
		set(c.op, c.name, immNone, 0)
	}

	sat := []struct {
		op   Opcode
		name string
	}{
		{I32TruncSatF32S, "i32.trunc_sat_f32_s"}, {I32TruncSatF32U, "i32.trunc_sat_f32_u"},
		{I32TruncSatF64S, "i32.trunc_sat_f64_s"}, {I32TruncSatF64U, "i32.trunc_sat_f64_u"},
		{I64TruncSatF32S, "i64.trunc_sat_f32_s"}, {I64TruncSatF32U, "i64.trunc_sat_f32_u"},
		{I64TruncSatF64S, "i64.trunc_sat_f64_s"}, {I64TruncSatF64U, "i64.trunc_sat_f64_u"},
	}
	for _, s := range sat {
		set(s.op, s.name, immNone, FeatureSaturatingFloatToInt)
	}

	set(MemoryInit, "memory.init", immDataIndex, FeatureBulkMemory)
	set(DataDrop, "data.drop", immDataIndex, FeatureBulkMemory)
	set(MemoryCopy, "memory.copy", immMemoryIndex, FeatureBulkMemory)
	set(MemoryFill, "memory.fill", immMemoryIndex, FeatureBulkMemory)
	set(TableInit, "table.init", immElemIndex, FeatureBulkMemory)
	set(ElemDrop, "elem.drop", immElemIndex, FeatureBulkMemory)
	set(TableCopy, "table.copy", immTableIndex, FeatureBulkMemory)
	set(TableGrow, "table.grow", immTableIndex, FeatureReferenceTypes)
	set(TableSize, "table.size", immTableIndex, FeatureReferenceTypes)
	set(TableFill, "table.fill", immTableIndex, FeatureReferenceTypes)

	set(RefNull, "ref.null", immRefType, FeatureReferenceTypes)
	set(RefIsNull, "ref.is_null", immNone, FeatureReferenceTypes)
	set(RefFunc, "ref.func", immFuncIndex, FeatureReferenceTypes)
	set(TableGet, "table.get", immTableIndex, FeatureReferenceTypes)
	set(TableSet, "table.set", immTableIndex, FeatureReferenceTypes)

	set(AtomicFence, "atomic.fence", immNone, FeatureThreads)
	atomicLoads := []struct {
		op   Opcode
		name string
	}{
		{I32AtomicLoad, "i32.atomic.load"}, {I64AtomicLoad, "i64.atomic.load"},
		{I32AtomicLoad8U, "i32.atomic.load8_u"}, {I32AtomicLoad16U, "i32.atomic.load16_u"},
		{I64AtomicLoad8U, "i64.atomic.load8_u"}, {I64AtomicLoad16U, "i64.atomic.load16_u"}, {I64AtomicLoad32U, "i64.atomic.load32_u"},
		{I32AtomicStore, "i32.atomic.store"}, {I64AtomicStore, "i64.atomic.store"},
		{I32AtomicStore8, "i32.atomic.store8"}, {I32AtomicStore16, "i32.atomic.store16"},
		{I64AtomicStore8, "i64.atomic.store8"}, {I64AtomicStore16, "i64.atomic.store16"}, {I64AtomicStore32, "i64.atomic.store32"},
	}
	for _, a := range atomicLoads {
		set(a.op, a.name, immMemArg, FeatureThreads)
	}
	rmw := []struct {
		op   Opcode
		name string
	}{
		{I32AtomicRmwAdd, "i32.atomic.rmw.add"}, {I64AtomicRmwAdd, "i64.atomic.rmw.add"},
		{I32AtomicRmw8AddU, "i32.atomic.rmw8.add_u"}, {I32AtomicRmw16AddU, "i32.atomic.rmw16.add_u"},
		{I64AtomicRmw8AddU, "i64.atomic.rmw8.add_u"}, {I64AtomicRmw16AddU, "i64.atomic.rmw16.add_u"}, {I64AtomicRmw32AddU, "i64.atomic.rmw32.add_u"},
		{I32AtomicRmwSub, "i32.atomic.rmw.sub"}, {I64AtomicRmwSub, "i64.atomic.rmw.sub"},
		{I32AtomicRmw8SubU, "i32.atomic.rmw8.sub_u"}, {I32AtomicRmw16SubU, "i32.atomic.rmw16.sub_u"},
		{I64AtomicRmw8SubU, "i64.atomic.rmw8.sub_u"}, {I64AtomicRmw16SubU, "i64.atomic.rmw16.sub_u"}, {I64AtomicRmw32SubU, "i64.atomic.rmw32.sub_u"},
		{I32AtomicRmwAnd, "i32.atomic.rmw.and"}, {I64AtomicRmwAnd, "i64.atomic.rmw.and"},
		{I32AtomicRmw8AndU, "i32.atomic.rmw8.and_u"}, {I32AtomicRmw16AndU, "i32.atomic.rmw16.and_u"},
		{I64AtomicRmw8AndU, "i64.atomic.rmw8.and_u"}, {I64AtomicRmw16AndU, "i64.atomic.rmw16.and_u"}, {I64AtomicRmw32AndU, "i64.atomic.rmw32.and_u"},
		{I32AtomicRmwOr, "i32.atomic.rmw.or"}, {I64AtomicRmwOr, "i64.atomic.rmw.or"},
		{I32AtomicRmw8OrU, "i32.atomic.rmw8.or_u"}, {I32AtomicRmw16OrU, "i32.atomic.rmw16.or_u"},
		{I64AtomicRmw8OrU, "i64.atomic.rmw8.or_u"}, {I64AtomicRmw16OrU, "i64.atomic.rmw16.or_u"}, {I64AtomicRmw32OrU, "i64.atomic.rmw32.or_u"},
		{I32AtomicRmwXor, "i32.atomic.rmw.xor"}, {I64AtomicRmwXor, "i64.atomic.rmw.xor"},
		{I32AtomicRmw8XorU, "i32.atomic.rmw8.xor_u"}, {I32AtomicRmw16XorU, "i32.atomic.rmw16.xor_u"},
		{I64AtomicRmw8XorU, "i64.atomic.rmw8.xor_u"}, {I64AtomicRmw16XorU, "i64.atomic.rmw16.xor_u"}, {I64AtomicRmw32XorU, "i64.atomic.rmw32.xor_u"},
		{I32AtomicRmwXchg, "i32.atomic.rmw.xchg"}, {I64AtomicRmwXchg, "i64.atomic.rmw.xchg"},
		{I32AtomicRmw8XchgU, "i32.atomic.rmw8.xchg_u"}, {I32AtomicRmw16XchgU, "i32.atomic.rmw16.xchg_u"},
		{I64AtomicRmw8XchgU, "i64.atomic.rmw8.xchg_u"}, {I64AtomicRmw16XchgU, "i64.atomic.rmw16.xchg_u"}, {I64AtomicRmw32XchgU, "i64.atomic.rmw32.xchg_u"},
		{I32AtomicRmwCmpxchg, "i32.atomic.rmw.cmpxchg"}, {I64AtomicRmwCmpxchg, "i64.atomic.rmw.cmpxchg"},
		{I32AtomicRmw8CmpxchgU, "i32.atomic.rmw8.cmpxchg_u"}, {I32AtomicRmw16CmpxchgU, "i32.atomic.rmw16.cmpxchg_u"},
		{I64AtomicRmw8CmpxchgU, "i64.atomic.rmw8.cmpxchg_u"}, {I64AtomicRmw16CmpxchgU, "i64.atomic.rmw16.cmpxchg_u"}, {I64AtomicRmw32CmpxchgU, "i64.atomic.rmw32.cmpxchg_u"},
	}
	for _, r := range rmw {
		set(r.op, r.name, immMemArg, FeatureThreads)
	}
	set(MemoryAtomicWait32, "memory.atomic.wait32", immMemArg, FeatureThreads)
	set(MemoryAtomicWait64, "memory.atomic.wait64", immMemArg, FeatureThreads)
	set(MemoryAtomicNotify, "memory.atomic.notify", immMemArg, FeatureThreads)

	set(Try, "try", immBlockType, FeatureExceptions)
	set(Catch, "catch", immTypeIndex, FeatureExceptions)
	set(Throw, "throw", immTypeIndex, FeatureExceptions)
	set(Rethrow, "rethrow", immNone, FeatureExceptions)
	set(Delegate, "delegate", immBranchTarget, FeatureExceptions)
	set(CatchAll, "catch_all", immNone, FeatureExceptions)

	set(InterpGetStack, "interp.get_stack", immNone, FeatureStackIntrinsics)
	set(InterpSetStack, "interp.set_stack", immNone, FeatureStackIntrinsics)

	return t
}

func (o Opcode) String() string {
	if int(o) < len(opcodeTable) && opcodeTable[o].name != "" {
		return opcodeTable[o].name
	}
	return "opcode?"
}

// Instruction is a decoded operation record: the opcode plus either a
// 64-bit immediate or a pair of 32-bit immediates. Branch targets are
// pre-resolved absolute offsets into the same function's instruction
// stream: If, Else, Br and BrIf carry theirs in ImmB (Else, Br and BrIf
// with a packed drop/preserve pair in ImmA); End carries a drop count in
// ImmA and a preserve count in ImmB; BrTable's ImmA indexes
// Function.BrTables, whose entries hold each target and its packed pair.
type Instruction struct {
	Opcode Opcode
	ImmA   uint32
	ImmB   uint32
}

// Imm64 reinterprets the two 32-bit fields as a single 64-bit immediate,
// used by i64.const/f64.const.
func (in Instruction) Imm64() uint64 {
	return uint64(in.ImmA) | uint64(in.ImmB)<<32
}

func instrImm64(op Opcode, v uint64) Instruction {
	return Instruction{Opcode: op, ImmA: uint32(v), ImmB: uint32(v >> 32)}
}
