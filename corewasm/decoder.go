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
	"io"

	"github.com/corewasm/corewasm/corewasm/corewasmerr"
)

const (
	wasmMagic   = 0x6d736100
	wasmVersion = 1
)

type sectionID byte

const (
	secCustom    sectionID = 0
	secType      sectionID = 1
	secImport    sectionID = 2
	secFunction  sectionID = 3
	secTable     sectionID = 4
	secMemory    sectionID = 5
	secGlobal    sectionID = 6
	secExport    sectionID = 7
	secStart     sectionID = 8
	secElement   sectionID = 9
	secCode      sectionID = 10
	secData      sectionID = 11
	secDataCount sectionID = 12
)

// byteReader is a cursor over a module's raw bytes, tracking the offset
// so decode errors can report where in the file they occurred.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) atEnd() bool { return r.pos >= len(r.data) }

func (r *byteReader) u32() (uint32, error)  { return readULEB32(r.readByte) }
func (r *byteReader) u64() (uint64, error)  { return readULEB64(r.readByte) }
func (r *byteReader) s32raw() (uint64, error) { return readSLEB32(r.readByte) }
func (r *byteReader) s64raw() (uint64, error) { return readSLEB64(r.readByte) }

func (r *byteReader) derr(section, msg string) error {
	return corewasmerr.Decode(r.pos, section, msg)
}

func (r *byteReader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	if !validateUTF8(b) {
		return "", r.derr("name", "malformed UTF-8 name")
	}
	return string(b), nil
}

// Decode parses a binary WASM module into its immutable Module
// representation, synthesizing each function's flat,
// branch-resolved Instruction stream as it walks the code section.
// cfg supplies the OnDiagnostic hook (its Features are not consulted);
// a nil cfg uses DefaultConfig().
func Decode(r io.Reader, cfg *Config) (*Module, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, corewasmerr.DecodeWrap(0, "header", err)
	}
	br := &byteReader{data: raw}

	if len(raw) < 8 {
		return nil, br.derr("header", "truncated module header")
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	version := binary.LittleEndian.Uint32(raw[4:8])
	if magic != wasmMagic {
		return nil, br.derr("header", "bad magic number")
	}
	if version != wasmVersion {
		return nil, br.derr("header", "unsupported version")
	}
	br.pos = 8

	d := &moduleDecoder{cfg: cfg, mod: &Module{DataCount: -1, StartFunc: sentinelIndex}}
	var lastSection sectionID = 0

	for !br.atEnd() {
		id, err := br.readByte()
		if err != nil {
			return nil, corewasmerr.DecodeWrap(br.pos, "section", err)
		}
		size, err := br.u32()
		if err != nil {
			return nil, br.derr("section", "bad section size")
		}
		if br.pos+int(size) > len(raw) {
			return nil, br.derr("section", "section runs past end of module")
		}
		payload := raw[br.pos : br.pos+int(size)]
		sectionStart := br.pos
		br.pos += int(size)

		sid := sectionID(id)
		if sid != secCustom {
			// The data count section (id 12) is ordered between the
			// element (9) and code (10) sections.
			rank := 2 * sid
			if sid == secDataCount {
				rank = 2*secElement + 1
			}
			if rank <= lastSection {
				return nil, corewasmerr.Decode(sectionStart, "section", "sections out of order")
			}
			lastSection = rank
		}

		sr := &byteReader{data: payload}
		switch sid {
		case secCustom:
			if err := d.decodeCustom(sr); err != nil {
				return nil, err
			}
		case secType:
			if err := d.decodeTypes(sr); err != nil {
				return nil, err
			}
		case secImport:
			if err := d.decodeImports(sr); err != nil {
				return nil, err
			}
		case secFunction:
			if err := d.decodeFunctionSection(sr); err != nil {
				return nil, err
			}
		case secTable:
			if err := d.decodeTables(sr); err != nil {
				return nil, err
			}
		case secMemory:
			if err := d.decodeMemories(sr); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := d.decodeGlobals(sr); err != nil {
				return nil, err
			}
		case secExport:
			if err := d.decodeExports(sr); err != nil {
				return nil, err
			}
		case secStart:
			idx, err := sr.u32()
			if err != nil {
				return nil, sr.derr("start", "bad start function index")
			}
			d.mod.StartFunc = idx
		case secElement:
			if err := d.decodeElements(sr); err != nil {
				return nil, err
			}
		case secDataCount:
			n, err := sr.u32()
			if err != nil {
				return nil, sr.derr("datacount", "bad data count")
			}
			d.mod.DataCount = int(n)
		case secCode:
			if err := d.decodeCode(sr); err != nil {
				return nil, err
			}
		case secData:
			if err := d.decodeData(sr); err != nil {
				return nil, err
			}
		default:
			return nil, corewasmerr.Decode(sectionStart, "section", "unknown section id")
		}
	}

	return d.mod, nil
}

// moduleDecoder accumulates state across sections that later sections
// need: the running function index space, label/type bookkeeping.
type moduleDecoder struct {
	cfg            *Config
	mod            *Module
	funcSigIndices []Index // function section: signature index per module-defined func, in order
}

func (d *moduleDecoder) decodeCustom(sr *byteReader) error {
	name, err := sr.name()
	if err != nil {
		return sr.derr("custom", "bad custom section name")
	}
	if name == "name" {
		d.decodeNameSection(sr)
		return nil
	}
	d.cfg.diagnostic("decode", "skipped custom section "+name)
	return nil
}

func (d *moduleDecoder) decodeNameSection(sr *byteReader) {
	names := map[Index]string{}
	for !sr.atEnd() {
		subID, err := sr.readByte()
		if err != nil {
			return
		}
		size, err := sr.u32()
		if err != nil {
			return
		}
		payload, err := sr.readBytes(int(size))
		if err != nil {
			return
		}
		if subID == 1 { // function names
			fr := &byteReader{data: payload}
			count, err := fr.u32()
			if err != nil {
				continue
			}
			for i := uint32(0); i < count; i++ {
				idx, err := fr.u32()
				if err != nil {
					break
				}
				nm, err := fr.name()
				if err != nil {
					break
				}
				names[idx] = nm
			}
		}
	}
	d.mod.Names = names
}

func (d *moduleDecoder) decodeValueType(sr *byteReader) (ValueType, error) {
	b, err := sr.readByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case 0x7f:
		return I32, nil
	case 0x7e:
		return I64, nil
	case 0x7d:
		return F32, nil
	case 0x7c:
		return F64, nil
	case 0x70:
		return FuncRefType, nil
	case 0x6f:
		return ExternRefType, nil
	default:
		return nil, sr.derr("type", "invalid value type")
	}
}

func (d *moduleDecoder) decodeTypes(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("type", "bad type count")
	}
	for i := uint32(0); i < count; i++ {
		form, err := sr.readByte()
		if err != nil || form != 0x60 {
			return sr.derr("type", "expected func type form 0x60")
		}
		np, err := sr.u32()
		if err != nil {
			return sr.derr("type", "bad param count")
		}
		params := make([]ValueType, np)
		for j := range params {
			if params[j], err = d.decodeValueType(sr); err != nil {
				return err
			}
		}
		nr, err := sr.u32()
		if err != nil {
			return sr.derr("type", "bad result count")
		}
		results := make([]ValueType, nr)
		for j := range results {
			if results[j], err = d.decodeValueType(sr); err != nil {
				return err
			}
		}
		d.mod.Types = append(d.mod.Types, Signature{Params: params, Results: results})
	}
	return nil
}

func (d *moduleDecoder) decodeLimits(sr *byteReader) (Limits, error) {
	flags, err := sr.readByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := sr.u32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min, Shared: flags&0x02 != 0}
	if flags&0x01 != 0 {
		max, err := sr.u32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

func (d *moduleDecoder) decodeImports(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("import", "bad import count")
	}
	for i := uint32(0); i < count; i++ {
		mod, err := sr.name()
		if err != nil {
			return sr.derr("import", "bad module name")
		}
		field, err := sr.name()
		if err != nil {
			return sr.derr("import", "bad field name")
		}
		kindByte, err := sr.readByte()
		if err != nil {
			return sr.derr("import", "bad import kind")
		}
		imp := Import{Module: mod, Field: field, Kind: ExternalKind(kindByte)}
		switch imp.Kind {
		case FuncKind:
			idx, err := sr.u32()
			if err != nil {
				return sr.derr("import", "bad function type index")
			}
			imp.TypeIndex = idx
		case TableKind:
			elemByte, err := sr.readByte()
			if err != nil {
				return sr.derr("import", "bad table element type")
			}
			lim, err := d.decodeLimits(sr)
			if err != nil {
				return sr.derr("import", "bad table limits")
			}
			imp.TableType = TableType{ElementType: ReferenceType(elemByte), Limits: lim}
		case MemoryKind:
			lim, err := d.decodeLimits(sr)
			if err != nil {
				return sr.derr("import", "bad memory limits")
			}
			imp.MemoryType = MemoryType{Limits: lim}
		case GlobalKind:
			vt, err := d.decodeValueType(sr)
			if err != nil {
				return err
			}
			mutByte, err := sr.readByte()
			if err != nil {
				return sr.derr("import", "bad global mutability")
			}
			imp.GlobalType = GlobalType{ValueType: vt, Mutable: mutByte != 0}
		default:
			return sr.derr("import", "unknown import kind")
		}
		d.mod.Imports = append(d.mod.Imports, imp)
	}
	return nil
}

func (d *moduleDecoder) decodeFunctionSection(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("function", "bad function count")
	}
	for i := uint32(0); i < count; i++ {
		idx, err := sr.u32()
		if err != nil {
			return sr.derr("function", "bad type index")
		}
		d.funcSigIndices = append(d.funcSigIndices, idx)
		d.mod.Funcs = append(d.mod.Funcs, Function{SignatureIndex: idx})
	}
	return nil
}

func (d *moduleDecoder) decodeTables(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("table", "bad table count")
	}
	for i := uint32(0); i < count; i++ {
		elemByte, err := sr.readByte()
		if err != nil {
			return sr.derr("table", "bad element type")
		}
		lim, err := d.decodeLimits(sr)
		if err != nil {
			return sr.derr("table", "bad table limits")
		}
		d.mod.Tables = append(d.mod.Tables, TableType{ElementType: ReferenceType(elemByte), Limits: lim})
	}
	return nil
}

func (d *moduleDecoder) decodeMemories(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("memory", "bad memory count")
	}
	for i := uint32(0); i < count; i++ {
		lim, err := d.decodeLimits(sr)
		if err != nil {
			return sr.derr("memory", "bad memory limits")
		}
		d.mod.Memories = append(d.mod.Memories, MemoryType{Limits: lim})
	}
	return nil
}

// decodeConstExpr evaluates a constant initializer expression (a single
// const/global.get/ref.null instruction followed by `end`), the only
// form the MVP binary format allows for globals, element and data
// offsets. A global.get can only ever name an already-linked import at
// this point in a module (forward references to later globals are
// invalid), so its value isn't known until Instantiate links the
// module's imports; globalIndex reports that case instead of resolving
// it immediately.
func (d *moduleDecoder) decodeConstExpr(sr *byteReader) (tv TypedValue, globalIndex Index, err error) {
	globalIndex = sentinelIndex
	opByte, err := sr.readByte()
	if err != nil {
		return TypedValue{}, sentinelIndex, err
	}
	switch opByte {
	case 0x41: // i32.const
		v, err := sr.s32raw()
		if err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		tv = TypedValue{Type: I32, Value: Value{bits: v}}
	case 0x42: // i64.const
		v, err := sr.s64raw()
		if err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		tv = TypedValue{Type: I64, Value: Value{bits: v}}
	case 0x43: // f32.const
		b, err := sr.readBytes(4)
		if err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		tv = TypedValue{Type: F32, Value: Value{bits: uint64(binary.LittleEndian.Uint32(b))}}
	case 0x44: // f64.const
		b, err := sr.readBytes(8)
		if err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		tv = TypedValue{Type: F64, Value: Value{bits: binary.LittleEndian.Uint64(b)}}
	case 0x23: // global.get
		idx, err := sr.u32()
		if err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		globalIndex = idx
	case 0xd0: // ref.null
		if _, err := sr.readByte(); err != nil {
			return TypedValue{}, sentinelIndex, err
		}
		tv = TypedValue{Type: FuncRefType, Value: i32Value(NullReference)}
	default:
		return TypedValue{}, sentinelIndex, sr.derr("const-expr", "unsupported constant instruction")
	}
	end, err := sr.readByte()
	if err != nil || end != 0x0b {
		return TypedValue{}, sentinelIndex, sr.derr("const-expr", "constant expression missing end")
	}
	return tv, globalIndex, nil
}

func (d *moduleDecoder) decodeGlobals(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("global", "bad global count")
	}
	for i := uint32(0); i < count; i++ {
		vt, err := d.decodeValueType(sr)
		if err != nil {
			return err
		}
		mutByte, err := sr.readByte()
		if err != nil {
			return sr.derr("global", "bad mutability")
		}
		init, globalIdx, err := d.decodeConstExpr(sr)
		if err != nil {
			return err
		}
		init.Type = vt
		d.mod.Globals = append(d.mod.Globals, GlobalDef{Type: GlobalType{ValueType: vt, Mutable: mutByte != 0}, Init: init, InitGlobalIndex: globalIdx})
	}
	return nil
}

func (d *moduleDecoder) decodeExports(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("export", "bad export count")
	}
	for i := uint32(0); i < count; i++ {
		nm, err := sr.name()
		if err != nil {
			return sr.derr("export", "bad export name")
		}
		kindByte, err := sr.readByte()
		if err != nil {
			return sr.derr("export", "bad export kind")
		}
		idx, err := sr.u32()
		if err != nil {
			return sr.derr("export", "bad export index")
		}
		d.mod.Exports = append(d.mod.Exports, Export{Name: nm, Kind: ExternalKind(kindByte), Index: idx})
	}
	return nil
}

func (d *moduleDecoder) decodeElements(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("element", "bad element count")
	}
	for i := uint32(0); i < count; i++ {
		flags, err := sr.u32()
		if err != nil {
			return sr.derr("element", "bad element flags")
		}
		seg := ElementSegment{OffsetGlobalIndex: sentinelIndex}
		switch flags {
		case 0:
			off, globalIdx, err := d.decodeConstExpr(sr)
			if err != nil {
				return err
			}
			seg.Offset = off
			seg.OffsetGlobalIndex = globalIdx
			n, err := sr.u32()
			if err != nil {
				return sr.derr("element", "bad function index count")
			}
			seg.Funcs = make([]Index, n)
			for j := range seg.Funcs {
				if seg.Funcs[j], err = sr.u32(); err != nil {
					return sr.derr("element", "bad function index")
				}
			}
		case 1:
			seg.Passive = true
			if _, err := sr.readByte(); err != nil { // elemkind
				return err
			}
			n, err := sr.u32()
			if err != nil {
				return err
			}
			seg.Funcs = make([]Index, n)
			for j := range seg.Funcs {
				if seg.Funcs[j], err = sr.u32(); err != nil {
					return err
				}
			}
		default:
			return sr.derr("element", "unsupported element segment flags")
		}
		d.mod.Elements = append(d.mod.Elements, seg)
	}
	return nil
}

func (d *moduleDecoder) decodeData(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("data", "bad data count")
	}
	for i := uint32(0); i < count; i++ {
		flags, err := sr.u32()
		if err != nil {
			return sr.derr("data", "bad data flags")
		}
		seg := DataSegment{OffsetGlobalIndex: sentinelIndex}
		if flags == 1 {
			seg.Passive = true
		} else {
			off, globalIdx, err := d.decodeConstExpr(sr)
			if err != nil {
				return err
			}
			seg.Offset = off
			seg.OffsetGlobalIndex = globalIdx
		}
		n, err := sr.u32()
		if err != nil {
			return sr.derr("data", "bad data byte count")
		}
		b, err := sr.readBytes(int(n))
		if err != nil {
			return sr.derr("data", "truncated data segment")
		}
		seg.Bytes = append([]byte(nil), b...)
		d.mod.Data = append(d.mod.Data, seg)
	}
	return nil
}

// --- code section: function bodies, flattened into Instruction streams ---

// fixup names one slot to patch with a label's resolved end position once
// its matching `end` is emitted: either a br/br_if/else instruction's
// ImmB, or one slot of a br_table's target list (tableSlot >= 0).
type fixup struct {
	pos       int // index into funcBuilder.out; unused for a br_table slot
	tableIdx  uint32
	tableSlot int // -1 for a plain branch instruction fixup
}

// label is one entry in the decoder's control-flow stack: where its
// `br` targets land, and whether it's a loop (branches to its start) or
// a block/if (branches to its end).
type label struct {
	isLoop     bool
	resultType ValueType // nil = no result
	fixups     []fixup   // slots needing this label's end position
	loopTarget int        // for loops, the resolved branch target (known immediately)
	ifPos      int        // position of the If instruction that opened this label, or -1
	baseHeight int        // abstract operand-stack height at label entry (post-condition-pop for if)
}

// arity reports how many values a label's exit carries (0 or 1: this
// interpreter has no multi-value support beyond a single result).
func (l label) arity() uint32 {
	if l.resultType != nil {
		return 1
	}
	return 0
}

// branchArity is the arity a branch TO this label's target carries: a
// loop's target is its own head, which this subset's param-less block
// types always enter with 0 values on the stack, regardless of the
// loop's own result arity (only reached by falling off its `end`); a
// block/if's target is its `end`, which does carry its result arity.
func (l label) branchArity() uint32 {
	if l.isLoop {
		return 0
	}
	return l.arity()
}

// packDropPreserve and unpackDropPreserve convert between a (dropCount,
// preserveCount) pair and the single uint32 a branch instruction's
// immediate carries them as.
func packDropPreserve(drop, preserve uint32) uint32 { return drop<<1 | preserve }

func unpackDropPreserve(x uint32) (drop, preserve uint32) { return x >> 1, x & 1 }

type funcBuilder struct {
	d        *moduleDecoder
	sig      *Signature
	out      []Instruction
	labels   []label
	brTables [][]uint64
	height   int // abstract operand-stack height (value count) above the function's locals
}

// adjust accounts for op's effect on fb.height so later branch sites can
// compute how far above their target label's base they sit. Calls and
// call_indirect look up their callee's arity from the module's signature
// table; everything else has a fixed pop/push shape.
func (fb *funcBuilder) adjust(op Opcode, in Instruction) {
	pop, push := fb.stackEffect(op, in)
	fb.height += push - pop
}

func (fb *funcBuilder) stackEffect(op Opcode, in Instruction) (pop, push int) {
	switch op {
	case Call:
		sig := fb.d.mod.SignatureOf(in.ImmA)
		if sig == nil {
			return 0, 0
		}
		return len(sig.Params), len(sig.Results)
	case CallIndirect:
		sig := &fb.d.mod.Types[in.ImmA]
		return len(sig.Params) + 1, len(sig.Results)
	case Drop, LocalSet, GlobalSet:
		return 1, 0
	case LocalTee, MemoryGrow, RefIsNull:
		return 1, 1
	case Select:
		return 3, 1
	case TableGrow:
		return 2, 1
	case LocalGet, GlobalGet, I32Const, I64Const, F32Const, F64Const,
		MemorySize, RefNull, RefFunc, TableSize:
		return 0, 1
	case MemoryInit, MemoryCopy, MemoryFill, TableInit, TableCopy, TableFill:
		return 3, 0
	case DataDrop, ElemDrop:
		return 0, 0
	case TableGet:
		return 1, 1
	case TableSet:
		return 2, 0
	case Unreachable, Nop, Block, Loop, Return, AtomicFence, InterpGetStack, InterpSetStack:
		return 0, 0
	}
	if isStoreOpcode(op) {
		return 2, 0
	}
	if isLoadOpcode(op) {
		return 1, 1
	}
	if isCompareOpcode(op) || isBinaryArithOpcode(op) {
		return 2, 1
	}
	if isUnaryOpcode(op) {
		return 1, 1
	}
	if isAtomicRmwOpcode(op) {
		if isCmpxchgOpcode(op) {
			return 3, 1
		}
		return 2, 1
	}
	if isAtomicLoadOpcode(op) {
		return 1, 1
	}
	if isAtomicStoreOpcode(op) {
		return 2, 0
	}
	if op == MemoryAtomicNotify {
		return 2, 1
	}
	if op == MemoryAtomicWait32 || op == MemoryAtomicWait64 {
		return 3, 1
	}
	return 0, 0
}

func isLoadOpcode(op Opcode) bool { return op >= I32Load && op <= I64Load32U }
func isStoreOpcode(op Opcode) bool { return op >= I32Store && op <= I64Store32 }

func isCompareOpcode(op Opcode) bool {
	return op >= I32Eqz && op <= F64Ge && op != I32Eqz && op != I64Eqz
}

func isBinaryArithOpcode(op Opcode) bool {
	switch {
	case op >= I32Add && op <= I32Rotr:
		return true
	case op >= I64Add && op <= I64Rotr:
		return true
	case op >= F32Add && op <= F32Copysign:
		return true
	case op >= F64Add && op <= F64Copysign:
		return true
	}
	return false
}

func isUnaryOpcode(op Opcode) bool {
	switch op {
	case I32Eqz, I64Eqz, I32Clz, I32Ctz, I32Popcnt, I64Clz, I64Ctz, I64Popcnt:
		return true
	}
	switch {
	case op >= F32Abs && op <= F32Sqrt:
		return true
	case op >= F64Abs && op <= F64Sqrt:
		return true
	case op >= I32WrapI64 && op <= I64Extend32S:
		return true
	case op >= I32TruncSatF32S && op <= I64TruncSatF64U:
		return true
	}
	return false
}

func isAtomicLoadOpcode(op Opcode) bool {
	return op >= I32AtomicLoad && op <= I64AtomicLoad32U
}

func isAtomicStoreOpcode(op Opcode) bool {
	return op >= I32AtomicStore && op <= I64AtomicStore32
}

func isAtomicRmwOpcode(op Opcode) bool {
	return op >= I32AtomicRmwAdd && op <= I64AtomicRmw32CmpxchgU
}

func (d *moduleDecoder) decodeCode(sr *byteReader) error {
	count, err := sr.u32()
	if err != nil {
		return sr.derr("code", "bad code entry count")
	}
	if int(count) != len(d.funcSigIndices) {
		return sr.derr("code", "function/code section count mismatch")
	}
	for i := uint32(0); i < count; i++ {
		bodySize, err := sr.u32()
		if err != nil {
			return sr.derr("code", "bad function body size")
		}
		body, err := sr.readBytes(int(bodySize))
		if err != nil {
			return sr.derr("code", "truncated function body")
		}
		fr := &byteReader{data: body}
		locals, err := d.decodeLocals(fr)
		if err != nil {
			return err
		}
		fb := &funcBuilder{d: d, sig: &d.mod.Types[d.funcSigIndices[i]]}
		if err := fb.decodeBody(fr); err != nil {
			return err
		}
		d.mod.Funcs[i].Locals = locals
		d.mod.Funcs[i].Code = fb.out
		d.mod.Funcs[i].BrTables = fb.brTables
	}
	return nil
}

func (d *moduleDecoder) decodeLocals(fr *byteReader) ([]ValueType, error) {
	groups, err := fr.u32()
	if err != nil {
		return nil, fr.derr("code", "bad local group count")
	}
	var locals []ValueType
	for g := uint32(0); g < groups; g++ {
		n, err := fr.u32()
		if err != nil {
			return nil, fr.derr("code", "bad local group size")
		}
		vt, err := d.decodeValueType(fr)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, vt)
		}
	}
	return locals, nil
}

func (fb *funcBuilder) emit(in Instruction) int {
	fb.out = append(fb.out, in)
	return len(fb.out) - 1
}

// emitAdj emits in and applies its stack effect to fb.height, for every
// opcode that doesn't need the bespoke control-flow handling in
// decodeOne's br/br_if/br_table/if/else/end cases.
func (fb *funcBuilder) emitAdj(in Instruction) int {
	pos := fb.emit(in)
	fb.adjust(in.Opcode, in)
	return pos
}

func (fb *funcBuilder) pushLabel(isLoop bool, result ValueType) {
	lbl := label{isLoop: isLoop, resultType: result, ifPos: -1}
	if isLoop {
		lbl.loopTarget = len(fb.out) // branches to a loop target its own head (the instruction after `loop`)
	}
	fb.labels = append(fb.labels, lbl)
}

// pushIfLabel is pushLabel for an `if`, additionally recording ifPos so
// a later `else` or `end` can patch the If instruction's own false-branch
// target.
func (fb *funcBuilder) pushIfLabel(result ValueType, ifPos int) {
	fb.labels = append(fb.labels, label{resultType: result, ifPos: ifPos})
}

func (fb *funcBuilder) popLabel() label {
	n := len(fb.labels) - 1
	l := fb.labels[n]
	fb.labels = fb.labels[:n]
	return l
}

// labelAt returns the label targeted by a branch of the given depth (0 =
// innermost).
func (fb *funcBuilder) labelAt(depth uint32) (*label, error) {
	if int(depth) >= len(fb.labels) {
		return nil, corewasmerr.Decode(len(fb.out), "code", "branch depth exceeds block nesting")
	}
	return &fb.labels[len(fb.labels)-1-int(depth)], nil
}

// patchBranch resolves a `br`-family instruction's ImmB targeting depth.
// A loop label resolves immediately to its head; a block/if label
// records a fixup patched in once its matching `end` is emitted.
func (fb *funcBuilder) patchBranch(pos int, depth uint32) error {
	l, err := fb.labelAt(depth)
	if err != nil {
		return err
	}
	if l.isLoop {
		fb.out[pos].ImmB = uint32(l.loopTarget)
	} else {
		l.fixups = append(l.fixups, fixup{pos: pos, tableSlot: -1})
	}
	return nil
}

// resolveFixups applies a label's collected fixups now that its end
// position (endPos) is known.
func (fb *funcBuilder) resolveFixups(l label, endPos int) {
	for _, fx := range l.fixups {
		if fx.tableSlot < 0 {
			fb.out[fx.pos].ImmB = uint32(endPos)
		} else {
			fb.brTables[fx.tableIdx][fx.tableSlot] |= uint64(endPos)
		}
	}
}

func (fb *funcBuilder) decodeBlockType(fr *byteReader) (ValueType, error) {
	b, err := fr.readByte()
	if err != nil {
		return nil, err
	}
	if b == 0x40 {
		return nil, nil
	}
	switch b {
	case 0x7f:
		return I32, nil
	case 0x7e:
		return I64, nil
	case 0x7d:
		return F32, nil
	case 0x7c:
		return F64, nil
	case 0x70:
		return FuncRefType, nil
	case 0x6f:
		return ExternRefType, nil
	default:
		return nil, fr.derr("code", "multi-value block types are not supported")
	}
}

// decodeBody decodes one function's instruction sequence up to and
// including its final top-level `end`, synthesizing the flat
// Instruction stream with every control-flow target pre-resolved.
func (fb *funcBuilder) decodeBody(fr *byteReader) error {
	fb.pushLabel(false, nil) // implicit outermost block = the function body
	for len(fb.labels) > 0 {
		op, err := fr.readByte()
		if err != nil {
			return fr.derr("code", "truncated instruction stream")
		}
		if err := fb.decodeOne(fr, op); err != nil {
			return err
		}
	}
	return nil
}

func (fb *funcBuilder) decodeOne(fr *byteReader, op byte) error {
	switch op {
	case 0x00:
		fb.emit(Instruction{Opcode: Unreachable})
	case 0x01:
		fb.emit(Instruction{Opcode: Nop})
	case 0x02, 0x03, 0x04: // block, loop, if
		rt, err := fb.decodeBlockType(fr)
		if err != nil {
			return err
		}
		switch op {
		case 0x02:
			fb.emit(Instruction{Opcode: Block})
			fb.pushLabel(false, rt)
			fb.labels[len(fb.labels)-1].baseHeight = fb.height
		case 0x03:
			fb.emit(Instruction{Opcode: Loop})
			fb.pushLabel(true, rt)
			fb.labels[len(fb.labels)-1].baseHeight = fb.height
		case 0x04:
			pos := fb.emit(Instruction{Opcode: If})
			fb.height-- // If consumes its i32 condition immediately
			fb.pushIfLabel(rt, pos)
			fb.labels[len(fb.labels)-1].baseHeight = fb.height
		}
	case 0x05: // else
		l := &fb.labels[len(fb.labels)-1]
		drop, preserve := fb.height-l.baseHeight-int(l.arity()), l.arity()
		pos := fb.emit(Instruction{Opcode: Else, ImmA: packDropPreserve(uint32(drop), preserve)})
		// Else is only reached via the taken `then` branch, so it must
		// itself perform the same unwind as a normal fallthrough would,
		// then jump past the `else` arm to the matching end.
		l.fixups = append(l.fixups, fixup{pos: pos, tableSlot: -1})
		// The If's false-branch jumps to the instruction right after
		// this Else, i.e. the start of the `else` arm.
		if l.ifPos >= 0 {
			fb.out[l.ifPos].ImmB = uint32(len(fb.out))
			l.ifPos = -1 // resolved; end must not also target it
		}
		// The `else` arm starts fresh at the if's base height, exactly
		// like the `then` arm did.
		fb.height = l.baseHeight
	case 0x0b: // end
		l := &fb.labels[len(fb.labels)-1]
		drop, preserve := fb.height-l.baseHeight-int(l.arity()), l.arity()
		pos := fb.emit(Instruction{Opcode: End, ImmA: uint32(drop), ImmB: preserve})
		fb.popLabel()
		fb.resolveFixups(*l, pos)
		// An `if` with no `else` arm: its false-branch jumps straight to
		// this end.
		if l.ifPos >= 0 {
			fb.out[l.ifPos].ImmB = uint32(pos)
		}
		// Subsequent sibling code sees the post-unwind height.
		fb.height = l.baseHeight + int(preserve)
		// If this was the function's outermost label, stop.
		if len(fb.labels) == 0 {
			return nil
		}
	case 0x0c, 0x0d: // br, brIf
		depth, err := fr.u32()
		if err != nil {
			return err
		}
		oc := Br
		if op == 0x0d {
			oc = BrIf
			fb.height-- // br_if's own condition operand
		}
		l, err := fb.labelAt(depth)
		if err != nil {
			return err
		}
		arity := l.branchArity()
		drop := fb.height - l.baseHeight - int(arity)
		pos := fb.emit(Instruction{Opcode: oc, ImmA: packDropPreserve(uint32(drop), arity)})
		if err := fb.patchBranch(pos, depth); err != nil {
			return err
		}
	case 0x0e: // br_table
		n, err := fr.u32()
		if err != nil {
			return err
		}
		depths := make([]uint32, n+1)
		for i := range depths {
			if depths[i], err = fr.u32(); err != nil {
				return err
			}
		}
		fb.height-- // the index operand selecting among targets
		tableIdx := uint32(len(fb.brTables))
		targets := make([]uint64, len(depths))
		fb.brTables = append(fb.brTables, targets)
		pos := fb.emit(Instruction{Opcode: BrTable, ImmA: tableIdx})
		for i, depth := range depths {
			l, err := fb.labelAt(depth)
			if err != nil {
				return corewasmerr.Decode(pos, "code", "br_table depth exceeds block nesting")
			}
			arity := l.branchArity()
			drop := fb.height - l.baseHeight - int(arity)
			high := uint64(packDropPreserve(uint32(drop), arity)) << 32
			if l.isLoop {
				targets[i] = high | uint64(l.loopTarget)
			} else {
				targets[i] = high
				l.fixups = append(l.fixups, fixup{tableIdx: tableIdx, tableSlot: i})
			}
		}
	case 0x0f: // return
		fb.emit(Instruction{Opcode: Return})
	case 0x10: // call
		idx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: Call, ImmA: idx})
	case 0x11: // call_indirect
		typeIdx, err := fr.u32()
		if err != nil {
			return err
		}
		tblIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: CallIndirect, ImmA: typeIdx, ImmB: tblIdx})
	case 0x1a:
		fb.emitAdj(Instruction{Opcode: Drop})
	case 0x1b:
		fb.emitAdj(Instruction{Opcode: Select})
	case 0x20, 0x21, 0x22: // local.get/set/tee
		idx, err := fr.u32()
		if err != nil {
			return err
		}
		oc := LocalGet
		if op == 0x21 {
			oc = LocalSet
		} else if op == 0x22 {
			oc = LocalTee
		}
		fb.emitAdj(Instruction{Opcode: oc, ImmA: idx})
	case 0x23, 0x24: // global.get/set
		idx, err := fr.u32()
		if err != nil {
			return err
		}
		oc := GlobalGet
		if op == 0x24 {
			oc = GlobalSet
		}
		fb.emitAdj(Instruction{Opcode: oc, ImmA: idx})
	case 0x3f, 0x40: // memory.size/grow
		if _, err := fr.readByte(); err != nil { // reserved memory index byte
			return err
		}
		oc := MemorySize
		if op == 0x40 {
			oc = MemoryGrow
		}
		fb.emitAdj(Instruction{Opcode: oc, ImmB: 0})
	case 0x41: // i32.const
		v, err := fr.s32raw()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: I32Const, ImmA: uint32(v)})
	case 0x42: // i64.const
		v, err := fr.s64raw()
		if err != nil {
			return err
		}
		fb.emitAdj(instrImm64(I64Const, v))
	case 0x43: // f32.const
		b, err := fr.readBytes(4)
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: F32Const, ImmA: binary.LittleEndian.Uint32(b)})
	case 0x44: // f64.const
		b, err := fr.readBytes(8)
		if err != nil {
			return err
		}
		fb.emitAdj(instrImm64(F64Const, binary.LittleEndian.Uint64(b)))
	case 0xd0: // ref.null
		if _, err := fr.readByte(); err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: RefNull})
	case 0xd1:
		fb.emitAdj(Instruction{Opcode: RefIsNull})
	case 0xd2:
		idx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: RefFunc, ImmA: idx})
	case 0xfc:
		return fb.decodeMisc(fr)
	case 0xfe:
		return fb.decodeAtomic(fr)
	default:
		if loadOp, ok := loadStoreOpcode(op); ok {
			align, err := fr.u32()
			if err != nil {
				return err
			}
			offset, err := fr.u32()
			if err != nil {
				return err
			}
			fb.emitAdj(Instruction{Opcode: loadOp, ImmA: offset, ImmB: align})
			return nil
		}
		if simpleOp, ok := simpleOpcode(op); ok {
			fb.emitAdj(Instruction{Opcode: simpleOp})
			return nil
		}
		return fr.derr("code", "unsupported or SIMD opcode")
	}
	return nil
}

func (fb *funcBuilder) decodeMisc(fr *byteReader) error {
	sub, err := fr.u32()
	if err != nil {
		return err
	}
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // trunc_sat variants
		ops := []Opcode{I32TruncSatF32S, I32TruncSatF32U, I32TruncSatF64S, I32TruncSatF64U,
			I64TruncSatF32S, I64TruncSatF32U, I64TruncSatF64S, I64TruncSatF64U}
		fb.emitAdj(Instruction{Opcode: ops[sub]})
	case 8: // memory.init
		dataIdx, err := fr.u32()
		if err != nil {
			return err
		}
		if _, err := fr.readByte(); err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: MemoryInit, ImmA: dataIdx})
	case 9:
		dataIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: DataDrop, ImmA: dataIdx})
	case 10:
		if _, err := fr.readByte(); err != nil {
			return err
		}
		if _, err := fr.readByte(); err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: MemoryCopy})
	case 11:
		if _, err := fr.readByte(); err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: MemoryFill})
	case 12:
		elemIdx, err := fr.u32()
		if err != nil {
			return err
		}
		tblIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: TableInit, ImmA: elemIdx, ImmB: tblIdx})
	case 13:
		elemIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: ElemDrop, ImmA: elemIdx})
	case 14:
		dst, err := fr.u32()
		if err != nil {
			return err
		}
		if _, err := fr.u32(); err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: TableCopy, ImmA: dst})
	case 15:
		tblIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: TableGrow, ImmA: tblIdx})
	case 16:
		tblIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: TableSize, ImmA: tblIdx})
	case 17:
		tblIdx, err := fr.u32()
		if err != nil {
			return err
		}
		fb.emitAdj(Instruction{Opcode: TableFill, ImmA: tblIdx})
	default:
		return fr.derr("code", "unsupported 0xfc opcode")
	}
	return nil
}

func (fb *funcBuilder) decodeAtomic(fr *byteReader) error {
	sub, err := fr.u32()
	if err != nil {
		return err
	}
	if sub == 0x03 {
		fb.emitAdj(Instruction{Opcode: AtomicFence})
		if _, err := fr.readByte(); err != nil {
			return err
		}
		return nil
	}
	oc, ok := atomicOpcodeFor(byte(sub))
	if !ok {
		return fr.derr("code", "unsupported atomic opcode")
	}
	align, err := fr.u32()
	if err != nil {
		return err
	}
	offset, err := fr.u32()
	if err != nil {
		return err
	}
	fb.emitAdj(Instruction{Opcode: oc, ImmA: offset, ImmB: align})
	return nil
}

// loadStoreOpcode and simpleOpcode map the remaining single-byte MVP
// numeric/memory opcodes onto this package's Opcode space.
func loadStoreOpcode(b byte) (Opcode, bool) {
	m := map[byte]Opcode{
		0x28: I32Load, 0x29: I64Load, 0x2a: F32Load, 0x2b: F64Load,
		0x2c: I32Load8S, 0x2d: I32Load8U, 0x2e: I32Load16S, 0x2f: I32Load16U,
		0x30: I64Load8S, 0x31: I64Load8U, 0x32: I64Load16S, 0x33: I64Load16U,
		0x34: I64Load32S, 0x35: I64Load32U,
		0x36: I32Store, 0x37: I64Store, 0x38: F32Store, 0x39: F64Store,
		0x3a: I32Store8, 0x3b: I32Store16, 0x3c: I64Store8, 0x3d: I64Store16, 0x3e: I64Store32,
	}
	oc, ok := m[b]
	return oc, ok
}

func simpleOpcode(b byte) (Opcode, bool) {
	m := map[byte]Opcode{
		0x45: I32Eqz, 0x46: I32Eq, 0x47: I32Ne, 0x48: I32LtS, 0x49: I32LtU,
		0x4a: I32GtS, 0x4b: I32GtU, 0x4c: I32LeS, 0x4d: I32LeU, 0x4e: I32GeS, 0x4f: I32GeU,
		0x50: I64Eqz, 0x51: I64Eq, 0x52: I64Ne, 0x53: I64LtS, 0x54: I64LtU,
		0x55: I64GtS, 0x56: I64GtU, 0x57: I64LeS, 0x58: I64LeU, 0x59: I64GeS, 0x5a: I64GeU,
		0x5b: F32Eq, 0x5c: F32Ne, 0x5d: F32Lt, 0x5e: F32Gt, 0x5f: F32Le, 0x60: F32Ge,
		0x61: F64Eq, 0x62: F64Ne, 0x63: F64Lt, 0x64: F64Gt, 0x65: F64Le, 0x66: F64Ge,
		0x67: I32Clz, 0x68: I32Ctz, 0x69: I32Popcnt,
		0x6a: I32Add, 0x6b: I32Sub, 0x6c: I32Mul, 0x6d: I32DivS, 0x6e: I32DivU,
		0x6f: I32RemS, 0x70: I32RemU, 0x71: I32And, 0x72: I32Or, 0x73: I32Xor,
		0x74: I32Shl, 0x75: I32ShrS, 0x76: I32ShrU, 0x77: I32Rotl, 0x78: I32Rotr,
		0x79: I64Clz, 0x7a: I64Ctz, 0x7b: I64Popcnt,
		0x7c: I64Add, 0x7d: I64Sub, 0x7e: I64Mul, 0x7f: I64DivS, 0x80: I64DivU,
		0x81: I64RemS, 0x82: I64RemU, 0x83: I64And, 0x84: I64Or, 0x85: I64Xor,
		0x86: I64Shl, 0x87: I64ShrS, 0x88: I64ShrU, 0x89: I64Rotl, 0x8a: I64Rotr,
		0x8b: F32Abs, 0x8c: F32Neg, 0x8d: F32Ceil, 0x8e: F32Floor, 0x8f: F32Trunc,
		0x90: F32Nearest, 0x91: F32Sqrt, 0x92: F32Add, 0x93: F32Sub, 0x94: F32Mul,
		0x95: F32Div, 0x96: F32Min, 0x97: F32Max, 0x98: F32Copysign,
		0x99: F64Abs, 0x9a: F64Neg, 0x9b: F64Ceil, 0x9c: F64Floor, 0x9d: F64Trunc,
		0x9e: F64Nearest, 0x9f: F64Sqrt, 0xa0: F64Add, 0xa1: F64Sub, 0xa2: F64Mul,
		0xa3: F64Div, 0xa4: F64Min, 0xa5: F64Max, 0xa6: F64Copysign,
		0xa7: I32WrapI64, 0xa8: I32TruncF32S, 0xa9: I32TruncF32U, 0xaa: I32TruncF64S, 0xab: I32TruncF64U,
		0xac: I64ExtendI32S, 0xad: I64ExtendI32U, 0xae: I64TruncF32S, 0xaf: I64TruncF32U,
		0xb0: I64TruncF64S, 0xb1: I64TruncF64U,
		0xb2: F32ConvertI32S, 0xb3: F32ConvertI32U, 0xb4: F32ConvertI64S, 0xb5: F32ConvertI64U, 0xb6: F32DemoteF64,
		0xb7: F64ConvertI32S, 0xb8: F64ConvertI32U, 0xb9: F64ConvertI64S, 0xba: F64ConvertI64U, 0xbb: F64PromoteF32,
		0xbc: I32ReinterpretF32, 0xbd: I64ReinterpretF64, 0xbe: F32ReinterpretI32, 0xbf: F64ReinterpretI64,
		0xc0: I32Extend8S, 0xc1: I32Extend16S, 0xc2: I64Extend8S, 0xc3: I64Extend16S, 0xc4: I64Extend32S,
	}
	oc, ok := m[b]
	return oc, ok
}

func atomicOpcodeFor(sub byte) (Opcode, bool) {
	m := map[byte]Opcode{
		0x10: I32AtomicLoad, 0x11: I64AtomicLoad, 0x12: I32AtomicLoad8U, 0x13: I32AtomicLoad16U,
		0x14: I64AtomicLoad8U, 0x15: I64AtomicLoad16U, 0x16: I64AtomicLoad32U,
		0x17: I32AtomicStore, 0x18: I64AtomicStore, 0x19: I32AtomicStore8, 0x1a: I32AtomicStore16,
		0x1b: I64AtomicStore8, 0x1c: I64AtomicStore16, 0x1d: I64AtomicStore32,
		0x1e: I32AtomicRmwAdd, 0x1f: I64AtomicRmwAdd, 0x20: I32AtomicRmw8AddU, 0x21: I32AtomicRmw16AddU,
		0x22: I64AtomicRmw8AddU, 0x23: I64AtomicRmw16AddU, 0x24: I64AtomicRmw32AddU,
		0x25: I32AtomicRmwSub, 0x26: I64AtomicRmwSub, 0x27: I32AtomicRmw8SubU, 0x28: I32AtomicRmw16SubU,
		0x29: I64AtomicRmw8SubU, 0x2a: I64AtomicRmw16SubU, 0x2b: I64AtomicRmw32SubU,
		0x2c: I32AtomicRmwAnd, 0x2d: I64AtomicRmwAnd, 0x2e: I32AtomicRmw8AndU, 0x2f: I32AtomicRmw16AndU,
		0x30: I64AtomicRmw8AndU, 0x31: I64AtomicRmw16AndU, 0x32: I64AtomicRmw32AndU,
		0x33: I32AtomicRmwOr, 0x34: I64AtomicRmwOr, 0x35: I32AtomicRmw8OrU, 0x36: I32AtomicRmw16OrU,
		0x37: I64AtomicRmw8OrU, 0x38: I64AtomicRmw16OrU, 0x39: I64AtomicRmw32OrU,
		0x3a: I32AtomicRmwXor, 0x3b: I64AtomicRmwXor, 0x3c: I32AtomicRmw8XorU, 0x3d: I32AtomicRmw16XorU,
		0x3e: I64AtomicRmw8XorU, 0x3f: I64AtomicRmw16XorU, 0x40: I64AtomicRmw32XorU,
		0x41: I32AtomicRmwXchg, 0x42: I64AtomicRmwXchg, 0x43: I32AtomicRmw8XchgU, 0x44: I32AtomicRmw16XchgU,
		0x45: I64AtomicRmw8XchgU, 0x46: I64AtomicRmw16XchgU, 0x47: I64AtomicRmw32XchgU,
		0x48: I32AtomicRmwCmpxchg, 0x49: I64AtomicRmwCmpxchg, 0x4a: I32AtomicRmw8CmpxchgU, 0x4b: I32AtomicRmw16CmpxchgU,
		0x4c: I64AtomicRmw8CmpxchgU, 0x4d: I64AtomicRmw16CmpxchgU, 0x4e: I64AtomicRmw32CmpxchgU,
		0x00: MemoryAtomicNotify, 0x01: MemoryAtomicWait32, 0x02: MemoryAtomicWait64,
	}
	oc, ok := m[sub]
	return oc, ok
}

