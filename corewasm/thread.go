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

	"github.com/corewasm/corewasm/corewasm/corewasmerr"
)

// valueStack is the Thread's single operand stack, shared across all
// active call frames, addressed by absolute index so a callee's frame
// is simply a window onto the tail of the same backing array.
type valueStack struct {
	data []Value
}

func newValueStack(prealloc int) *valueStack {
	return &valueStack{data: make([]Value, 0, prealloc)}
}

func (s *valueStack) size() int { return len(s.data) }

func (s *valueStack) push(v Value) { s.data = append(s.data, v) }

func (s *valueStack) pop() Value {
	n := len(s.data) - 1
	v := s.data[n]
	s.data = s.data[:n]
	return v
}

func (s *valueStack) peek() Value { return s.data[len(s.data)-1] }

// unwind drops the stack to dropCount+preserveCount below its current
// top, keeping only the top preserveCount values (the 'end'/'br' merge
// semantics).
func (s *valueStack) unwind(dropCount, preserveCount uint32) {
	top := len(s.data)
	preserved := append([]Value(nil), s.data[top-int(preserveCount):]...)
	s.data = s.data[:top-int(preserveCount)-int(dropCount)]
	s.data = append(s.data, preserved...)
}

// callFrame is one activation record: the callee and its cursor into its
// own instruction stream, plus the operand-stack height at entry so
// local.get/set can address params+locals directly.
type callFrame struct {
	fn        *WasmFunc
	pc        int
	localBase int // index into the Thread's valueStack of local 0
}

// Thread is one logical strand of execution against an Environment: its
// own operand stack and call stack, sharing the Environment's Memories/
// Tables/Globals and syncContext with every other Thread.
type Thread struct {
	env    *Environment
	config *Config
	values *valueStack
	frames []callFrame
	pool   *threadPool // script allocator context
}

// NewThread creates a Thread bound to e, ready to call exported or
// host functions.
func (e *Environment) NewThread() *Thread {
	t := &Thread{
		env:    e,
		config: e.config,
		values: newValueStack(e.config.MaxValueStackDepth / 4),
		frames: make([]callFrame, 0, e.config.CallStackPreallocationSize),
	}
	t.pool = newThreadPool(t)
	return t
}

// Call invokes fn with already-typed args and returns its results. This
// is the single entry point used by Instance.Invoke, call/call_indirect
// opcodes and module start functions alike.
func (t *Thread) Call(fn FunctionInstance, args []TypedValue) ([]TypedValue, error) {
	sig := fn.signature()
	if len(args) != len(sig.Params) {
		return nil, corewasmerr.Execute(corewasmerr.TrapArgumentTypeMismatch, "argument count mismatch")
	}
	switch f := fn.(type) {
	case *HostFunc:
		return f.Fn(t, args)
	case *WasmFunc:
		return t.callWasm(f, args)
	default:
		return nil, corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unknown function instance kind")
	}
}

func (t *Thread) callWasm(f *WasmFunc, args []TypedValue) ([]TypedValue, error) {
	if len(t.frames) >= t.config.MaxCallStackDepth {
		return nil, corewasmerr.Execute(corewasmerr.TrapCallStackExhausted, "call stack exhausted")
	}
	base := t.values.size()
	for _, a := range args {
		t.values.push(a.Value)
	}
	for _, lt := range f.Def.Locals {
		t.values.push(zeroValue(lt).Value)
	}
	t.frames = append(t.frames, callFrame{fn: f, pc: 0, localBase: base})
	defer func() { t.frames = t.frames[:len(t.frames)-1] }()

	if err := t.run(); err != nil {
		// Unwind the operand stack to the pre-call height on any trap:
		// no destructor semantics, the stack simply resets.
		t.values.data = t.values.data[:base]
		return nil, err
	}

	results := make([]TypedValue, len(f.Sig.Results))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = TypedValue{Type: f.Sig.Results[i], Value: t.values.pop()}
	}
	// Drop the locals region (params + declared locals) now that results
	// have been captured off the top.
	t.values.data = t.values.data[:base]
	return results, nil
}

// errReturn unwinds run's loop back to callWasm when a `return` opcode
// or falling off the end of the top-level block completes the function.
type errReturn struct{}

func (errReturn) Error() string { return "return" }

func (t *Thread) run() error {
	frame := &t.frames[len(t.frames)-1]
	code := frame.fn.Def.Code
	release := t.env.sync.sharedSection()
	defer release()

	for {
		if frame.pc >= len(code) {
			return nil
		}
		in := code[frame.pc]
		if t.env.sync.shouldYield() {
			release()
			release = t.env.sync.sharedSection()
		}
		if err := t.step(frame, in); err != nil {
			if _, ok := err.(errReturn); ok {
				return nil
			}
			return err
		}
		frame.pc++
	}
}

func (t *Thread) local(frame *callFrame, idx uint32) *Value {
	return &t.values.data[frame.localBase+int(idx)]
}

func (t *Thread) memOf(idx uint32) *Memory {
	inst := frame0(t).fn.Instance
	return inst.memories[idx]
}

func frame0(t *Thread) *callFrame { return &t.frames[len(t.frames)-1] }

// step executes a single decoded instruction against frame, which must
// be the top of t.frames. It returns errReturn to signal normal function
// completion via `return`/falling off the outermost block, or a
// *corewasmerr.Error trap on abnormal termination.
func (t *Thread) step(frame *callFrame, in Instruction) error {
	inst := frame.fn.Instance
	s := t.values

	switch in.Opcode {
	case Unreachable:
		return corewasmerr.Execute(corewasmerr.TrapUnreachable, "unreachable executed")
	case Nop, Block, Loop:
		return nil
	case If:
		cond := s.pop().i32()
		if cond == 0 {
			frame.pc = int(in.ImmB) - 1
		}
		return nil
	case Else:
		// The then-arm fell through into else: unwind its result the same
		// way a branch out of the block would, then skip the else-arm.
		drop, preserve := unpackDropPreserve(in.ImmA)
		s.unwind(drop, preserve)
		frame.pc = int(in.ImmB) - 1
		return nil
	case End:
		s.unwind(in.ImmA, in.ImmB)
		return nil
	case Br:
		drop, preserve := unpackDropPreserve(in.ImmA)
		s.unwind(drop, preserve)
		frame.pc = int(in.ImmB) - 1
		return nil
	case BrIf:
		if s.pop().i32() != 0 {
			drop, preserve := unpackDropPreserve(in.ImmA)
			s.unwind(drop, preserve)
			frame.pc = int(in.ImmB) - 1
		}
		return nil
	case BrTable:
		idx := uint32(s.pop().i32())
		targets := frame.fn.Def.BrTables[in.ImmA]
		if idx >= uint32(len(targets))-1 {
			idx = uint32(len(targets)) - 1
		}
		target := targets[idx]
		drop, preserve := unpackDropPreserve(uint32(target >> 32))
		s.unwind(drop, preserve)
		frame.pc = int(uint32(target)) - 1
		return nil
	case Return:
		return errReturn{}
	case Call:
		return t.execCall(frame, in)
	case CallIndirect:
		return t.execCallIndirect(frame, in)
	case Drop:
		s.pop()
		return nil
	case Select:
		cond := s.pop().i32()
		b := s.pop()
		a := s.pop()
		if cond != 0 {
			s.push(a)
		} else {
			s.push(b)
		}
		return nil

	case LocalGet:
		s.push(*t.local(frame, in.ImmA))
		return nil
	case LocalSet:
		*t.local(frame, in.ImmA) = s.pop()
		return nil
	case LocalTee:
		*t.local(frame, in.ImmA) = s.peek()
		return nil
	case GlobalGet:
		s.push(inst.globals[in.ImmA].Get().Value)
		return nil
	case GlobalSet:
		inst.globals[in.ImmA].Set(TypedValue{Type: inst.globals[in.ImmA].Type.ValueType, Value: s.pop()})
		return nil

	case I32Const:
		s.push(Value{bits: uint64(in.ImmA)})
		return nil
	case F32Const:
		s.push(Value{bits: uint64(in.ImmA)})
		return nil
	case I64Const, F64Const:
		s.push(Value{bits: in.Imm64()})
		return nil
	}

	if in.Opcode >= I32Load && in.Opcode <= MemoryGrow {
		return t.execMemory(in)
	}
	if in.Opcode >= I32Eqz && in.Opcode <= F64Ge {
		return t.execCompare(in)
	}
	if in.Opcode >= I32Clz && in.Opcode <= F64Copysign {
		return t.execArith(in)
	}
	if in.Opcode >= I32WrapI64 && in.Opcode <= I64Extend32S {
		return t.execConvert(in)
	}
	if in.Opcode >= I32TruncSatF32S && in.Opcode <= TableFill {
		return t.execBulk(frame, in)
	}
	if in.Opcode >= RefNull && in.Opcode <= TableSet {
		return t.execRef(in)
	}
	if in.Opcode >= AtomicFence && in.Opcode <= MemoryAtomicNotify {
		return t.execAtomic(in)
	}
	if in.Opcode >= Try && in.Opcode <= CatchAll {
		return corewasmerr.Execute(corewasmerr.TrapUnreachable, "exception handling is accepted by the decoder but not executable")
	}
	return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unimplemented opcode "+in.Opcode.String())
}

func (t *Thread) execCall(frame *callFrame, in Instruction) error {
	inst := frame.fn.Instance
	callee := inst.funcs[in.ImmA]
	args := popArgs(t.values, callee.signature().Params)
	results, err := t.Call(callee, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		t.values.push(r.Value)
	}
	return nil
}

func (t *Thread) execCallIndirect(frame *callFrame, in Instruction) error {
	inst := frame.fn.Instance
	sig := &inst.module.Types[in.ImmA]
	tbl := inst.tables[in.ImmB]
	elemIdx := uint32(t.values.pop().i32())
	funcIdx, err := tbl.Get(elemIdx)
	if err != nil {
		return err
	}
	if funcIdx == NullReference {
		return corewasmerr.Execute(corewasmerr.TrapUninitializedTableElement, "call_indirect to uninitialized element")
	}
	callee := inst.funcs[uint32(funcIdx)]
	if !callee.signature().Equal(sig) {
		return corewasmerr.Execute(corewasmerr.TrapIndirectCallSignatureMismatch, "call_indirect signature mismatch")
	}
	args := popArgs(t.values, sig.Params)
	results, err := t.Call(callee, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		t.values.push(r.Value)
	}
	return nil
}

func popArgs(s *valueStack, params []ValueType) []TypedValue {
	n := len(params)
	args := make([]TypedValue, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = TypedValue{Type: params[i], Value: s.pop()}
	}
	return args
}

func memArg(in Instruction) (offset uint32) { return in.ImmA }

func (t *Thread) execMemory(in Instruction) error {
	s := t.values
	switch in.Opcode {
	case MemorySize:
		s.push(i32Value(int32(t.memOf(in.ImmB).Size())))
		return nil
	case MemoryGrow:
		mem := t.memOf(in.ImmB)
		delta := uint32(s.peek().i32())
		var prev int32
		t.env.sync.growMemoryBarrier(func() { prev = mem.Grow(delta) })
		s.pop()
		s.push(i32Value(prev))
		return nil
	}

	mem := t.memOf(0)
	switch in.Opcode {
	case I32Store, I64Store, F32Store, F64Store, I32Store8, I32Store16, I64Store8, I64Store16, I64Store32:
		return t.execStore(mem, in)
	default:
		return t.execLoad(mem, in)
	}
}

func (t *Thread) execLoad(mem *Memory, in Instruction) error {
	s := t.values
	addr := uint32(s.pop().i32())
	off := memArg(in)
	read := func(n uint32) ([]byte, error) { return mem.Read(addr, off, n) }
	switch in.Opcode {
	case I32Load:
		b, err := read(4)
		if err != nil {
			return err
		}
		s.push(i32Value(int32(leU32(b))))
	case I64Load:
		b, err := read(8)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(leU64(b))))
	case F32Load:
		b, err := read(4)
		if err != nil {
			return err
		}
		s.push(Value{bits: uint64(leU32(b))})
	case F64Load:
		b, err := read(8)
		if err != nil {
			return err
		}
		s.push(Value{bits: leU64(b)})
	case I32Load8S:
		b, err := read(1)
		if err != nil {
			return err
		}
		s.push(i32Value(int32(int8(b[0]))))
	case I32Load8U:
		b, err := read(1)
		if err != nil {
			return err
		}
		s.push(i32Value(int32(b[0])))
	case I32Load16S:
		b, err := read(2)
		if err != nil {
			return err
		}
		s.push(i32Value(int32(int16(leU32(pad4(b))))))
	case I32Load16U:
		b, err := read(2)
		if err != nil {
			return err
		}
		s.push(i32Value(int32(uint16(leU32(pad4(b))))))
	case I64Load8S:
		b, err := read(1)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(int8(b[0]))))
	case I64Load8U:
		b, err := read(1)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(b[0])))
	case I64Load16S:
		b, err := read(2)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(int16(leU32(pad4(b))))))
	case I64Load16U:
		b, err := read(2)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(uint16(leU32(pad4(b))))))
	case I64Load32S:
		b, err := read(4)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(int32(leU32(b)))))
	case I64Load32U:
		b, err := read(4)
		if err != nil {
			return err
		}
		s.push(i64Value(int64(leU32(b))))
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled load opcode")
	}
	return nil
}

func (t *Thread) execStore(mem *Memory, in Instruction) error {
	s := t.values
	var buf [8]byte
	off := memArg(in)
	switch in.Opcode {
	case I32Store:
		v := s.pop().u32()
		putU32(buf[:4], v)
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:4])
	case I64Store:
		v := s.pop().u64()
		putU64(buf[:8], v)
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:8])
	case F32Store:
		v := s.pop().u32()
		putU32(buf[:4], v)
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:4])
	case F64Store:
		v := s.pop().u64()
		putU64(buf[:8], v)
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:8])
	case I32Store8:
		v := byte(s.pop().u32())
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, []byte{v})
	case I32Store16:
		v := uint16(s.pop().u32())
		putU32(buf[:4], uint32(v))
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:2])
	case I64Store8:
		v := byte(s.pop().u64())
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, []byte{v})
	case I64Store16:
		v := uint16(s.pop().u64())
		putU32(buf[:4], uint32(v))
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:2])
	case I64Store32:
		v := uint32(s.pop().u64())
		putU32(buf[:4], v)
		addr := uint32(s.pop().i32())
		return mem.Write(addr, off, buf[:4])
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled store opcode")
	}
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leU64(b []byte) uint64 {
	return uint64(leU32(b[:4])) | uint64(leU32(b[4:8]))<<32
}
func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putU64(b []byte, v uint64) {
	putU32(b[:4], uint32(v))
	putU32(b[4:8], uint32(v>>32))
}
func pad4(b []byte) []byte {
	var out [4]byte
	copy(out[:], b)
	return out[:]
}

func (t *Thread) execCompare(in Instruction) error {
	s := t.values
	pushBool := func(b bool) {
		if b {
			s.push(i32Value(1))
		} else {
			s.push(i32Value(0))
		}
	}
	switch in.Opcode {
	case I32Eqz:
		pushBool(s.pop().i32() == 0)
	case I64Eqz:
		pushBool(s.pop().i64() == 0)
	default:
		b := s.pop()
		a := s.pop()
		switch in.Opcode {
		case I32Eq:
			pushBool(a.i32() == b.i32())
		case I32Ne:
			pushBool(a.i32() != b.i32())
		case I32LtS:
			pushBool(a.i32() < b.i32())
		case I32LtU:
			pushBool(a.u32() < b.u32())
		case I32GtS:
			pushBool(a.i32() > b.i32())
		case I32GtU:
			pushBool(a.u32() > b.u32())
		case I32LeS:
			pushBool(a.i32() <= b.i32())
		case I32LeU:
			pushBool(a.u32() <= b.u32())
		case I32GeS:
			pushBool(a.i32() >= b.i32())
		case I32GeU:
			pushBool(a.u32() >= b.u32())
		case I64Eq:
			pushBool(a.i64() == b.i64())
		case I64Ne:
			pushBool(a.i64() != b.i64())
		case I64LtS:
			pushBool(a.i64() < b.i64())
		case I64LtU:
			pushBool(a.u64() < b.u64())
		case I64GtS:
			pushBool(a.i64() > b.i64())
		case I64GtU:
			pushBool(a.u64() > b.u64())
		case I64LeS:
			pushBool(a.i64() <= b.i64())
		case I64LeU:
			pushBool(a.u64() <= b.u64())
		case I64GeS:
			pushBool(a.i64() >= b.i64())
		case I64GeU:
			pushBool(a.u64() >= b.u64())
		case F32Eq:
			pushBool(a.f32() == b.f32())
		case F32Ne:
			pushBool(a.f32() != b.f32())
		case F32Lt:
			pushBool(a.f32() < b.f32())
		case F32Gt:
			pushBool(a.f32() > b.f32())
		case F32Le:
			pushBool(a.f32() <= b.f32())
		case F32Ge:
			pushBool(a.f32() >= b.f32())
		case F64Eq:
			pushBool(a.f64() == b.f64())
		case F64Ne:
			pushBool(a.f64() != b.f64())
		case F64Lt:
			pushBool(a.f64() < b.f64())
		case F64Gt:
			pushBool(a.f64() > b.f64())
		case F64Le:
			pushBool(a.f64() <= b.f64())
		case F64Ge:
			pushBool(a.f64() >= b.f64())
		default:
			return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled compare opcode")
		}
	}
	return nil
}

func (t *Thread) execArith(in Instruction) error {
	s := t.values
	switch in.Opcode {
	case I32Clz:
		s.push(i32Value(int32(clz32(s.pop().u32()))))
		return nil
	case I32Ctz:
		s.push(i32Value(int32(ctz32(s.pop().u32()))))
		return nil
	case I32Popcnt:
		s.push(i32Value(int32(popcnt32(s.pop().u32()))))
		return nil
	case I64Clz:
		s.push(i64Value(int64(clz64(s.pop().u64()))))
		return nil
	case I64Ctz:
		s.push(i64Value(int64(ctz64(s.pop().u64()))))
		return nil
	case I64Popcnt:
		s.push(i64Value(int64(popcnt64(s.pop().u64()))))
		return nil
	case F32Abs:
		s.push(f32Value(float32(math.Abs(float64(s.pop().f32())))))
		return nil
	case F32Neg:
		s.push(f32Value(-s.pop().f32()))
		return nil
	case F32Ceil:
		s.push(f32Value(float32(math.Ceil(float64(s.pop().f32())))))
		return nil
	case F32Floor:
		s.push(f32Value(float32(math.Floor(float64(s.pop().f32())))))
		return nil
	case F32Trunc:
		s.push(f32Value(float32(math.Trunc(float64(s.pop().f32())))))
		return nil
	case F32Nearest:
		s.push(f32Value(float32(math.RoundToEven(float64(s.pop().f32())))))
		return nil
	case F32Sqrt:
		s.push(f32Value(float32(math.Sqrt(float64(s.pop().f32())))))
		return nil
	case F64Abs:
		s.push(f64Value(math.Abs(s.pop().f64())))
		return nil
	case F64Neg:
		s.push(f64Value(-s.pop().f64()))
		return nil
	case F64Ceil:
		s.push(f64Value(math.Ceil(s.pop().f64())))
		return nil
	case F64Floor:
		s.push(f64Value(math.Floor(s.pop().f64())))
		return nil
	case F64Trunc:
		s.push(f64Value(math.Trunc(s.pop().f64())))
		return nil
	case F64Nearest:
		s.push(f64Value(math.RoundToEven(s.pop().f64())))
		return nil
	case F64Sqrt:
		s.push(f64Value(math.Sqrt(s.pop().f64())))
		return nil
	}

	b := s.pop()
	a := s.pop()
	switch in.Opcode {
	case I32Add:
		s.push(i32Value(a.i32() + b.i32()))
	case I32Sub:
		s.push(i32Value(a.i32() - b.i32()))
	case I32Mul:
		s.push(i32Value(a.i32() * b.i32()))
	case I32DivS:
		if b.i32() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i32.div_s by zero")
		}
		if a.i32() == math.MinInt32 && b.i32() == -1 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerOverflow, "i32.div_s overflow")
		}
		s.push(i32Value(a.i32() / b.i32()))
	case I32DivU:
		if b.u32() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i32.div_u by zero")
		}
		s.push(i32Value(int32(a.u32() / b.u32())))
	case I32RemS:
		if b.i32() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i32.rem_s by zero")
		}
		if a.i32() == math.MinInt32 && b.i32() == -1 {
			s.push(i32Value(0))
		} else {
			s.push(i32Value(a.i32() % b.i32()))
		}
	case I32RemU:
		if b.u32() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i32.rem_u by zero")
		}
		s.push(i32Value(int32(a.u32() % b.u32())))
	case I32And:
		s.push(i32Value(a.i32() & b.i32()))
	case I32Or:
		s.push(i32Value(a.i32() | b.i32()))
	case I32Xor:
		s.push(i32Value(a.i32() ^ b.i32()))
	case I32Shl:
		s.push(i32Value(a.i32() << (b.u32() & 31)))
	case I32ShrS:
		s.push(i32Value(a.i32() >> (b.u32() & 31)))
	case I32ShrU:
		s.push(i32Value(int32(a.u32() >> (b.u32() & 31))))
	case I32Rotl:
		s.push(i32Value(int32(rotl32(a.u32(), b.u32()))))
	case I32Rotr:
		s.push(i32Value(int32(rotr32(a.u32(), b.u32()))))

	case I64Add:
		s.push(i64Value(a.i64() + b.i64()))
	case I64Sub:
		s.push(i64Value(a.i64() - b.i64()))
	case I64Mul:
		s.push(i64Value(a.i64() * b.i64()))
	case I64DivS:
		if b.i64() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i64.div_s by zero")
		}
		if a.i64() == math.MinInt64 && b.i64() == -1 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerOverflow, "i64.div_s overflow")
		}
		s.push(i64Value(a.i64() / b.i64()))
	case I64DivU:
		if b.u64() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i64.div_u by zero")
		}
		s.push(i64Value(int64(a.u64() / b.u64())))
	case I64RemS:
		if b.i64() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i64.rem_s by zero")
		}
		if a.i64() == math.MinInt64 && b.i64() == -1 {
			s.push(i64Value(0))
		} else {
			s.push(i64Value(a.i64() % b.i64()))
		}
	case I64RemU:
		if b.u64() == 0 {
			return corewasmerr.Execute(corewasmerr.TrapIntegerDivideByZero, "i64.rem_u by zero")
		}
		s.push(i64Value(int64(a.u64() % b.u64())))
	case I64And:
		s.push(i64Value(a.i64() & b.i64()))
	case I64Or:
		s.push(i64Value(a.i64() | b.i64()))
	case I64Xor:
		s.push(i64Value(a.i64() ^ b.i64()))
	case I64Shl:
		s.push(i64Value(a.i64() << (b.u64() & 63)))
	case I64ShrS:
		s.push(i64Value(a.i64() >> (b.u64() & 63)))
	case I64ShrU:
		s.push(i64Value(int64(a.u64() >> (b.u64() & 63))))
	case I64Rotl:
		s.push(i64Value(int64(rotl64(a.u64(), b.u64()))))
	case I64Rotr:
		s.push(i64Value(int64(rotr64(a.u64(), b.u64()))))

	case F32Add:
		s.push(f32Value(a.f32() + b.f32()))
	case F32Sub:
		s.push(f32Value(a.f32() - b.f32()))
	case F32Mul:
		s.push(f32Value(a.f32() * b.f32()))
	case F32Div:
		s.push(f32Value(a.f32() / b.f32()))
	case F32Min:
		s.push(f32Value(fminF32(a.f32(), b.f32())))
	case F32Max:
		s.push(f32Value(fmaxF32(a.f32(), b.f32())))
	case F32Copysign:
		s.push(f32Value(copysignF32(a.f32(), b.f32())))

	case F64Add:
		s.push(f64Value(a.f64() + b.f64()))
	case F64Sub:
		s.push(f64Value(a.f64() - b.f64()))
	case F64Mul:
		s.push(f64Value(a.f64() * b.f64()))
	case F64Div:
		s.push(f64Value(a.f64() / b.f64()))
	case F64Min:
		s.push(f64Value(fminF64(a.f64(), b.f64())))
	case F64Max:
		s.push(f64Value(fmaxF64(a.f64(), b.f64())))
	case F64Copysign:
		s.push(f64Value(copysignF64(a.f64(), b.f64())))
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled arithmetic opcode")
	}
	return nil
}

func (t *Thread) execConvert(in Instruction) error {
	s := t.values
	// A NaN operand traps InvalidConversionToInteger; any other value
	// outside the target range traps IntegerOverflow.
	nan := false
	switch in.Opcode {
	case I32TruncF32S, I32TruncF32U, I64TruncF32S, I64TruncF32U:
		nan = isNanF32(s.peek().u32())
	case I32TruncF64S, I32TruncF64U, I64TruncF64S, I64TruncF64U:
		nan = isNanF64(s.peek().u64())
	}
	trunc := func(inRange bool) error {
		if !inRange {
			if nan {
				return corewasmerr.Execute(corewasmerr.TrapInvalidConversionToInteger, "float truncation of NaN")
			}
			return corewasmerr.Execute(corewasmerr.TrapIntegerOverflow, "float truncation out of range")
		}
		return nil
	}
	switch in.Opcode {
	case I32WrapI64:
		s.push(i32Value(int32(s.pop().i64())))
	case I32TruncF32S:
		f := s.pop().f32()
		if err := trunc(isConversionInRangeF32ToI32(f)); err != nil {
			return err
		}
		s.push(i32Value(int32(f)))
	case I32TruncF32U:
		f := s.pop().f32()
		if err := trunc(isConversionInRangeF32ToU32(f)); err != nil {
			return err
		}
		s.push(i32Value(int32(uint32(f))))
	case I32TruncF64S:
		f := s.pop().f64()
		if err := trunc(isConversionInRangeF64ToI32(f)); err != nil {
			return err
		}
		s.push(i32Value(int32(f)))
	case I32TruncF64U:
		f := s.pop().f64()
		if err := trunc(isConversionInRangeF64ToU32(f)); err != nil {
			return err
		}
		s.push(i32Value(int32(uint32(f))))
	case I64ExtendI32S:
		s.push(i64Value(int64(s.pop().i32())))
	case I64ExtendI32U:
		s.push(i64Value(int64(s.pop().u32())))
	case I64TruncF32S:
		f := s.pop().f32()
		if err := trunc(isConversionInRangeF32ToI64(f)); err != nil {
			return err
		}
		s.push(i64Value(int64(f)))
	case I64TruncF32U:
		f := s.pop().f32()
		if err := trunc(isConversionInRangeF32ToU64(f)); err != nil {
			return err
		}
		s.push(i64Value(int64(uint64(f))))
	case I64TruncF64S:
		f := s.pop().f64()
		if err := trunc(isConversionInRangeF64ToI64(f)); err != nil {
			return err
		}
		s.push(i64Value(int64(f)))
	case I64TruncF64U:
		f := s.pop().f64()
		if err := trunc(isConversionInRangeF64ToU64(f)); err != nil {
			return err
		}
		s.push(i64Value(int64(uint64(f))))
	case F32ConvertI32S:
		s.push(f32Value(float32(s.pop().i32())))
	case F32ConvertI32U:
		s.push(f32Value(float32(s.pop().u32())))
	case F32ConvertI64S:
		s.push(f32Value(float32(s.pop().i64())))
	case F32ConvertI64U:
		s.push(f32Value(float32(s.pop().u64())))
	case F32DemoteF64:
		s.push(f32Value(float32(s.pop().f64())))
	case F64ConvertI32S:
		s.push(f64Value(float64(s.pop().i32())))
	case F64ConvertI32U:
		s.push(f64Value(float64(s.pop().u32())))
	case F64ConvertI64S:
		s.push(f64Value(float64(s.pop().i64())))
	case F64ConvertI64U:
		s.push(f64Value(float64(s.pop().u64())))
	case F64PromoteF32:
		s.push(f64Value(float64(s.pop().f32())))
	case I32ReinterpretF32:
		v := s.pop()
		s.push(i32Value(int32(v.u32())))
	case I64ReinterpretF64:
		v := s.pop()
		s.push(i64Value(int64(v.u64())))
	case F32ReinterpretI32:
		v := s.pop()
		s.push(Value{bits: uint64(v.u32())})
	case F64ReinterpretI64:
		v := s.pop()
		s.push(Value{bits: v.u64()})
	case I32Extend8S:
		s.push(i32Value(int32(int8(s.pop().i32()))))
	case I32Extend16S:
		s.push(i32Value(int32(int16(s.pop().i32()))))
	case I64Extend8S:
		s.push(i64Value(int64(int8(s.pop().i64()))))
	case I64Extend16S:
		s.push(i64Value(int64(int16(s.pop().i64()))))
	case I64Extend32S:
		s.push(i64Value(int64(int32(s.pop().i64()))))
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled conversion opcode")
	}
	return nil
}

func (t *Thread) execBulk(frame *callFrame, in Instruction) error {
	s := t.values
	inst := frame.fn.Instance
	switch in.Opcode {
	case I32TruncSatF32S:
		s.push(i32Value(truncSatI32S(float64(s.pop().f32()))))
	case I32TruncSatF32U:
		s.push(i32Value(int32(truncSatU32S(float64(s.pop().f32())))))
	case I32TruncSatF64S:
		s.push(i32Value(truncSatI32S(s.pop().f64())))
	case I32TruncSatF64U:
		s.push(i32Value(int32(truncSatU32S(s.pop().f64()))))
	case I64TruncSatF32S:
		s.push(i64Value(truncSatI64S(float64(s.pop().f32()))))
	case I64TruncSatF32U:
		s.push(i64Value(int64(truncSatU64S(float64(s.pop().f32())))))
	case I64TruncSatF64S:
		s.push(i64Value(truncSatI64S(s.pop().f64())))
	case I64TruncSatF64U:
		s.push(i64Value(int64(truncSatU64S(s.pop().f64()))))
	case MemoryInit:
		n := uint32(s.pop().i32())
		src := uint32(s.pop().i32())
		dst := uint32(s.pop().i32())
		seg := &inst.module.Data[in.ImmA]
		if seg.dropped {
			return corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "memory.init on dropped segment")
		}
		return inst.memories[0].Init(seg.Bytes, src, dst, n)
	case DataDrop:
		inst.module.Data[in.ImmA].dropped = true
	case MemoryCopy:
		n := uint32(s.pop().i32())
		src := uint32(s.pop().i32())
		dst := uint32(s.pop().i32())
		return inst.memories[0].Copy(dst, src, n)
	case MemoryFill:
		n := uint32(s.pop().i32())
		val := byte(s.pop().i32())
		dst := uint32(s.pop().i32())
		return inst.memories[0].Fill(dst, n, val)
	case TableInit:
		n := uint32(s.pop().i32())
		src := uint32(s.pop().i32())
		dst := uint32(s.pop().i32())
		seg := &inst.module.Elements[in.ImmA]
		if seg.dropped {
			return corewasmerr.Execute(corewasmerr.TrapUndefinedTableIndex, "table.init on dropped segment")
		}
		return inst.tables[seg.TableIndex].Init(seg.Funcs, src, dst, n)
	case ElemDrop:
		inst.module.Elements[in.ImmA].dropped = true
	case TableCopy:
		n := uint32(s.pop().i32())
		src := uint32(s.pop().i32())
		dst := uint32(s.pop().i32())
		return inst.tables[in.ImmA].Copy(inst.tables[in.ImmA], src, dst, n)
	case TableGrow:
		n := uint32(s.pop().i32())
		val := s.pop().i32()
		s.push(i32Value(inst.tables[in.ImmA].Grow(n, val)))
	case TableSize:
		s.push(i32Value(int32(inst.tables[in.ImmA].Size())))
	case TableFill:
		n := uint32(s.pop().i32())
		val := s.pop().i32()
		idx := uint32(s.pop().i32())
		return inst.tables[in.ImmA].Fill(idx, n, val)
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled bulk-memory opcode")
	}
	return nil
}

func (t *Thread) execRef(in Instruction) error {
	s := t.values
	inst := frame0(t).fn.Instance
	switch in.Opcode {
	case RefNull:
		s.push(i32Value(NullReference))
	case RefIsNull:
		if s.pop().i32() == NullReference {
			s.push(i32Value(1))
		} else {
			s.push(i32Value(0))
		}
	case RefFunc:
		s.push(i32Value(int32(in.ImmA)))
	case TableGet:
		idx := uint32(s.pop().i32())
		v, err := inst.tables[in.ImmA].Get(idx)
		if err != nil {
			return err
		}
		s.push(i32Value(v))
	case TableSet:
		val := s.pop().i32()
		idx := uint32(s.pop().i32())
		return inst.tables[in.ImmA].Set(idx, val)
	default:
		return corewasmerr.Execute(corewasmerr.TrapHostTrapped, "unhandled reference opcode")
	}
	return nil
}

// alignedOffset checks the natural-alignment requirement the threads
// proposal imposes on atomic accesses, distinct from the unaligned-is-
// fine rule for ordinary load/store.
func alignedOffset(addr, offset, size uint32) error {
	if (uint64(addr)+uint64(offset))%uint64(size) != 0 {
		return corewasmerr.Execute(corewasmerr.TrapAtomicMemoryAccessUnaligned, "atomic access not naturally aligned")
	}
	return nil
}

// execAtomic implements the threads-proposal opcodes (FeatureThreads).
// memory.atomic.wait32/wait64 and .notify trap Unreachable: this
// interpreter's Thread model runs each guest call to completion without
// host-visible suspension points, so genuine cross-thread blocking wait
// has no meaning here and is out of scope.
func (t *Thread) execAtomic(in Instruction) error {
	s := t.values
	switch in.Opcode {
	case AtomicFence:
		return nil
	case MemoryAtomicWait32, MemoryAtomicWait64, MemoryAtomicNotify:
		return corewasmerr.Execute(corewasmerr.TrapUnreachable, "atomic wait/notify has no meaning without host-visible suspension")
	}

	mem := t.memOf(0)
	off := memArg(in)

	switch in.Opcode {
	case I32AtomicLoad, I32AtomicLoad8U, I32AtomicLoad16U,
		I64AtomicLoad, I64AtomicLoad8U, I64AtomicLoad16U, I64AtomicLoad32U:
		return t.execLoad(mem, Instruction{Opcode: atomicLoadEquivalent(in.Opcode), ImmA: in.ImmA, ImmB: in.ImmB})
	case I32AtomicStore, I32AtomicStore8, I32AtomicStore16,
		I64AtomicStore, I64AtomicStore8, I64AtomicStore16, I64AtomicStore32:
		return t.execStore(mem, Instruction{Opcode: atomicStoreEquivalent(in.Opcode), ImmA: in.ImmA, ImmB: in.ImmB})
	}

	size, is64 := atomicRmwSize(in.Opcode)
	if err := alignedOffset(0, off, size); err != nil {
		return err
	}
	if is64 {
		return t.execAtomicRmw64(mem, in, off, size)
	}
	return t.execAtomicRmw32(mem, in, off, size)
}

func atomicLoadEquivalent(op Opcode) Opcode {
	switch op {
	case I32AtomicLoad:
		return I32Load
	case I32AtomicLoad8U:
		return I32Load8U
	case I32AtomicLoad16U:
		return I32Load16U
	case I64AtomicLoad:
		return I64Load
	case I64AtomicLoad8U:
		return I64Load8U
	case I64AtomicLoad16U:
		return I64Load16U
	case I64AtomicLoad32U:
		return I64Load32U
	default:
		return I32Load
	}
}

func atomicStoreEquivalent(op Opcode) Opcode {
	switch op {
	case I32AtomicStore:
		return I32Store
	case I32AtomicStore8:
		return I32Store8
	case I32AtomicStore16:
		return I32Store16
	case I64AtomicStore:
		return I64Store
	case I64AtomicStore8:
		return I64Store8
	case I64AtomicStore16:
		return I64Store16
	case I64AtomicStore32:
		return I64Store32
	default:
		return I32Store
	}
}

// atomicRmwSize reports the access width in bytes and whether the op is
// an i64-family RMW, used both for the alignment check and for picking
// the 32/64-bit apply path.
func atomicRmwSize(op Opcode) (size uint32, is64 bool) {
	switch op {
	case I32AtomicRmwAdd, I32AtomicRmwSub, I32AtomicRmwAnd, I32AtomicRmwOr, I32AtomicRmwXor, I32AtomicRmwXchg, I32AtomicRmwCmpxchg:
		return 4, false
	case I32AtomicRmw8AddU, I32AtomicRmw8SubU, I32AtomicRmw8AndU, I32AtomicRmw8OrU, I32AtomicRmw8XorU, I32AtomicRmw8XchgU, I32AtomicRmw8CmpxchgU:
		return 1, false
	case I32AtomicRmw16AddU, I32AtomicRmw16SubU, I32AtomicRmw16AndU, I32AtomicRmw16OrU, I32AtomicRmw16XorU, I32AtomicRmw16XchgU, I32AtomicRmw16CmpxchgU:
		return 2, false
	case I64AtomicRmwAdd, I64AtomicRmwSub, I64AtomicRmwAnd, I64AtomicRmwOr, I64AtomicRmwXor, I64AtomicRmwXchg, I64AtomicRmwCmpxchg:
		return 8, true
	case I64AtomicRmw8AddU, I64AtomicRmw8SubU, I64AtomicRmw8AndU, I64AtomicRmw8OrU, I64AtomicRmw8XorU, I64AtomicRmw8XchgU, I64AtomicRmw8CmpxchgU:
		return 1, true
	case I64AtomicRmw16AddU, I64AtomicRmw16SubU, I64AtomicRmw16AndU, I64AtomicRmw16OrU, I64AtomicRmw16XorU, I64AtomicRmw16XchgU, I64AtomicRmw16CmpxchgU:
		return 2, true
	case I64AtomicRmw32AddU, I64AtomicRmw32SubU, I64AtomicRmw32AndU, I64AtomicRmw32OrU, I64AtomicRmw32XorU, I64AtomicRmw32XchgU, I64AtomicRmw32CmpxchgU:
		return 4, true
	default:
		return 4, false
	}
}

// execAtomicRmw32 and execAtomicRmw64 apply the read-modify-write (or
// compare-exchange) under the Environment's shared-section lock; since
// no other Thread can be mid-grow while held, a plain read-modify-write
// against the backing slice is race-free without a per-cell lock.
func (t *Thread) execAtomicRmw32(mem *Memory, in Instruction, off, size uint32) error {
	s := t.values
	isCmpxchg := isCmpxchgOpcode(in.Opcode)
	var replacement, expected uint32
	if isCmpxchg {
		replacement = s.pop().u32()
		expected = s.pop().u32()
	} else {
		replacement = s.pop().u32()
	}
	addr := uint32(s.pop().i32())
	b, err := mem.Read(addr, off, size)
	if err != nil {
		return err
	}
	old := leBytes(b)
	var next uint32
	switch {
	case isCmpxchg:
		if old == uint64(expected) {
			next = replacement
		} else {
			next = uint32(old)
		}
	default:
		next = applyRmw32(in.Opcode, uint32(old), replacement)
	}
	buf := make([]byte, size)
	putLeBytes(buf, uint64(next))
	if err := mem.Write(addr, off, buf); err != nil {
		return err
	}
	s.push(i32Value(int32(old)))
	return nil
}

func (t *Thread) execAtomicRmw64(mem *Memory, in Instruction, off, size uint32) error {
	s := t.values
	isCmpxchg := isCmpxchgOpcode(in.Opcode)
	var replacement, expected uint64
	if isCmpxchg {
		replacement = s.pop().u64()
		expected = s.pop().u64()
	} else {
		replacement = s.pop().u64()
	}
	addr := uint32(s.pop().i32())
	b, err := mem.Read(addr, off, size)
	if err != nil {
		return err
	}
	old := leBytes(b)
	var next uint64
	switch {
	case isCmpxchg:
		if old == expected {
			next = replacement
		} else {
			next = old
		}
	default:
		next = applyRmw64(in.Opcode, old, replacement)
	}
	buf := make([]byte, size)
	putLeBytes(buf, next)
	if err := mem.Write(addr, off, buf); err != nil {
		return err
	}
	s.push(i64Value(int64(old)))
	return nil
}

func isCmpxchgOpcode(op Opcode) bool {
	switch op {
	case I32AtomicRmwCmpxchg, I32AtomicRmw8CmpxchgU, I32AtomicRmw16CmpxchgU,
		I64AtomicRmwCmpxchg, I64AtomicRmw8CmpxchgU, I64AtomicRmw16CmpxchgU, I64AtomicRmw32CmpxchgU:
		return true
	default:
		return false
	}
}

func applyRmw32(op Opcode, old, operand uint32) uint32 {
	switch rmwKind(op) {
	case rmwAdd:
		return old + operand
	case rmwSub:
		return old - operand
	case rmwAnd:
		return old & operand
	case rmwOr:
		return old | operand
	case rmwXor:
		return old ^ operand
	default: // rmwXchg
		return operand
	}
}

func applyRmw64(op Opcode, old, operand uint64) uint64 {
	switch rmwKind(op) {
	case rmwAdd:
		return old + operand
	case rmwSub:
		return old - operand
	case rmwAnd:
		return old & operand
	case rmwOr:
		return old | operand
	case rmwXor:
		return old ^ operand
	default:
		return operand
	}
}

type rmwOp int

const (
	rmwAdd rmwOp = iota
	rmwSub
	rmwAnd
	rmwOr
	rmwXor
	rmwXchg
)

func rmwKind(op Opcode) rmwOp {
	switch op {
	case I32AtomicRmwAdd, I32AtomicRmw8AddU, I32AtomicRmw16AddU, I64AtomicRmwAdd, I64AtomicRmw8AddU, I64AtomicRmw16AddU, I64AtomicRmw32AddU:
		return rmwAdd
	case I32AtomicRmwSub, I32AtomicRmw8SubU, I32AtomicRmw16SubU, I64AtomicRmwSub, I64AtomicRmw8SubU, I64AtomicRmw16SubU, I64AtomicRmw32SubU:
		return rmwSub
	case I32AtomicRmwAnd, I32AtomicRmw8AndU, I32AtomicRmw16AndU, I64AtomicRmwAnd, I64AtomicRmw8AndU, I64AtomicRmw16AndU, I64AtomicRmw32AndU:
		return rmwAnd
	case I32AtomicRmwOr, I32AtomicRmw8OrU, I32AtomicRmw16OrU, I64AtomicRmwOr, I64AtomicRmw8OrU, I64AtomicRmw16OrU, I64AtomicRmw32OrU:
		return rmwOr
	case I32AtomicRmwXor, I32AtomicRmw8XorU, I32AtomicRmw16XorU, I64AtomicRmwXor, I64AtomicRmw8XorU, I64AtomicRmw16XorU, I64AtomicRmw32XorU:
		return rmwXor
	default:
		return rmwXchg
	}
}

func leBytes(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeBytes(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v)
		v >>= 8
	}
}
