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
	"bytes"

	"github.com/corewasm/corewasm/corewasm/corewasmerr"
)

// PrintFunc receives the bytes a guest wrote through ws_print/ws_printn.
// The zero value discards output.
type PrintFunc func(s string)

// RegisterCStdlib builds the memcpy/memmove/memcmp/memset/strlen/strcmp/
// strncmp/ws_print/ws_printn host functions under moduleName on e: the
// small C-runtime surface guest toolchains compiled against libc expect
// to find as host imports rather than inline code. print defaults to a
// no-op if nil.
func (e *Environment) RegisterCStdlib(moduleName string, print PrintFunc) *HostModule {
	if print == nil {
		print = func(string) {}
	}
	hm := NewHostModule()
	hm.Funcs["memcpy"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			dest, src, n := args[0].Value.i32(), args[1].Value.i32(), args[2].Value.i32()
			mem := t.memOf(0)
			data, err := mem.Read(Address(src), 0, uint32(n))
			if err != nil {
				return nil, err
			}
			if err := mem.Write(Address(dest), 0, data); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(dest, I32)}, nil
		},
	}
	hm.Funcs["memmove"] = hm.Funcs["memcpy"]
	hm.Funcs["memcmp"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			p1, p2, n := args[0].Value.i32(), args[1].Value.i32(), args[2].Value.i32()
			mem := t.memOf(0)
			s1, err := mem.Read(Address(p1), 0, uint32(n))
			if err != nil {
				return nil, err
			}
			s2, err := mem.Read(Address(p2), 0, uint32(n))
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(bytes.Compare(s1, s2)), I32)}, nil
		},
	}
	hm.Funcs["memset"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			addr, val, n := args[0].Value.i32(), args[1].Value.i32(), args[2].Value.i32()
			mem := t.memOf(0)
			if err := mem.Fill(Address(addr), uint32(n), byte(val)); err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(addr, I32)}, nil
		},
	}
	hm.Funcs["strlen"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			n, err := cStringLen(t.memOf(0), Address(args[0].Value.i32()))
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(n), I32)}, nil
		},
	}
	hm.Funcs["strcmp"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			s1, err := cString(t.memOf(0), Address(args[0].Value.i32()))
			if err != nil {
				return nil, err
			}
			s2, err := cString(t.memOf(0), Address(args[1].Value.i32()))
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(bytes.Compare(s1, s2)), I32)}, nil
		},
	}
	hm.Funcs["strncmp"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32, I32}, Results: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			n := int(args[2].Value.i32())
			s1, err := cStringN(t.memOf(0), Address(args[0].Value.i32()), n)
			if err != nil {
				return nil, err
			}
			s2, err := cStringN(t.memOf(0), Address(args[1].Value.i32()), n)
			if err != nil {
				return nil, err
			}
			return []TypedValue{TypedValueOf(int32(bytes.Compare(s1, s2)), I32)}, nil
		},
	}
	hm.Funcs["ws_print"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			s, err := cString(t.memOf(0), Address(args[0].Value.i32()))
			if err != nil {
				return nil, err
			}
			print(string(s))
			return nil, nil
		},
	}
	hm.Funcs["ws_printn"] = &HostFunc{
		Sig: Signature{Params: []ValueType{I32, I32}},
		Fn: func(t *Thread, args []TypedValue) ([]TypedValue, error) {
			addr, n := args[0].Value.i32(), args[1].Value.i32()
			data, err := t.memOf(0).Read(Address(addr), 0, uint32(n))
			if err != nil {
				return nil, err
			}
			print(string(data))
			return nil, nil
		},
	}
	e.RegisterHostModule(moduleName, hm)
	return hm
}

// cStringLen returns the length of the NUL-terminated string at addr,
// not counting the terminator, trapping if no NUL is found in bounds.
func cStringLen(mem *Memory, addr Address) (int, error) {
	data := mem.Bytes()
	if uint64(addr) > uint64(len(data)) {
		return 0, corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "strlen: address out of bounds")
	}
	if i := bytes.IndexByte(data[addr:], 0); i >= 0 {
		return i, nil
	}
	return 0, corewasmerr.Execute(corewasmerr.TrapMemoryAccessOutOfBounds, "strlen: no NUL terminator found in memory")
}

// cString reads the NUL-terminated string at addr, not including the
// terminator.
func cString(mem *Memory, addr Address) ([]byte, error) {
	n, err := cStringLen(mem, addr)
	if err != nil {
		return nil, err
	}
	return mem.Read(addr, 0, uint32(n))
}

// cStringN reads n bytes at addr (trapping if any of them is out of
// bounds) and cuts the result at the first NUL terminator, mirroring
// strncmp's "compare at most n bytes" rule.
func cStringN(mem *Memory, addr Address, n int) ([]byte, error) {
	full, err := mem.Read(addr, 0, uint32(n))
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(full, 0); i >= 0 {
		return full[:i], nil
	}
	return full, nil
}
