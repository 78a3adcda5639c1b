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

const (
	continuationBit = 0x80
	payloadMask     = 0x7f
	signBit         = 0x40
)

// readULEB32 decodes an unsigned LEB128 integer capped at the 5 bytes
// needed to represent a 32-bit value.
func readULEB32(readByte func() (byte, error)) (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		if i == 4 && b&0x70 != 0 {
			return 0, corewasmerr.Decode(0, "", "uleb128 value out of 32-bit range")
		}
		result |= uint32(b&payloadMask) << shift
		if b&continuationBit == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, corewasmerr.Decode(0, "", "integer representation too long")
}

// readULEB64 decodes an unsigned LEB128 integer capped at 10 bytes.
func readULEB64(readByte func() (byte, error)) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&payloadMask) << shift
		if b&continuationBit == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, corewasmerr.Decode(0, "", "integer representation too long")
}

// readSLEB32 decodes a signed LEB128 integer, sign-extended from bit 6 of
// the final (at most 5th) byte, and returns it zero-extended into a uint64
// so callers can store it directly as an instruction immediate.
func readSLEB32(readByte func() (byte, error)) (uint64, error) {
	var result int32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		result |= int32(b&payloadMask) << shift
		shift += 7
		if b&continuationBit == 0 {
			if shift < 32 && b&signBit != 0 {
				result |= -1 << shift
			}
			return uint64(uint32(result)), nil
		}
	}
	return 0, corewasmerr.Decode(0, "", "integer representation too long")
}

// readSLEB64 decodes a signed 64-bit LEB128 integer, sign-extended from
// bit 6 of the final (at most 10th) byte.
func readSLEB64(readByte func() (byte, error)) (uint64, error) {
	var result int64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := readByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&payloadMask) << shift
		shift += 7
		if b&continuationBit == 0 {
			if shift < 64 && b&signBit != 0 {
				result |= -1 << shift
			}
			return uint64(result), nil
		}
	}
	return 0, corewasmerr.Decode(0, "", "integer representation too long")
}
