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

import "math/bits"

// clz32/ctz32/popcnt32 and their 64-bit counterparts back the i32/i64 clz,
// ctz and popcnt opcodes directly off math/bits, which already defines
// clz(0) = bit width the same way the WASM spec does.
func clz32(v uint32) uint32 { return uint32(bits.LeadingZeros32(v)) }
func ctz32(v uint32) uint32 { return uint32(bits.TrailingZeros32(v)) }
func popcnt32(v uint32) uint32 { return uint32(bits.OnesCount32(v)) }

func clz64(v uint64) uint64 { return uint64(bits.LeadingZeros64(v)) }
func ctz64(v uint64) uint64 { return uint64(bits.TrailingZeros64(v)) }
func popcnt64(v uint64) uint64 { return uint64(bits.OnesCount64(v)) }

func rotl32(v, n uint32) uint32 { return bits.RotateLeft32(v, int(n)) }
func rotr32(v, n uint32) uint32 { return bits.RotateLeft32(v, -int(n)) }
func rotl64(v uint64, n uint64) uint64 { return bits.RotateLeft64(v, int(n)) }
func rotr64(v uint64, n uint64) uint64 { return bits.RotateLeft64(v, -int(n)) }

// floatBits is a constraint satisfied by float32 and float64; the
// NaN/zero/range helpers below do not use it and are written separately
// for each width.
type floatBits interface {
	~float32 | ~float64
}

// The quiet-bit, exponent and mantissa masks of f32 and f64. isNanF32/F64
// accept any NaN payload; isQuietNanF32/F64 additionally require the quiet
// bit, since this package makes no bit-exact NaN payload guarantee.
const (
	f32QuietBit  uint32 = 1 << 22
	f32ExpMask   uint32 = 0xff << 23
	f32MantMask  uint32 = (1 << 23) - 1
	f64QuietBit  uint64 = 1 << 51
	f64ExpMask   uint64 = 0x7ff << 52
	f64MantMask  uint64 = (1 << 52) - 1
)

func isNanF32(bits32 uint32) bool {
	return bits32&f32ExpMask == f32ExpMask && bits32&f32MantMask != 0
}

func isNanF64(bits64 uint64) bool {
	return bits64&f64ExpMask == f64ExpMask && bits64&f64MantMask != 0
}

func isQuietNanF32(bits32 uint32) bool { return isNanF32(bits32) && bits32&f32QuietBit != 0 }
func isQuietNanF64(bits64 uint64) bool { return isNanF64(bits64) && bits64&f64QuietBit != 0 }

func isZeroF32(bits32 uint32) bool { return bits32&0x7fffffff == 0 }
func isZeroF64(bits64 uint64) bool { return bits64&0x7fffffffffffffff == 0 }

// isConversionInRangeF32ToI32 and its siblings report whether truncating f
// toward zero lands within the target integer's range, used by the
// trapping (non-saturating) truncation opcodes to decide between a normal
// result and a trap. NaN and out-of-range values both report false; the
// caller tells them apart with isNanF32/F64 and traps
// TrapInvalidConversionToInteger for NaN, TrapIntegerOverflow otherwise.
func isConversionInRangeF32ToI32(f float32) bool { return f >= -2147483648.0 && f < 2147483648.0 }
func isConversionInRangeF32ToU32(f float32) bool { return f > -1.0 && f < 4294967296.0 }
func isConversionInRangeF32ToI64(f float32) bool { return f >= -9223372036854775808.0 && f < 9223372036854775808.0 }
func isConversionInRangeF32ToU64(f float32) bool { return f > -1.0 && f < 18446744073709551616.0 }
func isConversionInRangeF64ToI32(f float64) bool { return f >= -2147483648.0 && f < 2147483648.0 }
func isConversionInRangeF64ToU32(f float64) bool { return f > -1.0 && f < 4294967296.0 }
func isConversionInRangeF64ToI64(f float64) bool { return f >= -9223372036854775808.0 && f < 9223372036854775808.0 }
func isConversionInRangeF64ToU64(f float64) bool { return f > -1.0 && f < 18446744073709551616.0 }

// truncSatI32S and its three siblings implement the saturating
// float-to-int conversions (FeatureSaturatingFloatToInt): NaN saturates to
// zero, out-of-range values saturate to the nearest representable bound,
// everything else truncates toward zero exactly like the trapping form.
func truncSatI32S(f float64) int32 {
	switch {
	case f != f:
		return 0
	case f < -2147483648.0:
		return -2147483648
	case f >= 2147483648.0:
		return 2147483647
	default:
		return int32(f)
	}
}

func truncSatU32S(f float64) uint32 {
	switch {
	case f != f || f <= -1.0:
		return 0
	case f >= 4294967296.0:
		return 4294967295
	default:
		return uint32(f)
	}
}

func truncSatI64S(f float64) int64 {
	switch {
	case f != f:
		return 0
	case f < -9223372036854775808.0:
		return -9223372036854775808
	case f >= 9223372036854775808.0:
		return 9223372036854775807
	default:
		return int64(f)
	}
}

func truncSatU64S(f float64) uint64 {
	switch {
	case f != f || f <= -1.0:
		return 0
	case f >= 18446744073709551615.0:
		return 18446744073709551615
	default:
		return uint64(f)
	}
}

// fminF32/fmaxF32 (and the f64 forms) implement WASM's min/max: a NaN
// operand propagates a quiet NaN, and -0.0 is strictly less than +0.0
// (unlike Go's math.Min/Max, which treat them as equal).
func fminF32(a, b float32) float32 {
	if a != a {
		return f32FromBits(float32bitsOf(a) | f32QuietBit)
	}
	if b != b {
		return f32FromBits(float32bitsOf(b) | f32QuietBit)
	}
	if a == 0 && b == 0 {
		if negativeF32(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func fmaxF32(a, b float32) float32 {
	if a != a {
		return f32FromBits(float32bitsOf(a) | f32QuietBit)
	}
	if b != b {
		return f32FromBits(float32bitsOf(b) | f32QuietBit)
	}
	if a == 0 && b == 0 {
		if !negativeF32(a) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

func fminF64(a, b float64) float64 {
	if a != a {
		return f64FromBits(float64bitsOf(a) | f64QuietBit)
	}
	if b != b {
		return f64FromBits(float64bitsOf(b) | f64QuietBit)
	}
	if a == 0 && b == 0 {
		if negativeF64(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func fmaxF64(a, b float64) float64 {
	if a != a {
		return f64FromBits(float64bitsOf(a) | f64QuietBit)
	}
	if b != b {
		return f64FromBits(float64bitsOf(b) | f64QuietBit)
	}
	if a == 0 && b == 0 {
		if !negativeF64(a) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

func negativeF32(f float32) bool { return float32bitsOf(f)>>31 != 0 }
func negativeF64(f float64) bool { return float64bitsOf(f)>>63 != 0 }

func float32bitsOf(f float32) uint32 {
	v := f32Value(f)
	return v.u32()
}

func float64bitsOf(f float64) uint64 {
	v := f64Value(f)
	return v.u64()
}

// copysignF32/F64 differ from math.Copysign only in operating on the
// narrower float32 domain without a round trip through float64.
func copysignF32(a, b float32) float32 {
	abits := float32bitsOf(a) &^ (1 << 31)
	bbits := float32bitsOf(b) & (1 << 31)
	return f32FromBits(abits | bbits)
}

func f32FromBits(bits32 uint32) float32 {
	return Value{bits: uint64(bits32)}.f32()
}

func copysignF64(a, b float64) float64 {
	abits := float64bitsOf(a) &^ (1 << 63)
	bbits := float64bitsOf(b) & (1 << 63)
	return f64FromBits(abits | bbits)
}

func f64FromBits(bits64 uint64) float64 {
	return Value{bits: bits64}.f64()
}
