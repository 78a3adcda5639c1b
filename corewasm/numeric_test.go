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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFminFmaxSignedZero(t *testing.T) {
	require.True(t, negativeF32(fminF32(0, negZeroF32())))
	require.True(t, negativeF32(fminF32(negZeroF32(), 0)))
	require.False(t, negativeF32(fmaxF32(0, negZeroF32())))
	require.False(t, negativeF32(fmaxF32(negZeroF32(), 0)))

	require.True(t, negativeF64(fminF64(0, negZeroF64())))
	require.False(t, negativeF64(fmaxF64(0, negZeroF64())))
}

func TestFminFmaxNanPropagates(t *testing.T) {
	nan32 := float32(math.NaN())
	require.True(t, math.IsNaN(float64(fminF32(nan32, 1))))
	require.True(t, math.IsNaN(float64(fmaxF32(1, nan32))))

	nan64 := math.NaN()
	require.True(t, math.IsNaN(fminF64(nan64, 1)))
	require.True(t, math.IsNaN(fmaxF64(1, nan64)))
}

func TestTruncSatSaturatesAtBounds(t *testing.T) {
	require.Equal(t, int32(0), truncSatI32S(math.NaN()))
	require.Equal(t, int32(math.MinInt32), truncSatI32S(-1e20))
	require.Equal(t, int32(math.MaxInt32), truncSatI32S(1e20))
	require.Equal(t, int32(3), truncSatI32S(3.9))

	require.Equal(t, uint32(0), truncSatU32S(-1))
	require.Equal(t, uint32(math.MaxUint32), truncSatU32S(1e20))

	require.Equal(t, int64(math.MinInt64), truncSatI64S(-1e30))
	require.Equal(t, int64(math.MaxInt64), truncSatI64S(1e30))

	require.Equal(t, uint64(0), truncSatU64S(-1))
}

func TestConversionRangeChecks(t *testing.T) {
	require.True(t, isConversionInRangeF64ToI32(2147483647.9))
	require.False(t, isConversionInRangeF64ToI32(2147483648.0))
	require.False(t, isConversionInRangeF64ToI32(-2147483649.0))
	require.True(t, isConversionInRangeF64ToU32(0))
	require.False(t, isConversionInRangeF64ToU32(-1))
}

func TestBitCountingOps(t *testing.T) {
	require.Equal(t, uint32(32), clz32(0))
	require.Equal(t, uint32(0), clz32(0x80000000))
	require.Equal(t, uint32(32), ctz32(0))
	require.Equal(t, uint32(0), ctz32(1))
	require.Equal(t, uint32(4), popcnt32(0b1111))

	require.Equal(t, uint32(0x00000001), rotl32(0x80000000, 1))
	require.Equal(t, uint32(0x80000000), rotr32(0x00000001, 1))
}

func TestCopysign(t *testing.T) {
	require.Equal(t, float32(-5), copysignF32(5, -1))
	require.Equal(t, float32(5), copysignF32(-5, 1))
	require.Equal(t, -5.0, copysignF64(5, -1))
}

func negZeroF32() float32 { return f32FromBits(1 << 31) }
func negZeroF64() float64 { return f64FromBits(1 << 63) }
