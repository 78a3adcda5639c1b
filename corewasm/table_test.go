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
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTable(min uint32, max *uint32) *Table {
	return NewTable(TableType{ElementType: FuncRefType, Limits: Limits{Min: min, Max: max}})
}

func TestTableStartsNullFilled(t *testing.T) {
	tbl := newTestTable(3, nil)
	for i := uint32(0); i < tbl.Size(); i++ {
		v, err := tbl.Get(i)
		require.NoError(t, err)
		require.Equal(t, NullReference, v)
	}
}

func TestTableGetSetOutOfBounds(t *testing.T) {
	tbl := newTestTable(1, nil)
	require.NoError(t, tbl.Set(0, 7))
	v, err := tbl.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(7), v)

	_, err = tbl.Get(1)
	require.Error(t, err)
	require.Error(t, tbl.Set(1, 0))
}

func TestTableGrowRespectsMax(t *testing.T) {
	max := uint32(2)
	tbl := newTestTable(1, &max)

	prev := tbl.Grow(1, 5)
	require.Equal(t, int32(1), prev)
	require.Equal(t, uint32(2), tbl.Size())

	require.Equal(t, int32(-1), tbl.Grow(1, 5))
}

func TestTableCopyOverlap(t *testing.T) {
	tbl := newTestTable(5, nil)
	for i := uint32(0); i < 5; i++ {
		require.NoError(t, tbl.Set(i, int32(i)))
	}
	require.NoError(t, tbl.Copy(tbl, 0, 2, 3))

	for i, want := range []int32{0, 1, 0, 1, 2} {
		got, err := tbl.Get(uint32(i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestTableInitFromElementSegment(t *testing.T) {
	tbl := newTestTable(4, nil)
	require.NoError(t, tbl.Init([]Index{10, 11, 12}, 1, 0, 2))

	v0, _ := tbl.Get(0)
	v1, _ := tbl.Get(1)
	require.Equal(t, int32(11), v0)
	require.Equal(t, int32(12), v1)
}

func TestTableFill(t *testing.T) {
	tbl := newTestTable(4, nil)
	require.NoError(t, tbl.Fill(1, 2, 9))

	v0, _ := tbl.Get(0)
	v1, _ := tbl.Get(1)
	v2, _ := tbl.Get(2)
	v3, _ := tbl.Get(3)
	require.Equal(t, NullReference, v0)
	require.Equal(t, int32(9), v1)
	require.Equal(t, int32(9), v2)
	require.Equal(t, NullReference, v3)
}
