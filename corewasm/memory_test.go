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

func newTestMemory(minPages uint32, maxPages *uint32) *Memory {
	return NewMemory(MemoryType{Limits: Limits{Min: minPages, Max: maxPages}})
}

func TestMemoryGrowZerosNewTail(t *testing.T) {
	m := newTestMemory(1, nil)
	require.NoError(t, m.Write(0, 0, []byte{1, 2, 3, 4}))

	prev := m.Grow(1)
	require.Equal(t, int32(1), prev)
	require.Equal(t, uint32(2), m.Size())

	tail, err := m.Read(pageSize, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, tail)
}

func TestMemoryGrowRespectsMax(t *testing.T) {
	max := uint32(1)
	m := newTestMemory(1, &max)
	require.Equal(t, int32(-1), m.Grow(1))
}

func TestMemoryReadWriteOutOfBounds(t *testing.T) {
	m := newTestMemory(1, nil)
	_, err := m.Read(pageSize-2, 0, 4)
	require.Error(t, err)

	err = m.Write(pageSize-2, 0, []byte{1, 2, 3, 4})
	require.Error(t, err)
}

func TestMemoryCopyOverlap(t *testing.T) {
	m := newTestMemory(1, nil)
	require.NoError(t, m.Write(0, 0, []byte{1, 2, 3, 4, 5}))
	require.NoError(t, m.Copy(2, 0, 4))

	got, err := m.Read(0, 0, 6)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 1, 2, 3, 4}, got)
}

func TestMemoryFill(t *testing.T) {
	m := newTestMemory(1, nil)
	require.NoError(t, m.Fill(0, 4, 0xff))

	got, err := m.Read(0, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, got)
}

func TestMemoryInitFromDataSegment(t *testing.T) {
	m := newTestMemory(1, nil)
	content := []byte{10, 20, 30, 40, 50}
	require.NoError(t, m.Init(content, 1, 0, 3))

	got, err := m.Read(0, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{20, 30, 40}, got)

	require.Error(t, m.Init(content, 3, 0, 10))
}
