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
	"sync"
	"sync/atomic"
)

// syncContext is shared by every Thread spawned from one Environment. It
// implements memory.grow as an exclusivity barrier: ordinary
// instruction execution holds the shared side of a reader/writer lock, a
// growing thread takes the exclusive side so no other thread observes a
// torn reallocation of a Memory's backing slice.
//
// The six steps of the barrier, mapped onto sync.RWMutex:
//  1. The growing thread sets stopRequested so cooperative threads yield
//     at their next instruction-dispatch boundary.
//  2. It calls exclusive(), which blocks until every outstanding
//     sharedSection has exited (RWMutex.Lock's usual guarantee).
//  3. With the exclusive lock held, no other thread can be inside
//     sharedSection, so Memory.Grow's reallocation is race-free.
//  4. It clears stopRequested.
//  5. It calls release(), unblocking waiters.
//  6. Woken threads re-enter sharedSection and resume dispatch.
type syncContext struct {
	rw             sync.RWMutex
	stopRequested  atomic.Bool
}

func newSyncContext() *syncContext {
	return &syncContext{}
}

// sharedSection must be held by a Thread for the duration of ordinary
// instruction dispatch; it is re-entered after every growMemoryBarrier
// call completes.
func (s *syncContext) sharedSection() func() {
	s.rw.RLock()
	return s.rw.RUnlock
}

// growMemoryBarrier runs fn (a Memory.Grow call) with every other
// Thread's shared section excluded.
func (s *syncContext) growMemoryBarrier(fn func()) {
	s.stopRequested.Store(true)
	s.rw.Lock()
	fn()
	s.stopRequested.Store(false)
	s.rw.Unlock()
}

// shouldYield reports whether a Thread's dispatch loop should drop its
// shared section and re-acquire it, giving a pending grow-memory barrier
// a chance to proceed. The interpreter checks this before dispatching
// every instruction; the check is a single atomic load.
func (s *syncContext) shouldYield() bool { return s.stopRequested.Load() }
