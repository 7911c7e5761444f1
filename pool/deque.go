// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool implements the priority-aware worker pool: per-worker
// Chase-Lev work-stealing deques, P/E core pinning, and the pop/steal/
// backoff state machine that runs jobs read from the ring buffer's priority
// classes. Workers do not read the ring buffer themselves; Pool.Submit
// places each job on a worker deque chosen by its priority.
package pool

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// dequeCapacity is the fixed number of slots in each worker's local deque.
// Bounded, non-resizing: a full deque rejects further pushes rather than
// growing, matching the ring buffer's fixed-capacity discipline.
const dequeCapacity = 4096

// Job is a unit of dispatched work: a priority class and the record bytes
// read from that class's ring buffer queue.
type Job struct {
	Priority int
	Record   []byte
}

// Deque is a bounded Chase-Lev work-stealing deque. The owning worker
// pushes and pops from the bottom (LIFO, cheap, uncontended); other workers
// steal from the top (FIFO, contended only against other thieves).
//
// Slot storage uses sync/atomic's pointer primitives directly rather than
// the atomix package: atomix provides typed acquire/release wrappers for
// integers and bools, not pointers, and the Chase-Lev protocol needs a
// CAS-able pointer slot. top/bottom indices use atomix for consistency with
// the rest of the module.
type Deque struct {
	_      pad
	top    atomix.Int64 // thieves CAS this forward
	_      pad
	bottom atomix.Int64 // owner only
	_      pad
	slots  [dequeCapacity]unsafe.Pointer
}

type pad [64]byte

// PushBottom adds job to the bottom of the deque. Owner-only. Returns false
// if the deque is at capacity.
func (d *Deque) PushBottom(job *Job) bool {
	b := d.bottom.LoadRelaxed()
	t := d.top.LoadAcquire()
	if b-t >= dequeCapacity {
		return false
	}
	atomic.StorePointer(&d.slots[b&(dequeCapacity-1)], unsafe.Pointer(job))
	d.bottom.StoreRelease(b + 1)
	return true
}

// PopBottom removes and returns the most recently pushed job. Owner-only.
// Returns (nil, false) if the deque is empty.
func (d *Deque) PopBottom() (*Job, bool) {
	b := d.bottom.LoadRelaxed() - 1
	d.bottom.StoreRelease(b)
	t := d.top.LoadAcquire()

	if t > b {
		// Deque was already empty; restore bottom.
		d.bottom.StoreRelease(b + 1)
		return nil, false
	}

	job := (*Job)(atomic.LoadPointer(&d.slots[b&(dequeCapacity-1)]))
	if t == b {
		// Last element: race against concurrent thieves for it.
		if !d.top.CompareAndSwapAcqRel(t, t+1) {
			job = nil
		}
		d.bottom.StoreRelease(b + 1)
	}
	return job, job != nil
}

// Steal removes and returns the oldest job in the deque. Called by any
// worker other than the owner. Returns (nil, false) if the deque is empty
// or the steal lost a race against the owner or another thief.
func (d *Deque) Steal() (*Job, bool) {
	t := d.top.LoadAcquire()
	b := d.bottom.LoadAcquire()
	if t >= b {
		return nil, false
	}
	job := (*Job)(atomic.LoadPointer(&d.slots[t&(dequeCapacity-1)]))
	if !d.top.CompareAndSwapAcqRel(t, t+1) {
		return nil, false
	}
	return job, job != nil
}

// Len reports an approximate element count; racy by construction under
// concurrent push/pop/steal, useful only for stats and load hints.
func (d *Deque) Len() int {
	b := d.bottom.LoadAcquire()
	t := d.top.LoadAcquire()
	if b < t {
		return 0
	}
	return int(b - t)
}
