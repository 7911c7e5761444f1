// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring implements the lock-free multi-priority ring buffer: six
// independent per-priority FIFO queues of length-prefixed byte records.
//
// Each class is, by default, single-producer single-consumer: a Lamport
// ring buffer with cached index optimization, the same protocol the
// broader lfq ecosystem uses for its SPSC queue, generalized here from a
// fixed-size typed slot to a byte-oriented region that frames
// variable-length records with an 8-byte length prefix and splits writes
// across the wraparound boundary.
package ring

import (
	"encoding/binary"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/hayabusa-cloud/agentbus/errors"
	"github.com/hayabusa-cloud/agentbus/internal/simd"
)

// NumPriorities is the number of independent priority classes (§3.2).
const NumPriorities = 6

// lengthPrefixSize is the size, in bytes, of the frame length prefix that
// precedes every record body inside a class's byte buffer.
const lengthPrefixSize = 8

// Config configures ring buffer creation.
type Config struct {
	// CapacityPerClass is the byte capacity of each of the six priority
	// queues. Rounded up to the next power of two. Defaults to 64 MiB / 6
	// when zero.
	CapacityPerClass int
	// MultiProducer selects the optional MPSC extension (§5) for every
	// class. When false (default), each class follows the single
	// producer, single consumer baseline contract; concurrent producers on
	// one class are not detected or rejected.
	MultiProducer bool
	// SIMDLevel hints which memory-copy fast path to use; callers
	// normally derive this from a capability.Record.
	SIMDLevel simd.Level
	// UseHugePages requests that each class buffer be backed by a huge
	// page mapping when the host supports it (see capability.Record's
	// HugePages2M). Silently falls back to a regular allocation when
	// unsupported or unavailable; never fails New.
	UseHugePages bool
	// NUMANode, when non-nil, asks the kernel to satisfy each class
	// buffer's page faults from the given NUMA node (see
	// capability.CPU.NUMANode). Best-effort on Linux via mbind(2);
	// a no-op elsewhere and a no-op for a node the kernel can't honor.
	NUMANode *int
}

// DefaultTotalCapacity is the default byte budget divided evenly across the
// six priority classes (§3.3). Each class's share is then rounded up to a
// power of two (16 MiB), so the default allocation totals 96 MiB.
const DefaultTotalCapacity = 64 << 20 // 64 MiB

// Stats is a point-in-time snapshot of ring buffer counters.
type Stats struct {
	Messages        [NumPriorities]int64
	Bytes           [NumPriorities]int64
	Drops           [NumPriorities]int64
	OversizeDrops   [NumPriorities]int64
	CorruptionCount [NumPriorities]int64
}

// Buffer is the multi-priority ring buffer: six independent class queues.
type Buffer struct {
	classes [NumPriorities]class
	simd    simd.Level
}

// New allocates a Buffer per cfg. Capacity rounds up to the next power of
// two per class. Returns Resource if the requested capacity cannot be
// satisfied (e.g. pow2 rounding overflow).
func New(cfg Config) (*Buffer, error) {
	perClass := cfg.CapacityPerClass
	if perClass <= 0 {
		perClass = DefaultTotalCapacity / NumPriorities
	}
	n := roundToPow2(perClass)
	if n < lengthPrefixSize*2 {
		return nil, errors.Resourcef("ring: capacity_per_class %d too small", perClass)
	}

	b := &Buffer{simd: cfg.SIMDLevel}
	for p := range b.classes {
		c := &b.classes[p]
		c.buf = nil
		if cfg.UseHugePages {
			if buf, ok := allocHugePage(n); ok {
				c.buf = buf
				c.hugePage = true
			}
		}
		if c.buf == nil {
			c.buf = make([]byte, n)
		}
		if cfg.NUMANode != nil {
			bindNUMANode(c.buf, *cfg.NUMANode)
		}
		c.mask = n - 1
		c.mpsc = cfg.MultiProducer
	}
	return b, nil
}

// Write enqueues record into the given priority's class queue. Returns
// InvalidArgument for out-of-range priority, TooLarge if record cannot
// ever fit the class capacity, or Full (ErrWouldBlock) under backpressure.
func (b *Buffer) Write(priority int, record []byte) error {
	if priority < 0 || priority >= NumPriorities {
		return errors.InvalidArgumentf("ring: priority %d out of range", priority)
	}
	c := &b.classes[priority]
	if c.mpsc {
		return c.writeMPSC(record, b.simd)
	}
	return c.writeSPSC(record, b.simd)
}

// Read dequeues the oldest available record from the given priority's
// class queue into out. Returns the number of bytes written to out, or an
// error: InvalidArgument (bad priority), Empty (ErrWouldBlock, nothing
// queued), or BufferTooSmall (out cannot hold the queued record; the
// record is left in place).
func (b *Buffer) Read(priority int, out []byte) (int, error) {
	if priority < 0 || priority >= NumPriorities {
		return 0, errors.InvalidArgumentf("ring: priority %d out of range", priority)
	}
	return b.classes[priority].read(out, b.simd)
}

// Drain signals that no more writes will occur on any class. From then on
// MPSC-mode readers read up to the reservation counter instead of the
// commit counter. A hint — the caller must ensure no further Write calls
// follow.
func (b *Buffer) Drain() {
	for i := range b.classes {
		b.classes[i].draining.StoreRelease(true)
	}
}

// Stats returns a snapshot of per-class counters.
func (b *Buffer) Stats() Stats {
	var s Stats
	for i := range b.classes {
		c := &b.classes[i]
		s.Messages[i] = c.messages.LoadRelaxed()
		s.Bytes[i] = c.bytesWritten.LoadRelaxed()
		s.Drops[i] = c.drops.LoadRelaxed()
		s.OversizeDrops[i] = c.oversizeDrops.LoadRelaxed()
		s.CorruptionCount[i] = c.corruption.LoadRelaxed()
	}
	return s
}

// Destroy releases class buffers. Safe to call once after all producers
// and consumers have stopped. Huge-page-backed buffers are unlocked and
// unmapped explicitly; the garbage collector never reclaims memory it
// didn't allocate.
func (b *Buffer) Destroy() {
	for i := range b.classes {
		c := &b.classes[i]
		if c.hugePage && c.buf != nil {
			freeHugePage(c.buf)
		}
		c.buf = nil
		c.hugePage = false
	}
}

// class is one priority's byte-oriented SPSC (or, in MultiProducer mode,
// MPSC) ring buffer. Field order and cache-line padding mirror the
// acquire/release cached-index discipline of the wider lfq ring buffer
// family, generalized from fixed-size typed slots to a byte region framed
// by an 8-byte record length prefix.
type class struct {
	_              pad
	writePos       atomix.Uint64 // producer-owned monotonic byte counter
	_              pad
	cachedReadPos  uint64 // producer-local snapshot of readPos
	_              pad
	readPos        atomix.Uint64 // consumer-owned monotonic byte counter
	_              pad
	cachedWritePos uint64 // consumer-local snapshot of writePos
	_              pad
	reservePos     atomix.Uint64 // MPSC mode: CAS-claimed producer reservation counter
	_              pad
	commitPos      atomix.Uint64 // MPSC mode: published counter consumers observe
	_              pad
	draining       atomix.Bool

	buf      []byte
	mask     uint64
	mpsc     bool
	hugePage bool

	drops         atomix.Int64
	oversizeDrops atomix.Int64
	corruption    atomix.Int64
	messages      atomix.Int64
	bytesWritten  atomix.Int64
}

type pad [64]byte

func (c *class) capacity() uint64 { return c.mask + 1 }

// writeSPSC is the single-producer baseline contract (§4.2). Exactly one
// producer goroutine may call this per class.
func (c *class) writeSPSC(record []byte, level simd.Level) error {
	frame := uint64(lengthPrefixSize + len(record))
	if frame > c.capacity() {
		c.oversizeDrops.AddAcqRel(1)
		return errors.TooLargef("ring: record of %d bytes exceeds class capacity %d", len(record), c.capacity())
	}

	tail := c.writePos.LoadRelaxed()
	if tail-c.cachedReadPos+frame > c.capacity() {
		c.cachedReadPos = c.readPos.LoadAcquire()
		if tail-c.cachedReadPos+frame > c.capacity() {
			c.drops.AddAcqRel(1)
			return errors.ErrFull
		}
	}

	c.writeFrame(tail, record, level)
	c.writePos.StoreRelease(tail + frame)
	c.messages.AddAcqRel(1)
	c.bytesWritten.AddAcqRel(int64(len(record)))
	return nil
}

// writeMPSC is the optional multi-producer extension (§5): producers
// reserve space with a compare-and-swap on reservePos (retried on
// contention, after a capacity check), then publish in order via a committed
// counter so the single consumer never observes a gap.
func (c *class) writeMPSC(record []byte, level simd.Level) error {
	frame := uint64(lengthPrefixSize + len(record))
	if frame > c.capacity() {
		c.oversizeDrops.AddAcqRel(1)
		return errors.TooLargef("ring: record of %d bytes exceeds class capacity %d", len(record), c.capacity())
	}

	sw := spin.Wait{}
	for {
		reserved := c.reservePos.LoadAcquire()
		head := c.readPos.LoadAcquire()
		if reserved-head+frame > c.capacity() {
			c.drops.AddAcqRel(1)
			return errors.ErrFull
		}
		if c.reservePos.CompareAndSwapAcqRel(reserved, reserved+frame) {
			c.writeFrame(reserved, record, level)
			// Publish in commit order: spin until our slot is next,
			// then advance the committed counter the consumer reads.
			for c.commitPos.LoadAcquire() != reserved {
				sw.Once()
			}
			c.commitPos.StoreRelease(reserved + frame)
			c.messages.AddAcqRel(1)
			c.bytesWritten.AddAcqRel(int64(len(record)))
			return nil
		}
		sw.Once()
	}
}

// writeFrame stores the 8-byte length prefix followed by record, wrapping
// across the end of buf as needed.
func (c *class) writeFrame(pos uint64, record []byte, level simd.Level) {
	var lenBytes [lengthPrefixSize]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(len(record)))
	simd.CopyInto(c.buf, c.mask, pos, lenBytes[:], level)
	simd.CopyInto(c.buf, c.mask, pos+lengthPrefixSize, record, level)
}

// read implements the consumer side shared by SPSC and MPSC modes: the
// single consumer observes either writePos (SPSC) or commitPos (MPSC).
func (c *class) read(out []byte, level simd.Level) (int, error) {
	head := c.readPos.LoadRelaxed()

	if head >= c.cachedWritePos {
		c.cachedWritePos = c.observableWritePos()
		if head >= c.cachedWritePos {
			return 0, errors.ErrEmpty
		}
	}

	available := c.cachedWritePos - head
	if available < lengthPrefixSize {
		// Producer has reserved but not yet published the length prefix;
		// treat as empty rather than racing a partial frame.
		return 0, errors.ErrEmpty
	}

	var lenBytes [lengthPrefixSize]byte
	simd.CopyFrom(lenBytes[:], c.buf, c.mask, head, lengthPrefixSize, level)
	length := binary.LittleEndian.Uint64(lenBytes[:])

	if length > uint64(available-lengthPrefixSize) || length > c.capacity() {
		// The length prefix is inconsistent with what's been published:
		// a corrupted slot. Resync past it rather than retry forever.
		c.corruption.AddAcqRel(1)
		c.readPos.StoreRelease(c.cachedWritePos)
		return 0, errors.ErrEmpty
	}

	if uint64(len(out)) < length {
		return 0, errors.BufferTooSmallf("ring: output buffer %d bytes too small for %d-byte record", len(out), length)
	}

	simd.CopyFrom(out, c.buf, c.mask, head+lengthPrefixSize, int(length), level)
	c.readPos.StoreRelease(head + lengthPrefixSize + length)
	return int(length), nil
}

// observableWritePos returns the producer-published position the
// consumer may read up to: writePos in SPSC mode, commitPos (which lags
// the FAA reservation counter until producers publish in order) in MPSC
// mode.
func (c *class) observableWritePos() uint64 {
	if c.mpsc {
		if c.draining.LoadAcquire() {
			return c.reservePos.LoadAcquire()
		}
		return c.commitPos.LoadAcquire()
	}
	return c.writePos.LoadAcquire()
}

// roundToPow2 rounds n up to the next power of 2 (minimum lengthPrefixSize*2).
func roundToPow2(n int) uint64 {
	if n < lengthPrefixSize*2 {
		n = lengthPrefixSize * 2
	}
	v := uint64(n)
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
