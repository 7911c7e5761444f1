// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package agentbus wires the capability probe, the priority ring buffer and
// the work-stealing worker pool into a single in-process message transport:
// Publish frames and enqueues a record, a per-priority dispatch goroutine
// drains the ring and submits it to the pool, and the pool invokes the
// caller's Process callback on a pinned worker.
package agentbus

import (
	"context"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/spin"
	"go.uber.org/zap"

	"github.com/hayabusa-cloud/agentbus/capability"
	"github.com/hayabusa-cloud/agentbus/errors"
	"github.com/hayabusa-cloud/agentbus/pool"
	"github.com/hayabusa-cloud/agentbus/record"
	"github.com/hayabusa-cloud/agentbus/ring"
)

// Process handles one verified, dequeued message. Returning a non-nil error
// counts against the Bus's callback-failure stat; it never stops the Bus.
type Process func(h record.Header, payload []byte) error

// Bus is the assembled transport: capability probe → priority ring buffer →
// work-stealing worker pool.
type Bus struct {
	capability capability.Record
	ring       *ring.Buffer
	pool       *pool.Pool
	logger     *zap.Logger
	process    Process

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	corruption atomic.Int64
	callback   atomic.Int64
}

// New probes the host, allocates the priority ring buffer, builds the
// worker pool, and starts both the pool workers and the per-priority
// dispatch goroutines. process is invoked for every record that passes CRC
// verification.
func New(process Process, opts ...Option) (*Bus, error) {
	if process == nil {
		return nil, errors.InvalidArgumentf("agentbus: process must not be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	capRec := capability.Probe()
	simdLevel := capRec.SIMDLevel
	if cfg.simdOverride != nil {
		simdLevel = *cfg.simdOverride
	}
	if cfg.numaHint != nil {
		capRec.CPUs = preferNUMANode(capRec.CPUs, *cfg.numaHint)
	}

	rb, err := ring.New(ring.Config{
		CapacityPerClass: cfg.capacityPerClass,
		MultiProducer:    cfg.multiProducer,
		SIMDLevel:        simdLevel,
		UseHugePages:     cfg.useHugePages,
		NUMANode:         cfg.numaHint,
	})
	if err != nil {
		return nil, err
	}

	b := &Bus{
		capability: capRec,
		ring:       rb,
		logger:     cfg.logger,
		process:    process,
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	p, err := pool.New(pool.Config{Capability: capRec, Handler: b.dispatch})
	if err != nil {
		return nil, err
	}
	b.pool = p

	p.Start()
	b.wg.Add(ring.NumPriorities)
	for priority := 0; priority < ring.NumPriorities; priority++ {
		go b.drainClass(priority)
	}
	return b, nil
}

// Publish builds a record from fields and payload and enqueues it on its
// priority class. Returns InvalidArgument from record.Build, TooLarge if
// the record can never fit the class capacity, or Full if the class queue
// has no room.
func (b *Bus) Publish(fields record.Fields, payload []byte) error {
	rec, err := record.Build(fields, payload)
	if err != nil {
		return err
	}
	return b.ring.Write(fields.Priority, rec)
}

// drainClass continuously reads records off one priority class and submits
// them to the pool, backing off with CPU-pause spins between empty reads.
func (b *Bus) drainClass(priority int) {
	defer b.wg.Done()
	buf := make([]byte, record.HeaderSize+record.MaxPayload)
	sw := spin.Wait{}
	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		n, err := b.ring.Read(priority, buf)
		if err != nil {
			sw.Once()
			continue
		}
		sw = spin.Wait{}

		rec := make([]byte, n)
		copy(rec, buf[:n])
		// Pool saturated (every worker deque full): the record is dropped.
		// This drop is not counted in any ring, pool or Bus stat.
		_ = b.pool.Submit(&pool.Job{Priority: priority, Record: rec})
	}
}

// dispatch is the pool.Handler passed to pool.New: it parses and verifies
// the record's CRC before calling the user's Process.
func (b *Bus) dispatch(job *pool.Job) error {
	h, err := record.ParseHeader(job.Record)
	if err != nil {
		b.logger.Warn("agentbus: malformed record", zap.Error(err), zap.Int("priority", job.Priority))
		return nil
	}
	payload := job.Record[record.HeaderSize:]
	if !record.VerifyCRC(h, payload) {
		b.corruption.Add(1)
		b.logger.Warn("agentbus: CRC mismatch, dropping record",
			zap.Int("priority", job.Priority), zap.Uint64("sequence", h.Sequence))
		return nil
	}

	if err := b.process(h, payload); err != nil {
		b.callback.Add(1)
		return errors.Callbackf("agentbus: process callback failed: %v", err)
	}
	return nil
}

// Stats is a snapshot of the Bus's aggregate counters.
type Stats struct {
	Ring       ring.Stats
	Pool       []pool.Stats
	Corruption int64
	Callback   int64
}

// Stats returns a point-in-time snapshot across the ring buffer, the
// worker pool, and the Bus's own dispatch-loop counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Ring:       b.ring.Stats(),
		Pool:       b.pool.Stats(),
		Corruption: b.corruption.Load(),
		Callback:   b.callback.Load(),
	}
}

// Capability returns the capability record the Bus was constructed with.
func (b *Bus) Capability() capability.Record { return b.capability }

// Close signals the ring buffer to drain, stops accepting new dispatch
// work, stops the worker pool, and returns once every worker and dispatch
// goroutine has exited.
func (b *Bus) Close() {
	b.ring.Drain()
	b.cancel()
	b.wg.Wait()
	b.pool.Stop()
}

// preferNUMANode reorders cpus so that the ones on node come first. CPUs
// with unknown NUMA affinity, and CPUs on other nodes, are kept but moved
// after the hinted group; no CPU is dropped.
func preferNUMANode(cpus []capability.CPU, node int) []capability.CPU {
	out := make([]capability.CPU, 0, len(cpus))
	for _, c := range cpus {
		if c.NUMANode == node {
			out = append(out, c)
		}
	}
	for _, c := range cpus {
		if c.NUMANode != node {
			out = append(out, c)
		}
	}
	return out
}
