// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hayabusa-cloud/agentbus/capability"
	"github.com/hayabusa-cloud/agentbus/errors"
)

// Config configures Pool construction.
type Config struct {
	// Capability is the host topology snapshot. Workers are created one
	// per CPU listed in Capability.CPUs; P/E classification drives their
	// backoff strategy.
	Capability capability.Record
	// Handler processes every dequeued job. Required.
	Handler Handler
}

// highPriorityCutoff is the inclusive upper bound of the "high priority"
// classes P-cores are preferred for (poll order [0,1]); everything above it
// is "low priority" and prefers E-cores (poll order [2,3,4,5]).
const highPriorityCutoff = 1

// Pool is the priority-aware, work-stealing worker pool: one Worker per
// logical CPU, pinned where the platform allows it, each polling its own
// Chase-Lev deque before stealing from siblings. Submit routes high-priority
// jobs to P-core workers and low-priority jobs to E-core workers first,
// falling back to the rest of the pool when the preferred group has no
// room or the host reports no hybrid topology at all.
type Pool struct {
	workers []*Worker
	pCore   []int // indices into workers, CorePerformance
	eCore   []int // indices into workers, CoreEfficiency
	other   []int // indices into workers, CoreUnknown

	group *errgroup.Group

	nextHigh, nextLow, nextOther int
	mu                           sync.Mutex
}

// New constructs a Pool from cfg. Returns InvalidArgument if Handler is nil
// or the capability record lists no CPUs.
func New(cfg Config) (*Pool, error) {
	if cfg.Handler == nil {
		return nil, errors.InvalidArgumentf("pool: Handler must not be nil")
	}
	if len(cfg.Capability.CPUs) == 0 {
		return nil, errors.InvalidArgumentf("pool: capability record lists no CPUs")
	}

	p := &Pool{workers: make([]*Worker, len(cfg.Capability.CPUs))}
	for i, cpu := range cfg.Capability.CPUs {
		p.workers[i] = &Worker{ID: i, CPU: cpu, handler: cfg.Handler}
		switch cpu.Core {
		case capability.CorePerformance:
			p.pCore = append(p.pCore, i)
		case capability.CoreEfficiency:
			p.eCore = append(p.eCore, i)
		default:
			p.other = append(p.other, i)
		}
	}
	for _, w := range p.workers {
		for _, sib := range p.workers {
			if sib == w {
				continue
			}
			if sib.CPU.Core == w.CPU.Core {
				w.sameType = append(w.sameType, sib)
			} else {
				w.otherType = append(w.otherType, sib)
			}
		}
	}
	return p, nil
}

// routeOrder returns the indices Submit should try, in order, for a job at
// the given priority: the matching core-type group first (round-robin
// within it), then the unclassified workers, then the opposite core-type
// group as a last resort. On hardware with no detected hybrid topology,
// pCore and eCore are both empty and every job routes through other, i.e. a
// plain round-robin across all workers.
func (p *Pool) routeOrder(priority int) []int {
	primary, primaryCursor := p.eCore, &p.nextLow
	secondary, secondaryCursor := p.pCore, &p.nextHigh
	if priority <= highPriorityCutoff {
		primary, primaryCursor = p.pCore, &p.nextHigh
		secondary, secondaryCursor = p.eCore, &p.nextLow
	}

	order := make([]int, 0, len(p.workers))
	order = append(order, rotate(primary, primaryCursor)...)
	order = append(order, rotate(p.other, &p.nextOther)...)
	order = append(order, rotate(secondary, secondaryCursor)...)
	return order
}

// rotate returns idx's elements starting at *cursor, wrapping around, and
// advances *cursor by one for next time.
func rotate(idx []int, cursor *int) []int {
	n := len(idx)
	if n == 0 {
		return nil
	}
	start := *cursor % n
	*cursor = (*cursor + 1) % n
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = idx[(start+i)%n]
	}
	return out
}

// Start launches every worker's run loop in its own supervised goroutine.
func (p *Pool) Start() {
	p.group = new(errgroup.Group)
	for _, w := range p.workers {
		w := w
		p.group.Go(func() error {
			w.run()
			return nil
		})
	}
}

// Stop signals every worker to exit its run loop and waits for them to
// drain their current job, if any, and terminate.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.stop.StoreRelease(true)
	}
	if p.group != nil {
		_ = p.group.Wait()
	}
}

// Submit pushes job onto a worker's local deque. High-priority jobs
// (priority <= 1) prefer P-core workers; lower-priority jobs prefer E-core
// workers. If every worker in the preferred group is full, Submit falls
// back to unclassified workers and then the opposite group before giving
// up. Returns Full only if every worker in the pool rejected the job.
func (p *Pool) Submit(job *Job) error {
	p.mu.Lock()
	order := p.routeOrder(job.Priority)
	p.mu.Unlock()

	for _, i := range order {
		if p.workers[i].Deque.PushBottom(job) {
			return nil
		}
	}
	return errors.ErrFull
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int { return len(p.workers) }

// Stats returns a snapshot of every worker's counters.
func (p *Pool) Stats() []Stats {
	out := make([]Stats, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.Snapshot()
	}
	return out
}
