// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"runtime"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/hayabusa-cloud/agentbus/capability"
	"github.com/hayabusa-cloud/agentbus/errors"
)

// State is a worker's current phase in its run loop. Stats and tests
// observe this; it is not part of the correctness protocol.
type State int32

const (
	StateStarting State = iota
	StatePinned
	StatePolling
	StateStealing
	StateBackoff
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePinned:
		return "pinned"
	case StatePolling:
		return "polling"
	case StateStealing:
		return "stealing"
	case StateBackoff:
		return "backoff"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handler processes one dequeued job. An error, or a panic, is counted in
// the worker's Failed stat but never stops the worker: one bad job must not
// take down the pool. The worker does not log handler failures.
type Handler func(job *Job) error

// eCoreBackoff is the sleep duration an idle E-core worker uses between
// poll/steal attempts, trading latency for the power-efficiency an E-core
// is chosen for in the first place.
const eCoreBackoff = 10 * time.Microsecond

// Worker owns one local Chase-Lev deque and runs the local pop →
// work-steal → backoff loop. It never reads the ring buffer and does not
// poll priority classes in a fixed order: which priorities it runs depends
// on where Pool.Submit placed each job and on what it steals. P-core
// workers spin (spin.Wait) while idle;
// E-core workers sleep a short, fixed interval instead, since spinning
// defeats the purpose of scheduling low-priority work onto an E-core.
type Worker struct {
	ID        int
	CPU       capability.CPU
	Deque     Deque
	handler   Handler
	sameType  []*Worker // siblings sharing this worker's CPU.Core, excluding self; set by Pool
	otherType []*Worker // remaining siblings; set by Pool

	state atomix.Int64 // holds State, accessed via StateLoad/setState

	processed atomix.Int64
	stolen    atomix.Int64
	failed    atomix.Int64

	pinFailed atomix.Bool

	stop atomix.Bool
}

func (w *Worker) setState(s State) { w.state.StoreRelease(int64(s)) }

// StateLoad returns the worker's current State.
func (w *Worker) StateLoad() State { return State(w.state.LoadAcquire()) }

// run is the worker's main loop. It blocks until Stop is called.
func (w *Worker) run() {
	w.setState(StateStarting)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := pinToCPU(w.CPU.ID); err != nil {
		// Non-fatal: proceed unpinned. The worker still runs, just without
		// the cache-locality and scheduling guarantees pinning buys.
		w.pinFailed.StoreRelease(true)
	}
	setThreadPriority(w.CPU.Core == capability.CorePerformance)
	w.setState(StatePinned)

	sw := spin.Wait{}
	for !w.stop.LoadAcquire() {
		w.setState(StatePolling)
		job, ok := w.Deque.PopBottom()
		if !ok {
			w.setState(StateStealing)
			job, ok = w.stealFromSiblings()
			if ok {
				w.stolen.AddAcqRel(1)
			}
		}

		if !ok {
			w.setState(StateBackoff)
			w.backoff(&sw)
			continue
		}
		sw = spin.Wait{}

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Callbackf("pool: handler panicked: %v", r)
				}
			}()
			return w.handler(job)
		}()
		if err != nil {
			w.failed.AddAcqRel(1)
		} else {
			w.processed.AddAcqRel(1)
		}
	}
	w.setState(StateStopping)
	w.setState(StateStopped)
}

// stealFromSiblings tries same-core-type siblings first, then the rest of
// the pool, so an idle E-core worker drains another E-core's backlog before
// ever reaching into a P-core's deque (and vice versa). This keeps
// high-priority work, which Submit already routes to P-core deques, from
// being stolen out from under the P-core workers by a faster-idling E-core
// thief; on non-hybrid hosts every worker is CoreUnknown, sameType is the
// whole pool, and this degenerates to the old flat steal order.
func (w *Worker) stealFromSiblings() (*Job, bool) {
	if job, ok := stealFrom(w, w.sameType); ok {
		return job, true
	}
	return stealFrom(w, w.otherType)
}

// stealFrom tries every worker in victims once, starting from a
// pseudo-random offset so concurrent thieves don't all hammer the same
// victim first.
func stealFrom(w *Worker, victims []*Worker) (*Job, bool) {
	n := len(victims)
	if n == 0 {
		return nil, false
	}
	start := int(w.processed.LoadRelaxed()+w.stolen.LoadRelaxed()) % n
	for i := 0; i < n; i++ {
		if job, ok := victims[(start+i)%n].Deque.Steal(); ok {
			return job, true
		}
	}
	return nil, false
}

// backoff idles the worker when no work was found anywhere. P-cores (and
// unknown/non-hybrid cores) busy-spin with CPU pause instructions for low
// wake latency; E-cores sleep, trading latency for power.
func (w *Worker) backoff(sw *spin.Wait) {
	if w.CPU.Core == capability.CoreEfficiency {
		time.Sleep(eCoreBackoff)
		return
	}
	sw.Once()
}

// Stats is a point-in-time snapshot of one worker's counters.
type Stats struct {
	ID        int
	State     State
	CPU       int
	CoreType  capability.CoreType
	PinFailed bool
	Processed int64
	Stolen    int64
	Failed    int64
	QueueLen  int
}

// Snapshot returns the worker's current counters.
func (w *Worker) Snapshot() Stats {
	return Stats{
		ID:        w.ID,
		State:     w.StateLoad(),
		CPU:       w.CPU.ID,
		CoreType:  w.CPU.Core,
		PinFailed: w.pinFailed.LoadAcquire(),
		Processed: w.processed.LoadAcquire(),
		Stolen:    w.stolen.LoadAcquire(),
		Failed:    w.failed.LoadAcquire(),
		QueueLen:  w.Deque.Len(),
	}
}
