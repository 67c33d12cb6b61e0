// Package worker implements the per-peer worker lifecycle and the job
// driver that hosts every peer a single server process owns for one job
// (spec.md §4.8, §1's "W workers per server x S servers = P peers").
//
// Grounded on the teacher's internal/task.Task: a state machine
// (Created/Starting/Running/Stopping/Stopped/Failed), a context/cancel
// pair, and a WaitGroup-gated shutdown sequence — generalized here from "N
// capture pipelines" to "N cooperative peer schedulers", and from a manual
// sync.WaitGroup to sourcegraph/conc's panic-safe, cancel-propagating pool.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"firestige.xyz/gflow/internal/eventbus"
	"firestige.xyz/gflow/internal/jobrt"
	peerset "firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/scheduler"
)

// State is a worker's lifecycle state, named after the teacher's TaskState.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Peer is one cooperative execution context: a scheduler instance and the
// event bus it drains, running single-threaded for the lifetime of the job
// (spec.md §5: "within one worker: single-threaded").
type Peer struct {
	ID        int
	Scheduler *scheduler.Scheduler
	Bus       *eventbus.Bus
}

// Resources is the per-worker resource map (spec.md §4.8: "keyed by
// type-id and/or string, visible to all operator kernels on that peer, for
// user-provided context, e.g. a partitioned graph handle"). Per spec.md §5
// it is unsynchronized — wire it before Start and treat it as read-only
// once peers are running concurrently.
type Resources map[string]any

// Worker hosts every peer this server process runs for one job. Start runs
// all peer schedulers concurrently; the first peer error cancels the rest
// (cooperative cancellation, spec.md §4.8/§7).
type Worker struct {
	mu            sync.RWMutex
	state         State
	createdAt     time.Time
	startedAt     time.Time
	stoppedAt     time.Time
	failureReason string

	peers     []*Peer
	guard     *peerset.Guard
	Resources Resources

	// OnError is invoked for every peer's terminal error before it is
	// folded into the aggregate returned by Start (spec.md §7's
	// "propagate to the sink").
	OnError func(*jobrt.JobError)
	// OnLastPeerRelease fires exactly once, when the shared peer guard
	// observes the last live peer releasing (spec.md §4.8: "a shared peer
	// guard atomic counts live peers; the last peer releases per-job
	// resources").
	OnLastPeerRelease func()

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a worker over the given peers, all belonging to one job.
func New(peers []*Peer) *Worker {
	return &Worker{
		state:     StateCreated,
		createdAt: time.Now(),
		peers:     peers,
		guard:     peerset.NewGuard(len(peers)),
		Resources: make(Resources),
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// FailureReason returns the error message recorded when the worker entered
// StateFailed, or "" otherwise.
func (w *Worker) FailureReason() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.failureReason
}

func (w *Worker) setState(s State) { w.state = s }

// Start runs every peer's scheduler to completion, cancelling the
// remaining peers as soon as any one of them errors. It blocks until every
// peer has exited, then reports the aggregated error (nil on a clean run).
func (w *Worker) Start(parent context.Context) error {
	w.mu.Lock()
	if w.state != StateCreated {
		w.mu.Unlock()
		return fmt.Errorf("cannot start worker in state %s", w.state)
	}
	w.setState(StateStarting)
	w.ctx, w.cancel = context.WithCancel(parent)
	w.startedAt = time.Now()
	w.setState(StateRunning)
	w.mu.Unlock()

	p := pool.New().WithContext(w.ctx).WithCancelOnError()
	for _, peer := range w.peers {
		peer := peer
		p.Go(func(ctx context.Context) error {
			defer w.releasePeer()
			if err := peer.Scheduler.Run(ctx); err != nil {
				if ctx.Err() != nil && err == ctx.Err() {
					je := jobrt.New(jobrt.ErrKindCancelled, peer.ID, "schedule", err)
					if w.OnError != nil {
						w.OnError(je)
					}
					return je
				}
				je := jobrt.New(jobrt.ErrKindUserFunction, peer.ID, "schedule", err)
				if w.OnError != nil {
					w.OnError(je)
				}
				return je
			}
			return nil
		})
	}
	err := p.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stoppedAt = time.Now()
	if err != nil {
		w.setState(StateFailed)
		w.failureReason = err.Error()
		return err
	}
	w.setState(StateStopped)
	return nil
}

func (w *Worker) releasePeer() {
	if w.guard.Release() && w.OnLastPeerRelease != nil {
		w.OnLastPeerRelease()
	}
}

// Stop requests cooperative cancellation of every peer (spec.md §5's
// "Timeouts: ... the scheduler cancels from sinks upward"); it returns
// immediately, Start's caller observes completion when Start returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	w.setState(StateStopping)
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
