// Package scheduler implements the per-peer cooperative scheduler
// (spec.md §4.7): a ready set of operators, event-bus draining at
// quiescence, FIFO-by-default dispatch with an iteration-depth priority
// hook, and idle/finished detection.
//
// Grounded on the teacher's internal/scheduler (a job/task registry with
// atomic id allocation, one *Job wrapping one running pipeline) generalized
// from "one pipeline per job" to "one ready-queue of many operators per
// peer"; the drain pattern mirrors internal/eventbus/bus.go's partition
// consumer loop.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/tevino/abool"

	"firestige.xyz/gflow/internal/eventbus"
	"firestige.xyz/gflow/internal/operator"
)

// OperatorID identifies one operator instance within a peer's plan.
type OperatorID int

// Runnable is the non-generic facade a concrete (generically-typed)
// operator instance presents to the scheduler. Operators are generic over
// their record types (operator.Kernel[T, U]); the scheduler only ever sees
// this type-erased view, the way Runnable wraps whichever Kernel instance
// the worker wired up for this operator (internal/worker).
type Runnable interface {
	// Fire runs one step of the operator against its current input.
	Fire() (operator.Action, error)
	// Ready reports whether the operator currently has input (a batch or a
	// delivered event) waiting and is not blocked on backpressure.
	Ready() bool
	// Finished reports whether this operator has observed end-of-root on
	// every one of its inputs.
	Finished() bool
	// HandleEvent delivers one drained event-bus event (on_end/on_cancel)
	// to the operator. Returns true if the operator became ready as a
	// result (spec.md §4.7: "may enqueue new ready operators").
	HandleEvent(e eventbus.Event) bool
}

// PriorityFunc orders the ready queue; higher values run first. A nil
// PriorityFunc means plain FIFO. The iteration-depth hook (spec.md §4.7:
// "prefer higher iteration counts, drain the innermost scope first") is
// just a PriorityFunc keyed on tag.Level() of the operator's current scope.
type PriorityFunc func(id OperatorID) int

// Status is the outcome of one Scheduler.Step call.
type Status int

const (
	// Running: an operator fired this step; call Step again.
	Running Status = iota
	// Idle: the ready set is empty and the event bus has nothing pending,
	// but at least one operator has not yet finished — the peer is waiting
	// on external input (network, timers).
	Idle
	// Finished: every registered operator has seen end-of-root on every
	// input. The job is complete for this peer.
	Finished
)

// Scheduler is a single peer's cooperative, single-threaded operator
// scheduler (spec.md §4.7). It is not safe for concurrent use from more
// than one goroutine — that single-threaded-per-peer property is the
// entire point.
type Scheduler struct {
	bus      *eventbus.Bus
	priority PriorityFunc

	order []OperatorID
	ops   map[OperatorID]Runnable

	ready map[OperatorID]bool
	queue []OperatorID

	// wake is signalled by every MarkReady; a pending signal ends Run's
	// next idle backoff early. MarkReady is unsynchronized like the rest of
	// Scheduler, so it is not safe to call from another goroutine.
	wake chan struct{}
	// idle reflects the scheduler's status as of the last Step call, so a
	// separate monitoring goroutine can observe it without racing Run.
	idle *abool.AtomicBool
}

// New constructs a scheduler draining the given event bus.
func New(bus *eventbus.Bus) *Scheduler {
	return &Scheduler{
		bus:   bus,
		ops:   make(map[OperatorID]Runnable),
		ready: make(map[OperatorID]bool),
		wake:  make(chan struct{}, 1),
		idle:  abool.New(),
	}
}

// Idle reports whether the scheduler was idle as of its last Step call.
func (s *Scheduler) Idle() bool { return s.idle.IsSet() }

// SetPriority installs the ready-queue ordering hook.
func (s *Scheduler) SetPriority(fn PriorityFunc) { s.priority = fn }

// Register adds an operator to the peer's plan. Registration order is the
// order drainEvents offers each event to operators in; ready-queue ties
// are broken by MarkReady order.
func (s *Scheduler) Register(id OperatorID, r Runnable) {
	s.order = append(s.order, id)
	s.ops[id] = r
}

// MarkReady adds id to the ready queue if it isn't already there.
func (s *Scheduler) MarkReady(id OperatorID) {
	if s.ready[id] {
		return
	}
	s.ready[id] = true
	s.queue = append(s.queue, id)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drainEvents empties the event bus, delivering every event to every
// registered operator (spec.md §4.7's "delivers each event to its target
// operator"); an operator with no interest in a given tag/channel simply
// ignores it in HandleEvent.
func (s *Scheduler) drainEvents() int {
	n := 0
	s.bus.Drain(func(e eventbus.Event) {
		n++
		for _, id := range s.order {
			if s.ops[id].HandleEvent(e) {
				s.MarkReady(id)
			}
		}
	})
	return n
}

// nextReady pops the next operator to fire, honoring the priority hook.
func (s *Scheduler) nextReady() (OperatorID, bool) {
	// drop any queue entries for operators that turned themselves un-ready
	// (e.g. blocked) since being enqueued.
	for len(s.queue) > 0 && !s.ops[s.queue[0]].Ready() {
		s.ready[s.queue[0]] = false
		s.queue = s.queue[1:]
	}
	if len(s.queue) == 0 {
		return 0, false
	}
	if s.priority == nil {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.ready[id] = false
		return id, true
	}
	best := 0
	bestPriority := s.priority(s.queue[0])
	for i := 1; i < len(s.queue); i++ {
		if p := s.priority(s.queue[i]); p > bestPriority {
			best, bestPriority = i, p
		}
	}
	id := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	s.ready[id] = false
	return id, true
}

func (s *Scheduler) allFinished() bool {
	for _, id := range s.order {
		if !s.ops[id].Finished() {
			return false
		}
	}
	return true
}

// Step drains pending events, fires at most one ready operator, and reports
// the resulting Status. An Error action surfaces as the returned error;
// callers (internal/worker) are expected to begin cooperative cancellation.
func (s *Scheduler) Step() (Status, error) {
	s.drainEvents()

	id, ok := s.nextReady()
	if !ok {
		if s.allFinished() {
			s.idle.UnSet()
			return Finished, nil
		}
		s.idle.Set()
		return Idle, nil
	}
	s.idle.UnSet()

	action, err := s.ops[id].Fire()
	if err != nil {
		return Running, err
	}
	switch action {
	case operator.Continue:
		if s.ops[id].Ready() {
			s.MarkReady(id)
		}
	case operator.Blocked:
		// stays un-ready until a buffer-return event (delivered through
		// drainEvents -> HandleEvent) marks it ready again.
	}
	return Running, nil
}

// idleBackoff is how long Run parks between Step calls while Idle, giving
// network/timer-driven input a chance to arrive without busy-spinning.
const idleBackoff = time.Millisecond

// Run drives Step until the job finishes, the context is cancelled, or an
// operator reports an error.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, err := s.Step()
		if err != nil {
			return err
		}
		switch status {
		case Finished:
			return nil
		case Idle:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			case <-time.After(idleBackoff):
			}
		}
	}
}

// Operators returns the registered operator ids in ascending id order,
// primarily for diagnostics/tests.
func (s *Scheduler) Operators() []OperatorID {
	out := make([]OperatorID, len(s.order))
	copy(out, s.order)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
