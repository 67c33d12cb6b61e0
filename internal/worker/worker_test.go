package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"firestige.xyz/gflow/internal/eventbus"
	"firestige.xyz/gflow/internal/jobrt"
	"firestige.xyz/gflow/internal/operator"
	"firestige.xyz/gflow/internal/scheduler"
)

// finiteOp fires once then reports finished, modeling a peer whose plan has
// already drained all its input.
type finiteOp struct{ fired bool }

func (o *finiteOp) Fire() (operator.Action, error) {
	o.fired = true
	return operator.Continue, nil
}
func (o *finiteOp) Ready() bool                     { return !o.fired }
func (o *finiteOp) Finished() bool                  { return o.fired }
func (o *finiteOp) HandleEvent(eventbus.Event) bool { return false }

func newFinitePeer(id int) *Peer {
	bus := eventbus.New(1, 4)
	sched := scheduler.New(bus)
	sched.Register(1, &finiteOp{})
	sched.MarkReady(1)
	return &Peer{ID: id, Scheduler: sched, Bus: bus}
}

func TestWorkerStartRunsAllPeersToCompletion(t *testing.T) {
	w := New([]*Peer{newFinitePeer(0), newFinitePeer(1), newFinitePeer(2)})
	var lastReleaseFired bool
	w.OnLastPeerRelease = func() { lastReleaseFired = true }

	err := w.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.State() != StateStopped {
		t.Fatalf("expected StateStopped, got %s", w.State())
	}
	if !lastReleaseFired {
		t.Fatalf("expected the last peer's release to fire OnLastPeerRelease")
	}
}

// failingOp models a peer whose kernel returns a user-function error.
type failingOp struct{}

func (failingOp) Fire() (operator.Action, error) { return operator.Error, errors.New("kernel boom") }
func (failingOp) Ready() bool                     { return true }
func (failingOp) Finished() bool                  { return false }
func (failingOp) HandleEvent(eventbus.Event) bool { return false }

func TestWorkerStartAggregatesPeerErrorsAndCancelsSiblings(t *testing.T) {
	failBus := eventbus.New(1, 4)
	failSched := scheduler.New(failBus)
	failSched.Register(1, failingOp{})
	failSched.MarkReady(1)
	failing := &Peer{ID: 0, Scheduler: failSched, Bus: failBus}

	sibling := newFinitePeerThatNeverFinishes(1)

	w := New([]*Peer{failing, sibling})
	var reported []*jobrt.JobError
	w.OnError = func(je *jobrt.JobError) { reported = append(reported, je) }

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an aggregated error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not converge after sibling cancellation")
	}
	if w.State() != StateFailed {
		t.Fatalf("expected StateFailed, got %s", w.State())
	}
	if len(reported) == 0 {
		t.Fatalf("expected at least the failing peer's error to be reported")
	}
}

// neverReadyOp never finishes and never re-marks itself ready on its own;
// it only exits because the scheduler's Run loop observes ctx cancellation.
type neverReadyOp struct{}

func (neverReadyOp) Fire() (operator.Action, error) { return operator.Continue, nil }
func (neverReadyOp) Ready() bool                     { return false }
func (neverReadyOp) Finished() bool                  { return false }
func (neverReadyOp) HandleEvent(eventbus.Event) bool { return false }

func newFinitePeerThatNeverFinishes(id int) *Peer {
	bus := eventbus.New(1, 4)
	sched := scheduler.New(bus)
	sched.Register(1, neverReadyOp{})
	return &Peer{ID: id, Scheduler: sched, Bus: bus}
}
