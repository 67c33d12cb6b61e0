package scheduler

import (
	"testing"

	"firestige.xyz/gflow/internal/eventbus"
	"firestige.xyz/gflow/internal/operator"
)

// countingOp fires a fixed number of times then reports itself finished.
type countingOp struct {
	remaining int
	fired     int
}

func (c *countingOp) Fire() (operator.Action, error) {
	c.fired++
	c.remaining--
	return operator.Continue, nil
}
func (c *countingOp) Ready() bool                     { return c.remaining > 0 }
func (c *countingOp) Finished() bool                  { return c.remaining <= 0 }
func (c *countingOp) HandleEvent(eventbus.Event) bool { return false }

func TestSchedulerDrainsReadyOperatorsThenFinishes(t *testing.T) {
	bus := eventbus.New(1, 4)
	s := New(bus)
	a := &countingOp{remaining: 2}
	b := &countingOp{remaining: 1}
	s.Register(1, a)
	s.Register(2, b)
	s.MarkReady(1)
	s.MarkReady(2)

	steps := 0
	for {
		status, err := s.Step()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		steps++
		if status == Finished {
			break
		}
		if steps > 100 {
			t.Fatalf("scheduler did not converge")
		}
	}
	if a.fired != 2 || b.fired != 1 {
		t.Fatalf("fire counts = a:%d b:%d, want a:2 b:1", a.fired, b.fired)
	}
}

// blockedThenEvent models an operator whose first fire blocks it until an
// event wakes it.
type blockedThenEvent struct {
	blocked bool
	done    bool
	fired   int
}

func (o *blockedThenEvent) Fire() (operator.Action, error) {
	o.fired++
	if o.fired == 1 {
		o.blocked = true
		return operator.Blocked, nil
	}
	o.done = true
	return operator.Continue, nil
}
func (o *blockedThenEvent) Ready() bool    { return !o.blocked }
func (o *blockedThenEvent) Finished() bool { return o.done }
func (o *blockedThenEvent) HandleEvent(e eventbus.Event) bool {
	if e.Kind == eventbus.KindHeartbeat {
		o.blocked = false
		return true
	}
	return false
}

func TestSchedulerIdleUntilEventWakesBlockedOperator(t *testing.T) {
	bus := eventbus.New(1, 4)
	s := New(bus)
	op := &blockedThenEvent{}
	s.Register(1, op)
	s.MarkReady(1)

	status, err := s.Step()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Running || op.fired != 1 || !op.blocked {
		t.Fatalf("expected first fire to leave the operator blocked, got status=%v op=%+v", status, op)
	}

	status, err = s.Step()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Idle {
		t.Fatalf("expected Idle while blocked with no events, got %v", status)
	}

	bus.Publish(eventbus.HeartbeatEvent(0, "conn-1"))
	status, err = s.Step()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Running || op.fired != 2 || !op.done {
		t.Fatalf("expected the event to wake and finish the operator, got status=%v op=%+v", status, op)
	}
}

func TestSchedulerPriorityHookPrefersHigherValue(t *testing.T) {
	bus := eventbus.New(1, 4)
	s := New(bus)
	a := &countingOp{remaining: 1}
	b := &countingOp{remaining: 1}
	s.Register(1, a)
	s.Register(2, b)
	s.SetPriority(func(id OperatorID) int {
		if id == 2 {
			return 10
		}
		return 0
	})
	s.MarkReady(1)
	s.MarkReady(2)

	s.Step()
	if b.fired != 1 || a.fired != 0 {
		t.Fatalf("expected the higher-priority operator to fire first, a=%d b=%d", a.fired, b.fired)
	}
}
