package channel

import (
	"sync"

	"github.com/tevino/abool"

	"firestige.xyz/gflow/internal/tag"
)

// Canceller is the producer-side listener for a consumer-originated cancel
// signal (spec.md §4.2). Three kinds exist, selected at channel
// construction: Single-consumer, Multi-consumer, Dynamic single-consumer.
type Canceller interface {
	// Cancel records that consumer has cancelled tag t. Returns true once
	// the cancel becomes globally effective for t (all required
	// consumers have cancelled).
	Cancel(t tag.Tag, consumer int) (effective bool)
	// Cancelled reports whether t is currently globally cancelled.
	Cancelled(t tag.Tag) bool
}

// SingleConsumer is trivial: the lone consumer's cancel is immediately
// effective.
type SingleConsumer struct {
	mu        sync.Mutex
	cancelled map[string]*abool.AtomicBool
}

// NewSingleConsumer constructs an SC canceller.
func NewSingleConsumer() *SingleConsumer {
	return &SingleConsumer{cancelled: make(map[string]*abool.AtomicBool)}
}

func (c *SingleConsumer) flag(t tag.Tag) *abool.AtomicBool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.cancelled[t.Key()]
	if !ok {
		f = abool.New()
		c.cancelled[t.Key()] = f
	}
	return f
}

func (c *SingleConsumer) Cancel(t tag.Tag, _ int) bool {
	c.flag(t).Set()
	return true
}

func (c *SingleConsumer) Cancelled(t tag.Tag) bool { return c.flag(t).IsSet() }

// MultiConsumer requires every consumer to cancel before it is globally
// effective, and optionally inherits a parent-scope cancel down to every
// child scope when enableCancelChild is set (spec.md §4.2, §9 Open
// Question — decided: drop undelivered child data, still emit child ends).
type MultiConsumer struct {
	mu                sync.Mutex
	targets           map[string]map[int]bool // tag key -> set of consumers that cancelled
	consumerCount     int
	effective         map[string]bool
	enableCancelChild bool
}

// NewMultiConsumer constructs an MC canceller for a channel with the given
// fixed consumer count.
func NewMultiConsumer(consumerCount int, enableCancelChild bool) *MultiConsumer {
	return &MultiConsumer{
		targets:           make(map[string]map[int]bool),
		consumerCount:     consumerCount,
		effective:         make(map[string]bool),
		enableCancelChild: enableCancelChild,
	}
}

func (c *MultiConsumer) Cancel(t tag.Tag, consumer int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := t.Key()
	set, ok := c.targets[key]
	if !ok {
		set = make(map[int]bool)
		c.targets[key] = set
	}
	set[consumer] = true

	if len(set) >= c.consumerCount {
		c.effective[key] = true
	}

	return c.effective[key]
}

func (c *MultiConsumer) Cancelled(t tag.Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.effective[t.Key()] {
		return true
	}
	if c.enableCancelChild {
		for p := t; !p.IsRoot(); {
			p = p.Parent()
			if c.effective[p.Key()] {
				return true
			}
		}
	}
	return false
}

// RouteFunc maps a tag's current element to the consumer peer index that
// owns it — used by Dynamic single-consumer cancellers on exchange
// channels, where routing is itself a hash/partition function (see
// channel.Exchange).
type RouteFunc func(t tag.Tag) int

// DynamicSingleConsumer is effective for tag t from consumer c iff Route
// maps t's current element to c — i.e. there really is only one consumer
// for that tag, it's just determined dynamically.
type DynamicSingleConsumer struct {
	mu        sync.Mutex
	cancelled map[string]bool
	Route     RouteFunc
}

// NewDynamicSingleConsumer constructs a DSC canceller for an exchange
// channel with the given route function.
func NewDynamicSingleConsumer(route RouteFunc) *DynamicSingleConsumer {
	return &DynamicSingleConsumer{cancelled: make(map[string]bool), Route: route}
}

func (c *DynamicSingleConsumer) Cancel(t tag.Tag, consumer int) bool {
	if c.Route(t) != consumer {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[t.Key()] = true
	return true
}

func (c *DynamicSingleConsumer) Cancelled(t tag.Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[t.Key()]
}
