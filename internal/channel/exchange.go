package channel

import (
	"fmt"
	"sync"

	"github.com/serialx/hashring"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

// KeyFunc extracts the partition key for a record, used by Exchange to pick
// a target peer — the generalization of the teacher's
// internal/task/dispatch_strategy.go DispatchStrategy from a fixed flow
// 5-tuple to an arbitrary record field.
type KeyFunc[T any] func(record T) string

// Exchange is the 1→N, all-peers channel kind with hash routing and
// sync-by-sender end policy (spec.md §4.3). Each sender maintains one
// outgoing buffer (batch_size, pooled up to batch_capacity) per target
// peer; a push to a full, pool-exhausted target yields Blocked.
type Exchange[T any] struct {
	id      ID
	self    int // this sender's peer index
	targets []int
	ring    *hashring.HashRing
	key     KeyFunc[T]

	seq *sequencer

	mu      sync.Mutex
	pending map[int][]T // target -> buffered records not yet flushed
	retry   map[int][]T // target -> records that lost the acquire race on a prior Blocked push, in order
	pool    *bufferPool[T]
	sent    map[string]map[int]uint64 // tag key -> target -> total_send

	out map[int]chan batch.Batch[T] // in-process delivery per target; remote targets are wired by internal/transport

	endAcc map[string]batch.End // tag key -> accumulated end contributions, consumer side

	dsc *DynamicSingleConsumer
}

// ExchangeConfig bundles the construction parameters spec.md §6.1 exposes
// per job (batch_size/batch_capacity) plus the topology this channel needs.
type ExchangeConfig[T any] struct {
	ID            ID
	Self          int
	Targets       []int // all peer indices participating in this scope, including Self
	Key           KeyFunc[T]
	BatchSize     int
	BatchCapacity int
}

// NewExchange builds an exchange channel instance for one sender.
func NewExchange[T any](cfg ExchangeConfig[T]) *Exchange[T] {
	nodes := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		nodes[i] = fmt.Sprintf("peer-%d", t)
	}
	e := &Exchange[T]{
		id:      cfg.ID,
		self:    cfg.Self,
		targets: cfg.Targets,
		ring:    hashring.New(nodes),
		key:     cfg.Key,
		seq:     newSequencer(),
		pending: make(map[int][]T),
		retry:   make(map[int][]T),
		pool:    newBufferPool[T](cfg.BatchSize, cfg.BatchCapacity),
		sent:    make(map[string]map[int]uint64),
		out:     make(map[int]chan batch.Batch[T], len(cfg.Targets)),
		endAcc:  make(map[string]batch.End),
	}
	for _, t := range cfg.Targets {
		e.out[t] = make(chan batch.Batch[T], cfg.BatchCapacity)
	}
	e.dsc = NewDynamicSingleConsumer(func(tg tag.Tag) int {
		return e.routeTag(tg)
	})
	return e
}

// routeTag maps a tag's current scope element to a target peer via the
// consistent-hash ring, the same "same logical key always lands on the
// same worker" property the teacher's FlowHashStrategy gives per-flow.
func (e *Exchange[T]) routeTag(tg tag.Tag) int {
	key := tg.Key()
	if !tg.IsRoot() {
		key = fmt.Sprintf("%d", tg.Current())
	}
	node, ok := e.ring.GetNode(key)
	if !ok {
		return e.targets[0]
	}
	var peer int
	fmt.Sscanf(node, "peer-%d", &peer)
	return peer
}

func (e *Exchange[T]) routeRecord(r T) int {
	node, ok := e.ring.GetNode(e.key(r))
	if !ok {
		return e.targets[0]
	}
	var peer int
	fmt.Sscanf(node, "peer-%d", &peer)
	return peer
}

// Canceller exposes the DSC listener: a cancel for tag t from consumer c is
// only effective if c is the peer the hash ring currently routes t to.
func (e *Exchange[T]) Canceller() *DynamicSingleConsumer { return e.dsc }

// OutputFor returns the in-process Receiver for a given target peer —
// wired up by the worker when both sender and receiver live in the same
// process (spec.md §5 "Cross-worker (same process)"); cross-process
// delivery instead routes pending/flushed batches through
// internal/transport.
func (e *Exchange[T]) OutputFor(target int) Receiver[T] {
	return receiverFunc[T](func() (batch.Batch[T], bool) {
		b, ok := <-e.out[target]
		return b, ok
	})
}

type receiverFunc[T any] func() (batch.Batch[T], bool)

func (f receiverFunc[T]) Recv() (batch.Batch[T], bool) { return f() }

// Push partitions each record in b.Data by key and appends it to the
// relevant target's pending buffer, flushing any buffer that reaches
// batch_size. Records within a batch preserve producer order per target;
// records across batches do not (spec.md §4.3).
//
// A record whose target has no free pooled buffer is never dropped: it is
// retained in e.retry and resent — ahead of anything pushed afterwards —
// the next time Push is called for this exchange, once a buffer-return
// event has freed pool capacity. Blocked therefore means "retained, will
// be resent", never "discarded" (spec.md §8 Exchange-completeness).
func (e *Exchange[T]) Push(b batch.Batch[T]) (PushResult, error) {
	if e.dsc.Cancelled(b.Tag) && !b.IsEnd() {
		return Accepted, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if b.IsEnd() {
		return e.emitEndLocked(b)
	}

	blocked, err := e.drainRetryLocked(b.Tag)
	if err != nil {
		return Blocked, err
	}

	for _, rec := range b.Data {
		target := e.routeRecord(rec)
		if len(e.retry[target]) > 0 {
			// A record for this target is already waiting on a buffer;
			// queue behind it rather than race ahead out of order.
			e.retry[target] = append(e.retry[target], rec)
			blocked = true
			continue
		}
		buf, ok := e.acquireOrExtendLocked(target)
		if !ok {
			e.retry[target] = append(e.retry[target], rec)
			blocked = true
			continue
		}
		buf = append(buf, rec)
		e.pending[target] = buf
		if len(buf) >= e.pool.batchSize {
			if err := e.flushTargetLocked(target, b.Tag); err != nil {
				return Blocked, err
			}
		}
	}
	if blocked {
		return Blocked, nil
	}
	return Accepted, nil
}

// drainRetryLocked retries records retained by a prior Blocked push. Must
// be called with e.mu held. Preserves each target's original record order
// by always resolving e.retry before any record in the current push.
func (e *Exchange[T]) drainRetryLocked(tg tag.Tag) (blocked bool, err error) {
	for target, recs := range e.retry {
		if len(recs) == 0 {
			delete(e.retry, target)
			continue
		}
		buf, ok := e.acquireOrExtendLocked(target)
		if !ok {
			blocked = true
			continue
		}
		buf = append(buf, recs...)
		e.pending[target] = buf
		delete(e.retry, target)
		if len(buf) >= e.pool.batchSize {
			if err := e.flushTargetLocked(target, tg); err != nil {
				return true, err
			}
		}
	}
	return blocked, nil
}

func (e *Exchange[T]) acquireOrExtendLocked(target int) ([]T, bool) {
	if existing, ok := e.pending[target]; ok {
		return existing, true
	}
	buf, ok := e.pool.acquire()
	if !ok {
		return nil, false
	}
	return buf, true
}

func (e *Exchange[T]) flushTargetLocked(target int, tg tag.Tag) error {
	buf, ok := e.pending[target]
	if !ok || len(buf) == 0 {
		return nil
	}
	delete(e.pending, target)

	seq := e.seq.nextSeq(tg)
	out := batch.New(tg, e.self, seq, buf)
	e.recordSentLocked(tg, target, uint64(len(buf)))

	select {
	case e.out[target] <- out:
	default:
		// local delivery backpressure: caller already holds the pool
		// slot, so block until the consumer drains rather than drop.
		e.out[target] <- out
	}
	e.pool.release(buf)
	return nil
}

func (e *Exchange[T]) recordSentLocked(tg tag.Tag, target int, n uint64) {
	key := tg.Key()
	m, ok := e.sent[key]
	if !ok {
		m = make(map[int]uint64)
		e.sent[key] = m
	}
	m[target] += n
}

// Flush forces every target's pending buffer for t out immediately — used
// before emitting an end for t, matching spec.md §4.3: "when the producer
// would emit an end for tag t, it first flushes all per-target buffers for
// t".
func (e *Exchange[T]) Flush(t tag.Tag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for target := range e.pending {
		if err := e.flushTargetLocked(target, t); err != nil {
			return err
		}
	}
	return nil
}

// emitEndLocked flushes, then sends a per-target terminal batch carrying
// this sender's local end contribution (TotalSend = what this sender sent
// to that target). Must be called with e.mu held.
func (e *Exchange[T]) emitEndLocked(b batch.Batch[T]) (PushResult, error) {
	// Data retained by a prior Blocked push must reach every target before
	// the end batch does; if any of it is still waiting on a buffer, this
	// end push is itself Blocked and must be retried rather than racing
	// ahead of its own preceding data.
	if blocked, err := e.drainRetryLocked(b.Tag); err != nil {
		return Blocked, err
	} else if blocked {
		return Blocked, nil
	}
	for target := range e.pending {
		if err := e.flushTargetLocked(target, b.Tag); err != nil {
			return Blocked, err
		}
	}
	key := b.Tag.Key()
	for _, target := range e.targets {
		end := batch.End{
			Tag:             b.Tag,
			Peers:           peers.Of(len(e.targets), e.self),
			GlobalTotalSend: b.End.GlobalTotalSend,
			TotalSend:       e.sent[key][target],
		}
		seq := e.seq.nextSeq(b.Tag)
		e.out[target] <- batch.NewEnd[T](b.Tag, e.self, seq, end)
	}
	delete(e.sent, key)
	return Accepted, nil
}

// MergeEnd accumulates one sender's end contribution on the consumer side
// and reports the merged end once every peer declared in the scope has
// contributed (sync-by-sender policy, spec.md §4.1).
func (e *Exchange[T]) MergeEnd(declared peers.Mask, contribution batch.End) (batch.End, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := contribution.Tag.Key()
	acc, ok := e.endAcc[key]
	if !ok {
		acc = batch.End{Tag: contribution.Tag}
	}
	acc = acc.Merge(contribution)
	if acc.Peers.Size() >= declared.Size() {
		delete(e.endAcc, key)
		return acc, true
	}
	e.endAcc[key] = acc
	return batch.End{}, false
}

// Stats reports buffer-pool occupancy for diagnostics.
func (e *Exchange[T]) Stats() Stats { return e.pool.stats() }

func (e *Exchange[T]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.out {
		close(ch)
	}
	return nil
}
