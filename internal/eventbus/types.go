// Package eventbus implements the out-of-band control-message channel
// (spec.md §4.4): End, Cancel and heartbeat events delivered between peers,
// kept separate from the data plane and applied by the scheduler only at
// operator quiescence points (§4.7, §9's "Event-bus vs. data-plane races").
//
// Adapted from the teacher's internal/eventbus/bus.go, an in-memory,
// FNV-hash-partitioned pub/sub bus. That bus pushed events to subscriber
// callbacks as soon as they arrived; this one instead partitions by tag so
// per-tag ordering is preserved, and exposes a pull API (Drain) because the
// scheduler — not the bus — decides when events are safe to apply.
package eventbus

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// Kind discriminates the three event-bus message types (spec.md §4.4).
type Kind int

const (
	KindEnd Kind = iota
	KindCancel
	KindHeartbeat
)

// Event is one control-plane message. Exactly one of the *Payload fields is
// set, matching Kind.
type Event struct {
	Kind   Kind
	Sender int // originating peer

	EndPayload    *EndPayload
	CancelPayload *CancelPayload
	Heartbeat     *HeartbeatPayload
}

// EndPayload carries one peer's end-of-scope contribution.
type EndPayload struct {
	Tag    tag.Tag
	Sender int
	End    batch.End
}

// CancelPayload carries a consumer-originated cancel signal.
type CancelPayload struct {
	Tag     tag.Tag
	Channel batch.ID
	Port    int // consumer port/peer index the cancel is scoped to
}

// HeartbeatPayload is emitted every heartbeat interval per connection
// (default 5s, spec.md §4.4) to distinguish an idle peer from a crashed one.
type HeartbeatPayload struct {
	ConnID string // correlation id, see internal/transport
	Peer   int
}

// EndEvent builds a KindEnd Event.
func EndEvent(sender int, t tag.Tag, end batch.End) Event {
	return Event{Kind: KindEnd, Sender: sender, EndPayload: &EndPayload{Tag: t, Sender: sender, End: end}}
}

// CancelEvent builds a KindCancel Event.
func CancelEvent(sender int, t tag.Tag, ch batch.ID, port int) Event {
	return Event{Kind: KindCancel, Sender: sender, CancelPayload: &CancelPayload{Tag: t, Channel: ch, Port: port}}
}

// HeartbeatEvent builds a KindHeartbeat Event.
func HeartbeatEvent(sender int, connID string) Event {
	return Event{Kind: KindHeartbeat, Sender: sender, Heartbeat: &HeartbeatPayload{ConnID: connID, Peer: sender}}
}
