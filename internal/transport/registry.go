package transport

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"
)

// Listen wraps net.Listen with a connection limit (spec.md §4.9's worker
// process accepts at most one connection per peer, so an unbounded
// listener would just let a misbehaving client exhaust file descriptors).
func Listen(network, addr string, maxConns int) (net.Listener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		return l, nil
	}
	return netutil.LimitListener(l, maxConns), nil
}

// peerKey addresses one (local_id, remote_id) directed edge.
type peerKey struct {
	local, remote uint32
}

// Registry is the address book mapping each (local_id, remote_id) peer
// pair to its advertised address and, once dialed, the live Connection
// (spec.md §4.9's closing paragraph: "populated at startup when peers
// publish their addresses ... and all-to-all connectivity is verified
// before the first job runs").
type Registry struct {
	mu    sync.Mutex
	addrs map[peerKey]string
	conns map[peerKey]*Connection
}

// NewRegistry constructs an empty address registry.
func NewRegistry() *Registry {
	return &Registry{
		addrs: make(map[peerKey]string),
		conns: make(map[peerKey]*Connection),
	}
}

// Publish records the address a peer is reachable at.
func (r *Registry) Publish(local, remote uint32, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[peerKey{local, remote}] = addr
}

// Addr looks up a previously published address.
func (r *Registry) Addr(local, remote uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addrs[peerKey{local, remote}]
	return a, ok
}

// Bind records the live Connection for a peer pair once dialed/accepted.
func (r *Registry) Bind(local, remote uint32, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[peerKey{local, remote}] = c
}

// Connection returns the bound Connection for a peer pair, if any.
func (r *Registry) Connection(local, remote uint32) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[peerKey{local, remote}]
	return c, ok
}

// Barrier verifies all-to-all connectivity across numPeers workers before
// the first job runs: every peer must have bound a Connection to every
// other peer. detect is called once per missing edge to attempt a
// connect; it's pluggable so tests can stub it and production code can
// dial for real.
type Barrier struct {
	registry *Registry
	numPeers int
	detect   func(local, remote uint32) error
}

// NewBarrier constructs a Barrier over registry for numPeers workers,
// using detect to establish any (local, remote) edge not yet bound.
func NewBarrier(registry *Registry, numPeers int, detect func(local, remote uint32) error) *Barrier {
	return &Barrier{registry: registry, numPeers: numPeers, detect: detect}
}

// Wait drives detect for every missing directed edge and returns once all
// numPeers*(numPeers-1) edges are bound, or the first detect error.
func (b *Barrier) Wait() error {
	for local := uint32(0); local < uint32(b.numPeers); local++ {
		for remote := uint32(0); remote < uint32(b.numPeers); remote++ {
			if local == remote {
				continue
			}
			if _, ok := b.registry.Connection(local, remote); ok {
				continue
			}
			if err := b.detect(local, remote); err != nil {
				return fmt.Errorf("transport: server-detect barrier failed for peer %d->%d: %w", local, remote, err)
			}
			if _, ok := b.registry.Connection(local, remote); !ok {
				return fmt.Errorf("transport: server-detect barrier: peer %d->%d still unbound after detect", local, remote)
			}
		}
	}
	return nil
}
