// Package peers implements DynPeers, the peer-mask type used to track which
// workers a scope is distributed over (spec.md §3.2).
package peers

import "go.uber.org/atomic"

// denseLimit bounds the bitmap fast path: peer indices 0..denseLimit-1
// fit in the bitmap word. Jobs below this size (the overwhelming majority) never allocate a
// set; jobs with more peers fall back to a map.
const denseLimit = 64

// Mask is a set of peer indices {0..P-1}. The zero value is the empty set.
// Mask is a value type safe to copy; it never mutates in place — every
// operation that grows the set returns a new Mask, mirroring Tag.
type Mask struct {
	bits  uint64       // fast path, peers < denseLimit
	wide  map[int]bool // fallback, peers >= denseLimit
	total int          // declared universe size (P), only for Size semantics
}

// New builds a Mask containing the given peer indices, sized for a job of
// total peers.
func New(total int, members ...int) Mask {
	m := Mask{total: total}
	for _, p := range members {
		m = m.add(p)
	}
	return m
}

// Of is a convenience constructor for a single-peer mask.
func Of(total, peer int) Mask { return New(total, peer) }

func (m Mask) add(p int) Mask {
	if m.total <= denseLimit && p < denseLimit {
		m.bits |= 1 << uint(p)
		return m
	}
	wide := make(map[int]bool, len(m.wide)+1)
	for k := range m.wide {
		wide[k] = true
	}
	// migrate any bits already set in the dense path
	for i := 0; i < denseLimit; i++ {
		if m.bits&(1<<uint(i)) != 0 {
			wide[i] = true
		}
	}
	wide[p] = true
	return Mask{wide: wide, total: m.total}
}

// Contains reports whether peer is a member.
func (m Mask) Contains(peer int) bool {
	if m.wide != nil {
		return m.wide[peer]
	}
	if peer < 0 || peer >= denseLimit {
		return false
	}
	return m.bits&(1<<uint(peer)) != 0
}

// ContainsSource reports whether the producing peer of a batch (src) is a
// member of this mask — used when merging end contributions (§4.1).
func (m Mask) ContainsSource(src int) bool { return m.Contains(src) }

// Union returns the set union of m and other. Total is taken from whichever
// operand declares the larger universe.
func (m Mask) Union(other Mask) Mask {
	total := m.total
	if other.total > total {
		total = other.total
	}
	out := Mask{total: total}
	if m.wide == nil && other.wide == nil && total <= denseLimit {
		out.bits = m.bits | other.bits
		return out
	}
	wide := make(map[int]bool)
	for i := 0; i < denseLimit; i++ {
		if m.bits&(1<<uint(i)) != 0 {
			wide[i] = true
		}
		if other.bits&(1<<uint(i)) != 0 {
			wide[i] = true
		}
	}
	for k := range m.wide {
		wide[k] = true
	}
	for k := range other.wide {
		wide[k] = true
	}
	out.wide = wide
	return out
}

// Size returns the number of member peers.
func (m Mask) Size() int {
	if m.wide != nil {
		return len(m.wide)
	}
	n := 0
	b := m.bits
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

// Equal reports whether two masks contain exactly the same members.
func (m Mask) Equal(other Mask) bool {
	if m.Size() != other.Size() {
		return false
	}
	for _, p := range m.Members() {
		if !other.Contains(p) {
			return false
		}
	}
	return true
}

// Members returns the member peer indices in ascending order.
func (m Mask) Members() []int {
	if m.wide != nil {
		out := make([]int, 0, len(m.wide))
		for k, ok := range m.wide {
			if ok {
				out = append(out, k)
			}
		}
		// simple insertion sort: peer counts are small in practice
		for i := 1; i < len(out); i++ {
			for j := i; j > 0 && out[j-1] > out[j]; j-- {
				out[j-1], out[j] = out[j], out[j-1]
			}
		}
		return out
	}
	out := make([]int, 0, m.Size())
	for i := 0; i < denseLimit; i++ {
		if m.bits&(1<<uint(i)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// Guard is the shared atomic "live peer count" used by §4.8's worker
// lifecycle: the last peer to decrement to zero releases per-job resources.
type Guard struct {
	live atomic.Int64
}

// NewGuard creates a guard initialized to n live peers.
func NewGuard(n int) *Guard {
	g := &Guard{}
	g.live.Store(int64(n))
	return g
}

// Release decrements the live count and reports whether this call was the
// last live peer (i.e. the caller is responsible for releasing per-job
// resources).
func (g *Guard) Release() (last bool) {
	return g.live.Dec() == 0
}

// Live returns the current live peer count.
func (g *Guard) Live() int64 { return g.live.Load() }
