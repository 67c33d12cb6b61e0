package peers

import "testing"

func TestDenseMaskBasics(t *testing.T) {
	m := New(8, 1, 3, 5)
	if m.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", m.Size())
	}
	if !m.Contains(1) || !m.Contains(3) || !m.Contains(5) {
		t.Fatalf("expected members missing")
	}
	if m.Contains(2) {
		t.Fatalf("peer 2 should not be a member")
	}
}

func TestWideMaskFallback(t *testing.T) {
	m := New(200, 0, 100, 199)
	if m.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", m.Size())
	}
	if !m.Contains(100) || !m.Contains(199) {
		t.Fatalf("expected wide members missing")
	}
}

func TestUnion(t *testing.T) {
	a := New(8, 0, 1)
	b := New(8, 1, 2)
	u := a.Union(b)
	if u.Size() != 3 {
		t.Fatalf("Union size = %d, want 3", u.Size())
	}
	for _, p := range []int{0, 1, 2} {
		if !u.Contains(p) {
			t.Fatalf("union missing peer %d", p)
		}
	}
}

func TestEqualAndMembers(t *testing.T) {
	a := New(8, 2, 0, 1)
	b := New(8, 0, 1, 2)
	if !a.Equal(b) {
		t.Fatalf("a and b should be equal regardless of insertion order")
	}
	got := a.Members()
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("Members() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Members() = %v, want %v", got, want)
		}
	}
}

func TestGuardLastPeerRelease(t *testing.T) {
	g := NewGuard(3)
	if g.Release() {
		t.Fatalf("first release should not be last")
	}
	if g.Release() {
		t.Fatalf("second release should not be last")
	}
	if !g.Release() {
		t.Fatalf("third release should be last")
	}
	if g.Live() != 0 {
		t.Fatalf("Live() = %d, want 0", g.Live())
	}
}
