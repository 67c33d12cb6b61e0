package operator

import (
	"sort"
	"testing"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

func seqZero(tag.Tag) uint64 { return 0 }

func TestMapKernelDoublesAndForwardsEnd(t *testing.T) {
	k := MapKernel[int, int]{Fn: func(i int) int { return i * 2 }}
	out := NewSession[int]()
	root := tag.Root()
	in := batch.New(root, 0, 0, []int{1, 2, 3})
	if _, _, err := k.OnReceive(in, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	end := batch.NewEnd[int](root, 0, 1, batch.End{Tag: root, Peers: peers.Of(1, 0)})
	if _, _, err := k.OnReceive(end, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batches := out.Batches(0, seqZero)
	if len(batches) != 1 {
		t.Fatalf("expected one output tag, got %d", len(batches))
	}
	got := batches[0]
	want := []int{2, 4, 6}
	for i, v := range want {
		if got.Data[i] != v {
			t.Fatalf("data[%d] = %d, want %d", i, got.Data[i], v)
		}
	}
	if !got.IsEnd() {
		t.Fatalf("expected forwarded end marker")
	}
}

func TestFilterKernelDropsNonMatching(t *testing.T) {
	k := FilterKernel[int]{Fn: func(i int) bool { return i%2 == 0 }}
	out := NewSession[int]()
	root := tag.Root()
	in := batch.New(root, 0, 0, []int{1, 2, 3, 4, 5})
	k.OnReceive(in, out)
	batches := out.Batches(0, seqZero)
	if len(batches[0].Data) != 2 || batches[0].Data[0] != 2 || batches[0].Data[1] != 4 {
		t.Fatalf("unexpected filter output: %v", batches[0].Data)
	}
}

func TestFlatMapKernelExpands(t *testing.T) {
	k := FlatMapKernel[int, int]{Fn: func(i int) []int { return []int{i, i} }}
	out := NewSession[int]()
	root := tag.Root()
	k.OnReceive(batch.New(root, 0, 0, []int{1, 2}), out)
	batches := out.Batches(0, seqZero)
	if len(batches[0].Data) != 4 {
		t.Fatalf("expected 4 records, got %d", len(batches[0].Data))
	}
}

func TestLimitKernelCancelsAfterN(t *testing.T) {
	var cancelled []string
	k := NewLimitKernel[int](2, func(tg tag.Tag) { cancelled = append(cancelled, tg.Key()) })
	out := NewSession[int]()
	root := tag.Root()
	k.OnReceive(batch.New(root, 0, 0, []int{1, 2, 3, 4}), out)
	batches := out.Batches(0, seqZero)
	if len(batches[0].Data) != 2 {
		t.Fatalf("expected limit to forward only 2 records, got %v", batches[0].Data)
	}
	if len(cancelled) != 1 {
		t.Fatalf("expected exactly one early-stop signal, got %d", len(cancelled))
	}

	// A second batch for the same (already cancelled) scope must not forward
	// more data, and must not fire onEarlyStop again.
	out2 := NewSession[int]()
	k.OnReceive(batch.New(root, 0, 1, []int{5, 6}), out2)
	if len(cancelled) != 1 {
		t.Fatalf("onEarlyStop should fire only once per scope")
	}
}

func TestSourceKernelEmitsDataThenSingleEnd(t *testing.T) {
	src := NewSliceSource([]int{1, 2, 3})
	k := NewSourceKernel[int](src, 0, 2)

	b1, ok := k.Fire()
	if !ok || b1.IsEnd() || len(b1.Data) != 2 {
		t.Fatalf("expected first batch of 2 data records, got %+v ok=%v", b1, ok)
	}
	b2, ok := k.Fire()
	if !ok || b2.IsEnd() || len(b2.Data) != 1 {
		t.Fatalf("expected second batch of 1 data record, got %+v ok=%v", b2, ok)
	}
	b3, ok := k.Fire()
	if !ok || !b3.IsEnd() {
		t.Fatalf("expected terminal end batch, got %+v ok=%v", b3, ok)
	}
	if _, ok := k.Fire(); ok {
		t.Fatalf("source kernel must not fire again after its end batch")
	}
}

func TestSourceKernelEmptySourceYieldsOnlyEnd(t *testing.T) {
	k := NewSourceKernel[int](NewSliceSource[int](nil), 0, 4)
	b, ok := k.Fire()
	if !ok || !b.IsEnd() || len(b.Data) != 0 {
		t.Fatalf("empty source must yield exactly one dataless end, got %+v ok=%v", b, ok)
	}
	if _, ok := k.Fire(); ok {
		t.Fatalf("source kernel must not fire again after its end batch")
	}
}

func TestFoldKernelReducesOnChildEnd(t *testing.T) {
	k := NewFoldKernel[int, int](func(vals []int) int {
		sum := 0
		for _, v := range vals {
			sum += v
		}
		return sum
	})
	out := NewSession[int]()
	child := tag.Root().Inherit(0)
	k.OnReceive(batch.New(child, 0, 0, []int{1, 2, 3}), out)
	k.OnReceive(batch.NewEnd[int](child, 0, 1, batch.End{Tag: child}), out)

	batches := out.Batches(0, seqZero)
	if len(batches) != 1 {
		t.Fatalf("expected one emitted batch at the parent tag, got %d", len(batches))
	}
	if !batches[0].Tag.Equal(tag.Root()) {
		t.Fatalf("fold must emit at the parent tag, got %v", batches[0].Tag)
	}
	if batches[0].Data[0] != 6 {
		t.Fatalf("expected reduced sum 6, got %d", batches[0].Data[0])
	}
}

func TestUnfoldKernelEntersChildPerRecord(t *testing.T) {
	k := UnfoldKernel[int, int]{Fn: func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}}
	out := NewSession[int]()
	root := tag.Root()
	k.OnReceive(batch.New(root, 0, 0, []int{2, 3}), out)

	batches := out.Batches(0, seqZero)
	if len(batches) != 2 {
		t.Fatalf("expected one child scope per input record, got %d", len(batches))
	}
	for _, b := range batches {
		if b.Tag.IsRoot() {
			t.Fatalf("unfold output must not land on the parent tag")
		}
		if !b.IsEnd() {
			t.Fatalf("each child scope must close with its own end")
		}
	}
}

func TestJoinInner(t *testing.T) {
	type row struct {
		key string
		val int
	}
	k := NewJoinKernel[row, row, [2]int](JoinInner, func(r row) string { return r.key }, func(r row) string { return r.key })
	k.Combine = func(l, r row) [2]int { return [2]int{l.val, r.val} }

	out := NewSession[[2]int]()
	root := tag.Root()
	lp := JoinLeftPort[row, row, [2]int]{Join: k}
	rp := JoinRightPort[row, row, [2]int]{Join: k}

	lp.OnReceive(batch.New(root, 0, 0, []row{{"a", 1}, {"b", 2}}), out)
	lp.OnReceive(batch.NewEnd[row](root, 0, 1, batch.End{Tag: root, Peers: peers.Of(1, 0)}), out)
	rp.OnReceive(batch.New(root, 0, 0, []row{{"a", 10}, {"c", 30}}), out)
	rp.OnReceive(batch.NewEnd[row](root, 0, 1, batch.End{Tag: root, Peers: peers.Of(1, 0)}), out)

	batches := out.Batches(0, seqZero)
	if len(batches) != 1 {
		t.Fatalf("expected join output on a single tag, got %d", len(batches))
	}
	if len(batches[0].Data) != 1 || batches[0].Data[0] != ([2]int{1, 10}) {
		t.Fatalf("expected single matched pair [1,10], got %v", batches[0].Data)
	}
	if !batches[0].IsEnd() {
		t.Fatalf("join must emit an end once both sides have ended")
	}
}

func TestJoinAntiKeepsUnmatchedLeftOnly(t *testing.T) {
	type row struct {
		key string
		val int
	}
	k := NewJoinKernel[row, row, int](JoinAnti, func(r row) string { return r.key }, func(r row) string { return r.key })
	k.LeftOnly = func(l row) int { return l.val }

	out := NewSession[int]()
	root := tag.Root()
	lp := JoinLeftPort[row, row, int]{Join: k}
	rp := JoinRightPort[row, row, int]{Join: k}

	lp.OnReceive(batch.New(root, 0, 0, []row{{"a", 1}, {"b", 2}}), out)
	lp.OnReceive(batch.NewEnd[row](root, 0, 1, batch.End{Tag: root}), out)
	rp.OnReceive(batch.New(root, 0, 0, []row{{"a", 10}}), out)
	rp.OnReceive(batch.NewEnd[row](root, 0, 1, batch.End{Tag: root}), out)

	batches := out.Batches(0, seqZero)
	if len(batches[0].Data) != 1 || batches[0].Data[0] != 2 {
		t.Fatalf("anti-join should keep only unmatched left rows, got %v", batches[0].Data)
	}
}

func TestApplyKernelCountIdempotence(t *testing.T) {
	k := ApplyKernel[int, int, [2]int]{
		Subtask: func(src int) int { return src + 1 }, // count of [0..=src]
		Combine: func(src, count int) [2]int { return [2]int{src, count} },
	}
	out := NewSession[[2]int]()
	root := tag.Root()
	data := make([]int, 101)
	for i := range data {
		data[i] = i
	}
	k.OnReceive(batch.New(root, 0, 0, data), out)

	batches := out.Batches(0, seqZero)
	got := batches[0].Data
	sort.Slice(got, func(i, j int) bool { return got[i][0] < got[j][0] })
	for i, pair := range got {
		if pair != ([2]int{i, i + 1}) {
			t.Fatalf("pair %d = %v, want [%d,%d]", i, pair, i, i+1)
		}
	}
}
