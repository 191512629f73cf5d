package histogram

import (
	"math/rand/v2"
	"testing"
)

func bruteRows(widths []uint16, W uint16) uint64 {
	var total uint64
	for _, w := range widths {
		r := uint64(w) / uint64(W)
		if uint64(w)%uint64(W) != 0 {
			r++
		}
		if r < 1 {
			r = 1
		}
		total += r
	}
	return total
}

func TestExactBelowMaxWidth(t *testing.T) {
	widths := []uint16{0, 1, 5, 31, 32, 33, 63, 64, 100, 5000}
	var h H
	for _, w := range widths {
		h.Add(w)
	}
	maxW := uint16(0)
	for _, w := range widths {
		if w > maxW {
			maxW = w
		}
	}
	// W above the upper edge of the bucket holding the widest line: every
	// bucket touched is either exact-single or fully below W, so Rows must
	// match brute force.
	W := uint16(bucketHi[bucketOf(maxW)] + 1)
	if !h.ExactForWidth(W) {
		t.Fatalf("expected ExactForWidth(%d) to be true", W)
	}
	got := h.Rows(W)
	want := bruteRows(widths, W)
	if got != want {
		t.Errorf("Rows(%d) = %d, want %d", W, got, want)
	}
}

func TestExactForSmallWidths(t *testing.T) {
	// All widths land in exact single-width buckets (< NumExact): Rows
	// must be exact for every W, however narrow.
	var widths []uint16
	for w := uint16(0); w < NumExact; w++ {
		widths = append(widths, w)
	}
	var h H
	for _, w := range widths {
		h.Add(w)
	}
	for W := uint16(1); W < NumExact; W++ {
		got := h.Rows(W)
		want := bruteRows(widths, W)
		if got != want {
			t.Errorf("Rows(%d) = %d, want %d", W, got, want)
		}
	}
}

func TestBoundedErrorForRangeBuckets(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var widths []uint16
	for i := 0; i < 2000; i++ {
		widths = append(widths, uint16(rng.IntN(65536)))
	}
	var h H
	for _, w := range widths {
		h.Add(w)
	}
	for _, W := range []uint16{1, 2, 7, 40, 80, 200} {
		got := h.Rows(W)
		want := bruteRows(widths, W)
		if got > want {
			t.Errorf("Rows(%d) = %d must not exceed brute-force %d", W, got, want)
		}
		if want-got >= uint64(len(widths)) {
			t.Errorf("Rows(%d) error %d too large (>= population size)", W, want-got)
		}
	}
}

func TestMergeCommutative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	var all, left, right H
	for i := 0; i < 500; i++ {
		w := uint16(rng.IntN(65536))
		all.Add(w)
		if i%2 == 0 {
			left.Add(w)
		} else {
			right.Add(w)
		}
	}
	merged := left
	merged.AddHist(right)
	for _, W := range []uint16{1, 80, 40000} {
		if merged.Rows(W) != all.Rows(W) {
			t.Errorf("merged.Rows(%d) = %d, want %d", W, merged.Rows(W), all.Rows(W))
		}
	}
	if merged.Count() != all.Count() {
		t.Errorf("merged.Count() = %d, want %d", merged.Count(), all.Count())
	}
}

func TestSubHistUndoesAddHist(t *testing.T) {
	var base, delta H
	for _, w := range []uint16{1, 2, 3, 100, 200} {
		base.Add(w)
	}
	for _, w := range []uint16{5, 6, 7} {
		delta.Add(w)
	}
	sum := base
	sum.AddHist(delta)
	sum.SubHist(delta)
	if sum.Count() != base.Count() {
		t.Errorf("Count after add+sub = %d, want %d", sum.Count(), base.Count())
	}
	if sum.Rows(80) != base.Rows(80) {
		t.Errorf("Rows(80) after add+sub = %d, want %d", sum.Rows(80), base.Rows(80))
	}
}

func TestZeroWidthAlwaysOneRow(t *testing.T) {
	var h H
	h.Add(0)
	if got := h.Rows(1); got != 1 {
		t.Errorf("Rows(1) for a zero-width line = %d, want 1", got)
	}
	if got := h.Rows(65535); got != 1 {
		t.Errorf("Rows(65535) for a zero-width line = %d, want 1", got)
	}
}
