package wraptree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"logloglog/wrapmath"
)

// bruteForce computes rows_at_width, locate and row_of directly from a
// slice of widths, giving a ground truth to check the tree against.
type bruteForce struct {
	widths []uint16
}

func (b bruteForce) rowsAtWidth(W uint16) uint64 {
	var total uint64
	for _, w := range b.widths {
		total += wrapmath.Rows(w, W)
	}
	return total
}

func (b bruteForce) rowOf(W uint16, line uint64) uint64 {
	var total uint64
	for i := uint64(0); i < line; i++ {
		total += wrapmath.Rows(b.widths[i], W)
	}
	return total
}

func (b bruteForce) locate(W uint16, targetRow uint64) (uint64, uint64) {
	var row uint64
	for i, w := range b.widths {
		r := wrapmath.Rows(w, W)
		if targetRow < row+r {
			return uint64(i), targetRow - row
		}
		row += r
	}
	return 0, 0
}

func openTestTree(t *testing.T) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.dat")
	tr, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestAppendAndTotalLines(t *testing.T) {
	tr := openTestTree(t)
	for i := 0; i < 10000; i++ {
		if err := tr.Append(uint16(i % 200)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if got := tr.TotalLines(); got != 10000 {
		t.Fatalf("TotalLines() = %d, want 10000", got)
	}
}

func TestRowsAtWidthMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := openTestTree(t)
	var bf bruteForce
	n := 5000
	for i := 0; i < n; i++ {
		w := uint16(rng.Intn(400))
		bf.widths = append(bf.widths, w)
		if err := tr.Append(w); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	for _, W := range []uint16{1, 7, 40, 80, 120, 65535} {
		got := tr.RowsAtWidth(W)
		want := bf.rowsAtWidth(W)
		if got != want {
			t.Errorf("RowsAtWidth(%d) = %d, want %d", W, got, want)
		}
	}
}

func TestLocateAndRowOfRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tr := openTestTree(t)
	var bf bruteForce
	n := FL*3 + 17 // force a couple of leaf seals and an internal node
	for i := 0; i < n; i++ {
		w := uint16(rng.Intn(300))
		bf.widths = append(bf.widths, w)
		if err := tr.Append(w); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	for _, W := range []uint16{1, 20, 80, 200} {
		// Locate/RowOf are checked on their own, so bound the sampled rows
		// using the brute-force total rather than tr.RowsAtWidth.
		total := bf.rowsAtWidth(W)
		for _, row := range []uint64{0, 1, total / 2, total - 1} {
			wantLine, wantResidual := bf.locate(W, row)
			gotLine, gotResidual, err := tr.Locate(W, row)
			if err != nil {
				t.Fatalf("Locate(%d, %d): %v", W, row, err)
			}
			if gotLine != wantLine || gotResidual != wantResidual {
				t.Errorf("Locate(%d, %d) = (%d, %d), want (%d, %d)", W, row, gotLine, gotResidual, wantLine, wantResidual)
			}
		}

		for _, line := range []uint64{0, 1, uint64(n / 2), uint64(n - 1)} {
			want := bf.rowOf(W, line)
			got, err := tr.RowOf(W, line)
			if err != nil {
				t.Fatalf("RowOf(%d, %d): %v", W, line, err)
			}
			if got != want {
				t.Errorf("RowOf(%d, %d) = %d, want %d", W, line, got, want)
			}
		}
	}
}

func TestMonotonicRowOf(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tr := openTestTree(t)
	n := 3000
	for i := 0; i < n; i++ {
		if err := tr.Append(uint16(rng.Intn(500))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	const W = 80
	prev, err := tr.RowOf(W, 0)
	if err != nil {
		t.Fatalf("RowOf(0): %v", err)
	}
	for line := uint64(1); line < uint64(n); line++ {
		cur, err := tr.RowOf(W, line)
		if err != nil {
			t.Fatalf("RowOf(%d): %v", line, err)
		}
		if cur < prev {
			t.Fatalf("RowOf not monotonic at line %d: %d < %d", line, cur, prev)
		}
		prev = cur
	}
}

func TestRestoreAfterReopen(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	path := filepath.Join(t.TempDir(), "nodes.dat")
	tr, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := FL*2 + 500
	var widths []uint16
	for i := 0; i < n; i++ {
		w := uint16(rng.Intn(300))
		widths = append(widths, w)
		if err := tr.Append(w); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := tr.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rootRef, height, total, nodeCount := tr.RootRef(), tr.Height(), tr.TotalLines(), tr.NodeCount()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tr2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tr2.Close()
	if err := tr2.Restore(rootRef, height, total, nodeCount); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tr2.TotalLines() != uint64(n) {
		t.Fatalf("TotalLines after restore = %d, want %d", tr2.TotalLines(), n)
	}

	const W = 80
	var bf bruteForce
	bf.widths = widths
	if got, want := tr2.RowsAtWidth(W), bf.rowsAtWidth(W); got != want {
		t.Errorf("RowsAtWidth after restore = %d, want %d", got, want)
	}

	for i := 0; i < 20; i++ {
		if err := tr2.Append(uint16(rng.Intn(300))); err != nil {
			t.Fatalf("Append after restore: %v", err)
		}
	}
	if tr2.TotalLines() != uint64(n+20) {
		t.Fatalf("TotalLines after post-restore append = %d, want %d", tr2.TotalLines(), n+20)
	}
}

func TestLocateOutOfRange(t *testing.T) {
	tr := openTestTree(t)
	for i := 0; i < 10; i++ {
		tr.Append(uint16(i))
	}
	total := tr.RowsAtWidth(80)
	if _, _, err := tr.Locate(80, total); err == nil {
		t.Errorf("Locate at total rows should be out of range")
	}
	if _, err := tr.RowOf(80, 10); err == nil {
		t.Errorf("RowOf at line count should be out of range")
	}
}
