package widtharray

import (
	"path/filepath"
	"testing"
)

func TestAppendAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widths.dat")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	widths := []uint16{0, 1, 80, 65535, 10, 160}
	for _, w := range widths {
		if err := a.Append(w); err != nil {
			t.Fatalf("Append(%d): %v", w, err)
		}
	}

	if got := a.Len(); got != uint64(len(widths)) {
		t.Fatalf("Len() = %d, want %d", got, len(widths))
	}

	for i, want := range widths {
		got, err := a.Get(uint64(i))
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("Get(%d) = %d, want %d", i, got, want)
		}
	}

	if _, err := a.Get(uint64(len(widths))); err == nil {
		t.Errorf("Get(len) should fail")
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widths.dat")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := uint16(0); i < 5000; i++ {
		if err := a.Append(i); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := a.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if err := b.Restore(5000); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := b.Len(); got != 5000 {
		t.Fatalf("reopened Len() = %d, want 5000", got)
	}
	for i := uint16(0); i < 5000; i++ {
		got, err := b.Get(uint64(i))
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got != i {
			t.Errorf("Get(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widths.dat")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	for i := uint16(0); i < 10; i++ {
		a.Append(i)
	}
	if err := a.Truncate(); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := a.Len(); got != 0 {
		t.Fatalf("Len() after truncate = %d, want 0", got)
	}
	if err := a.Append(42); err != nil {
		t.Fatalf("Append after truncate: %v", err)
	}
	got, err := a.Get(0)
	if err != nil || got != 42 {
		t.Fatalf("Get(0) after truncate+append = %d, %v", got, err)
	}
}
