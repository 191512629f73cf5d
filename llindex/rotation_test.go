package llindex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Property 7 — rotation: after the source's ctime changes or it shrinks,
// reopening rebuilds and the result matches a fresh index over the
// post-rotation content.

func TestRotationOnCtimeChange(t *testing.T) {
	// Equal total length for old and new content isolates ctime-based
	// rotation detection from the separate shrinkage path exercised below.
	oldContent := strings.Repeat("a", 50) + "\n"
	newContent := strings.Repeat("b", 50) + "\n"
	sourcePath := writeSource(t, oldContent)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	idx, err := Open(sourcePath, WithCacheDir(cacheDir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := idx.Len(); got != 1 {
		t.Fatalf("Len() before rotation = %d, want 1", got)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := os.WriteFile(sourcePath, []byte(newContent), 0o644); err != nil {
		t.Fatalf("rewrite source: %v", err)
	}
	// Nudge ctime explicitly in case the filesystem's write-time
	// granularity collapsed the rewrite into the same ctime as the open.
	if err := os.Chmod(sourcePath, 0o640); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.Chmod(sourcePath, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	idx2, err := Open(sourcePath, WithCacheDir(cacheDir))
	if err != nil {
		t.Fatalf("reopen after rotation: %v", err)
	}
	defer idx2.Close()

	if got := idx2.Len(); got != 1 {
		t.Fatalf("Len() after rotation = %d, want 1", got)
	}
	got, err := idx2.Get(0)
	if err != nil {
		t.Fatalf("Get(0) after rotation: %v", err)
	}
	want := strings.TrimSuffix(newContent, "\n")
	if got != want {
		t.Fatalf("Get(0) after rotation = %q, want %q", got, want)
	}

	baselineCache := filepath.Join(t.TempDir(), "cache-baseline")
	freshPath := writeSource(t, newContent)
	fresh, err := Open(freshPath, WithCacheDir(baselineCache))
	if err != nil {
		t.Fatalf("Open fresh baseline: %v", err)
	}
	defer fresh.Close()
	if idx2.RowsAtWidth(80) != fresh.RowsAtWidth(80) {
		t.Fatalf("rotated RowsAtWidth(80) = %d, fresh baseline = %d", idx2.RowsAtWidth(80), fresh.RowsAtWidth(80))
	}
}

func TestRotationOnShrink(t *testing.T) {
	var content string
	for i := 0; i < 100; i++ {
		content += "a line of log output\n"
	}
	sourcePath := writeSource(t, content)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	idx, err := Open(sourcePath, WithCacheDir(cacheDir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := idx.Len(); got != 100 {
		t.Fatalf("Len() = %d, want 100", got)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	shrunk := "only one line now\n"
	if err := os.WriteFile(sourcePath, []byte(shrunk), 0o644); err != nil {
		t.Fatalf("shrink source: %v", err)
	}

	idx2, err := Open(sourcePath, WithCacheDir(cacheDir))
	if err != nil {
		t.Fatalf("reopen after shrink: %v", err)
	}
	defer idx2.Close()

	if got := idx2.Len(); got != 1 {
		t.Fatalf("Len() after shrink = %d, want 1", got)
	}
	got, err := idx2.Get(0)
	if err != nil {
		t.Fatalf("Get(0) after shrink: %v", err)
	}
	if got != "only one line now" {
		t.Fatalf("Get(0) after shrink = %q, want %q", got, "only one line now")
	}
}
