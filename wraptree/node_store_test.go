package wraptree

import (
	"path/filepath"
	"testing"
)

// Reopening mid-growth-step must not let the allocator infer a padded slot
// count from the backing file's mmap capacity: NodeSize equals mmapfile's
// minimum growth, so a 3rd alloc grows the file to hold 4 slots, and a
// naive reopen would report count() == 4 instead of the true 3.
func TestNodeStoreCountSurvivesReopenMidGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.dat")
	s, err := openNodeStore(path)
	if err != nil {
		t.Fatalf("openNodeStore: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.alloc(); err != nil {
			t.Fatalf("alloc: %v", err)
		}
	}
	if got := s.count(); got != 3 {
		t.Fatalf("count() before reopen = %d, want 3", got)
	}
	if err := s.sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := openNodeStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.close()
	if got := s2.count(); got != 0 {
		t.Fatalf("count() immediately after reopen = %d, want 0 (not yet restored)", got)
	}
	if err := s2.restoreCount(3); err != nil {
		t.Fatalf("restoreCount: %v", err)
	}
	if got := s2.count(); got != 3 {
		t.Fatalf("count() after restoreCount = %d, want 3", got)
	}

	ref, err := s2.alloc()
	if err != nil {
		t.Fatalf("alloc after restore: %v", err)
	}
	if ref != 3 {
		t.Fatalf("alloc after restore returned ref %d, want 3 (must not skip or reuse a slot)", ref)
	}
}

func TestNodeStoreRestoreCountRejectsBeyondCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.dat")
	s, err := openNodeStore(path)
	if err != nil {
		t.Fatalf("openNodeStore: %v", err)
	}
	defer s.close()
	if _, err := s.alloc(); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := s.restoreCount(1000); err == nil {
		t.Fatalf("restoreCount should reject a count the file was never grown to hold")
	}
}
