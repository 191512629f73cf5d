// Package mmapfile provides a small append-and-grow memory-mapped file
// primitive shared by widtharray and wraptree. Files grow geometrically
// (doubling, floor 64KiB) so that append-heavy workloads amortize the
// mmap/munmap/remap cost, the same growth strategy dittofs' block cache
// uses for its shared mmap log.
package mmapfile

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const growthFactor = 2
const minGrowth = 64 * 1024

// File is a growable memory-mapped region backed by an *os.File. Reads
// through Bytes() are safe from any goroutine; only one writer may call
// Grow/Truncate/Sync at a time (matching the single-writer model of the
// index this backs).
type File struct {
	mu       sync.RWMutex
	f        *os.File
	data     []byte // current mapping, len(data) == mapped capacity, not the logical length
	capacity int64
}

// Open opens or creates path and maps its current contents. An empty or
// newly-created file maps zero bytes; the first Grow call establishes the
// initial mapping.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}
	mf := &File{f: f}
	if fi.Size() > 0 {
		if err := mf.remap(fi.Size()); err != nil {
			f.Close()
			return nil, err
		}
	}
	return mf, nil
}

// Bytes returns the current mapping. Callers must not retain the slice
// across a Grow call, which may remap to a new address.
func (mf *File) Bytes() []byte {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	return mf.data
}

// Capacity returns the current mapped length in bytes.
func (mf *File) Capacity() int64 {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	return mf.capacity
}

// EnsureCapacity grows the backing file and remaps if the current mapping
// is smaller than need. It is a no-op if the file is already large enough.
func (mf *File) EnsureCapacity(need int64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if need <= mf.capacity {
		return nil
	}
	newCap := mf.capacity
	if newCap == 0 {
		newCap = minGrowth
	}
	for newCap < need {
		newCap *= growthFactor
	}
	if err := mf.f.Truncate(newCap); err != nil {
		return fmt.Errorf("mmapfile: truncate to %d: %w", newCap, err)
	}
	return mf.remapLocked(newCap)
}

// remap (re)establishes the mapping at the given size. Caller must not hold
// mf.mu.
func (mf *File) remap(size int64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.remapLocked(size)
}

func (mf *File) remapLocked(size int64) error {
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		mf.data = nil
	}
	if size == 0 {
		mf.capacity = 0
		return nil
	}
	data, err := unix.Mmap(int(mf.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: mmap %d bytes: %w", size, err)
	}
	mf.data = data
	mf.capacity = size
	return nil
}

// Sync flushes dirty mapped pages to disk.
func (mf *File) Sync() error {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if mf.data == nil {
		return nil
	}
	if err := unix.Msync(mf.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmapfile: msync: %w", err)
	}
	return nil
}

// Truncate discards the mapping and resets the backing file to zero bytes,
// used when a rebuild invalidates the whole file.
func (mf *File) Truncate() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		mf.data = nil
		mf.capacity = 0
	}
	if err := mf.f.Truncate(0); err != nil {
		return fmt.Errorf("mmapfile: truncate to 0: %w", err)
	}
	_, err := mf.f.Seek(0, 0)
	return err
}

// Close unmaps and closes the underlying file.
func (mf *File) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		mf.data = nil
	}
	return mf.f.Close()
}
