// Package widtharray implements an append-only fixed-record store mapping
// logical line number to unwrapped display width. It generalizes a
// fixed-4KiB-page, WriteAt/ReadAt pager to a single memory-mapped,
// geometrically-growing file of 2-byte records.
package widtharray

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"logloglog/internal/mmapfile"
)

const recordSize = 2

// Array is an append-only mmap'd sequence of uint16 line widths.
type Array struct {
	mf    *mmapfile.File
	total atomic.Uint64 // published length, in records
}

// Open opens or creates the width array file at path. The backing file's
// mapped capacity is padded well beyond the logical length by mmapfile's
// geometric growth, so Open cannot infer the logical length from it; a
// caller reopening an existing array must call Restore with the length it
// persisted elsewhere (as llindex does from its metadata sidecar).
func Open(path string) (*Array, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("widtharray: %w", err)
	}
	return &Array{mf: mf}, nil
}

// Restore sets the array's logical length after reopening an existing file,
// per a length persisted by the caller. It fails if total exceeds what the
// backing file could actually hold, which would indicate a truncated or
// otherwise inconsistent file.
func (a *Array) Restore(total uint64) error {
	if int64(total)*recordSize > a.mf.Capacity() {
		return fmt.Errorf("widtharray: restore length %d exceeds capacity %d: %w", total, a.mf.Capacity(), ErrOutOfRange)
	}
	a.total.Store(total)
	return nil
}

// Len returns the number of widths currently visible to readers.
func (a *Array) Len() uint64 {
	return a.total.Load()
}

// Get returns the width stored at logical line index i.
func (a *Array) Get(i uint64) (uint16, error) {
	if i >= a.total.Load() {
		return 0, fmt.Errorf("widtharray: index %d out of range (len %d): %w", i, a.total.Load(), ErrOutOfRange)
	}
	data := a.mf.Bytes()
	off := i * recordSize
	return binary.LittleEndian.Uint16(data[off : off+recordSize]), nil
}

// Append writes w at the current end of the array and publishes the new
// length. It is only safe to call from the single writer.
func (a *Array) Append(w uint16) error {
	n := a.total.Load()
	need := int64(n+1) * recordSize
	if err := a.mf.EnsureCapacity(need); err != nil {
		return fmt.Errorf("widtharray: append: %w", err)
	}
	data := a.mf.Bytes()
	off := n * recordSize
	binary.LittleEndian.PutUint16(data[off:off+recordSize], w)
	a.total.Store(n + 1)
	return nil
}

// Sync flushes the mapping to disk.
func (a *Array) Sync() error { return a.mf.Sync() }

// Truncate resets the array to empty, used on rebuild.
func (a *Array) Truncate() error {
	if err := a.mf.Truncate(); err != nil {
		return err
	}
	a.total.Store(0)
	return nil
}

// Close releases the underlying mapping.
func (a *Array) Close() error { return a.mf.Close() }
