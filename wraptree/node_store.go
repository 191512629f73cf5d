package wraptree

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"logloglog/histogram"
	"logloglog/internal/mmapfile"
)

// nodeStore is the packed-array file of fixed-size node records (nodes.dat),
// generalizing a WriteAt/ReadAt-syscall pager to direct mmap byte patches.
//
// Sealed (frozen) node pages are only ever written once, in full, with a
// checksum footer computed over the whole page. A right-spine node's page
// is instead patched incrementally, field by field, as it accumulates
// entries — touching only the bytes that changed rather than re-encoding
// the whole page — so a single Append costs O(height) small constant-size
// writes rather than O(height * NodeSize). The checksum footer for a
// right-spine page is only finalized once, at seal time; readers never
// validate an unsealed page's checksum (see Tree.Restore in tree.go).
type nodeStore struct {
	mf      *mmapfile.File
	nextRef uint32
}

// openNodeStore opens or creates the node store at path. nextRef starts at
// 0 regardless of the backing file's mapped capacity: mmapfile pads that
// capacity geometrically well beyond the number of node slots actually
// allocated, so it cannot be used to infer the allocated count. A caller
// reopening an existing store must call restoreCount with the count it
// persisted elsewhere (as Tree.Restore does from the metadata sidecar).
func openNodeStore(path string) (*nodeStore, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wraptree: node store: %w", err)
	}
	return &nodeStore{mf: mf}, nil
}

// count returns the number of allocated node slots.
func (s *nodeStore) count() uint32 { return s.nextRef }

// restoreCount sets the allocated node count after reopening an existing
// store, per a count persisted by the caller.
func (s *nodeStore) restoreCount(n uint32) error {
	if int64(n)*NodeSize > s.mf.Capacity() {
		return fmt.Errorf("wraptree: restore count %d exceeds capacity %d: %w", n, s.mf.Capacity(), ErrOutOfRange)
	}
	s.nextRef = n
	return nil
}

// alloc reserves a new, zero-filled node slot and returns its ref.
func (s *nodeStore) alloc() (uint32, error) {
	ref := s.nextRef
	need := int64(ref+1) * NodeSize
	if err := s.mf.EnsureCapacity(need); err != nil {
		return 0, fmt.Errorf("wraptree: alloc node %d: %w", ref, err)
	}
	s.nextRef = ref + 1
	return ref, nil
}

// page returns the live mmap byte range for ref. The slice must be
// re-fetched (not retained) after any alloc(), which may grow and remap
// the file.
func (s *nodeStore) page(ref uint32) ([]byte, error) {
	data := s.mf.Bytes()
	off := int64(ref) * NodeSize
	if off+NodeSize > int64(len(data)) {
		return nil, fmt.Errorf("wraptree: ref %d out of range: %w", ref, ErrOutOfRange)
	}
	return data[off : off+NodeSize], nil
}

// readSealed decodes and checksum-verifies the page at ref. Only valid for
// nodes that have been sealed (finalizeChecksum called).
func (s *nodeStore) readSealed(ref uint32) (*node, error) {
	page, err := s.page(ref)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, NodeSize)
	copy(cp, page)
	return decodeNode(cp)
}

// initEmpty zero-initializes a freshly allocated slot as an empty node of
// the given kind (count 0). Needed because a zero-filled page already
// means kind=leaf,count=0 for leaves, but an internal node's kind byte
// must be set explicitly.
func (s *nodeStore) initEmpty(ref uint32, kind nodeKind) error {
	page, err := s.page(ref)
	if err != nil {
		return err
	}
	page[0] = byte(kind)
	binary.LittleEndian.PutUint16(page[2:], 0)
	return nil
}

// patchLeafAppend records that a leaf's widths[count-1] = w and count was
// just incremented to count, without touching any other byte of the page.
func (s *nodeStore) patchLeafAppend(ref uint32, count uint16, w uint16) error {
	page, err := s.page(ref)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(page[2:], count)
	off := headerSize + int(count-1)*2
	binary.LittleEndian.PutUint16(page[off:], w)
	return nil
}

// patchInternalEntry writes entries[idx] = e and, if growing is true,
// updates count to idx+1. Used both to append a brand-new placeholder
// entry and to refresh the mutable last entry in place.
func (s *nodeStore) patchInternalEntry(ref uint32, idx int, e internalEntry, growing bool) error {
	page, err := s.page(ref)
	if err != nil {
		return err
	}
	if growing {
		binary.LittleEndian.PutUint16(page[2:], uint16(idx+1))
	}
	off := headerSize + idx*internalEntrySize
	binary.LittleEndian.PutUint32(page[off:], e.childRef)
	binary.LittleEndian.PutUint32(page[off+4:], e.childLines)
	e.childHist.Encode(page[off+8 : off+8+histogram.EncodedSize])
	return nil
}

// finalizeChecksum computes and writes the trailing xxhash64 of a page
// whose contents are now frozen, sealing it against further mutation.
func (s *nodeStore) finalizeChecksum(ref uint32) error {
	page, err := s.page(ref)
	if err != nil {
		return err
	}
	sum := xxhash.Sum64(page[:NodeSize-checksumSize])
	binary.LittleEndian.PutUint64(page[NodeSize-checksumSize:], sum)
	return nil
}

func (s *nodeStore) sync() error { return s.mf.Sync() }

func (s *nodeStore) truncate() error {
	if err := s.mf.Truncate(); err != nil {
		return err
	}
	s.nextRef = 0
	return nil
}

func (s *nodeStore) close() error { return s.mf.Close() }
