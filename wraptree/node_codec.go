package wraptree

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"logloglog/histogram"
)

// encodeNode serializes n into a NodeSize-byte page: kind, count, reserved,
// then either packed widths or packed (child_ref, child_lines, child_hist)
// triples, followed by a trailing xxhash64 checksum of everything before it.
func encodeNode(n *node) ([]byte, error) {
	if n.kind == kindLeaf && int(n.count) > FL {
		return nil, fmt.Errorf("wraptree: leaf count %d exceeds fanout %d", n.count, FL)
	}
	if n.kind == kindInternal && int(n.count) > FI {
		return nil, fmt.Errorf("wraptree: internal count %d exceeds fanout %d", n.count, FI)
	}

	page := make([]byte, NodeSize)
	page[0] = byte(n.kind)
	binary.LittleEndian.PutUint16(page[2:], n.count)

	offset := headerSize
	switch n.kind {
	case kindLeaf:
		for i := 0; i < int(n.count); i++ {
			binary.LittleEndian.PutUint16(page[offset:], n.widths[i])
			offset += 2
		}
	case kindInternal:
		for i := 0; i < int(n.count); i++ {
			e := n.entries[i]
			binary.LittleEndian.PutUint32(page[offset:], e.childRef)
			offset += 4
			binary.LittleEndian.PutUint32(page[offset:], e.childLines)
			offset += 4
			e.childHist.Encode(page[offset : offset+histogram.EncodedSize])
			offset += histogram.EncodedSize
		}
	}

	sum := xxhash.Sum64(page[:NodeSize-checksumSize])
	binary.LittleEndian.PutUint64(page[NodeSize-checksumSize:], sum)
	return page, nil
}

// decodeNode deserializes a page previously written by encodeNode, verifying
// its checksum first. A checksum mismatch is reported as ErrCorruption. Only
// valid for sealed pages — see decodeNodeUnchecked for the mutable
// right-spine tip, whose checksum footer is not finalized until it seals.
func decodeNode(page []byte) (*node, error) {
	if len(page) != NodeSize {
		return nil, fmt.Errorf("wraptree: page size mismatch: got %d, want %d: %w", len(page), NodeSize, ErrCorruption)
	}
	want := binary.LittleEndian.Uint64(page[NodeSize-checksumSize:])
	got := xxhash.Sum64(page[:NodeSize-checksumSize])
	if got != want {
		return nil, fmt.Errorf("wraptree: node checksum mismatch: %w", ErrCorruption)
	}
	return decodeNodeUnchecked(page)
}

// decodeNodeUnchecked decodes a page without verifying its checksum, for
// restoring the mutable right-spine tip on reopen.
func decodeNodeUnchecked(page []byte) (*node, error) {
	if len(page) != NodeSize {
		return nil, fmt.Errorf("wraptree: page size mismatch: got %d, want %d: %w", len(page), NodeSize, ErrCorruption)
	}
	n := &node{
		kind:  nodeKind(page[0]),
		count: binary.LittleEndian.Uint16(page[2:]),
	}
	offset := headerSize
	switch n.kind {
	case kindLeaf:
		if int(n.count) > FL {
			return nil, fmt.Errorf("wraptree: decoded leaf count %d exceeds fanout %d: %w", n.count, FL, ErrCorruption)
		}
		n.widths = make([]uint16, n.count)
		for i := range n.widths {
			n.widths[i] = binary.LittleEndian.Uint16(page[offset:])
			offset += 2
		}
	case kindInternal:
		if int(n.count) > FI {
			return nil, fmt.Errorf("wraptree: decoded internal count %d exceeds fanout %d: %w", n.count, FI, ErrCorruption)
		}
		n.entries = make([]internalEntry, n.count)
		for i := range n.entries {
			n.entries[i].childRef = binary.LittleEndian.Uint32(page[offset:])
			offset += 4
			n.entries[i].childLines = binary.LittleEndian.Uint32(page[offset:])
			offset += 4
			n.entries[i].childHist = histogram.Decode(page[offset : offset+histogram.EncodedSize])
			offset += histogram.EncodedSize
		}
	default:
		return nil, fmt.Errorf("wraptree: unknown node kind %d: %w", n.kind, ErrCorruption)
	}
	return n, nil
}
