package wraptree

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"logloglog/histogram"
)

// spineLevel is one level of the mutable right spine: the allocated slot
// for a node that is still being filled, plus its decoded, in-memory
// contents (the source of truth while the node is open).
type spineLevel struct {
	ref uint32
	n   *node
}

// Tree is an append-only, memory-mapped B-tree. It answers RowsAtWidth and
// Locate/RowOf by descending using histogram summaries, never by scanning
// the raw log.
type Tree struct {
	store *nodeStore
	cache *ristretto.Cache[uint32, *node]

	spine []spineLevel

	totalLines atomic.Uint64
	rootRef    atomic.Uint32
	height     atomic.Uint32
}

// Open opens or creates the node store at path. cache may be nil, in which
// case sealed nodes are decoded from the mapping on every access instead of
// being cached.
func Open(path string, cache *ristretto.Cache[uint32, *node]) (*Tree, error) {
	store, err := openNodeStore(path)
	if err != nil {
		return nil, err
	}
	return &Tree{store: store, cache: cache}, nil
}

// NewCache builds the ristretto decoded-node cache Open expects, sized for
// approximately maxNodes hot decoded nodes.
func NewCache(maxNodes int64) (*ristretto.Cache[uint32, *node], error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, *node]{
		NumCounters: maxNodes * 10,
		MaxCost:     maxNodes * NodeSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("wraptree: node cache: %w", err)
	}
	return cache, nil
}

// TotalLines returns the number of lines the tree has indexed.
func (t *Tree) TotalLines() uint64 { return t.totalLines.Load() }

// RootRef and Height expose the tree's persisted position for the metadata
// sidecar record.
func (t *Tree) RootRef() uint32 { return t.rootRef.Load() }
func (t *Tree) Height() uint32  { return t.height.Load() }

// NodeCount returns the number of node slots allocated so far, for
// persisting alongside RootRef and Height so a later Restore can put the
// store's allocator back where it left off.
func (t *Tree) NodeCount() uint32 { return t.store.count() }

// Restore reconstructs the in-memory right spine after reopening an
// existing tree by walking the rightmost path from the root, decoding each
// node on the way down, and puts the node allocator back at nodeCount (the
// value NodeCount reported when the tree was last synced) so the next
// alloc doesn't reuse a live ref.
func (t *Tree) Restore(rootRef uint32, height uint32, totalLines uint64, nodeCount uint32) error {
	if err := t.store.restoreCount(nodeCount); err != nil {
		return fmt.Errorf("wraptree: restore: %w", err)
	}
	if height == 0 {
		return nil
	}
	spine := make([]spineLevel, height)
	ref := rootRef
	for lvl := int(height) - 1; lvl >= 0; lvl-- {
		page, err := t.store.page(ref)
		if err != nil {
			return fmt.Errorf("wraptree: restore level %d: %w", lvl, err)
		}
		cp := make([]byte, NodeSize)
		copy(cp, page)
		n, err := decodeNodeUnchecked(cp)
		if err != nil {
			return fmt.Errorf("wraptree: restore level %d: %w", lvl, err)
		}
		spine[lvl] = spineLevel{ref: ref, n: n}
		if lvl > 0 {
			if n.kind != kindInternal || n.count == 0 {
				return fmt.Errorf("wraptree: restore: level %d not internal: %w", lvl, ErrCorruption)
			}
			ref = n.entries[n.count-1].childRef
		}
	}
	t.spine = spine
	t.rootRef.Store(rootRef)
	t.height.Store(height)
	t.totalLines.Store(totalLines)
	return nil
}

// readNode decodes ref, checking the cache first, and verifies the page's
// checksum via decodeNode, so it is only valid for sealed nodes. Right-spine
// nodes, whose checksum footer is only finalized at seal time, are served
// from memory by getNode instead (see node_store.go).
func (t *Tree) readNode(ref uint32) (*node, error) {
	if t.cache != nil {
		if n, ok := t.cache.Get(ref); ok {
			return n, nil
		}
	}
	page, err := t.store.page(ref)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, NodeSize)
	copy(cp, page)
	n, err := decodeNode(cp)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.Set(ref, n, int64(NodeSize))
	}
	return n, nil
}

// Append adds one more line's width to the tree.
func (t *Tree) Append(w uint16) error {
	if len(t.spine) == 0 {
		ref, err := t.store.alloc()
		if err != nil {
			return err
		}
		if err := t.store.initEmpty(ref, kindLeaf); err != nil {
			return err
		}
		t.spine = []spineLevel{{ref: ref, n: &node{kind: kindLeaf}}}
		t.rootRef.Store(ref)
		t.height.Store(1)
	}

	leaf := t.spine[0].n
	leaf.widths = append(leaf.widths, w)
	leaf.count++
	if err := t.store.patchLeafAppend(t.spine[0].ref, leaf.count, w); err != nil {
		return err
	}

	for lvl := 1; lvl < len(t.spine); lvl++ {
		an := t.spine[lvl].n
		last := &an.entries[an.count-1]
		last.childLines++
		last.childHist.Add(w)
		if err := t.store.patchInternalEntry(t.spine[lvl].ref, int(an.count-1), *last, false); err != nil {
			return err
		}
	}

	t.totalLines.Add(1)

	if int(leaf.count) == FL {
		if err := t.seal(0); err != nil {
			return err
		}
	}
	return nil
}

// seal freezes the currently-open node at level, bubbles its summary
// (already exact, since it just filled up) into a fresh entry on the
// parent level, cascading upward if the parent also fills, and replaces
// level with a brand-new empty node.
func (t *Tree) seal(level int) error {
	sealedRef := t.spine[level].ref
	sealedNode := t.spine[level].n

	var sealedHist histogram.H
	var sealedLines uint64
	if sealedNode.kind == kindLeaf {
		sealedHist = sealedNode.histogramOf()
		sealedLines = uint64(sealedNode.count)
	} else {
		sealedHist = sealedNode.totalHistogram()
		sealedLines = sealedNode.totalLines()
	}
	if err := t.store.finalizeChecksum(sealedRef); err != nil {
		return err
	}
	if t.cache != nil {
		t.cache.Set(sealedRef, sealedNode, int64(NodeSize))
	}

	childKind := kindLeaf
	if level > 0 {
		childKind = kindInternal
	}
	freshRef, err := t.store.alloc()
	if err != nil {
		return err
	}
	if err := t.store.initEmpty(freshRef, childKind); err != nil {
		return err
	}
	freshNode := &node{kind: childKind}

	sealedEntry := internalEntry{childRef: sealedRef, childLines: uint32(sealedLines), childHist: sealedHist}
	freshEntry := internalEntry{childRef: freshRef, childLines: 0}

	if level+1 == len(t.spine) {
		newRootRef, err := t.store.alloc()
		if err != nil {
			return err
		}
		if err := t.store.initEmpty(newRootRef, kindInternal); err != nil {
			return err
		}
		newRoot := &node{
			kind:    kindInternal,
			count:   2,
			entries: []internalEntry{sealedEntry, freshEntry},
		}
		if err := t.store.patchInternalEntry(newRootRef, 0, sealedEntry, true); err != nil {
			return err
		}
		if err := t.store.patchInternalEntry(newRootRef, 1, freshEntry, true); err != nil {
			return err
		}
		t.spine = append(t.spine, spineLevel{ref: newRootRef, n: newRoot})
		t.rootRef.Store(newRootRef)
		t.height.Store(uint32(len(t.spine)))
	} else {
		parent := t.spine[level+1].n
		parent.entries[parent.count-1] = sealedEntry
		if err := t.store.patchInternalEntry(t.spine[level+1].ref, int(parent.count-1), sealedEntry, false); err != nil {
			return err
		}
		if int(parent.count) == FI {
			if err := t.seal(level + 1); err != nil {
				return err
			}
			parent = t.spine[level+1].n
		}
		parent.entries = append(parent.entries, freshEntry)
		parent.count++
		if err := t.store.patchInternalEntry(t.spine[level+1].ref, int(parent.count-1), freshEntry, true); err != nil {
			return err
		}
	}

	t.spine[level] = spineLevel{ref: freshRef, n: freshNode}
	return nil
}

// Sync flushes the node store to disk.
func (t *Tree) Sync() error { return t.store.sync() }

// Truncate discards all tree state, used on rebuild.
func (t *Tree) Truncate() error {
	if err := t.store.truncate(); err != nil {
		return err
	}
	t.spine = nil
	t.totalLines.Store(0)
	t.rootRef.Store(0)
	t.height.Store(0)
	if t.cache != nil {
		t.cache.Clear()
	}
	return nil
}

// Close releases the underlying mapping and cache.
func (t *Tree) Close() error {
	if t.cache != nil {
		t.cache.Close()
	}
	return t.store.close()
}
