package wraptree

import "logloglog/wrapmath"

// getNode resolves ref to its node contents, preferring the live in-memory
// right-spine copy (which may not have a finalized checksum yet) over the
// checksummed on-disk path used for sealed nodes.
func (t *Tree) getNode(ref uint32) (*node, error) {
	for _, sl := range t.spine {
		if sl.ref == ref {
			return sl.n, nil
		}
	}
	return t.readNode(ref)
}

// RowsAtWidth returns the total number of display rows the whole indexed
// log occupies at terminal width W. The count is exact: a child's histogram
// is used directly where it is exact for W, and otherwise that subtree is
// descended down to its leaf widths, the same way Locate/RowOf count rows.
// If a node below the root cannot be read, the root's aggregate histogram
// estimate is returned instead.
func (t *Tree) RowsAtWidth(W uint16) uint64 {
	if len(t.spine) == 0 {
		return 0
	}
	root := t.spine[len(t.spine)-1].n
	total, err := t.exactRowsOfNode(root, W)
	if err != nil {
		h := root.totalHistogram()
		return h.Rows(W)
	}
	return total
}

// exactRowsOfChild returns the exact row count at width W of everything
// under entry, using its histogram directly when that's provably exact for
// W and otherwise descending into the child, so RowsAtWidth, Locate and
// RowOf never rely on an approximate histogram.
func (t *Tree) exactRowsOfChild(e internalEntry, W uint16) (uint64, error) {
	if e.childHist.ExactForWidth(W) {
		return e.childHist.Rows(W), nil
	}
	n, err := t.getNode(e.childRef)
	if err != nil {
		return 0, err
	}
	return t.exactRowsOfNode(n, W)
}

func (t *Tree) exactRowsOfNode(n *node, W uint16) (uint64, error) {
	if n.kind == kindLeaf {
		var total uint64
		for _, w := range n.widths {
			total += wrapmath.Rows(w, W)
		}
		return total, nil
	}
	var total uint64
	for i := 0; i < int(n.count); i++ {
		r, err := t.exactRowsOfChild(n.entries[i], W)
		if err != nil {
			return 0, err
		}
		total += r
	}
	return total, nil
}

// Locate finds the logical line and residual row offset within it at which
// display row targetRow begins, at terminal width W. This must be exact
// regardless of W.
func (t *Tree) Locate(W uint16, targetRow uint64) (line uint64, residual uint64, err error) {
	if len(t.spine) == 0 {
		return 0, 0, ErrOutOfRange
	}
	top := t.spine[len(t.spine)-1]
	return t.locateInNode(top.n, W, targetRow, 0)
}

func (t *Tree) locateInNode(n *node, W uint16, remaining uint64, baseLine uint64) (uint64, uint64, error) {
	if n.kind == kindLeaf {
		for i, w := range n.widths {
			r := wrapmath.Rows(w, W)
			if remaining < r {
				return baseLine + uint64(i), remaining, nil
			}
			remaining -= r
		}
		return 0, 0, ErrOutOfRange
	}
	lineOffset := baseLine
	for i := 0; i < int(n.count); i++ {
		e := n.entries[i]
		rows, err := t.exactRowsOfChild(e, W)
		if err != nil {
			return 0, 0, err
		}
		if remaining < rows {
			child, err := t.getNode(e.childRef)
			if err != nil {
				return 0, 0, err
			}
			return t.locateInNode(child, W, remaining, lineOffset)
		}
		remaining -= rows
		lineOffset += uint64(e.childLines)
	}
	return 0, 0, ErrOutOfRange
}

// RowOf returns the cumulative display-row offset at which logical line
// begins, at terminal width W. This must be exact regardless of W.
func (t *Tree) RowOf(W uint16, line uint64) (uint64, error) {
	if len(t.spine) == 0 || line >= t.totalLines.Load() {
		return 0, ErrOutOfRange
	}
	top := t.spine[len(t.spine)-1]
	return t.rowOfInNode(top.n, W, line, 0)
}

func (t *Tree) rowOfInNode(n *node, W uint16, line uint64, baseLine uint64) (uint64, error) {
	if n.kind == kindLeaf {
		idx := line - baseLine
		var rows uint64
		for i := uint64(0); i < idx; i++ {
			rows += wrapmath.Rows(n.widths[i], W)
		}
		return rows, nil
	}
	var rowsBefore uint64
	lineOffset := baseLine
	for i := 0; i < int(n.count); i++ {
		e := n.entries[i]
		childLines := uint64(e.childLines)
		if line < lineOffset+childLines {
			child, err := t.getNode(e.childRef)
			if err != nil {
				return 0, err
			}
			sub, err := t.rowOfInNode(child, W, line, lineOffset)
			if err != nil {
				return 0, err
			}
			return rowsBefore + sub, nil
		}
		r, err := t.exactRowsOfChild(e, W)
		if err != nil {
			return 0, err
		}
		rowsBefore += r
		lineOffset += childLines
	}
	return 0, ErrOutOfRange
}
