package llindex

import (
	"fmt"
	"iter"

	"logloglog/wrapmath"
)

// View is a row-addressable window over an Index at a fixed terminal width,
// the return value of Index.At and Index.AtRange.
type View struct {
	idx        *Index
	w          TerminalWidth
	start, end uint64
}

// Len returns the number of display rows in the view.
func (v *View) Len() uint64 {
	if v.end < v.start {
		return 0
	}
	return v.end - v.start
}

// Get returns the text of display row r within the view (0-indexed,
// relative to the view's start).
func (v *View) Get(r uint64) (string, error) {
	if r >= v.Len() {
		return "", fmt.Errorf("llindex: view row %d: %w", r, ErrOutOfRange)
	}
	line, residual, err := v.idx.tree.Locate(v.w, v.start+r)
	if err != nil {
		return "", fmt.Errorf("llindex: view row %d: %w", r, err)
	}
	text, err := v.idx.src.Get(line)
	if err != nil {
		return "", fmt.Errorf("llindex: view row %d: line %d: %w", r, line, err)
	}
	row, ok := wrapmath.Slice(text, v.w, residual)
	if !ok {
		return "", fmt.Errorf("llindex: view row %d: residual %d out of range for line %d: %w", r, residual, line, ErrCorruption)
	}
	return row, nil
}

// Iter returns a lazy, finite, restartable sequence over the view's rows in
// order, stopping early if the caller's range function returns false.
func (v *View) Iter() iter.Seq[string] {
	return func(yield func(string) bool) {
		for r := uint64(0); r < v.Len(); r++ {
			text, err := v.Get(r)
			if err != nil {
				return
			}
			if !yield(text) {
				return
			}
		}
	}
}
