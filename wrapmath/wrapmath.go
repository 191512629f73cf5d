// Package wrapmath implements pure row-count and row-slicing functions.
// Wrapping is cell-based: cells are counted the same way widthfn.Default
// counts them, walking grapheme clusters with uniseg and summing
// runewidth.StringWidth per cluster. Rows works from a line's total width
// alone (ceil(w/W)); Slice breaks before any cluster that would overflow the
// row, so a line whose wide clusters straddle a row boundary slices into
// more rows than Rows counts.
package wrapmath

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Rows returns the number of display rows a line of the given unwrapped
// width occupies when wrapped at terminal width W. Every line, including an
// empty one, occupies at least one row.
func Rows(w uint16, W uint16) uint64 {
	if W == 0 {
		panic("wrapmath: terminal width must be >= 1")
	}
	rows := uint64(w) / uint64(W)
	if uint64(w)%uint64(W) != 0 {
		rows++
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Slice returns the row-th display row of line when wrapped at width W, and
// true if row was in range. Rows are not padded; the last row is whatever
// text cells remain. Zero-width combining marks attach to the preceding
// cell, following the same grapheme-cluster segmentation widthfn.Default
// uses for indexing.
func Slice(line string, W uint16, row uint64) (string, bool) {
	rows := splitRows(line, W)
	if row >= uint64(len(rows)) {
		return "", false
	}
	return rows[row], true
}

// RowCount returns the number of display rows line actually wraps into at
// width W, computed the same way Slice computes row boundaries. It equals
// Rows(widthfn.Default(line), W) when no cluster straddles a row boundary;
// a wide cluster that would straddle one starts a new row, and RowCount then
// exceeds Rows. Call sites that need only the count and not the text should
// prefer Rows on the precomputed width instead of calling this.
func RowCount(line string, W uint16) uint64 {
	return uint64(len(splitRows(line, W)))
}

func splitRows(line string, W uint16) []string {
	if line == "" {
		return []string{""}
	}
	var rows []string
	start := 0
	pos := 0
	cells := 0
	g := uniseg.NewGraphemes(line)
	for g.Next() {
		cluster := g.Str()
		w := runewidth.StringWidth(cluster)
		if cells > 0 && cells+w > int(W) {
			rows = append(rows, line[start:pos])
			start = pos
			cells = 0
		}
		cells += w
		pos += len(cluster)
	}
	rows = append(rows, line[start:])
	return rows
}
