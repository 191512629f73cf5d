// Package widthfn provides the default pluggable width function: terminal
// cell-width sum over grapheme clusters, saturating at 65535 rather than
// overflowing.
package widthfn

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Default measures the unwrapped display width of a logical line the same
// way wrapmath measures rows within it: walk grapheme clusters and sum
// runewidth.StringWidth per cluster, so a zero-width combining mark never
// contributes its own cell.
func Default(line string) uint16 {
	total := 0
	g := uniseg.NewGraphemes(line)
	for g.Next() {
		total += runewidth.StringWidth(g.Str())
	}
	if total < 0 {
		return 0
	}
	if total > 65535 {
		return 65535
	}
	return uint16(total)
}
