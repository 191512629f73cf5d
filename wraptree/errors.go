package wraptree

import "errors"

var (
	// ErrCorruption indicates a node failed its checksum or violated a
	// structural invariant on decode. Callers should rebuild from scratch
	// rather than retry.
	ErrCorruption = errors.New("wraptree: corruption detected")

	// ErrOutOfRange indicates a query index outside the tree's valid range.
	ErrOutOfRange = errors.New("wraptree: out of range")
)
