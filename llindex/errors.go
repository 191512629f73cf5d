package llindex

import (
	"errors"
	"fmt"
)

var (
	// ErrIO indicates an underlying read/write/mmap failure. The in-flight
	// operation is aborted; on-disk state is left at the last line boundary
	// and a later Update retries from there.
	ErrIO = errors.New("llindex: io error")

	// ErrCorruption indicates a metadata magic mismatch, a node-size
	// mismatch against the running build, or an internal invariant
	// violation. Policy is to log and rebuild from scratch, never to repair
	// in place.
	ErrCorruption = errors.New("llindex: corruption detected")

	// ErrOutOfRange indicates a query index outside a view's valid range.
	ErrOutOfRange = errors.New("llindex: out of range")

	// ErrBadWidth is reserved for width functions that choose to report
	// overflow explicitly; the default width function instead saturates to
	// 65535 silently, so this is never returned by this package.
	ErrBadWidth = errors.New("llindex: width out of range")
)

// CorruptionError carries a specific reason alongside the ErrCorruption
// sentinel, so callers can log the detail while still matching on the
// sentinel with errors.Is.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("llindex: corruption: %s", e.Reason)
}

func (e *CorruptionError) Unwrap() error { return ErrCorruption }
