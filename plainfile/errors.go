package plainfile

import "errors"

// ErrOutOfRange indicates a requested line index beyond the file's content.
var ErrOutOfRange = errors.New("plainfile: line out of range")
