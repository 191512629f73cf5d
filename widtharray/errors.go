package widtharray

import "errors"

// ErrOutOfRange indicates an index outside [0, Len()).
var ErrOutOfRange = errors.New("widtharray: index out of range")
