package board

import "errors"

// ErrLutMissing and ErrLutMalformed are the two LUT-related error
// kinds. Both are fatal during construction.
var (
	ErrLutMissing   = errors.New("board: lut file missing or unreadable")
	ErrLutMalformed = errors.New("board: lut file malformed")
)
