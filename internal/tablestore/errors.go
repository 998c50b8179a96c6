// Package tablestore implements the on-disk layout of a generation
// run: the meta file, the per-stratum position spill shards, and the
// final per-sum probability table files, plus a couple of small
// accelerators (a sidecar index and a read cache) layered on top
// without changing the record formats.
package tablestore

import "errors"

// Error kinds surfaced by table generation and lookup. ErrBadInput
// and ErrIO are returned wrapped with additional context via
// fmt.Errorf's %w.
var (
	ErrBadInput      = errors.New("tablestore: bad input")
	ErrTableMissing  = errors.New("tablestore: table file missing for this sum")
	ErrBoardNotFound = errors.New("tablestore: board not found in table")
	ErrIO            = errors.New("tablestore: io error")
)
