package tablestore

import (
	"bufio"
	"fmt"
	"math/bits"
	"os"

	"github.com/cubey/2048tables/internal/board"
)

// Meta is the parsed content of meta.txt: the root board, the
// static-tiles board, and the goal tile's nibble value.
type Meta struct {
	Root        board.Board
	StaticTiles board.Board
	GoalTile    uint8
}

// WriteMeta writes m's three decimal values, one per line, to path.
func WriteMeta(path string, m Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating meta file: %v", ErrIO, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "%d\n%d\n%d\n", uint64(m.Root), uint64(m.StaticTiles), m.GoalTile); err != nil {
		return fmt.Errorf("%w: writing meta file: %v", ErrIO, err)
	}
	return w.Flush()
}

// ReadMeta parses a meta.txt file. Missing or malformed content is
// reported as ErrBadInput.
func ReadMeta(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: opening meta file: %v", ErrBadInput, err)
	}
	defer f.Close()

	var root, static uint64
	var goal uint8
	n, err := fmt.Fscanf(f, "%d\n%d\n%d\n", &root, &static, &goal)
	if err != nil || n != 3 {
		return Meta{}, fmt.Errorf("%w: malformed meta file %s: %v", ErrBadInput, path, err)
	}

	return Meta{Root: board.Board(root), StaticTiles: board.Board(static), GoalTile: goal}, nil
}

// ValidateGoalTile converts a goal tile value (e.g. 2048, not the
// nibble 11) to its nibble, rejecting any value that isn't an exact
// power of two.
func ValidateGoalTile(goalValue uint64) (uint8, error) {
	if goalValue < 2 || bits.OnesCount64(goalValue) != 1 {
		return 0, fmt.Errorf("%w: goal tile %d is not an exact power of two", ErrBadInput, goalValue)
	}
	return uint8(bits.TrailingZeros64(goalValue)), nil
}
