package generator

import (
	"fmt"
	"math/bits"
	"runtime"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/tablestore"
)

// Config holds every construction-time parameter for a Generator:
// table directory name, root board, static_tiles board, goal nibble,
// cache size, worker count. All fields are immutable for the
// lifetime of the Generator.
type Config struct {
	// TableDir is the directory holding meta.txt and the final
	// table_dir/<S>.txt files.
	TableDir string
	// Root is the starting board for generation.
	Root board.Board
	// StaticTiles identifies squares that must never change value.
	StaticTiles board.Board
	// GoalValue is the actual tile value that counts as a win (e.g.
	// 2048), not its nibble. Must be an exact power of two.
	GoalValue uint64
	// CacheSize is the dedup cache's slot count. 0 is permitted when
	// only reading existing tables.
	CacheSize int
	// Workers is the worker goroutine count. 0 is permitted when only
	// reading existing tables, and defaults to runtime.NumCPU() for
	// generation.
	Workers int

	// GoalTile is derived from GoalValue by validate(): the nibble
	// value v such that 2^v == GoalValue.
	GoalTile uint8
	// derived fields, computed once by validate()
	staticMask board.Board
	movingMap  board.Board
	numMoving  int
}

func (c *Config) validate() error {
	if c.GoalValue < 2 || bits.OnesCount64(c.GoalValue) != 1 {
		return fmt.Errorf("%w: goal value %d is not an exact power of two", tablestore.ErrBadInput, c.GoalValue)
	}
	c.GoalTile = uint8(bits.TrailingZeros64(c.GoalValue))
	c.staticMask = board.MakeStaticTilesMask(c.StaticTiles)
	if c.Root&c.staticMask != c.StaticTiles {
		return fmt.Errorf("%w: root board does not agree with static_tiles on the static squares", tablestore.ErrBadInput)
	}
	c.movingMap = board.MakeMovingTilesMap(c.StaticTiles)
	c.numMoving = board.NumMovingTiles(c.staticMask)
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	return nil
}
