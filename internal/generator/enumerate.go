package generator

import (
	"log"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/cache"
	"github.com/cubey/2048tables/internal/manifest"
	"github.com/cubey/2048tables/internal/tablestore"
)

// stratumSlots is one worker's three-slot buffer ring: offset 0 is
// the stratum currently being processed, 1 is S+2, 2 is S+4. rotate
// is O(1) and never copies live data.
type stratumSlots [3][]board.Board

func (s *stratumSlots) rotate() {
	s[0] = s[1]
	s[1] = s[2]
	s[2] = nil
}

// enumerator runs the position-enumeration pass: a stratified BFS
// over reachable positions by tile sum, spilling each
// completed stratum to disk via a many-to-many shard shuffle.
type enumerator struct {
	cfg    *Config
	n      int
	dedup  *cache.Dedup
	layout *tablestore.Layout
	mf     *manifest.Manifest

	buf   []stratumSlots
	flat  []board.Board
	bound []int
	sum   int
	bar   *barrier
}

func newEnumerator(cfg *Config, layout *tablestore.Layout, mf *manifest.Manifest, root board.Board, sum0 int) *enumerator {
	n := cfg.Workers
	e := &enumerator{
		cfg:    cfg,
		n:      n,
		dedup:  cache.New(cfg.CacheSize),
		layout: layout,
		mf:     mf,
		buf:    make([]stratumSlots, n),
		sum:    sum0,
		bar:    newBarrier(n),
	}
	e.buf[0][0] = []board.Board{root}
	e.rebuildSlice()
	return e
}

// rebuildSlice flattens every worker's slot-0 buffer into one
// contiguous slice and recomputes the disjoint per-worker ranges over
// it: the first (size mod N)
// workers take ceil(size/N), the rest take floor(size/N).
func (e *enumerator) rebuildSlice() {
	total := 0
	for t := range e.buf {
		total += len(e.buf[t][0])
	}
	flat := make([]board.Board, 0, total)
	for t := range e.buf {
		flat = append(flat, e.buf[t][0]...)
	}

	bound := make([]int, e.n+1)
	base, rem := total/e.n, total%e.n
	pos := 0
	for t := 0; t < e.n; t++ {
		size := base
		if t < rem {
			size++
		}
		bound[t] = pos
		pos += size
	}
	bound[e.n] = total

	e.flat = flat
	e.bound = bound
}

// run executes the enumeration pass to completion across n goroutines
// and returns the highest stratum sum reached (the last non-empty
// one), or an error if any worker or the spill transition failed.
func (e *enumerator) run() (int, error) {
	var wg sync.WaitGroup
	errs := make([]error, e.n)
	for t := 0; t < e.n; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			errs[t] = e.worker(t)
		}(t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}
	return e.sum, nil
}

func (e *enumerator) worker(t int) error {
	for {
		slice := e.flat[e.bound[t]:e.bound[t+1]]
		for _, b := range slice {
			e.expand(t, b)
		}

		if err := e.bar.arrive(e.transition); err != nil {
			return err
		}
		if e.bar.Stopped() {
			return nil
		}
	}
}

// expand produces every board reachable from b by one move plus
// spawn, consulting the dedup cache and pushing survivors into
// worker t's S+2 and S+4 buffers.
func (e *enumerator) expand(t int, b board.Board) {
	if board.GameOver(b) || board.NumTiles(b, e.cfg.GoalTile) >= 2 {
		return
	}
	for _, dir := range board.Directions {
		moved := board.Move(b, dir)
		if moved == b {
			continue
		}
		if moved&e.cfg.staticMask != e.cfg.StaticTiles {
			continue
		}

		empties := board.GetEmptySquares(moved)
		for pos := 0; pos < 16; pos++ {
			if empties&(1<<uint(pos)) == 0 {
				continue
			}
			x, y := pos%4, pos/4
			b2 := board.SetTile(moved, x, y, 1)
			b4 := board.SetTile(moved, x, y, 2)
			if !e.dedup.Test(uint64(b2)) {
				e.buf[t][1] = append(e.buf[t][1], b2)
			}
			if !e.dedup.Test(uint64(b4)) {
				e.buf[t][2] = append(e.buf[t][2], b4)
			}
		}
	}
}

// transition is the barrier-elect worker's once-per-stratum
// bookkeeping: spill the just-finished stratum,
// clear the cache, advance the sum, rotate buffers, and decide
// whether the next stratum is empty (terminating the pass).
func (e *enumerator) transition() (stop bool, err error) {
	slot0 := make([][]board.Board, e.n)
	total := 0
	for t := range e.buf {
		slot0[t] = e.buf[t][0]
		total += len(slot0[t])
	}

	if total > 0 {
		if err := tablestore.SpillStratum(e.layout, e.sum, slot0); err != nil {
			return true, err
		}
		if e.mf != nil {
			hits, misses := e.dedup.Stats()
			if err := e.mf.MarkSpilled(e.sum, manifest.StratumStats{DedupHits: hits, DedupMisses: misses}); err != nil {
				return true, err
			}
		}
		log.Printf("enumerator: spilled stratum %d (%s boards across %d shards)",
			e.sum, humanize.Comma(int64(total)), e.n)
	}

	e.dedup.Clear()
	e.sum += 2
	for t := range e.buf {
		e.buf[t].rotate()
	}
	e.rebuildSlice()

	if len(e.flat) == 0 {
		e.sum -= 2
		e.dedup.Destroy()
		return true, nil
	}
	return false, nil
}
