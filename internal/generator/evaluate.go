package generator

import (
	"log"
	"math/bits"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/manifest"
	"github.com/cubey/2048tables/internal/tablestore"
)

// stratumMap is one worker's board->MoveProbs table for a single
// stratum: an ordered slice (the order boards were scored in, which
// becomes the table file's record order) backed by a map for O(1)
// cross-worker lookups during the next stratum's evaluation.
type stratumMap struct {
	entries []tablestore.Entry
	lookup  map[board.Board]board.MoveProbs
}

func (m *stratumMap) set(b board.Board, p board.MoveProbs) {
	if m.lookup == nil {
		m.lookup = make(map[board.Board]board.MoveProbs)
	}
	// The dedup cache is cleared between strata, so a board can arrive
	// in the same spill shard twice. Keep one record per board.
	if _, dup := m.lookup[b]; dup {
		return
	}
	m.entries = append(m.entries, tablestore.Entry{Board: b, Probs: p})
	m.lookup[b] = p
}

// mapRing is the per-worker three-slot ring of stratumMaps: offset 0
// is the stratum currently being scored, 1 is S+2, 2 is S+4.
type mapRing [3]stratumMap

// rotateDown shifts the ring toward lower sums after a stratum is
// flushed: the just-scored stratum becomes the new S+2, the old S+2
// becomes the new S+4, and the old S+4 (no longer reachable from
// anything still to be evaluated) is discarded.
func (r *mapRing) rotateDown() {
	r[2] = r[1]
	r[1] = r[0]
	r[0] = stratumMap{}
}

// evaluator runs the reverse-order probability propagation pass,
// reading the spill shards the enumerator wrote and producing the
// final table_dir/<S>.txt files.
type evaluator struct {
	cfg     *Config
	n       int
	layout  *tablestore.Layout
	mf      *manifest.Manifest
	maps    []mapRing
	sum     int
	rootSum int
	bar     *barrier
}

func newEvaluator(cfg *Config, layout *tablestore.Layout, mf *manifest.Manifest, highestSum, rootSum int) *evaluator {
	n := cfg.Workers
	return &evaluator{
		cfg:     cfg,
		n:       n,
		layout:  layout,
		mf:      mf,
		maps:    make([]mapRing, n),
		sum:     highestSum,
		rootSum: rootSum,
		bar:     newBarrier(n),
	}
}

func (e *evaluator) run() error {
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
			return err
		}
	}
	return nil
}

func (e *evaluator) worker(t int) error {
	for {
		skip := false
		if e.mf != nil {
			done, err := e.mf.IsEvaluated(e.sum)
			if err != nil {
				return err
			}
			skip = done
		}

		if !skip {
			path := e.layout.SpillPath(e.sum, t)
			boards, err := tablestore.ReadShard(path)
			if err != nil {
				return err
			}
			for _, b := range boards {
				e.maps[t][0].set(b, e.scoreBoard(b))
			}
			if err := tablestore.DeleteShard(path); err != nil {
				return err
			}
		}

		err := e.bar.arrive(func() (bool, error) { return e.transition(skip) })
		if err != nil {
			return err
		}
		if e.bar.Stopped() {
			return nil
		}
	}
}

// scoreBoard scores one board: terminal, already-won, or the four
// per-direction results.
func (e *evaluator) scoreBoard(b board.Board) board.MoveProbs {
	if board.GameOver(b) {
		return board.Terminal
	}
	if board.NumTiles(b, e.cfg.GoalTile) >= 2 {
		return board.Won
	}
	var mp board.MoveProbs
	for _, dir := range board.Directions {
		mp.Probs[dir] = e.evaluateDirection(b, dir)
	}
	return mp
}

// evaluateDirection computes one direction's win probability: zero if the move
// is illegal or disturbs a static tile, otherwise the weighted
// average, over every empty square of the post-move board, of the
// best-move probability of the "2" spawn (weight 0.9, looked up in
// S+2) and the "4" spawn (weight 0.1, looked up in S+4).
func (e *evaluator) evaluateDirection(b board.Board, dir board.Direction) float64 {
	moved := board.Move(b, dir)
	if moved == b {
		return 0
	}
	if moved&e.cfg.staticMask != e.cfg.StaticTiles {
		return 0
	}

	empties := board.GetEmptySquares(moved)
	k := bits.OnesCount16(empties)
	if k == 0 {
		return 0
	}

	var p float64
	for pos := 0; pos < 16; pos++ {
		if empties&(1<<uint(pos)) == 0 {
			continue
		}
		x, y := pos%4, pos/4
		b2 := board.SetTile(moved, x, y, 1)
		b4 := board.SetTile(moved, x, y, 2)
		u2 := e.lookup(1, b2)
		u4 := e.lookup(2, b4)
		p += 0.9*u2.Probs[u2.BestMove()]/float64(k) + 0.1*u4.Probs[u4.BestMove()]/float64(k)
	}
	return p
}

// lookup finds key's MoveProbs in the stratum at ring offset (1 for
// S+2, 2 for S+4), routed to its owning worker the same way the
// enumerator's spill shuffle routed it: by BadHash mod N. A miss
// (which stratum closure guarantees shouldn't happen) contributes a
// zero MoveProbs, the same as a terminal position.
func (e *evaluator) lookup(offset int, key board.Board) board.MoveProbs {
	owner := tablestore.BadHash(key, uint64(e.n))
	return e.maps[owner][offset].lookup[key]
}

// transition is the barrier-elect worker's per-stratum bookkeeping:
// flush the just-scored stratum to its table file (unless it was
// already done in a prior run and merely reloaded), rotate the map
// ring, and decrement the sum. Stops once sum drops below rootSum.
func (e *evaluator) transition(skip bool) (stop bool, err error) {
	if skip {
		entries, err := tablestore.ReadAllTable(e.layout.TablePath(e.sum), e.cfg.StaticTiles, e.cfg.movingMap, e.cfg.numMoving)
		if err != nil {
			return true, err
		}
		for _, ent := range entries {
			owner := tablestore.BadHash(ent.Board, uint64(e.n))
			e.maps[owner][0].set(ent.Board, ent.Probs)
		}
		log.Printf("evaluator: stratum %d already evaluated, reloaded %s boards", e.sum, humanize.Comma(int64(len(entries))))
	} else {
		var all []tablestore.Entry
		for t := range e.maps {
			all = append(all, e.maps[t][0].entries...)
		}
		path := e.layout.TablePath(e.sum)
		if err := tablestore.WriteTable(path, e.sum, e.cfg.movingMap, e.cfg.numMoving, all); err != nil {
			return true, err
		}
		if err := tablestore.BuildIndex(path, e.layout.IndexPath(e.sum), e.cfg.numMoving); err != nil {
			return true, err
		}
		if e.mf != nil {
			if err := e.mf.MarkEvaluated(e.sum); err != nil {
				return true, err
			}
		}
		log.Printf("evaluator: wrote table for stratum %d (%s boards)", e.sum, humanize.Comma(int64(len(all))))
	}

	for t := range e.maps {
		e.maps[t].rotateDown()
	}
	e.sum -= 2
	return e.sum < e.rootSum, nil
}
