// Package generator implements the two-phase table generation
// pipeline: position enumeration followed by reverse-sum probability
// evaluation, coordinated across N worker goroutines by a reusable
// barrier. This file is the external entry point, the
// generate/read-table pair.
package generator

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/manifest"
	"github.com/cubey/2048tables/internal/tablestore"
)

// Generator owns one table generation/query run: the construction
// inputs plus the on-disk layout they resolve to.
type Generator struct {
	cfg     Config
	layout  *tablestore.Layout
	readers *tablestore.ReadCache
}

// New validates cfg and creates (or opens) the table directory layout
// cfg.TableDir resolves to. The returned Generator can both generate
// and read tables; CacheSize and Workers may be left at zero for a
// read-only Generator.
func New(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	layout, err := tablestore.NewLayout(cfg.TableDir)
	if err != nil {
		return nil, fmt.Errorf("generator: creating table dir %s: %w", cfg.TableDir, err)
	}
	readers, err := tablestore.NewReadCache()
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, layout: layout, readers: readers}, nil
}

// Open builds a read-only Generator from an existing table
// directory's meta.txt, so a query session needs only the directory
// name. The returned Generator has no cache and default workers; use
// New to generate.
func Open(tableDir string) (*Generator, error) {
	m, err := tablestore.ReadMeta(filepath.Join(tableDir, "meta.txt"))
	if err != nil {
		return nil, err
	}
	return New(Config{
		TableDir:    tableDir,
		Root:        m.Root,
		StaticTiles: m.StaticTiles,
		GoalValue:   1 << m.GoalTile,
	})
}

// GenerateTable runs the full pipeline: write meta.txt, enumerate
// every reachable stratum, then evaluate them in reverse sum order.
// When positionsAlreadySpilled is true, the enumeration pass is
// skipped and the evaluator starts from the manifest's recorded
// highest stratum, resuming a prior partial run; the spill shards for
// every un-evaluated stratum must already exist on disk in that case.
func (g *Generator) GenerateTable(positionsAlreadySpilled bool) error {
	mf, err := manifest.Open(g.layout.ManifestPath())
	if err != nil {
		return err
	}
	defer mf.Close()

	if err := tablestore.WriteMeta(g.layout.MetaPath(), tablestore.Meta{
		Root:        g.cfg.Root,
		StaticTiles: g.cfg.StaticTiles,
		GoalTile:    g.cfg.GoalTile,
	}); err != nil {
		return err
	}

	rootSum := board.SumOfTiles(g.cfg.Root)
	highestSum := rootSum

	if !positionsAlreadySpilled {
		log.Printf("generator: enumerating positions from root sum %d with %d workers", rootSum, g.cfg.Workers)
		e := newEnumerator(&g.cfg, g.layout, mf, g.cfg.Root, rootSum)
		highestSum, err = e.run()
		if err != nil {
			return fmt.Errorf("generator: enumeration failed: %w", err)
		}
		if err := mf.SaveRunState(manifest.RunState{EnumerationComplete: true, HighestSumReached: highestSum}); err != nil {
			return err
		}
	} else {
		state, err := mf.LoadRunState()
		if err != nil {
			return err
		}
		if !state.EnumerationComplete || state.HighestSumReached == 0 {
			return fmt.Errorf("%w: positionsAlreadySpilled requested but no prior enumeration recorded in manifest", tablestore.ErrBadInput)
		}
		highestSum = state.HighestSumReached
	}

	log.Printf("generator: evaluating strata from sum %d down to %d", highestSum, rootSum)
	ev := newEvaluator(&g.cfg, g.layout, mf, highestSum, rootSum)
	if err := ev.run(); err != nil {
		return fmt.Errorf("generator: evaluation failed: %w", err)
	}
	return nil
}

// ReadTable opens the table file for b's stratum and scans it for a
// matching record.
func (g *Generator) ReadTable(b board.Board) (board.MoveProbs, error) {
	if b&g.cfg.staticMask != g.cfg.StaticTiles {
		return board.MoveProbs{}, fmt.Errorf("%w: board does not match this table's static tiles", tablestore.ErrBadInput)
	}
	sum := board.SumOfTiles(b)
	return tablestore.ReadTable(
		g.layout.TablePath(sum), g.layout.IndexPath(sum), g.readers,
		sum, g.cfg.movingMap, g.cfg.numMoving, b,
	)
}
