// Command 2048gen drives the table generator from the command line:
// generate a table for a root board, static-tile configuration, and
// goal, or query an existing one. A thin, non-interactive wiring
// layer over the internal packages with no logic of its own.
package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/cache"
	"github.com/cubey/2048tables/internal/generator"
)

func main() {
	var (
		tableDir    = flag.String("table-dir", "", "table directory (required)")
		root        = flag.Uint64("root", 0, "root board, decimal 64-bit")
		staticTiles = flag.Uint64("static", 0, "static-tiles board, decimal 64-bit")
		goal        = flag.Uint64("goal", 2048, "goal tile value, must be an exact power of two")
		cacheSize   = flag.Int("cache-size", cache.DefaultSize, "dedup cache slot count")
		workers     = flag.Int("workers", 0, "worker count (0 = runtime.NumCPU)")
		resume      = flag.Bool("resume", false, "skip enumeration, resume evaluation from spilled positions")
		query       = flag.String("query", "", "decimal 64-bit board to read instead of generating")
		lutPath     = flag.String("lut", "src/lut/lut.txt", "row LUT file, built on first use")
	)
	flag.Parse()

	if *tableDir == "" {
		log.Fatal("2048gen: -table-dir is required")
	}

	if err := board.EnsureLUT(*lutPath); err != nil {
		log.Fatalf("2048gen: %v", err)
	}

	if *query != "" {
		g, err := generator.Open(*tableDir)
		if err != nil {
			log.Fatalf("2048gen: %v", err)
		}
		q, err := strconv.ParseUint(*query, 10, 64)
		if err != nil {
			log.Fatalf("2048gen: parsing -query: %v", err)
		}
		probs, err := g.ReadTable(board.Board(q))
		if err != nil {
			log.Fatalf("2048gen: reading table: %v", err)
		}
		log.Printf("probs = %v, best move = %v", probs.Probs, probs.BestMove())
		return
	}

	g, err := generator.New(generator.Config{
		TableDir:    *tableDir,
		Root:        board.Board(*root),
		StaticTiles: board.Board(*staticTiles),
		GoalValue:   *goal,
		CacheSize:   *cacheSize,
		Workers:     *workers,
	})
	if err != nil {
		log.Fatalf("2048gen: %v", err)
	}
	if err := g.GenerateTable(*resume); err != nil {
		log.Fatalf("2048gen: generating table: %v", err)
	}
	log.Printf("2048gen: table generation complete in %s", *tableDir)
}
