package tablestore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/cubey/2048tables/internal/board"
)

// BadHash is a 64-bit xorshift reduced by modulus, used only to
// spread boards across spill shards; collisions cost shard imbalance,
// never correctness.
func BadHash(b board.Board, modulus uint64) uint64 {
	x := uint64(b)
	x ^= x << 21
	x ^= x >> 35
	x ^= x << 4
	return x % modulus
}

// SpillStratum performs the barrier-elect worker's many-to-many spill
// shuffle for one stratum: every board across all N workers' sum-S
// buffers is rehashed with BadHash and appended to its destination
// shard, independent of which worker originally produced it. buffers
// is indexed by originating worker; the destination shard count
// equals len(buffers). The N shard files are written concurrently,
// one goroutine per file, since each is independent once bucketed.
func SpillStratum(layout *Layout, sum int, buffers [][]board.Board) error {
	n := len(buffers)
	if n == 0 {
		return nil
	}

	buckets := make([][]board.Board, n)
	for _, buf := range buffers {
		for _, b := range buf {
			t := BadHash(b, uint64(n))
			buckets[t] = append(buckets[t], b)
		}
	}

	g := new(errgroup.Group)
	for t := 0; t < n; t++ {
		t := t
		g.Go(func() error {
			return writeShard(layout.SpillPath(sum, t), buckets[t])
		})
	}
	return g.Wait()
}

func writeShard(path string, boards []board.Board) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating spill shard %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var tmp [8]byte
	for _, b := range boards {
		binary.LittleEndian.PutUint64(tmp[:], uint64(b))
		if _, err := w.Write(tmp[:]); err != nil {
			return fmt.Errorf("%w: writing spill shard %s: %v", ErrIO, path, err)
		}
	}
	return w.Flush()
}

// ReadShard reads a positions/<S>_<t>.txt spill shard in full. A
// missing file is reported as zero boards, not an error, since a
// worker may own an empty shard for a sparse stratum.
func ReadShard(path string) ([]board.Board, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: opening spill shard %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: reading spill shard %s: %v", ErrIO, path, err)
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: spill shard %s length %d not a multiple of 8", ErrIO, path, len(data))
	}

	boards := make([]board.Board, 0, len(data)/8)
	for i := 0; i < len(data); i += 8 {
		boards = append(boards, board.Board(binary.LittleEndian.Uint64(data[i:i+8])))
	}
	return boards, nil
}

// DeleteShard removes a spill file after its stratum has been
// evaluated. A missing file is not an error.
func DeleteShard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting spill shard %s: %v", ErrIO, path, err)
	}
	return nil
}
