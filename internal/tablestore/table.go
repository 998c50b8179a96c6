package tablestore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/cubey/2048tables/internal/board"
	"github.com/cubey/2048tables/internal/codec"
)

// Entry is one evaluated board and its scored MoveProbs, the unit
// final table files and in-memory stratum maps both traffic in.
type Entry struct {
	Board board.Board
	Probs board.MoveProbs
}

// WriteTable writes entries to path in insertion order, one
// fixed-width record each: ceil(numMovingTiles/2) bytes of packed
// tiles followed by 7 bytes of packed probabilities, both
// little-endian.
func WriteTable(path string, sum int, movingTilesMap board.Board, numMovingTiles int, entries []Entry) error {
	tileWidth := (numMovingTiles + 1) / 2

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating table file %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	rec := make([]byte, tileWidth+7)
	for _, e := range entries {
		putLE(rec[:tileWidth], board.PackTiles(e.Board, movingTilesMap))
		putLE(rec[tileWidth:], codec.Pack(e.Probs.Probs, sum))
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("%w: writing table file %s: %v", ErrIO, path, err)
		}
	}
	return w.Flush()
}

// BuildIndex reads an already-written table file and writes a sidecar
// index next to it: one (xxhash64(packed tiles), offset) pair per
// record, 16 bytes each, little-endian. Strictly additive: ReadTable
// still works with no index present.
func BuildIndex(tablePath, indexPath string, numMovingTiles int) error {
	tileWidth := (numMovingTiles + 1) / 2
	width := tileWidth + 7

	data, err := os.ReadFile(tablePath)
	if err != nil {
		return fmt.Errorf("%w: reading table file %s: %v", ErrIO, tablePath, err)
	}
	if len(data)%width != 0 {
		return fmt.Errorf("%w: table file %s length %d not a multiple of record width %d", ErrIO, tablePath, len(data), width)
	}

	idx, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("%w: creating index file %s: %v", ErrIO, indexPath, err)
	}
	defer idx.Close()

	w := bufio.NewWriter(idx)
	var rec [16]byte
	for off := 0; off < len(data); off += width {
		h := xxhash.Sum64(data[off : off+tileWidth])
		putLE(rec[:8], h)
		putLE(rec[8:], uint64(off))
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("%w: writing index file %s: %v", ErrIO, indexPath, err)
		}
	}
	return w.Flush()
}

func putLE(dst []byte, v uint64) {
	for i := range dst {
		dst[i] = byte(v >> uint(8*i))
	}
}

func getLE(src []byte) uint64 {
	var v uint64
	for i, b := range src {
		v |= uint64(b) << uint(8*i)
	}
	return v
}

type indexEntry struct {
	hash   uint64
	offset int64
}

// ReadCache memoizes a table file's sidecar index in memory across
// repeated ReadTable calls, keyed by index file path, so a long-lived
// query session doesn't re-read and re-parse an index on every
// lookup. A nil *ReadCache is valid: ReadTable degrades to a plain
// linear scan.
type ReadCache struct {
	c *ristretto.Cache[string, []indexEntry]
}

// NewReadCache builds a ReadCache sized for a handful of concurrently
// queried sum files.
func NewReadCache() (*ReadCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []indexEntry]{
		NumCounters: 1e5,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("tablestore: creating read cache: %w", err)
	}
	return &ReadCache{c: c}, nil
}

func (rc *ReadCache) loadIndex(indexPath string) ([]indexEntry, bool) {
	if rc == nil {
		return nil, false
	}
	if v, ok := rc.c.Get(indexPath); ok {
		return v, true
	}
	data, err := os.ReadFile(indexPath)
	if err != nil || len(data)%16 != 0 || len(data) == 0 {
		return nil, false
	}
	entries := make([]indexEntry, 0, len(data)/16)
	for off := 0; off < len(data); off += 16 {
		entries = append(entries, indexEntry{hash: getLE(data[off : off+8]), offset: int64(getLE(data[off+8 : off+16]))})
	}
	rc.c.Set(indexPath, entries, int64(len(data)))
	rc.c.Wait()
	return entries, true
}

// ReadTable linear-scans path for the record whose packed tiles match
// board.PackTiles(query, movingTilesMap). When cache
// is non-nil and a sidecar index exists next to path, the index
// narrows the search to candidate offsets first; a hash collision in
// the index is resolved by the same byte comparison the full scan
// uses, so the index can only change search order, never the answer.
func ReadTable(path, indexPath string, cache *ReadCache, sum int, movingTilesMap board.Board, numMovingTiles int, query board.Board) (board.MoveProbs, error) {
	tileWidth := (numMovingTiles + 1) / 2
	width := tileWidth + 7

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return board.MoveProbs{}, fmt.Errorf("%w: %s", ErrTableMissing, path)
		}
		return board.MoveProbs{}, fmt.Errorf("%w: reading table file %s: %v", ErrIO, path, err)
	}
	if len(data)%width != 0 {
		return board.MoveProbs{}, fmt.Errorf("%w: table file %s length %d not a multiple of record width %d", ErrIO, path, len(data), width)
	}

	queryBytes := make([]byte, tileWidth)
	putLE(queryBytes, board.PackTiles(query, movingTilesMap))

	if entries, ok := cache.loadIndex(indexPath); ok {
		h := xxhash.Sum64(queryBytes)
		for _, e := range entries {
			if e.hash != h {
				continue
			}
			off := int(e.offset)
			if off+width > len(data) {
				continue
			}
			if bytes.Equal(data[off:off+tileWidth], queryBytes) {
				return decodeRecord(data[off+tileWidth : off+width]), nil
			}
		}
	}

	for off := 0; off+width <= len(data); off += width {
		if bytes.Equal(data[off:off+tileWidth], queryBytes) {
			return decodeRecord(data[off+tileWidth : off+width]), nil
		}
	}
	return board.MoveProbs{}, fmt.Errorf("%w: %s not found in %s", ErrBoardNotFound, query, path)
}

func decodeRecord(probBytes []byte) board.MoveProbs {
	var buf [8]byte
	copy(buf[:7], probBytes)
	return board.MoveProbs{Probs: codec.Unpack(getLE(buf[:]))}
}

// ReadAllTable reads every record in a final table file back into
// full Entry values, reconstructing each board with UnpackTiles. Used
// to resume a partially-evaluated run: a stratum already flushed to
// disk in a prior process still needs its boards in memory so the
// next (lower) stratum's cross-worker lookups can find them.
func ReadAllTable(path string, staticTiles, movingTilesMap board.Board, numMovingTiles int) ([]Entry, error) {
	tileWidth := (numMovingTiles + 1) / 2
	width := tileWidth + 7

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTableMissing, path)
		}
		return nil, fmt.Errorf("%w: reading table file %s: %v", ErrIO, path, err)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: table file %s length %d not a multiple of record width %d", ErrIO, path, len(data), width)
	}

	entries := make([]Entry, 0, len(data)/width)
	for off := 0; off+width <= len(data); off += width {
		packed := getLE(data[off : off+tileWidth])
		b := board.UnpackTiles(packed, movingTilesMap, staticTiles)
		entries = append(entries, Entry{Board: b, Probs: decodeRecord(data[off+tileWidth : off+width])})
	}
	return entries, nil
}

// CountRecords returns the number of fixed-width records stored at
// path, used by tests to check a table file's size against its
// stratum's enumerated count.
func CountRecords(path string, numMovingTiles int) (int, error) {
	tileWidth := (numMovingTiles + 1) / 2
	width := tileWidth + 7

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrTableMissing, path)
		}
		return 0, fmt.Errorf("%w: stat table file %s: %v", ErrIO, path, err)
	}
	if info.Size()%int64(width) != 0 {
		return 0, fmt.Errorf("%w: table file %s length %d not a multiple of record width %d", ErrIO, path, info.Size(), width)
	}
	return int(info.Size() / int64(width)), nil
}
