package tablestore

import (
	"path/filepath"
	"testing"

	"github.com/cubey/2048tables/internal/board"
)

func TestWriteReadTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "8.txt")

	var staticTiles board.Board // no static tiles: all 16 squares move
	movingMap := board.MakeMovingTilesMap(staticTiles)
	numMoving := board.NumMovingTiles(board.MakeStaticTilesMask(staticTiles))

	b1 := board.SetTile(0, 0, 0, 1)
	b2 := board.SetTile(0, 1, 0, 1)
	entries := []Entry{
		{Board: b1, Probs: board.MoveProbs{Probs: [4]float64{0.5, 0.25, 0.125, 0}}},
		{Board: b2, Probs: board.Won},
	}

	if err := WriteTable(path, 4, movingMap, numMoving, entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got, err := ReadTable(path, path+".idx", nil, 4, movingMap, numMoving, b2)
	if err != nil {
		t.Fatalf("ReadTable(b2): %v", err)
	}
	if got.Probs != board.Won.Probs {
		t.Errorf("ReadTable(b2) = %v, want %v", got.Probs, board.Won.Probs)
	}

	got1, err := ReadTable(path, path+".idx", nil, 4, movingMap, numMoving, b1)
	if err != nil {
		t.Fatalf("ReadTable(b1): %v", err)
	}
	want := [4]float64{0.5 + 1.0/16384, 0.25 + 1.0/16384, 0.125 + 1.0/16384, 0}
	for i := range want {
		if d := got1.Probs[i] - want[i]; d > 1.0/8192 || d < -1.0/8192 {
			t.Errorf("ReadTable(b1).Probs[%d] = %v, want within 2^-13 of %v", i, got1.Probs[i], want[i])
		}
	}

	count, err := CountRecords(path, numMoving)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != len(entries) {
		t.Errorf("CountRecords = %d, want %d", count, len(entries))
	}
}

func TestReadAllTableReconstructsBoards(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "8.txt")

	var staticTiles board.Board
	staticTiles = board.SetTile(staticTiles, 0, 0, 3)
	movingMap := board.MakeMovingTilesMap(staticTiles)
	numMoving := board.NumMovingTiles(board.MakeStaticTilesMask(staticTiles))

	b1 := board.SetTile(staticTiles, 1, 0, 1)
	b2 := board.SetTile(staticTiles, 2, 2, 2)
	entries := []Entry{
		{Board: b1, Probs: board.MoveProbs{Probs: [4]float64{0.5, 0, 0, 0}}},
		{Board: b2, Probs: board.Won},
	}
	if err := WriteTable(path, 4, movingMap, numMoving, entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got, err := ReadAllTable(path, staticTiles, movingMap, numMoving)
	if err != nil {
		t.Fatalf("ReadAllTable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAllTable returned %d entries, want 2", len(got))
	}
	if got[0].Board != b1 || got[1].Board != b2 {
		t.Errorf("ReadAllTable boards = [%v %v], want [%v %v]", got[0].Board, got[1].Board, b1, b2)
	}
	if got[1].Probs.Probs != board.Won.Probs {
		t.Errorf("ReadAllTable probs[1] = %v, want %v", got[1].Probs.Probs, board.Won.Probs)
	}
}

func TestReadTableBoardNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "4.txt")

	var staticTiles board.Board
	movingMap := board.MakeMovingTilesMap(staticTiles)
	numMoving := board.NumMovingTiles(board.MakeStaticTilesMask(staticTiles))

	if err := WriteTable(path, 4, movingMap, numMoving, nil); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	missing := board.SetTile(0, 3, 3, 2)
	if _, err := ReadTable(path, path+".idx", nil, 4, movingMap, numMoving, missing); err == nil {
		t.Fatalf("expected ErrBoardNotFound, got nil")
	}
}

func TestReadTableMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "absent.txt")

	var staticTiles board.Board
	movingMap := board.MakeMovingTilesMap(staticTiles)
	numMoving := board.NumMovingTiles(board.MakeStaticTilesMask(staticTiles))

	if _, err := ReadTable(path, path+".idx", nil, 4, movingMap, numMoving, 0); err == nil {
		t.Fatalf("expected ErrTableMissing, got nil")
	}
}

func TestBuildIndexAcceleratesLookupSameAnswer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "8.txt")
	idxPath := path + ".idx"

	var staticTiles board.Board
	movingMap := board.MakeMovingTilesMap(staticTiles)
	numMoving := board.NumMovingTiles(board.MakeStaticTilesMask(staticTiles))

	var entries []Entry
	for i := 0; i < 20; i++ {
		b := board.SetTile(0, i%4, i/4%4, uint8(1+i%3))
		entries = append(entries, Entry{Board: b, Probs: board.MoveProbs{Probs: [4]float64{float64(i) / 20, 0, 0, 0}}})
	}
	if err := WriteTable(path, 4, movingMap, numMoving, entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if err := BuildIndex(path, idxPath, numMoving); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	cache, err := NewReadCache()
	if err != nil {
		t.Fatalf("NewReadCache: %v", err)
	}

	for _, e := range entries {
		withIdx, err := ReadTable(path, idxPath, cache, 4, movingMap, numMoving, e.Board)
		if err != nil {
			t.Fatalf("ReadTable with index: %v", err)
		}
		withoutIdx, err := ReadTable(path, idxPath, nil, 4, movingMap, numMoving, e.Board)
		if err != nil {
			t.Fatalf("ReadTable without index: %v", err)
		}
		if withIdx.Probs != withoutIdx.Probs {
			t.Fatalf("index lookup disagrees with linear scan: %v vs %v", withIdx.Probs, withoutIdx.Probs)
		}
	}
}
