package tablestore

import (
	"os"
	"path/filepath"
	"strconv"
)

// Layout resolves every path used by a single generation run: the
// meta file, table files, index files and manifest live under a
// caller-supplied table directory, while spill shards live in a
// "positions" directory relative to the working directory, not
// under the table directory.
type Layout struct {
	tableDir     string
	positionsDir string
}

// NewLayout creates directories (if absent) for tableDir and for
// "positions" in the working directory, unconditionally.
func NewLayout(tableDir string) (*Layout, error) {
	l := &Layout{
		tableDir:     tableDir,
		positionsDir: "positions",
	}
	if err := os.MkdirAll(l.tableDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.positionsDir, 0o755); err != nil {
		return nil, err
	}
	return l, nil
}

// MetaPath returns <table_dir>/meta.txt.
func (l *Layout) MetaPath() string {
	return filepath.Join(l.tableDir, "meta.txt")
}

// TablePath returns <table_dir>/<sum>.txt.
func (l *Layout) TablePath(sum int) string {
	return filepath.Join(l.tableDir, strconv.Itoa(sum)+".txt")
}

// IndexPath returns the sidecar index path next to a table file,
// <table_dir>/<sum>.idx. The index is additive only, never required
// for correctness.
func (l *Layout) IndexPath(sum int) string {
	return filepath.Join(l.tableDir, strconv.Itoa(sum)+".idx")
}

// SpillPath returns positions/<sum>_<worker>.txt.
func (l *Layout) SpillPath(sum, worker int) string {
	return filepath.Join(l.positionsDir, strconv.Itoa(sum)+"_"+strconv.Itoa(worker)+".txt")
}

// ManifestPath returns the BadgerDB directory for this run's resume
// manifest, <table_dir>/manifest.
func (l *Layout) ManifestPath() string {
	return filepath.Join(l.tableDir, "manifest")
}
