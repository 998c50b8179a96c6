// Package manifest persists the resume state of a table generation
// run in a BadgerDB directory alongside the table files: which strata
// have been spilled, which have been evaluated, and the dedup cache's
// hit/miss counters at each transition. Values are JSON-encoded and
// keyed by stratum sum.
package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const (
	prefixSpilled   = "spilled:"
	prefixEvaluated = "evaluated:"
	keyRunState     = "run_state"
)

// RunState is the top-level progress record: the current stratum sum
// the orchestrator was working on and which phase it was in, used by
// generate_table(positions_already_spilled) to decide where to resume.
type RunState struct {
	CurrentSum          int  `json:"current_sum"`
	EnumerationComplete bool `json:"enumeration_complete"`
	HighestSumReached   int  `json:"highest_sum_reached"`
}

// StratumStats records the dedup cache counters observed when a
// stratum's spill completed, purely for operator visibility on
// resume.
type StratumStats struct {
	DedupHits   uint64 `json:"dedup_hits"`
	DedupMisses uint64 `json:"dedup_misses"`
}

// Manifest wraps a BadgerDB directory used as the resume log for one
// table generation run.
type Manifest struct {
	db *badger.DB
}

// Open opens (creating if absent) the BadgerDB directory at dir.
func Open(dir string) (*Manifest, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("manifest: opening %s: %w", dir, err)
	}
	return &Manifest{db: db}, nil
}

// Close closes the underlying database.
func (m *Manifest) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// MarkSpilled records that every worker's positions/<sum>_*.txt shard
// has been written for sum, along with the dedup counters observed at
// that transition.
func (m *Manifest) MarkSpilled(sum int, stats StratumStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("manifest: encoding stratum stats: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixSpilled+strconv.Itoa(sum)), data)
	})
}

// IsSpilled reports whether sum's spill shards were fully written in
// a prior run.
func (m *Manifest) IsSpilled(sum int) (bool, error) {
	return m.exists(prefixSpilled + strconv.Itoa(sum))
}

// MarkEvaluated records that sum's table_dir/<sum>.txt has been
// written and its spill shards deleted.
func (m *Manifest) MarkEvaluated(sum int) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixEvaluated+strconv.Itoa(sum)), []byte("done"))
	})
}

// IsEvaluated reports whether sum's final table was written in a
// prior run.
func (m *Manifest) IsEvaluated(sum int) (bool, error) {
	return m.exists(prefixEvaluated + strconv.Itoa(sum))
}

func (m *Manifest) exists(key string) (bool, error) {
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// SaveRunState persists the orchestrator's current progress, read
// back by a subsequent generate_table(true) call to resume mid-run.
func (m *Manifest) SaveRunState(state RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("manifest: encoding run state: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyRunState), data)
	})
}

// LoadRunState reads back the last saved RunState, or the zero value
// if none has been saved yet.
func (m *Manifest) LoadRunState() (RunState, error) {
	var state RunState
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyRunState))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	return state, err
}
