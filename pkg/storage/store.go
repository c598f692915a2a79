package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/lobsim/pkg/sim/backtest"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// RunSummary is the per-run index record. Numeric report values live with
// the reporting layer; the store keeps only what is needed to find and
// reload a run's raw history.
type RunSummary struct {
	ID          string `json:"id"`
	StartedAt   int64  `json:"started_at"`
	Ticks       int    `json:"ticks"`
	Trades      int    `json:"trades"`
	SkippedRows int    `json:"skipped_rows"`
	FinalState  string `json:"final_state"`
	Seed        int64  `json:"seed"`
}

// Store persists backtest run artifacts (snapshot rows and trade logs) in
// pebble so external reporting tools can read them after the process exits.
// The core simulation has no dependency on it.
type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keys: r:<runID>, s:<runID>:<8-byte idx>, t:<runID>:<8-byte idx>
func kRun(id string) []byte { return []byte("r:" + id) }

func kSnapshotPrefix(id string) []byte { return []byte("s:" + id + ":") }

func kTradePrefix(id string) []byte { return []byte("t:" + id + ":") }

func kIndexed(prefix []byte, i int) []byte {
	return append(append([]byte{}, prefix...), indexKey(uint64(i))...)
}

// SaveRun writes the summary plus the full snapshot and trade history.
func (s *Store) SaveRun(sum RunSummary, res *backtest.Result) error {
	b := s.db.NewBatch()
	defer b.Close()

	val, err := encodeJSON(sum)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", sum.ID, err)
	}
	if err := b.Set(kRun(sum.ID), val, nil); err != nil {
		return err
	}

	sp := kSnapshotPrefix(sum.ID)
	for i, snap := range res.Snapshots {
		val, err := encodeJSON(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
		if err := b.Set(kIndexed(sp, i), val, nil); err != nil {
			return err
		}
	}

	tp := kTradePrefix(sum.ID)
	for i, tr := range res.Trades {
		val, err := encodeJSON(tr)
		if err != nil {
			return fmt.Errorf("encode trade %d: %w", i, err)
		}
		if err := b.Set(kIndexed(tp, i), val, nil); err != nil {
			return err
		}
	}

	return b.Commit(pebble.Sync)
}

// GetRun loads a run summary, false when absent.
func (s *Store) GetRun(id string) (RunSummary, bool, error) {
	val, closer, err := s.db.Get(kRun(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return RunSummary{}, false, nil
		}
		return RunSummary{}, false, err
	}
	defer closer.Close()
	var out RunSummary
	if err := decodeJSON(val, &out); err != nil {
		return RunSummary{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return out, true, nil
}

// LoadSnapshots returns the ordered snapshot rows of a run.
func (s *Store) LoadSnapshots(id string) ([]backtest.Snapshot, error) {
	var out []backtest.Snapshot
	err := s.scan(kSnapshotPrefix(id), func(val []byte) error {
		var snap backtest.Snapshot
		if err := decodeJSON(val, &snap); err != nil {
			return err
		}
		out = append(out, snap)
		return nil
	})
	return out, err
}

// LoadTrades returns the ordered trade log of a run.
func (s *Store) LoadTrades(id string) ([]core.Trade, error) {
	var out []core.Trade
	err := s.scan(kTradePrefix(id), func(val []byte) error {
		var tr core.Trade
		if err := decodeJSON(val, &tr); err != nil {
			return err
		}
		out = append(out, tr)
		return nil
	})
	return out, err
}

// ListRuns returns every stored run summary.
func (s *Store) ListRuns() ([]RunSummary, error) {
	var out []RunSummary
	err := s.scan([]byte("r:"), func(val []byte) error {
		var sum RunSummary
		if err := decodeJSON(val, &sum); err != nil {
			return err
		}
		out = append(out, sum)
		return nil
	})
	return out, err
}

func (s *Store) scan(prefix []byte, fn func(val []byte) error) error {
	upper := append(append([]byte{}, prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
