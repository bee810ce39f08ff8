package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"blobscribe/internal/app/model"
)

// ErrNotFound is returned when no outcome was recorded for a path.
var ErrNotFound = fmt.Errorf("outcome not found")

// Recorder is an optional durable side-channel of per-item outcomes. The
// pipeline works without one; a nil *Recorder is safe to use and records
// nothing.
type Recorder struct {
	db *badger.DB
}

// Open creates or reopens a ledger under dir.
func Open(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "badger"))
	opts.Logger = nil // badger's own logging is noisy

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores the outcome keyed by its audio path, overwriting any
// earlier record for the same path.
func (r *Recorder) Record(outcome model.ProcessingOutcome) error {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(outcome.AudioPath), data)
	})
}

// Consume lets a Recorder act as a pipeline outcome sink. Write failures
// are swallowed: the ledger is an audit trail, never a reason to fail an
// item that already processed.
func (r *Recorder) Consume(outcome model.ProcessingOutcome) {
	_ = r.Record(outcome)
}

// Get returns the recorded outcome for an audio path.
func (r *Recorder) Get(audioPath string) (model.ProcessingOutcome, error) {
	var outcome model.ProcessingOutcome
	if r == nil {
		return outcome, ErrNotFound
	}

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(audioPath))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &outcome)
		})
	})
	if err == badger.ErrKeyNotFound {
		return outcome, ErrNotFound
	}
	if err != nil {
		return outcome, fmt.Errorf("failed to read outcome: %w", err)
	}
	return outcome, nil
}

// All returns every recorded outcome. Order follows key order.
func (r *Recorder) All() ([]model.ProcessingOutcome, error) {
	if r == nil {
		return nil, nil
	}

	var outcomes []model.ProcessingOutcome
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var outcome model.ProcessingOutcome
				if err := json.Unmarshal(val, &outcome); err != nil {
					return err
				}
				outcomes = append(outcomes, outcome)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}
	return outcomes, nil
}

// Recent returns the n most recently finished outcomes, newest first.
// n <= 0 means all.
func (r *Recorder) Recent(n int) ([]model.ProcessingOutcome, error) {
	outcomes, err := r.All()
	if err != nil {
		return nil, err
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].FinishedAt.After(outcomes[j].FinishedAt)
	})
	if n > 0 && len(outcomes) > n {
		outcomes = outcomes[:n]
	}
	return outcomes, nil
}

// Close releases the underlying database.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}
