// Package usage aggregates token consumption across a loop run and merges
// run summaries into a persistent per-user ledger.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add accumulates one call's counts.
func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

// Summary is a point-in-time copy of everything a tracker has seen.
type Summary struct {
	TotalCalls  int                    `json:"total_calls"`
	Totals      TokenCounts            `json:"totals"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"`
}

// Add folds another summary into this one.
func (s *Summary) Add(other Summary) {
	s.TotalCalls += other.TotalCalls
	s.Totals.Add(int(other.Totals.Input), int(other.Totals.Output))
	if s.ByModel == nil {
		s.ByModel = make(map[string]TokenCounts)
	}
	if s.ByOperation == nil {
		s.ByOperation = make(map[string]TokenCounts)
	}
	for model, counts := range other.ByModel {
		addToMap(s.ByModel, model, int(counts.Input), int(counts.Output))
	}
	for op, counts := range other.ByOperation {
		addToMap(s.ByOperation, op, int(counts.Input), int(counts.Output))
	}
}

// Tracker aggregates token usage for one run. Safe for concurrent use:
// batched sub-queries record from several goroutines.
type Tracker struct {
	mu          sync.Mutex
	calls       int
	totals      TokenCounts
	byModel     map[string]TokenCounts
	byOperation map[string]TokenCounts
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byModel:     make(map[string]TokenCounts),
		byOperation: make(map[string]TokenCounts),
	}
}

// Record adds one model call.
func (t *Tracker) Record(model, operation string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	t.totals.Add(input, output)
	addToMap(t.byModel, model, input, output)
	addToMap(t.byOperation, operation, input, output)
}

// Snapshot returns a copy of the aggregated counts.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Summary{
		TotalCalls:  t.calls,
		Totals:      t.totals,
		ByModel:     copyCounts(t.byModel),
		ByOperation: copyCounts(t.byOperation),
	}
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

func copyCounts(src map[string]TokenCounts) map[string]TokenCounts {
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

// Merge folds a run summary into the ledger file at path, creating the
// file and its directory on first use. A corrupt ledger is replaced rather
// than poisoning every later run.
func Merge(path string, run Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create usage dir: %w", err)
	}

	var ledger Summary
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &ledger); err != nil {
			ledger = Summary{}
		}
	}

	ledger.Add(run)

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads the ledger file at path. A missing file is an empty summary.
func Load(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}
	var ledger Summary
	if err := json.Unmarshal(data, &ledger); err != nil {
		return Summary{}, fmt.Errorf("failed to parse usage ledger: %w", err)
	}
	return ledger, nil
}
