package trace

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_runs.db")
	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndGet(t *testing.T) {
	store := newTestStore(t)

	run := Run{
		ID:           "run_001",
		StartedAt:    time.Now(),
		Duration:     2500 * time.Millisecond,
		Model:        "gpt-4o-mini",
		Query:        "How many vowels are in the third sentence?",
		Answer:       "11",
		Found:        true,
		Iterations:   3,
		InputTokens:  1500,
		OutputTokens: 420,
		Transcript: []IterationRecord{
			{
				Index:    0,
				Response: "Let me count them.\n```repl\nfmt.Println(len(context))\n```",
				Executions: []ExecutionRecord{
					{Code: "fmt.Println(len(context))", Output: "1043", DurationMS: 12},
				},
			},
			{Index: 1, Response: `FINAL("11")`},
		},
	}

	if err := store.Record(run); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	got, err := store.Get("run_001")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}

	if got.ID != run.ID {
		t.Errorf("Expected ID %s, got %s", run.ID, got.ID)
	}
	if got.Answer != "11" {
		t.Errorf("Expected answer 11, got %s", got.Answer)
	}
	if !got.Found {
		t.Error("Expected found=true")
	}
	if got.Iterations != 3 {
		t.Errorf("Expected 3 iterations, got %d", got.Iterations)
	}
	if got.InputTokens != 1500 || got.OutputTokens != 420 {
		t.Errorf("Expected tokens 1500/420, got %d/%d", got.InputTokens, got.OutputTokens)
	}
	if got.Duration != 2500*time.Millisecond {
		t.Errorf("Expected duration 2.5s, got %v", got.Duration)
	}
	if len(got.Transcript) != 2 {
		t.Fatalf("Expected 2 transcript entries, got %d", len(got.Transcript))
	}
	if len(got.Transcript[0].Executions) != 1 {
		t.Fatalf("Expected 1 execution in first iteration, got %d", len(got.Transcript[0].Executions))
	}
	if got.Transcript[0].Executions[0].Output != "1043" {
		t.Errorf("Expected execution output 1043, got %s", got.Transcript[0].Executions[0].Output)
	}
	if got.Transcript[1].Response != `FINAL("11")` {
		t.Errorf("Expected final response preserved, got %s", got.Transcript[1].Response)
	}
}

func TestStore_GetMissingRun(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("does_not_exist")
	if err == nil {
		t.Fatal("Expected error for missing run")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestStore_FindByPrefix(t *testing.T) {
	store := newTestStore(t)

	ids := []string{"4c2d9a1e-0001", "4c2d9a1e-0002", "7f3e1b2c-0001"}
	for _, id := range ids {
		run := Run{ID: id, StartedAt: time.Now(), Model: "gpt-4o-mini", Query: "test"}
		if err := store.Record(run); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
	}

	got, err := store.Find("7f3e")
	if err != nil {
		t.Fatalf("Failed to find by prefix: %v", err)
	}
	if got.ID != "7f3e1b2c-0001" {
		t.Errorf("Expected prefix match, got %s", got.ID)
	}

	if _, err := store.Find("4c2d"); err == nil {
		t.Error("Expected ambiguous prefix error")
	}

	if _, err := store.Find("zzzz"); err == nil {
		t.Error("Expected not-found error")
	}

	exact, err := store.Find("4c2d9a1e-0001")
	if err != nil {
		t.Fatalf("Failed to find by full ID: %v", err)
	}
	if exact.ID != "4c2d9a1e-0001" {
		t.Errorf("Expected exact match, got %s", exact.ID)
	}
}

func TestStore_RecordReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	run := Run{
		ID:        "run_001",
		StartedAt: time.Now(),
		Model:     "gpt-4o-mini",
		Query:     "test",
		Answer:    "first",
		Found:     false,
	}
	if err := store.Record(run); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	run.Answer = "second"
	run.Found = true
	if err := store.Record(run); err != nil {
		t.Fatalf("Failed to re-record run: %v", err)
	}

	got, err := store.Get("run_001")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got.Answer != "second" {
		t.Errorf("Expected updated answer, got %s", got.Answer)
	}
	if !got.Found {
		t.Error("Expected found=true after update")
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("Expected 1 run after replace, got %d", len(recent))
	}
}

func TestStore_Recent(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := Run{
			ID:        string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Model:     "gpt-4o-mini",
			Query:     "test",
		}
		if err := store.Record(run); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[2].ID != "a" {
		t.Errorf("Expected newest first (c..a), got %s..%s", recent[0].ID, recent[2].ID)
	}

	limited, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 runs with limit, got %d", len(limited))
	}

	defaulted, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(defaulted) != 3 {
		t.Errorf("Expected default limit to return all 3 runs, got %d", len(defaulted))
	}
}

func TestStore_EmptyTranscript(t *testing.T) {
	store := newTestStore(t)

	run := Run{
		ID:        "run_bare",
		StartedAt: time.Now(),
		Model:     "gpt-4o-mini",
		Query:     "test",
		Answer:    "done",
	}
	if err := store.Record(run); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	got, err := store.Get("run_bare")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if len(got.Transcript) != 0 {
		t.Errorf("Expected empty transcript, got %d entries", len(got.Transcript))
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_runs.db")

	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	run := Run{
		ID:        "run_001",
		StartedAt: time.Now(),
		Model:     "gpt-4o-mini",
		Query:     "test",
		Answer:    "42",
		Found:     true,
	}
	if err := store.Record(run); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	reopened, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("run_001")
	if err != nil {
		t.Fatalf("Failed to get run after reopen: %v", err)
	}
	if got.Answer != "42" {
		t.Errorf("Expected answer 42 after reopen, got %s", got.Answer)
	}
}

func TestStore_Stats(t *testing.T) {
	store := newTestStore(t)

	models := []string{"gpt-4o-mini", "gpt-4o-mini", "gpt-4o-mini", "claude-sonnet-4", "claude-sonnet-4"}
	for i, model := range models {
		run := Run{
			ID:           string(rune('a' + i)),
			StartedAt:    time.Now(),
			Model:        model,
			Query:        "test",
			Found:        i%2 == 0, // 3 found, 2 not
			Iterations:   i + 1,
			InputTokens:  100,
			OutputTokens: 50,
		}
		if err := store.Record(run); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	totalRuns, ok := stats["total_runs"].(int64)
	if !ok || totalRuns != 5 {
		t.Errorf("Expected 5 total runs, got %v", stats["total_runs"])
	}

	foundRate, ok := stats["found_rate"].(float64)
	if !ok || foundRate != 0.6 {
		t.Errorf("Expected found rate 0.6, got %v", stats["found_rate"])
	}

	inputTokens, ok := stats["total_input_tokens"].(int64)
	if !ok || inputTokens != 500 {
		t.Errorf("Expected 500 input tokens, got %v", stats["total_input_tokens"])
	}

	byModel, ok := stats["by_model"].(map[string]int64)
	if !ok {
		t.Fatalf("Expected by_model map, got %v", stats["by_model"])
	}
	if byModel["gpt-4o-mini"] != 3 || byModel["claude-sonnet-4"] != 2 {
		t.Errorf("Expected model counts 3/2, got %v", byModel)
	}
}
