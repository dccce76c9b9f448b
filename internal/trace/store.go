// Package trace persists finished runs to a local SQLite database so past
// answers and their full transcripts can be inspected later.
package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store records runs in SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Run is one persisted run.
type Run struct {
	ID           string
	StartedAt    time.Time
	Duration     time.Duration
	Model        string
	Query        string
	Answer       string
	Found        bool
	Iterations   int
	InputTokens  int64
	OutputTokens int64
	Transcript   []IterationRecord
}

// IterationRecord is one exchange within a run's transcript.
type IterationRecord struct {
	Index      int               `json:"index"`
	Response   string            `json:"response"`
	Executions []ExecutionRecord `json:"executions,omitempty"`
}

// ExecutionRecord is one executed code block within an iteration.
type ExecutionRecord struct {
	Code       string `json:"code"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// NewStore opens (or creates) the run database at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		model TEXT NOT NULL,
		query TEXT NOT NULL,
		answer TEXT,
		found INTEGER NOT NULL DEFAULT 0,
		iterations INTEGER NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		transcript TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	if _, err := s.db.Exec(runsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists a finished run.
func (s *Store) Record(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcriptJSON, _ := json.Marshal(run.Transcript)

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs
		 (id, started_at, duration_ms, model, query, answer, found, iterations, input_tokens, output_tokens, transcript)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Duration.Milliseconds(), run.Model, run.Query,
		run.Answer, run.Found, run.Iterations, run.InputTokens, run.OutputTokens,
		string(transcriptJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Get loads one run by ID, including its transcript.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, started_at, duration_ms, model, query, answer, found, iterations, input_tokens, output_tokens, transcript
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// Find resolves a run by full ID or unique ID prefix.
func (s *Store) Find(idOrPrefix string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, started_at, duration_ms, model, query, answer, found, iterations, input_tokens, output_tokens, transcript
		 FROM runs WHERE id LIKE ? LIMIT 2`, idOrPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			continue
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %s not found", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run prefix %s is ambiguous", idOrPrefix)
	}
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, duration_ms, model, query, answer, found, iterations, input_tokens, output_tokens, transcript
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			continue
		}
		results = append(results, *run)
	}
	return results, rows.Err()
}

// Stats returns aggregate statistics across all recorded runs.
func (s *Store) Stats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var totalCount int64
	s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalCount)
	stats["total_runs"] = totalCount

	var foundCount int64
	s.db.QueryRow("SELECT COUNT(*) FROM runs WHERE found = 1").Scan(&foundCount)
	if totalCount > 0 {
		stats["found_rate"] = float64(foundCount) / float64(totalCount)
	}

	var avgDuration float64
	s.db.QueryRow("SELECT AVG(duration_ms) FROM runs").Scan(&avgDuration)
	stats["avg_duration_ms"] = avgDuration

	var avgIterations float64
	s.db.QueryRow("SELECT AVG(iterations) FROM runs").Scan(&avgIterations)
	stats["avg_iterations"] = avgIterations

	var inputTokens, outputTokens int64
	s.db.QueryRow("SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0) FROM runs").Scan(&inputTokens, &outputTokens)
	stats["total_input_tokens"] = inputTokens
	stats["total_output_tokens"] = outputTokens

	modelStats := make(map[string]int64)
	rows, err := s.db.Query("SELECT model, COUNT(*) FROM runs GROUP BY model")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var model string
			var count int64
			if rows.Scan(&model, &count) == nil {
				modelStats[model] = count
			}
		}
	}
	stats["by_model"] = modelStats

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var durationMS int64
	var found int
	var answer, transcriptJSON sql.NullString

	err := row.Scan(&run.ID, &run.StartedAt, &durationMS, &run.Model, &run.Query,
		&answer, &found, &run.Iterations, &run.InputTokens, &run.OutputTokens, &transcriptJSON)
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Found = found != 0
	run.Answer = answer.String
	if transcriptJSON.Valid && transcriptJSON.String != "" {
		json.Unmarshal([]byte(transcriptJSON.String), &run.Transcript)
	}
	return &run, nil
}
