package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/afep/internal/model"
)

// ErrNotFound is returned when no run matches a query
var ErrNotFound = errors.New("run not found")

// Store persists selection runs in SQLite
type Store struct {
	db *sql.DB
}

// Run is the stored summary of one selection run
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	DataDirs     []string
	OutFormat    string
	Threshold    int
	TotalSources int
	Documents    int
	Mentions     int
	Locations    int
	Counts       model.StageCounts
}

// Open opens (creating if needed) the database at path and ensures the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps SQLite writes serialized
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			data_dirs TEXT NOT NULL,
			out_format TEXT NOT NULL,
			threshold INTEGER NOT NULL,
			total_sources INTEGER NOT NULL,
			documents INTEGER NOT NULL,
			mentions INTEGER NOT NULL,
			locations INTEGER NOT NULL,
			concepts_loaded INTEGER NOT NULL,
			concepts_corroborated INTEGER NOT NULL,
			concepts_in_matrix INTEGER NOT NULL,
			concepts_selected INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS selections (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			cui TEXT NOT NULL,
			weight INTEGER NOT NULL,
			covered INTEGER NOT NULL,
			source_count INTEGER NOT NULL,
			remaining INTEGER NOT NULL,
			PRIMARY KEY (run_id, rank)
		);`,
		`CREATE TABLE IF NOT EXISTS dictionary (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			cui TEXT NOT NULL,
			preferred_name TEXT NOT NULL,
			concept_strings TEXT NOT NULL,
			matched_texts TEXT NOT NULL,
			sources TEXT NOT NULL,
			semantic_types TEXT NOT NULL,
			PRIMARY KEY (run_id, cui)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores a run report with its selection and dictionary. Saving the
// same run id again replaces it.
func (s *Store) SaveRun(ctx context.Context, report *model.RunReport) error {
	dirs, err := json.Marshal(report.DataDirs)
	if err != nil {
		return fmt.Errorf("marshal data dirs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"selections", "dictionary"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, report.RunID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, data_dirs, out_format, threshold, total_sources,
			documents, mentions, locations, concepts_loaded, concepts_corroborated, concepts_in_matrix, concepts_selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			data_dirs = excluded.data_dirs,
			out_format = excluded.out_format,
			threshold = excluded.threshold,
			total_sources = excluded.total_sources,
			documents = excluded.documents,
			mentions = excluded.mentions,
			locations = excluded.locations,
			concepts_loaded = excluded.concepts_loaded,
			concepts_corroborated = excluded.concepts_corroborated,
			concepts_in_matrix = excluded.concepts_in_matrix,
			concepts_selected = excluded.concepts_selected
	`, report.RunID, formatTime(report.StartedAt), formatTime(report.FinishedAt), string(dirs), report.OutFormat,
		report.Threshold, len(report.Sources), report.Documents, report.Mentions, report.Locations,
		report.Counts.ConceptsLoaded, report.Counts.ConceptsCorroborated, report.Counts.ConceptsInMatrix, report.Counts.ConceptsSelected)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	for i, p := range report.Selection {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO selections (run_id, rank, cui, weight, covered, source_count, remaining)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, i+1, p.ConceptID, p.Weight, p.Covered, p.SourceCount, p.Remaining)
		if err != nil {
			return fmt.Errorf("insert selection %s: %w", p.ConceptID, err)
		}
	}

	for _, e := range report.Dictionary {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dictionary (run_id, cui, preferred_name, concept_strings, matched_texts, sources, semantic_types)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, e.ConceptID, e.PreferredName, e.ConceptStrings, e.MatchedTexts, e.Sources, e.SemanticTypes)
		if err != nil {
			return fmt.Errorf("insert dictionary entry %s: %w", e.ConceptID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, data_dirs, out_format, threshold, total_sources,
			documents, mentions, locations, concepts_loaded, concepts_corroborated, concepts_in_matrix, concepts_selected
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1
	`)

	var run Run
	var started, finished, dirs string
	err := row.Scan(&run.ID, &started, &finished, &dirs, &run.OutFormat, &run.Threshold, &run.TotalSources,
		&run.Documents, &run.Mentions, &run.Locations, &run.Counts.ConceptsLoaded, &run.Counts.ConceptsCorroborated,
		&run.Counts.ConceptsInMatrix, &run.Counts.ConceptsSelected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("latest run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(dirs), &run.DataDirs); err != nil {
		return Run{}, fmt.Errorf("unmarshal data dirs: %w", err)
	}
	return run, nil
}

// Selections returns the picks of a run in selection order
func (s *Store) Selections(ctx context.Context, runID string) ([]model.Pick, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cui, weight, covered, source_count, remaining
		FROM selections WHERE run_id = ? ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var picks []model.Pick
	for rows.Next() {
		var p model.Pick
		if err := rows.Scan(&p.ConceptID, &p.Weight, &p.Covered, &p.SourceCount, &p.Remaining); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return picks, nil
}

// Dictionary returns the dictionary entries of a run in selection order
func (s *Store) Dictionary(ctx context.Context, runID string) ([]model.DictionaryEntry, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.cui, d.preferred_name, d.concept_strings, d.matched_texts, d.sources, d.semantic_types
		FROM dictionary d JOIN selections s ON s.run_id = d.run_id AND s.cui = d.cui
		WHERE d.run_id = ? ORDER BY s.rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list dictionary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.DictionaryEntry
	for rows.Next() {
		var e model.DictionaryEntry
		if err := rows.Scan(&e.ConceptID, &e.PreferredName, &e.ConceptStrings, &e.MatchedTexts, &e.Sources, &e.SemanticTypes); err != nil {
			return nil, fmt.Errorf("scan dictionary entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dictionary: %w", err)
	}
	return entries, nil
}

func (s *Store) exists(ctx context.Context, runID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
