// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists extraction runs and their concept tables in
// SQLite, with full-text search over names and definition text.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/specgraph/pkg/types"
)

const (
	dbFile            = "specgraph.db"
	defaultMaxResults = 20
)

var (
	// ErrNoRuns reports a query against an empty store.
	ErrNoRuns = errors.New("no extraction runs stored")

	// ErrNotFound reports an unknown run or concept identifier.
	ErrNotFound = errors.New("not found")
)

// Run describes one stored extraction.
type Run struct {
	ID          string            `json:"id" yaml:"id"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	Source      string            `json:"source" yaml:"source"`
	Diagnostics types.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// Store manages the concept database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates dir/specgraph.db and its schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			source TEXT,
			diagnostics TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS concepts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			concept_id TEXT NOT NULL,
			name TEXT,
			defined INTEGER NOT NULL,
			dfn_txt TEXT,
			ctype TEXT,
			dependencies TEXT,
			UNIQUE(run_id, concept_id)
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			src TEXT NOT NULL,
			dst TEXT NOT NULL,
			PRIMARY KEY (run_id, src, dst)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(run_id, dst)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS4 external-content table kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='concepts_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE concepts_fts USING fts4(content="concepts", concept_id, name, dfn_txt)`,
		`CREATE TRIGGER concepts_bd BEFORE DELETE ON concepts BEGIN
			DELETE FROM concepts_fts WHERE docid = old.rowid;
		END`,
		`CREATE TRIGGER concepts_bu BEFORE UPDATE ON concepts BEGIN
			DELETE FROM concepts_fts WHERE docid = old.rowid;
		END`,
		`CREATE TRIGGER concepts_ai AFTER INSERT ON concepts BEGIN
			INSERT INTO concepts_fts(docid, concept_id, name, dfn_txt) VALUES (new.rowid, new.concept_id, new.name, new.dfn_txt);
		END`,
		`CREATE TRIGGER concepts_au AFTER UPDATE ON concepts BEGIN
			INSERT INTO concepts_fts(docid, concept_id, name, dfn_txt) VALUES (new.rowid, new.concept_id, new.name, new.dfn_txt);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// timeLayout keeps started_at fixed width so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Save records run and its concept table in one transaction. An empty
// run ID gets a fresh UUID and a zero start time becomes now. The stored
// run is returned.
func (s *Store) Save(ctx context.Context, run Run, table types.ConceptTable) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()

	diagJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return Run{}, fmt.Errorf("marshaling diagnostics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source, diagnostics) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(timeLayout), run.Source, string(diagJSON),
	); err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}

	conceptStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO concepts (run_id, concept_id, name, defined, dfn_txt, ctype, dependencies)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing concept insert: %w", err)
	}
	defer conceptStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO edges (run_id, src, dst) VALUES (?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := table[id]
		deps := c.Dependencies
		if deps == nil {
			deps = []string{}
		}
		depsJSON, _ := json.Marshal(deps)
		if _, err := conceptStmt.ExecContext(ctx,
			run.ID, id, c.Name, c.Defined, c.DefinitionText, string(c.Classification), string(depsJSON),
		); err != nil {
			return Run{}, fmt.Errorf("inserting concept %s: %w", id, err)
		}
		for _, dep := range deps {
			if _, err := edgeStmt.ExecContext(ctx, run.ID, id, dep); err != nil {
				return Run{}, fmt.Errorf("inserting edge %s -> %s: %w", id, dep, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing run: %w", err)
	}
	return run, nil
}

// Runs returns every stored run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, source, diagnostics FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, source, diagnostics FROM runs ORDER BY started_at DESC, id LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		startedAt string
		source    sql.NullString
		diagJSON  sql.NullString
	)
	if err := sc.Scan(&r.ID, &startedAt, &source, &diagJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.StartedAt, _ = time.Parse(timeLayout, startedAt)
	r.Source = source.String
	if diagJSON.Valid {
		json.Unmarshal([]byte(diagJSON.String), &r.Diagnostics)
	}
	return r, nil
}

// resolveRun returns runID, or the latest run's ID when runID is empty.
func (s *Store) resolveRun(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	r, err := s.LatestRun(ctx)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
