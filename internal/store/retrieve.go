// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/specgraph/pkg/types"
)

// QueryOptions holds parameters for concept queries.
type QueryOptions struct {
	// Query is an FTS4 match expression over identifier, name and
	// definition text.
	Query string

	// Defined, when non-nil, keeps only defined (true) or stub (false) records.
	Defined *bool

	// Classification filters by label.
	Classification types.Classification

	// Run selects a run; empty means the latest.
	Run string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Retrieve queries the concepts of one run. Results are ordered by
// identifier.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]types.Concept, error) {
	runID, err := s.resolveRun(ctx, opts.Run)
	if err != nil {
		return nil, err
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	const cols = `c.concept_id, c.name, c.defined, c.dfn_txt, c.ctype, c.dependencies`

	if opts.Query != "" {
		qb.WriteString(`SELECT ` + cols + `
			FROM concepts_fts
			JOIN concepts c ON c.rowid = concepts_fts.docid
			WHERE concepts_fts MATCH ? AND c.run_id = ?`)
		args = append(args, opts.Query, runID)
	} else {
		qb.WriteString(`SELECT ` + cols + ` FROM concepts c WHERE c.run_id = ?`)
		args = append(args, runID)
	}

	if opts.Defined != nil {
		qb.WriteString(` AND c.defined = ?`)
		args = append(args, *opts.Defined)
	}
	if opts.Classification != "" {
		qb.WriteString(` AND c.ctype = ?`)
		args = append(args, string(opts.Classification))
	}

	qb.WriteString(` ORDER BY c.concept_id LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying concepts: %w", err)
	}
	defer rows.Close()

	var results []types.Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Concept returns one record of a run (latest when runID is empty).
func (s *Store) Concept(ctx context.Context, runID, id string) (types.Concept, error) {
	runID, err := s.resolveRun(ctx, runID)
	if err != nil {
		return types.Concept{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT concept_id, name, defined, dfn_txt, ctype, dependencies
		 FROM concepts WHERE run_id = ? AND concept_id = ?`, runID, id)
	c, err := scanConcept(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Concept{}, fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	return c, err
}

// Dependents returns the identifiers whose dependencies include id, sorted.
func (s *Store) Dependents(ctx context.Context, runID, id string) ([]string, error) {
	runID, err := s.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT src FROM edges WHERE run_id = ? AND dst = ? ORDER BY src`, runID, id)
	if err != nil {
		return nil, fmt.Errorf("querying dependents: %w", err)
	}
	defer rows.Close()

	deps := []string{}
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scanning dependent: %w", err)
		}
		deps = append(deps, src)
	}
	return deps, rows.Err()
}

func scanConcept(sc scanner) (types.Concept, error) {
	var (
		c        types.Concept
		name     sql.NullString
		dfnTxt   sql.NullString
		ctype    sql.NullString
		depsJSON sql.NullString
	)
	if err := sc.Scan(&c.ID, &name, &c.Defined, &dfnTxt, &ctype, &depsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Concept{}, err
		}
		return types.Concept{}, fmt.Errorf("scanning concept: %w", err)
	}
	c.Name = name.String
	c.DefinitionText = dfnTxt.String
	c.Classification = types.Classification(ctype.String)
	if c.Classification == "" {
		c.Classification = types.ClassUnknown
	}
	c.Dependencies = []string{}
	if depsJSON.Valid {
		json.Unmarshal([]byte(depsJSON.String), &c.Dependencies)
	}
	return c, nil
}
