// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/specgraph/pkg/types"
)

// Export is the document written by ExportJSON and ExportYAML.
type Export struct {
	Run      Run           `json:"run" yaml:"run"`
	Concepts []ExportEntry `json:"concepts" yaml:"concepts"`
}

// ExportEntry is one concept with its identifier inlined.
type ExportEntry struct {
	ID             string               `json:"id" yaml:"id"`
	Name           string               `json:"name" yaml:"name"`
	Defined        bool                 `json:"defined" yaml:"defined"`
	Classification types.Classification `json:"ctype" yaml:"ctype"`
	Dependencies   []string             `json:"dependencies" yaml:"dependencies"`
	DefinitionText string               `json:"dfn_txt,omitempty" yaml:"dfn_txt,omitempty"`
}

const exportLimit = 1000000

// ExportYAML writes the selected concepts to dir/export.yaml and returns
// the path. It supports the same filters as Retrieve.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	doc, err := s.export(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport("export.yaml", data)
}

// ExportJSON writes the selected concepts to dir/export.json and returns
// the path. It supports the same filters as Retrieve.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	doc, err := s.export(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport("export.json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) export(ctx context.Context, opts QueryOptions) (Export, error) {
	runID, err := s.resolveRun(ctx, opts.Run)
	if err != nil {
		return Export{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, source, diagnostics FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		return Export{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	opts.Run = runID
	opts.MaxResults = exportLimit
	concepts, err := s.Retrieve(ctx, opts)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}

	doc := Export{Run: run, Concepts: make([]ExportEntry, len(concepts))}
	for i, c := range concepts {
		doc.Concepts[i] = ExportEntry{
			ID:             c.ID,
			Name:           c.Name,
			Defined:        c.Defined,
			Classification: c.Classification,
			Dependencies:   c.Dependencies,
			DefinitionText: c.DefinitionText,
		}
	}
	return doc, nil
}
