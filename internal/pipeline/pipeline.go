// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one extraction end to end: parse, prune, extract,
// resolve ambiguities, classify, and write the graph outputs, optionally
// persisting the run to the concept store and the graph database.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/internal/classify"
	"github.com/pdiddy/specgraph/internal/dom"
	"github.com/pdiddy/specgraph/internal/extract"
	"github.com/pdiddy/specgraph/internal/graphdb"
	"github.com/pdiddy/specgraph/internal/interp"
	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/internal/registry"
	"github.com/pdiddy/specgraph/internal/store"
	"github.com/pdiddy/specgraph/pkg/types"
)

// Output file names inside the output directory.
const (
	GraphFile    = "graph.json"
	ConceptsFile = "concepts.json"
	ResidualFile = "unused.html"
)

// DefaultConfig returns the configuration used when no file or flag
// overrides a setting.
func DefaultConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "specgraph/0.1",
			},
			URL:       "https://html.spec.whatwg.org/",
			CachePath: "spec.html",
		},
		Prune: types.PruneConfig{
			Classes:   append([]string(nil), dom.DefaultPruneClasses...),
			SectionID: "introduction",
		},
		Extraction: types.ExtractionConfig{}.WithDefaults(),
		Oracle: types.OracleConfig{
			AIConfig: types.AIConfig{
				Model:      "claude-sonnet-4-5",
				MaxRetries: 3,
				MaxTokens:  1024,
			},
			Backend:       types.OracleNone,
			ContextFormat: types.ContextHTML,
		},
		Interpreter: types.InterpreterConfig{MaxSteps: interp.DefaultMaxSteps},
		Output:      types.OutputConfig{Dir: "."},
		Store:       types.StoreConfig{Dir: "store", MaxResults: 20},
		GraphDB: types.GraphDBConfig{
			User:    "neo4j",
			Timeout: 10 * time.Second,
		},
		Serve: types.ServeConfig{
			Addr:      ":5000",
			DataDir:   ".",
			StaticDir: "static",
			Watch:     true,
		},
		Log: types.LogConfig{Mode: "development", Level: "info"},
	}
}

// ConceptSaver persists a finished run. *store.Store implements it.
type ConceptSaver interface {
	Save(ctx context.Context, run store.Run, table types.ConceptTable) (store.Run, error)
}

// GraphExporter mirrors a finished run into a graph database.
// *graphdb.Client implements it.
type GraphExporter interface {
	Export(ctx context.Context, runID string, table types.ConceptTable) (graphdb.Summary, error)
}

// Options carries the collaborators of a run. Only Config is required.
type Options struct {
	Config types.PipelineConfig

	// Oracle answers classification and interpreter prompts. Nil disables
	// both stages.
	Oracle oracle.Oracle

	Store   ConceptSaver
	Graph   GraphExporter
	Metrics *metrics.Recorder
	Log     *zap.Logger

	// Out receives operator progress lines.
	Out io.Writer
}

// Result is the outcome of a run.
type Result struct {
	Diagnostics types.Diagnostics
	Prune       dom.PruneSummary
	Graph       types.Graph
	Table       types.ConceptTable

	// RunID is the store identifier, empty when no store is configured.
	RunID string

	Exported graphdb.Summary

	// Files lists the output paths written.
	Files []string
}

// Run extracts the concept graph from src, the raw markup of the document
// named by source. Recoverable extraction problems are counted in the
// diagnostics; only parse, I/O and persistence failures are returned.
func Run(ctx context.Context, src []byte, source string, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	cfg := opts.Config
	cfg.Extraction = cfg.Extraction.WithDefaults()
	started := time.Now()

	root, err := dom.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Prune = dom.Prune(root, cfg.Prune, log)
	fmt.Fprintf(out, "pruned %d comments, %d blocks, %d section nodes\n",
		res.Prune.Comments, res.Prune.Blocks, res.Prune.SectionNodes)

	tracker, err := dom.NewTracker(cfg.Extraction.Consume)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(cfg.Extraction.Redefinition, log)
	if err != nil {
		return nil, err
	}

	engine := extract.NewEngine(cfg.Extraction, reg, tracker, log)
	ext := engine.Run(root)
	d := ext.Diagnostics
	fmt.Fprintf(out, "extracted %d of %d markers (%d ambiguous parents)\n",
		d.Defined, d.Markers, len(ext.Ambiguities))

	if opts.Oracle != nil && cfg.Oracle.Resolve && len(ext.Ambiguities) > 0 {
		o := opts.Oracle
		if opts.Metrics != nil {
			o = opts.Metrics.Instrument(o, "interpret")
		}
		if err := resolve(ctx, o, ext.Ambiguities, reg, tracker, cfg.Interpreter, &d, log); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "interpreter resolved %d, unresolved %d\n", d.InterpreterResolved, d.InterpreterUnresolved)
	}

	if opts.Oracle != nil && cfg.Oracle.Classify {
		o := opts.Oracle
		if opts.Metrics != nil {
			o = opts.Metrics.Instrument(o, "classify")
		}
		pass := classify.New(o, reg, cfg.Oracle.ContextFormat, cfg.Extraction.IdentityAttr, log)
		sum, err := pass.Run(ctx, ext.Markers)
		if err != nil {
			return nil, fmt.Errorf("classifying concepts: %w", err)
		}
		d.Classified = sum.Classified
		d.ClassifiedCoerced = sum.Coerced + sum.Failed
		fmt.Fprintf(out, "classified %d concepts (%d coerced to Unknown)\n", d.Classified, d.ClassifiedCoerced)
	}

	engine.Summarize(ext.Markers, &d)
	res.Diagnostics = d
	res.Graph = reg.Graph()
	res.Table = reg.Table()

	files, err := writeOutputs(cfg.Output.Dir, res.Graph, res.Table, tracker.Residual(root))
	if err != nil {
		return nil, err
	}
	res.Files = files
	for _, f := range files {
		fmt.Fprintf(out, "wrote %s\n", f)
	}

	if opts.Store != nil {
		run, err := opts.Store.Save(ctx, store.Run{StartedAt: started, Source: source, Diagnostics: d}, res.Table)
		if err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		res.RunID = run.ID
		fmt.Fprintf(out, "stored run %s\n", run.ID)
	}

	if opts.Graph != nil {
		sum, err := opts.Graph.Export(ctx, res.RunID, res.Table)
		if err != nil {
			return nil, fmt.Errorf("exporting graph: %w", err)
		}
		res.Exported = sum
		fmt.Fprintf(out, "exported %d concepts, %d edges to graph database\n", sum.Concepts, sum.Edges)
	}

	if opts.Metrics != nil {
		opts.Metrics.ObserveRun(d)
		if cfg.Output.MetricsFile != "" {
			if err := opts.Metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
				return nil, err
			}
		}
	}

	fmt.Fprintf(out, "%d concepts, %d defined, %d undefined, %d markers remaining, extraction rate %.3f\n",
		d.Concepts, d.Defined, d.Undefined, d.Remaining, d.Rate)
	log.Info("extraction finished",
		zap.String("source", source),
		zap.Int("concepts", d.Concepts),
		zap.Int("defined", d.Defined),
		zap.Int("undefined", d.Undefined),
		zap.Int("remaining", d.Remaining),
		zap.Float64("rate", d.Rate),
		zap.Int("skipped_ambiguous", d.SkippedAmbiguous),
		zap.Int("skipped_shape", d.SkippedShape),
		zap.Int("redefinitions", d.Redefinitions),
		zap.Int("cycles", d.Cycles),
		zap.Duration("elapsed", time.Since(started)))

	return res, nil
}

// resolve hands every ambiguous parent still present to an interpreter
// session and applies the solutions that finish. Sessions that run out of
// steps or whose oracle fails are counted as unresolved.
func resolve(ctx context.Context, o oracle.Oracle, ambiguities []extract.Ambiguity, reg *registry.Registry,
	tracker *dom.Tracker, cfg types.InterpreterConfig, d *types.Diagnostics, log *zap.Logger) error {
	for _, amb := range ambiguities {
		if tracker.Consumed(amb.Parent) || len(amb.IDs) == 0 {
			continue
		}

		region := registry.Region{Names: amb.Names, Text: dom.Render(amb.Parent)}
		session := interp.NewSession(o, amb.Parent, cfg.MaxSteps, log)
		actions, err := session.Run(ctx, interp.AmbiguityTask(amb.IDs))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.InterpreterUnresolved++
			if errors.Is(err, interp.ErrUnresolved) {
				log.Warn("ambiguity unresolved", zap.Strings("ids", amb.IDs), zap.Int("steps", session.Steps()))
			} else {
				log.Warn("interpreter session failed", zap.Strings("ids", amb.IDs), zap.Error(err))
			}
			continue
		}

		written := reg.Apply(actions, region)
		tracker.Consume(amb.Parent)
		d.InterpreterResolved++
		log.Debug("ambiguity resolved",
			zap.Strings("ids", amb.IDs),
			zap.Strings("written", written),
			zap.Int("steps", session.Steps()))
	}
	return nil
}

func writeOutputs(dir string, graph types.Graph, table types.ConceptTable, residual string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	graphPath := filepath.Join(dir, GraphFile)
	if err := writeJSON(graphPath, graph); err != nil {
		return nil, err
	}
	conceptsPath := filepath.Join(dir, ConceptsFile)
	if err := writeJSON(conceptsPath, table); err != nil {
		return nil, err
	}
	residualPath := filepath.Join(dir, ResidualFile)
	if err := os.WriteFile(residualPath, []byte(residual), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", residualPath, err)
	}
	return []string{graphPath, conceptsPath, residualPath}, nil
}

// writeJSON marshals v with four-space indentation. Map keys come out
// sorted, so identical registries produce identical files.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
