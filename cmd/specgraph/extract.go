// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/internal/fetch"
	"github.com/pdiddy/specgraph/internal/graphdb"
	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/internal/pipeline"
	"github.com/pdiddy/specgraph/internal/store"
)

const oracleTimeout = 2 * time.Minute

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the source document into the local cache",
	Long: `Fetch downloads the document at fetch.url (default the WHATWG HTML
standard) and atomically replaces the cached copy at fetch.cache_path.
Rate-limited responses are retried with backoff.`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	fc := fetch.WithDefaults(cfg.Fetch)
	if err := fetch.Download(cmd.Context(), &http.Client{Timeout: fc.Timeout}, fc, logger); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "fetched %s -> %s\n", fc.URL, fc.CachePath)
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the concept dependency graph from the document",
	Long: `Extract parses the cached document (or --input), prunes non-defining
content, attributes a defining region to every marker it can, and writes
graph.json, concepts.json and unused.html to the output directory.

With an oracle configured, ambiguous parents can be resolved through the
command interpreter (--resolve) and concepts classified (--classify). Runs
are saved to the concept store with --store and mirrored into Neo4j when
graphdb.uri is set.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// --prune-class replaces the configured classes only when given.
	if cmd.Flags().Changed("prune-class") {
		cfg.Prune.Classes, _ = cmd.Flags().GetStringSlice("prune-class")
	}

	input, _ := cmd.Flags().GetString("input")
	src, source, err := readSource(ctx, input)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Config:  cfg,
		Metrics: metrics.New(),
		Log:     logger,
		Out:     os.Stdout,
	}

	opts.Oracle, err = oracle.New(cfg.Oracle, &http.Client{Timeout: oracleTimeout}, os.Stdin, os.Stderr, logger)
	if err != nil {
		return err
	}
	if opts.Oracle == nil && (cfg.Oracle.Classify || cfg.Oracle.Resolve) {
		logger.Warn("classification and resolution need an oracle backend; skipping them")
	}

	if cfg.Store.Enabled {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		opts.Store = s
	}

	g, err := graphdb.Open(ctx, cfg.GraphDB, logger)
	if err != nil {
		return err
	}
	if g != nil {
		defer g.Close(context.Background())
		opts.Graph = g
	}

	res, err := pipeline.Run(ctx, src, source, opts)
	if err != nil {
		return err
	}
	logger.Debug("run complete", zap.String("run_id", res.RunID), zap.Strings("files", res.Files))
	return nil
}

// readSource returns the document named by --input, or the fetched or
// cached document when no input is given.
func readSource(ctx context.Context, input string) ([]byte, string, error) {
	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, "", fmt.Errorf("reading input: %w", err)
		}
		return data, input, nil
	}

	fc := fetch.WithDefaults(cfg.Fetch)
	data, err := fetch.Load(ctx, &http.Client{Timeout: fc.Timeout}, fc, logger)
	if err != nil {
		return nil, "", err
	}
	source := fc.CachePath
	if fc.Download {
		source = fc.URL
	}
	return data, source, nil
}

func init() {
	fetchCmd.Flags().String("url", fetch.DefaultURL, "document URL")
	fetchCmd.Flags().String("cache", fetch.DefaultCachePath, "local cache path")
	flagKeys[fetchCmd] = map[string]string{
		"url":   "fetch.url",
		"cache": "fetch.cache_path",
	}

	extractCmd.Flags().String("input", "", "read this file instead of the cache")
	extractCmd.Flags().Bool("download", false, "download a fresh copy before extracting")
	extractCmd.Flags().String("cache", fetch.DefaultCachePath, "local cache path")
	extractCmd.Flags().String("out", ".", "directory for graph.json, concepts.json and unused.html")
	extractCmd.Flags().String("consume", "mark", "consumption mode: mark, remove or comment")
	extractCmd.Flags().String("redefinition", "last", "redefinition policy: last or first")
	extractCmd.Flags().StringSlice("prune-class", nil, "class names of non-defining blocks (replaces the defaults)")
	extractCmd.Flags().String("prune-section", "introduction", "heading id of a section removed before extraction")
	extractCmd.Flags().String("oracle", "none", "oracle backend: none, claude or terminal")
	extractCmd.Flags().String("model", "claude-sonnet-4-5", "model used by the claude oracle")
	extractCmd.Flags().String("context-format", "html", "context shown to the classifier: html or markdown")
	extractCmd.Flags().Bool("classify", false, "classify every concept with the oracle")
	extractCmd.Flags().Bool("resolve", false, "resolve ambiguous parents with the command interpreter")
	extractCmd.Flags().Int("max-steps", 10, "oracle replies allowed per interpreter session")
	extractCmd.Flags().Bool("store", false, "save the run to the concept store")
	extractCmd.Flags().String("store-dir", "store", "concept store directory")
	extractCmd.Flags().String("graphdb-uri", "", "Neo4j URI; empty disables the graph export")
	extractCmd.Flags().String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	flagKeys[extractCmd] = map[string]string{
		"download":       "fetch.download",
		"cache":          "fetch.cache_path",
		"out":            "output.dir",
		"consume":        "extraction.consume",
		"redefinition":   "extraction.redefinition",
		"prune-section":  "prune.section_id",
		"oracle":         "oracle.backend",
		"model":          "oracle.model",
		"context-format": "oracle.context_format",
		"classify":       "oracle.classify",
		"resolve":        "oracle.resolve",
		"max-steps":      "interpreter.max_steps",
		"store":          "store.enabled",
		"store-dir":      "store.dir",
		"graphdb-uri":    "graphdb.uri",
		"metrics-file":   "output.metrics_file",
	}

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(extractCmd)
}
