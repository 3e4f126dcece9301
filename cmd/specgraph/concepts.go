// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/specgraph/internal/store"
	"github.com/pdiddy/specgraph/pkg/types"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Query the concept store (search, show, dependents, export, runs)",
	Long: `Concepts queries the SQLite store that extract --store writes. Every
subcommand reads the latest run unless --run selects another one.`,
}

// --- search subcommand ---

var conceptsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over concept identifiers, names and definitions",
	Long: `Search matches an FTS4 query against concept identifiers, names and
definition text, optionally filtered by --defined and --ctype.`,
	RunE: runConceptsSearch,
}

func runConceptsSearch(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	results, err := s.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func formatSearchOutput(results []types.Concept, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-40s  %-30s  %-8s  %-8s  %s\n", "ID", "Name", "Defined", "Type", "Deps")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, c := range results {
		fmt.Fprintf(os.Stdout, "%-40s  %-30s  %-8t  %-8s  %d\n",
			truncate(c.ID, 40), truncate(c.Name, 30), c.Defined, c.Classification, len(c.Dependencies))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- show subcommand ---

var conceptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one concept with its definition text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		runID, _ := cmd.Flags().GetString("run")
		c, err := s.Concept(context.Background(), runID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:           %s\n", c.ID)
		fmt.Printf("name:         %s\n", c.Name)
		fmt.Printf("defined:      %t\n", c.Defined)
		fmt.Printf("ctype:        %s\n", c.Classification)
		fmt.Printf("dependencies: %s\n", strings.Join(c.Dependencies, ", "))
		if c.DefinitionText != "" {
			fmt.Printf("\n%s\n", c.DefinitionText)
		}
		return nil
	},
}

// --- dependents subcommand ---

var conceptsDependentsCmd = &cobra.Command{
	Use:   "dependents <id>",
	Short: "List the concepts whose definitions refer to <id>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		runID, _ := cmd.Flags().GetString("run")
		ids, err := s.Dependents(context.Background(), runID, args[0])
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Fprintf(os.Stderr, "%d dependents\n", len(ids))
		return nil
	},
}

// --- export subcommand ---

var conceptsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored run to YAML or JSON",
	Long: `Export writes the concepts of a run (or a filtered subset) to
export.yaml or export.json in the store directory. Supports the same
filter flags as search.`,
	RunE: runConceptsExport,
}

func runConceptsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	var path string
	switch format {
	case "yaml", "":
		path, err = s.ExportYAML(context.Background(), opts)
	case "json":
		path, err = s.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- runs subcommand ---

var conceptsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored extraction runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.Runs(context.Background())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8s  %-8s  %-6s  %s\n", "Run", "Started", "Concepts", "Defined", "Rate", "Source")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
		for _, r := range runs {
			d := r.Diagnostics
			fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8d  %-8d  %-6.3f  %s\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), d.Concepts, d.Defined, d.Rate, r.Source)
		}
		return nil
	},
}

// --- shared helpers ---

func queryOptsFromFlags(cmd *cobra.Command, args []string) (store.QueryOptions, error) {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	ctype, _ := cmd.Flags().GetString("ctype")
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.QueryOptions{
		Query:      queryText,
		Run:        runID,
		MaxResults: limit,
	}
	if ctype != "" {
		label, err := types.ParseClassification(ctype)
		if err != nil {
			return opts, err
		}
		opts.Classification = label
	}
	if cmd.Flags().Changed("defined") {
		defined, _ := cmd.Flags().GetBool("defined")
		opts.Defined = &defined
	}
	return opts, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	conceptsCmd.PersistentFlags().String("store-dir", "store", "concept store directory")
	conceptsCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")
	conceptsCmd.PersistentFlags().String("run", "", "run identifier (default: latest run)")
	for _, c := range []*cobra.Command{conceptsSearchCmd, conceptsShowCmd, conceptsDependentsCmd, conceptsExportCmd, conceptsRunsCmd} {
		flagKeys[c] = map[string]string{
			"store-dir":   "store.dir",
			"max-results": "store.max_results",
		}
	}

	for _, c := range []*cobra.Command{conceptsSearchCmd, conceptsExportCmd} {
		c.Flags().String("query", "", "full-text search query")
		c.Flags().Bool("defined", false, "keep only defined concepts (false keeps only stubs)")
		c.Flags().String("ctype", "", "filter by classification: Callable, Variable, Value, Unknown")
	}
	conceptsSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	conceptsSearchCmd.Flags().Bool("json", false, "output results as JSON")
	conceptsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	conceptsCmd.AddCommand(conceptsSearchCmd)
	conceptsCmd.AddCommand(conceptsShowCmd)
	conceptsCmd.AddCommand(conceptsDependentsCmd)
	conceptsCmd.AddCommand(conceptsExportCmd)
	conceptsCmd.AddCommand(conceptsRunsCmd)

	rootCmd.AddCommand(conceptsCmd)
}
