// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extracted graph over a read-only HTTP API",
	Long: `Serve republishes graph.json verbatim at /api/graph, the concept table
at /api/concepts, a small viewer under /static and Prometheus metrics at
/metrics. Files that no run has written yet are reported as 404 "not yet
generated". With --watch, cached files are reloaded when they change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(cfg.Serve, metrics.New(), logger)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func init() {
	serveCmd.Flags().String("addr", ":5000", "listen address")
	serveCmd.Flags().String("data-dir", ".", "directory holding graph.json and concepts.json")
	serveCmd.Flags().String("static-dir", "static", "directory served under /static")
	serveCmd.Flags().Bool("watch", true, "reload cached files when they change")
	flagKeys[serveCmd] = map[string]string{
		"addr":       "serve.addr",
		"data-dir":   "serve.data_dir",
		"static-dir": "serve.static_dir",
		"watch":      "serve.watch",
	}

	rootCmd.AddCommand(serveCmd)
}
