// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/specgraph/internal/graphdb"
	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/internal/store"
	"github.com/pdiddy/specgraph/pkg/types"
)

const doc = `<!DOCTYPE html><html><body>
<!-- editorial -->
<div class="note"><p><dfn id="noted">noted</dfn></p></div>
<h2 id="introduction">Introduction</h2>
<p><dfn id="intro-term">intro</dfn> is skipped.</p>
<h2 id="trees">Trees</h2>
<p>To build a <dfn id="tree">tree</dfn>:</p>
<ol><li>Create a <a href="#node">node</a>.</li><li>Attach a <a href="#root">root</a>.</li></ol>
<p>A <dfn id="node">node</dfn> holds a <a href="#value">value</a>.</p>
<p><dfn id="x">X</dfn> refers to <dfn id="y">Y</dfn> via <a href="#z">z</a>.</p>
<p>Leftover prose.</p>
</body></html>`

func testConfig(t *testing.T) types.PipelineConfig {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// scripted answers interpreter prompts with a fixed sequence of calls and
// classification prompts with Callable.
func scripted(calls ...string) oracle.Oracle {
	return oracle.Func(func(_ context.Context, transcript []oracle.Message) (string, error) {
		if strings.HasPrefix(transcript[0].Content, "You classify") {
			return "Callable", nil
		}
		step := len(transcript) / 2
		if step >= len(calls) {
			return "finish()", nil
		}
		return calls[step], nil
	})
}

func TestRunWithoutOracle(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	res, err := Run(context.Background(), []byte(doc), "test.html", Options{Config: cfg, Out: &out})
	require.NoError(t, err)

	d := res.Diagnostics
	assert.Equal(t, 4, d.Markers)
	assert.Equal(t, 2, d.Defined)
	assert.Equal(t, 2, d.SkippedAmbiguous)
	assert.Equal(t, 0, d.InterpreterResolved)
	assert.Equal(t, 1, res.Prune.Comments)
	assert.Equal(t, 1, res.Prune.Blocks)
	assert.Len(t, res.Files, 3)
	assert.Contains(t, out.String(), "extraction rate")

	var graph types.Graph
	readJSON(t, filepath.Join(cfg.Output.Dir, GraphFile), &graph)
	assert.Equal(t, []string{"node", "root"}, graph["tree"])
	assert.Equal(t, []string{"value"}, graph["node"])
	assert.NotContains(t, graph, "noted")
	assert.NotContains(t, graph, "intro-term")
	for id, deps := range graph {
		for _, dep := range deps {
			assert.Contains(t, graph, dep, "%s -> %s has no record", id, dep)
		}
	}

	var table map[string]map[string]any
	readJSON(t, filepath.Join(cfg.Output.Dir, ConceptsFile), &table)
	tree := table["tree"]
	assert.Equal(t, true, tree["defined"])
	assert.Equal(t, "tree", tree["name"])
	assert.Equal(t, "Unknown", tree["ctype"])
	assert.Contains(t, tree["dfn_txt"], "To build a")
	assert.Equal(t, false, table["root"]["defined"])

	residual, err := os.ReadFile(filepath.Join(cfg.Output.Dir, ResidualFile))
	require.NoError(t, err)
	assert.Contains(t, string(residual), "Leftover prose.")
	assert.Contains(t, string(residual), "refers to")
	assert.NotContains(t, string(residual), "To build a")
	assert.NotContains(t, string(residual), "holds a")
}

func TestRunResolvesAndClassifies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Resolve = true
	cfg.Oracle.Classify = true
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "specgraph.prom")

	rec := metrics.New()
	o := scripted(
		"get_next_context()",
		"create_concept(x)",
		`{"op": "add_dependencies", "concept": "x", "dependencies": ["z", "y"]}`,
		"finish()",
	)

	res, err := Run(context.Background(), []byte(doc), "test.html", Options{Config: cfg, Oracle: o, Metrics: rec})
	require.NoError(t, err)

	d := res.Diagnostics
	assert.Equal(t, 1, d.InterpreterResolved)
	assert.Equal(t, 0, d.InterpreterUnresolved)
	assert.Equal(t, 4, d.Classified)
	assert.Equal(t, 0, d.ClassifiedCoerced)

	x := res.Table["x"]
	assert.True(t, x.Defined)
	assert.Equal(t, "X", x.Name)
	assert.Equal(t, []string{"y", "z"}, x.Dependencies)
	assert.Equal(t, types.ClassCallable, x.Classification)
	assert.False(t, res.Table["y"].Defined)

	residual, err := os.ReadFile(filepath.Join(cfg.Output.Dir, ResidualFile))
	require.NoError(t, err)
	assert.NotContains(t, string(residual), "refers to")

	n, err := testutil.GatherAndCount(rec.Registry(), "specgraph_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(cfg.Output.MetricsFile)
	assert.NoError(t, err)
}

func TestRunCountsUnresolvedAmbiguity(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Resolve = true
	cfg.Interpreter.MaxSteps = 2
	o := oracle.Func(func(context.Context, []oracle.Message) (string, error) {
		return "I am not sure.", nil
	})

	res, err := Run(context.Background(), []byte(doc), "test.html", Options{Config: cfg, Oracle: o})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Diagnostics.InterpreterUnresolved)
	assert.False(t, res.Table["x"].Defined)
}

func TestRunOracleFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Resolve = true
	cfg.Oracle.Classify = true
	o := oracle.Func(func(context.Context, []oracle.Message) (string, error) {
		return "", errors.New("connection refused")
	})

	res, err := Run(context.Background(), []byte(doc), "test.html", Options{Config: cfg, Oracle: o})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Diagnostics.InterpreterUnresolved)
	assert.Equal(t, 4, res.Diagnostics.ClassifiedCoerced)
}

type fakeGraph struct {
	runID string
	table types.ConceptTable
}

func (f *fakeGraph) Export(_ context.Context, runID string, table types.ConceptTable) (graphdb.Summary, error) {
	f.runID = runID
	f.table = table
	return graphdb.Summary{Concepts: len(table)}, nil
}

func TestRunPersists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Dir = t.TempDir()
	s, err := store.Open(cfg.Store)
	require.NoError(t, err)
	defer s.Close()
	g := &fakeGraph{}

	res, err := Run(context.Background(), []byte(doc), "test.html", Options{Config: cfg, Store: s, Graph: g})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, "test.html", run.Source)
	assert.Equal(t, res.Diagnostics.Defined, run.Diagnostics.Defined)

	c, err := s.Concept(context.Background(), res.RunID, "tree")
	require.NoError(t, err)
	assert.Equal(t, []string{"node", "root"}, c.Dependencies)

	assert.Equal(t, res.RunID, g.runID)
	assert.Len(t, g.table, len(res.Table))
	assert.Equal(t, len(res.Table), res.Exported.Concepts)
}

func TestRunIsDeterministic(t *testing.T) {
	for _, mode := range []types.ConsumeMode{types.ConsumeMark, types.ConsumeRemove, types.ConsumeComment} {
		t.Run(string(mode), func(t *testing.T) {
			first := testConfig(t)
			first.Extraction.Consume = mode
			second := testConfig(t)
			second.Extraction.Consume = mode

			_, err := Run(context.Background(), []byte(doc), "a", Options{Config: first})
			require.NoError(t, err)
			_, err = Run(context.Background(), []byte(doc), "b", Options{Config: second})
			require.NoError(t, err)

			a, err := os.ReadFile(filepath.Join(first.Output.Dir, GraphFile))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(second.Output.Dir, GraphFile))
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		})
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extraction.Consume = "shred"
	_, err := Run(context.Background(), []byte(doc), "x", Options{Config: cfg})
	assert.Error(t, err)
}
