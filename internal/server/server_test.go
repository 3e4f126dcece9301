// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/pkg/types"
)

const graphJSON = `{
    "node": [],
    "tree": [
        "node"
    ]
}
`

const conceptsJSON = `{
    "node": {"name": "node", "dependencies": [], "defined": false, "dfn_txt": "", "ctype": "Unknown"},
    "tree": {"name": "tree", "dependencies": ["node"], "defined": true, "dfn_txt": "<p>tree</p>", "ctype": "Callable"}
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newServer(t *testing.T, dir string) *Server {
	t.Helper()
	static := t.TempDir()
	writeFile(t, static, "index.html", "<html>viewer</html>")
	s, err := New(types.ServeConfig{DataDir: dir, StaticDir: static}, metrics.New(), nil)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func populated(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "graph.json", graphJSON)
	writeFile(t, dir, "concepts.json", conceptsJSON)
	return dir
}

func TestGraphServedVerbatim(t *testing.T) {
	s := newServer(t, populated(t))

	w := get(t, s, "/api/graph")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, graphJSON, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestMissingFilesAreNotYetGenerated(t *testing.T) {
	s := newServer(t, t.TempDir())

	for _, path := range []string{"/api/graph", "/api/concepts", "/api/concepts/tree"} {
		w := get(t, s, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "not yet generated", path)
	}
}

func TestConcepts(t *testing.T) {
	s := newServer(t, populated(t))

	tests := []struct {
		query   string
		wantIDs []string
	}{
		{"", []string{"node", "tree"}},
		{"?defined=true", []string{"tree"}},
		{"?defined=false", []string{"node"}},
		{"?ctype=Callable", []string{"tree"}},
		{"?q=NO", []string{"node"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, s, "/api/concepts"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			var body struct {
				Count    int `json:"count"`
				Concepts []struct {
					ID string `json:"id"`
				} `json:"concepts"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			var ids []string
			for _, c := range body.Concepts {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), body.Count)
		})
	}

	w := get(t, s, "/api/concepts?defined=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConceptAndDependents(t *testing.T) {
	s := newServer(t, populated(t))

	w := get(t, s, "/api/concepts/tree")
	require.Equal(t, http.StatusOK, w.Code)
	var c map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, "tree", c["id"])
	assert.Equal(t, "<p>tree</p>", c["dfn_txt"])
	assert.Equal(t, "Callable", c["ctype"])

	w = get(t, s, "/api/concepts/node/dependents")
	require.Equal(t, http.StatusOK, w.Code)
	var deps struct {
		Dependents []string `json:"dependents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deps))
	assert.Equal(t, []string{"tree"}, deps.Dependents)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/concepts/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/concepts/missing/dependents").Code)
}

func TestRootStaticAndHealth(t *testing.T) {
	s := newServer(t, populated(t))

	w := get(t, s, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/static/index.html", w.Header().Get("Location"))

	// The file server answers /static/index.html with a redirect to the
	// directory, which serves the index.
	w = get(t, s, "/static/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "viewer")

	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
}

func TestMetricsCountRequests(t *testing.T) {
	s := newServer(t, populated(t))
	get(t, s, "/api/graph")

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `specgraph_http_requests_total{code="200",route="/api/graph"} 1`)
	assert.True(t, strings.Contains(w.Body.String(), "specgraph_runs_total"))
}

func TestFileCacheWithoutWatchReadsDisk(t *testing.T) {
	dir := populated(t)
	c := NewFileCache(dir, false, nil)

	_, err := c.Get("graph.json")
	require.NoError(t, err)
	writeFile(t, dir, "graph.json", "{}")

	data, err := c.Get("graph.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestFileCacheInvalidatedOnChange(t *testing.T) {
	dir := populated(t)
	c := NewFileCache(dir, true, nil)

	data, err := c.Get("graph.json")
	require.NoError(t, err)
	assert.Equal(t, graphJSON, string(data))

	w, err := c.watcher()
	require.NoError(t, err)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.loop(ctx, w)

	writeFile(t, dir, "graph.json", "{}")

	assert.Eventually(t, func() bool {
		data, err := c.Get("graph.json")
		return err == nil && string(data) == "{}"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFileCacheDropsReadRacingInvalidation(t *testing.T) {
	dir := populated(t)
	c := NewFileCache(dir, true, nil)

	orig := readFile
	t.Cleanup(func() { readFile = orig })
	readFile = func(path string) ([]byte, error) {
		data, err := orig(path)
		writeFile(t, dir, "graph.json", "{}")
		c.Invalidate("graph.json")
		return data, err
	}

	data, err := c.Get("graph.json")
	require.NoError(t, err)
	assert.Equal(t, graphJSON, string(data))

	readFile = orig
	data, err = c.Get("graph.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
