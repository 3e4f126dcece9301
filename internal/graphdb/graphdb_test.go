// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/specgraph/pkg/types"
)

func TestOpenDisabledWithoutURI(t *testing.T) {
	c, err := Open(context.Background(), types.GraphDBConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, c.Close(context.Background()))
}

func TestRows(t *testing.T) {
	table := types.ConceptTable{
		"tree": {Name: "tree", Defined: true, Dependencies: []string{"root", "node"}, Classification: types.ClassValue},
		"node": {Name: "node", Defined: true, Dependencies: []string{"tree"}},
		"root": {},
	}

	concepts := ConceptRows("run-1", table)
	require.Len(t, concepts, 3)
	assert.Equal(t, map[string]any{
		"id": "node", "name": "node", "defined": true, "ctype": "Unknown", "run_id": "run-1",
	}, concepts[0])
	assert.Equal(t, "Value", concepts[2]["ctype"])

	assert.Equal(t, []map[string]any{
		{"src": "node", "dst": "tree", "run_id": "run-1"},
		{"src": "tree", "dst": "node", "run_id": "run-1"},
		{"src": "tree", "dst": "root", "run_id": "run-1"},
	}, EdgeRows("run-1", table))
}

func TestBatches(t *testing.T) {
	rows := make([]map[string]any, batchSize*2+5)
	for i := range rows {
		rows[i] = map[string]any{"id": fmt.Sprint(i)}
	}

	got := batches(rows)
	require.Len(t, got, 3)
	assert.Len(t, got[0], batchSize)
	assert.Len(t, got[2], 5)
	assert.Empty(t, batches(nil))
}
