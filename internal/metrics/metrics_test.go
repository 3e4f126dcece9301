// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/pkg/types"
)

func TestObserveRun(t *testing.T) {
	r := New()
	r.ObserveRun(types.Diagnostics{Markers: 10, Defined: 6, Remaining: 2, SkippedAmbiguous: 3, Rate: 0.75})

	assert.Equal(t, 10.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("markers")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("skipped_ambiguous")))
	assert.Equal(t, 0.75, testutil.ToFloat64(r.rate))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs))
	assert.Equal(t, len(diagnosticValues(types.Diagnostics{})), testutil.CollectAndCount(r.diagnostics))
}

func TestInstrument(t *testing.T) {
	r := New()
	fail := false
	o := r.Instrument(oracle.Func(func(context.Context, []oracle.Message) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "Value", nil
	}), "classify")

	_, err := oracle.Ask(context.Background(), o, "q")
	require.NoError(t, err)
	fail = true
	_, err = oracle.Ask(context.Background(), o, "q")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.oracleCalls.WithLabelValues("classify", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.oracleCalls.WithLabelValues("classify", "error")))
	assert.Nil(t, r.Instrument(nil, "interp"))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveRun(types.Diagnostics{Defined: 4})

	path := filepath.Join(t.TempDir(), "specgraph.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `specgraph_diagnostic{name="defined"} 4`)
	assert.Contains(t, string(data), "specgraph_runs_total 1")
}
