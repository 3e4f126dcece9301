// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/specgraph/internal/httputil"
	"github.com/pdiddy/specgraph/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
}

func withClaudeURL(t *testing.T, url string) {
	t.Helper()
	old := claudeAPIURL
	claudeAPIURL = url
	t.Cleanup(func() { claudeAPIURL = old })
}

func TestClaudeOracleSendsTranscript(t *testing.T) {
	var got claudeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Call"},{"type":"text","text":"able"}]}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	o := &ClaudeOracle{APIKey: "test-key", Model: "m", Client: ts.Client()}
	transcript := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "get_next_context()"},
		{Role: RoleUser, Content: "<p>next</p>"},
	}
	reply, err := o.Ask(context.Background(), transcript)
	require.NoError(t, err)

	assert.Equal(t, "Callable", reply)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, transcript, got.Messages)
}

func TestClaudeOracleRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"Value"}]}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	o := &ClaudeOracle{APIKey: "k", Client: ts.Client(), MaxRetries: 3}
	reply, err := Ask(context.Background(), o, "classify")
	require.NoError(t, err)
	assert.Equal(t, "Value", reply)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClaudeOracleClientErrorIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	o := &ClaudeOracle{APIKey: "k", Client: ts.Client()}
	_, err := Ask(context.Background(), o, "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClaudeOracleRateLimitUsesOneRetryBudget(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	o := &ClaudeOracle{APIKey: "k", Client: ts.Client(), MaxRetries: 2}
	_, err := Ask(context.Background(), o, "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClaudeOracleEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	o := &ClaudeOracle{APIKey: "k", Client: ts.Client(), MaxRetries: 1}
	_, err := Ask(context.Background(), o, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestTerminalOracle(t *testing.T) {
	var out bytes.Buffer
	o := NewTerminal(strings.NewReader("  finish()  \nsecond"), &out)

	reply, err := o.Ask(context.Background(), []Message{
		{Role: RoleUser, Content: "old"},
		{Role: RoleUser, Content: "Provide the next method call:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "finish()", reply)
	assert.Equal(t, "Provide the next method call:\n> ", out.String())

	reply, err = Ask(context.Background(), o, "again")
	require.NoError(t, err)
	assert.Equal(t, "second", reply)

	_, err = Ask(context.Background(), o, "done?")
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	o, err := New(types.OracleConfig{}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, o)

	_, err = New(types.OracleConfig{Backend: types.OracleClaude}, nil, nil, nil, nil)
	require.Error(t, err)

	o, err = New(types.OracleConfig{Backend: types.OracleClaude, AIConfig: types.AIConfig{APIKey: "k"}}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeOracle{}, o)

	o, err = New(types.OracleConfig{Backend: types.OracleTerminal}, nil, strings.NewReader(""), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TerminalOracle{}, o)

	_, err = New(types.OracleConfig{Backend: "crystal-ball"}, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"fenced", "Sure:\n```json\n{\"op\": \"finish\"}\n```\n", `{"op": "finish"}`},
		{"bare", `I will call {"op":"finish"} now`, `{"op":"finish"}`},
		{"trailing comma", `{"op":"add_dependencies","dependencies":["a","b",],}`, `{"op":"add_dependencies","dependencies":["a","b"]}`},
		{"none", "finish()", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.reply))
		})
	}
}
