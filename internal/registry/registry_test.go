// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/specgraph/pkg/types"
)

func newRegistry(t *testing.T, policy types.RedefinitionPolicy) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	r, err := New(policy, zap.New(core))
	require.NoError(t, err)
	return r, logs
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New("middle", nil)
	require.Error(t, err)
}

func TestDefineCreatesStubsForDependencies(t *testing.T) {
	r, _ := newRegistry(t, "")

	ok := r.Define("tree", "tree", []string{"node", "root", "node", ""}, "<p>tree</p>")
	require.True(t, ok)

	tree, found := r.Get("tree")
	require.True(t, found)
	assert.True(t, tree.Defined)
	assert.Equal(t, []string{"node", "root"}, tree.Dependencies)
	assert.Equal(t, types.ClassUnknown, tree.Classification)

	for _, id := range []string{"node", "root"} {
		stub, found := r.Get(id)
		require.True(t, found, id)
		assert.False(t, stub.Defined)
		assert.Empty(t, stub.Dependencies)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 1, r.Defined())
	assert.Equal(t, 2, r.Undefined())
}

func TestDefineStubBeforeDefinition(t *testing.T) {
	r, _ := newRegistry(t, "")

	r.Define("a", "A", []string{"b"}, "<p>a</p>")
	r.Define("b", "B", nil, "<p>b</p>")

	b, _ := r.Get("b")
	assert.True(t, b.Defined)
	assert.Equal(t, "B", b.Name)
	assert.Equal(t, 0, r.Redefinitions())
}

func TestRedefinitionPolicies(t *testing.T) {
	tests := []struct {
		policy   types.RedefinitionPolicy
		wantName string
		wantDeps []string
		wantOK   bool
	}{
		{types.RedefineLastWins, "second", []string{"y"}, true},
		{types.RedefineFirstWins, "first", []string{"x"}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			r, logs := newRegistry(t, tt.policy)
			r.Classify("c", types.ClassValue)

			r.Define("c", "first", []string{"x"}, "<p>1</p>")
			ok := r.Define("c", "second", []string{"y"}, "<p>2</p>")

			assert.Equal(t, tt.wantOK, ok)
			c, _ := r.Get("c")
			assert.Equal(t, tt.wantName, c.Name)
			assert.Equal(t, tt.wantDeps, c.Dependencies)
			assert.Equal(t, types.ClassValue, c.Classification)
			assert.Equal(t, 1, r.Redefinitions())
			assert.Equal(t, 1, logs.FilterMessage("concept redefined").Len())
		})
	}
}

func TestClassifyNeverDefines(t *testing.T) {
	r, _ := newRegistry(t, "")
	r.Classify("fn", types.ClassCallable)

	c, ok := r.Get("fn")
	require.True(t, ok)
	assert.False(t, c.Defined)
	assert.Equal(t, types.ClassCallable, c.Classification)
}

func TestGraphCoversEveryDependency(t *testing.T) {
	r, _ := newRegistry(t, "")
	r.Define("a", "A", []string{"b", "c"}, "")
	r.Define("b", "B", []string{"d"}, "")

	g := r.Graph()
	for id, deps := range g {
		for _, d := range deps {
			_, ok := g[d]
			assert.True(t, ok, "%s -> %s has no record", id, d)
		}
	}
	assert.Equal(t, []string{"b", "c"}, g["a"])
	assert.Equal(t, []string{}, g["d"])

	table := r.Table()
	assert.Len(t, table, 4)
	assert.False(t, table["c"].Defined)
}

func TestGetReturnsCopy(t *testing.T) {
	r, _ := newRegistry(t, "")
	r.Define("a", "A", []string{"b"}, "")

	c, _ := r.Get("a")
	c.Dependencies[0] = "mutated"

	again, _ := r.Get("a")
	assert.Equal(t, []string{"b"}, again.Dependencies)
}

func TestApply(t *testing.T) {
	r, _ := newRegistry(t, "")
	actions := []types.Action{
		{Kind: types.ActionCreate, Concept: "x"},
		{Kind: types.ActionAdd, Concept: "x", Dependencies: []string{"p"}},
		{Kind: types.ActionAdd, Concept: "y", Dependencies: []string{"q"}},
		{Kind: types.ActionAdd, Concept: "x", Dependencies: []string{"r", "p"}},
		{Kind: types.ActionCreate, Concept: ""},
	}

	written := r.Apply(actions, Region{
		Names: map[string]string{"x": "the x"},
		Text:  "<p>ctx</p>",
	})

	assert.Equal(t, []string{"x", "y"}, written)
	x, _ := r.Get("x")
	assert.Equal(t, "the x", x.Name)
	assert.Equal(t, []string{"p", "r"}, x.Dependencies)
	assert.Equal(t, "<p>ctx</p>", x.DefinitionText)
	y, _ := r.Get("y")
	assert.Equal(t, "y", y.Name)
	assert.True(t, y.Defined)
	q, _ := r.Get("q")
	assert.False(t, q.Defined)
}

func TestCycles(t *testing.T) {
	r, _ := newRegistry(t, "")
	r.Define("a", "A", []string{"b"}, "")
	r.Define("b", "B", []string{"c"}, "")
	r.Define("c", "C", []string{"a", "d"}, "")
	r.Define("d", "D", nil, "")
	r.Define("self", "S", []string{"self"}, "")

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"self"}}, r.Cycles())
	assert.Equal(t, []string{"self"}, r.SelfReferences())
}

func TestCyclesAcyclic(t *testing.T) {
	r, _ := newRegistry(t, "")
	r.Define("a", "A", []string{"b"}, "")
	r.Define("b", "B", nil, "")

	assert.Empty(t, r.Cycles())
	assert.Empty(t, r.SelfReferences())
}
