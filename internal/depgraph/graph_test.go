package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_ObserversInDeclarationOrder(t *testing.T) {
	g := New()
	for _, n := range []string{"A", "B", "C", "D"} {
		g.AddNode(n)
	}
	g.AddEdge("A", "D", EdgeAssertion)
	g.AddEdge("A", "B", EdgeDerivation)
	g.AddEdge("A", "C", EdgeAssertion)

	assert.Equal(t, []string{"B", "C", "D"}, g.Observers("A"))
	assert.Equal(t, []string{"A"}, g.Observed("C"))
	assert.Empty(t, g.Observers("D"))
}

func TestGraph_AddEdgeMergesKinds(t *testing.T) {
	g := New()
	g.AddEdge("A", "B", EdgeAssertion)
	g.AddEdge("A", "B", EdgeDerivation)
	g.AddEdge("A", "B", EdgeAssertion)

	assert.Equal(t, []string{"B"}, g.Observers("A"))
	assert.Equal(t, []EdgeKind{EdgeAssertion, EdgeDerivation}, g.EdgeKinds("A", "B"))
	require.Len(t, g.Edges(), 1)
}

func TestGraph_AddEdgeAddsNodes(t *testing.T) {
	g := New()
	g.AddEdge("X", "Y", EdgeAssertion)
	assert.True(t, g.Has("X"))
	assert.True(t, g.Has("Y"))
	assert.Equal(t, []string{"X", "Y"}, g.Nodes())
}

func TestGraph_Render(t *testing.T) {
	g := New()
	g.AddNode("INITTIME")
	g.AddNode("COMPSET")
	g.AddEdge("INITTIME", "COMPSET", EdgeDerivation)

	out := g.Render("deps")
	assert.Contains(t, out, "deps")
	assert.Contains(t, out, "INITTIME")
	assert.Contains(t, out, "[derivation]")
	assert.Contains(t, out, "COMPSET")
}
