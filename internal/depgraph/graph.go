// Package depgraph materializes the variable dependency graph.
//
// Nodes are variable names. An edge from B to A means a committed change of
// B triggers recomputation of A. The graph is built once per session and
// is read-only afterwards; observer lists come back in node declaration
// order so propagation is deterministic.
package depgraph

import (
	"sort"
	"strings"

	"github.com/xlab/treeprint"
)

// EdgeKind records why an edge exists.
type EdgeKind string

const (
	// EdgeAssertion links two variables named by the same assertion.
	EdgeAssertion EdgeKind = "assertion"
	// EdgeDerivation links an inducing variable to a derived target.
	EdgeDerivation EdgeKind = "derivation"
)

// Edge is one directed edge with the reasons it was added.
type Edge struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Kinds []EdgeKind `json:"kinds"`
}

type edgeKey struct{ from, to string }

// Graph is a directed dependency graph with ordered nodes.
type Graph struct {
	nodes []string
	index map[string]int
	out   map[string][]string
	kinds map[edgeKey][]EdgeKind
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		out:   make(map[string][]string),
		kinds: make(map[edgeKey][]EdgeKind),
	}
}

// AddNode registers name. Re-adding keeps the original position.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge records that a change of from triggers recomputation of to.
// Unknown endpoints are added as nodes. Adding the same edge twice only
// records the extra kind.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) {
	g.AddNode(from)
	g.AddNode(to)
	key := edgeKey{from, to}
	ks, exists := g.kinds[key]
	if !exists {
		g.out[from] = append(g.out[from], to)
		sort.SliceStable(g.out[from], func(i, j int) bool {
			return g.index[g.out[from][i]] < g.index[g.out[from][j]]
		})
	}
	for _, k := range ks {
		if k == kind {
			return
		}
	}
	g.kinds[key] = append(ks, kind)
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Observers returns the variables recomputed when name changes.
func (g *Graph) Observers(name string) []string {
	return append([]string(nil), g.out[name]...)
}

// Observed returns the variables whose change recomputes name.
func (g *Graph) Observed(name string) []string {
	var in []string
	for _, n := range g.nodes {
		if _, ok := g.kinds[edgeKey{n, name}]; ok {
			in = append(in, n)
		}
	}
	return in
}

// EdgeKinds returns why from -> to exists, or nil.
func (g *Graph) EdgeKinds(from, to string) []EdgeKind {
	return append([]EdgeKind(nil), g.kinds[edgeKey{from, to}]...)
}

// Edges returns every edge, ordered by source then target declaration.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.nodes {
		for _, to := range g.out[from] {
			edges = append(edges, Edge{From: from, To: to, Kinds: g.EdgeKinds(from, to)})
		}
	}
	return edges
}

// Render draws each node with the observers it triggers.
func (g *Graph) Render(title string) string {
	tree := treeprint.NewWithRoot(title)
	for _, n := range g.nodes {
		observers := g.out[n]
		if len(observers) == 0 {
			tree.AddNode(n)
			continue
		}
		branch := tree.AddBranch(n)
		for _, o := range observers {
			branch.AddMetaNode(kindsLabel(g.kinds[edgeKey{n, o}]), o)
		}
	}
	return tree.String()
}

func kindsLabel(kinds []EdgeKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
