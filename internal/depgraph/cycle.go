package depgraph

import (
	"fmt"
	"strings"
)

// Cycle levels.
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// CycleWarning describes one strongly connected component of the graph.
//
// Cycles are expected: every assertion links its variables both ways. They
// terminate because a node whose recomputed state is unchanged does not
// notify its observers. Components held together only by assertion edges
// are reported at info level; components that include a derivation edge
// are warnings, since a derived option list feeding back into its own
// inducers is usually a rule-set mistake.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// Cycles finds strongly connected components with more than one node, or a
// self-loop, and reports each one.
func (g *Graph) Cycles() []CycleWarning {
	var warnings []CycleWarning
	for _, scc := range g.tarjanSCC() {
		if len(scc) == 1 && !g.hasEdge(scc[0], scc[0]) {
			continue
		}
		warnings = append(warnings, g.sccToWarning(scc))
	}
	return warnings
}

func (g *Graph) hasEdge(from, to string) bool {
	_, ok := g.kinds[edgeKey{from, to}]
	return ok
}

// tarjanSCC returns strongly connected components. Nodes are visited in
// declaration order and each component is sorted the same way, so output
// is stable across runs.
func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.out[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			g.sortByDeclaration(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func (g *Graph) sortByDeclaration(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && g.index[names[j]] < g.index[names[j-1]]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

func (g *Graph) sccToWarning(scc []string) CycleWarning {
	level := LevelInfo
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	for _, from := range scc {
		for _, to := range g.out[from] {
			if !members[to] {
				continue
			}
			for _, k := range g.kinds[edgeKey{from, to}] {
				if k == EdgeDerivation {
					level = LevelWarning
				}
			}
		}
	}

	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("variable %s triggers itself", scc[0]),
			Level:   level,
		}
	}

	path := g.cyclePath(scc, members)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
		Level:   level,
	}
}

// cyclePath walks edges inside the component from its first node until it
// returns to the start or runs out of unvisited members.
func (g *Graph) cyclePath(scc []string, members map[string]bool) []string {
	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true
		var next string
		for _, n := range g.out[current] {
			if members[n] && n != start && !visited[n] {
				next = n
				break
			}
		}
		if next == "" {
			if g.hasEdge(current, start) {
				path = append(path, start)
			}
			return path
		}
		path = append(path, next)
		current = next
	}
}
