package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCircularDependency is returned by DependencyGraph.Order when foreign
// keys form a cycle
var ErrCircularDependency = errors.New("circular dependency")

// DependencyGraph orders entity types by their foreign keys. A dependent
// entity type depends on the principal of each of its foreign keys.
// Self-referencing foreign keys are not edges.
type DependencyGraph struct {
	nodes []string
	edges map[string][]string
}

// NewDependencyGraph builds the graph from the current foreign keys of m
func NewDependencyGraph(m *Model) *DependencyGraph {
	g := &DependencyGraph{edges: make(map[string][]string)}
	for _, et := range m.EntityTypes() {
		g.nodes = append(g.nodes, et.name)
		for _, fk := range et.foreignKeys {
			principal := fk.principalType.name
			if principal == et.name || containsName(g.edges[et.name], principal) {
				continue
			}
			g.edges[et.name] = append(g.edges[et.name], principal)
		}
		sort.Strings(g.edges[et.name])
	}
	return g
}

// Dependencies returns the principals name directly depends on
func (g *DependencyGraph) Dependencies(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// Dependents returns the entity types that directly depend on name
func (g *DependencyGraph) Dependents(name string) []string {
	var dependents []string
	for _, node := range g.nodes {
		if containsName(g.edges[node], name) {
			dependents = append(dependents, node)
		}
	}
	return dependents
}

// Cycles returns every cycle found by a depth-first walk in name order.
// Each cycle starts at the entity type where the walk entered it.
func (g *DependencyGraph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				walk(next, path)
				continue
			}
			if onStack[next] {
				for i, n := range path {
					if n == next {
						cycles = append(cycles, append([]string(nil), path[i:]...))
						break
					}
				}
			}
		}
		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			walk(node, nil)
		}
	}
	return cycles
}

// Order returns the entity types with principals before their dependents.
// Entity types that are ready at the same time come in name order.
func (g *DependencyGraph) Order() ([]string, error) {
	pending := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		pending[node] = len(g.edges[node])
	}

	var ready []string
	for _, node := range g.nodes {
		if pending[node] == 0 {
			ready = append(ready, node)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		var released []string
		for _, dependent := range g.Dependents(node) {
			pending[dependent]--
			if pending[dependent] == 0 {
				released = append(released, dependent)
			}
		}
		ready = append(ready, released...)
		sort.Strings(ready)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, formatCycles(g.Cycles()))
	}
	return order, nil
}

func formatCycles(cycles [][]string) string {
	parts := make([]string, len(cycles))
	for i, cycle := range cycles {
		parts[i] = strings.Join(cycle, " -> ") + " -> " + cycle[0]
	}
	return strings.Join(parts, "; ")
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
