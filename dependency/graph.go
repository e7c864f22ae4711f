// Package dependency builds the "must be computed before" graph over
// accounts and orders it topologically.
//
// Edges come from three independent strategies:
//   - Parameter references: base accounts, calculation references and formula variables
//   - Subtotals: children of a childrenSum account precede the parent
//   - Cash-flow impacts: flow accounts precede their adjustment target, base-profit
//     accounts precede retained earnings
//
// The union of all edges is sorted with Kahn's algorithm. Ties within a wave
// are broken by the original account order so results are reproducible.
package dependency

import "fmt"

// EdgeKind names the strategy that produced an edge.
type EdgeKind string

const (
	EdgeParameter EdgeKind = "parameter"
	EdgeSubtotal  EdgeKind = "subtotal"
	EdgeCashFlow  EdgeKind = "cashflow"
)

// Edge points from a prerequisite account to its dependent.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Kind)
}

// Graph is a directed graph over account ids. Nodes remember their
// insertion index, which serves as the deterministic tie-breaker.
type Graph struct {
	// index maps node ID to insertion position
	index map[string]int
	nodes []string

	// edges maps from node ID to list of outgoing edges
	edges map[string][]Edge

	// seen dedupes edges by endpoint pair
	seen map[[2]string]bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[string][]Edge),
		seen:  make(map[[2]string]bool),
	}
}

// AddNode adds a node if not already present.
func (g *Graph) AddNode(id string) {
	if _, exists := g.index[id]; exists {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// AddEdge adds a directed edge between two existing nodes. Edges with an
// unknown endpoint are ignored and reported as false; a repeated endpoint
// pair keeps the first edge.
func (g *Graph) AddEdge(e Edge) bool {
	if !g.HasNode(e.From) || !g.HasNode(e.To) {
		return false
	}
	key := [2]string{e.From, e.To}
	if g.seen[key] {
		return true
	}
	g.seen[key] = true
	g.edges[e.From] = append(g.edges[e.From], e)
	return true
}

// Nodes returns node ids in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// OutgoingEdges returns all edges leaving a node.
func (g *Graph) OutgoingEdges(from string) []Edge {
	edges := g.edges[from]
	if edges == nil {
		return []Edge{}
	}
	return edges
}

// IncomingEdges returns all edges entering a node, in source insertion order.
func (g *Graph) IncomingEdges(to string) []Edge {
	var in []Edge
	for _, from := range g.nodes {
		for _, e := range g.edges[from] {
			if e.To == to {
				in = append(in, e)
			}
		}
	}
	return in
}

// Stats returns information about the graph structure.
type Stats struct {
	NodeCount int
	EdgeCount int
	ByKind    map[EdgeKind]int
}

// GetStats returns graph statistics.
func (g *Graph) GetStats() Stats {
	stats := Stats{NodeCount: len(g.nodes), ByKind: make(map[EdgeKind]int)}
	for _, edges := range g.edges {
		for _, e := range edges {
			stats.EdgeCount++
			stats.ByKind[e.Kind]++
		}
	}
	return stats
}
