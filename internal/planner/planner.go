// Package planner computes up to K ranked paths between two nodes by
// iterated shortest-path with multiplicative weight inflation (spec.md
// section 4.3). It is pure: the same graph state and parameters always
// produce the same ordered output.
package planner

import (
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

// Result is one tier's planned path and its cost at the time it was chosen.
type Result struct {
	Tier int
	Path []int64
	Cost float64
}

// Strategy selects how previously-chosen edges are discouraged between
// tiers.
type Strategy int

const (
	// Multiplicative multiplies every edge weight along the chosen path by
	// that tier's factor. This is the default, per spec.md's resolution of
	// the inflation-vs-deletion open question.
	Multiplicative Strategy = iota
	// DeleteMiddle multiplies the first and last edge of the chosen path by
	// 1000 and deletes interior edges outright, mirroring the alternate
	// strategy observed in one variant of the original source.
	DeleteMiddle
)

// Plan computes up to k ranked paths from src to dst. multipliers must have
// at least k entries; multipliers[i] is applied after tier i is chosen.
// Planning always runs against a private clone of topo's current edges, so
// inflation never mutates the shared Topology (spec.md section 9).
func Plan(topo *topology.Topology, src, dst int64, k int, multipliers []float64, strategy Strategy) ([]Result, error) {
	// A path requires at least two distinct nodes (spec.md section 3); a
	// request where source equals destination has none, by definition, not
	// a degenerate single-node route.
	if src == dst {
		return nil, &orcherr.NoPath{Src: src, Dst: dst}
	}

	g := cloneGraph(topo)

	var results []Result
	for tier := 0; tier < k; tier++ {
		nodes, cost, ok := shortestPath(g, src, dst)
		if !ok {
			break
		}
		results = append(results, Result{Tier: tier + 1, Path: nodes, Cost: cost})

		if tier == k-1 {
			break
		}
		inflate(g, nodes, multipliers[tier], strategy)
	}

	if len(results) == 0 {
		return nil, &orcherr.NoPath{Src: src, Dst: dst}
	}
	return results, nil
}

func cloneGraph(topo *topology.Topology) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, topo.FloorEpsilon())
	for _, n := range topo.Nodes() {
		g.AddNode(simple.Node(n))
	}
	for _, e := range topo.Edges() {
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.A), simple.Node(e.B), e.Weight))
	}
	return g
}

// shortestPath runs Dijkstra from src and extracts the path to dst, if any.
func shortestPath(g *simple.WeightedUndirectedGraph, src, dst int64) ([]int64, float64, bool) {
	if g.Node(src) == nil || g.Node(dst) == nil {
		return nil, 0, false
	}
	shortest := path.DijkstraFrom(g.Node(src), g)
	nodes, cost := shortest.To(dst)
	if len(nodes) == 0 {
		return nil, 0, false
	}
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids, cost, true
}

// inflate discourages reuse of the chosen path's edges in g, without
// deleting them outright under the default Multiplicative strategy (so
// connectivity is preserved for later tiers).
func inflate(g *simple.WeightedUndirectedGraph, nodes []int64, multiplier float64, strategy Strategy) {
	if len(nodes) < 2 {
		return
	}
	for i := 0; i < len(nodes)-1; i++ {
		u, v := nodes[i], nodes[i+1]
		e := g.WeightedEdge(u, v)
		if e == nil {
			continue
		}
		switch strategy {
		case DeleteMiddle:
			if i == 0 || i == len(nodes)-2 {
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(u), simple.Node(v), e.Weight()*1000))
			} else {
				g.RemoveEdge(u, v)
			}
		default: // Multiplicative
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(u), simple.Node(v), e.Weight()*multiplier))
		}
	}
}
