// Package topology models the static router mesh: nodes, links, per-link
// weight, and the forward/return SRv6 endpoint tables consulted by the
// segment translator. The graph is entirely known at load time; there is no
// dynamic add/remove of nodes or links at runtime (spec.md C1).
package topology

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
)

// Endpoint is the (segment address, egress interface) pair associated with
// one directed hop in one direction (forward or return).
type Endpoint struct {
	Segment string
	Iface   string
}

type hopKey struct{ From, To int64 }

type linkKey struct{ A, B int64 } // A < B

func normLink(a, b int64) linkKey {
	if a > b {
		a, b = b, a
	}
	return linkKey{a, b}
}

// LinkMeta carries the per-link attributes that are not the mutable weight:
// max bandwidth and the time-series sample key (absent for a few links).
type LinkMeta struct {
	MaxBandwidth float64
	SampleKey    string // empty means absent
}

// Topology is the static mesh plus per-link mutable weight. All mutation of
// weight is single-writer (the orchestration loop); reads from the planner
// happen on a private snapshot, never on this shared value (see
// internal/planner).
type Topology struct {
	g        *simple.WeightedUndirectedGraph
	links    map[linkKey]LinkMeta
	forward  map[hopKey]Endpoint
	ret      map[hopKey]Endpoint
	floorEps float64
}

// New builds an empty topology. FloorEpsilon is the smallest weight any
// link may carry (spec.md's epsilon).
func New(floorEpsilon float64) *Topology {
	return &Topology{
		g:        simple.NewWeightedUndirectedGraph(0, floorEpsilon),
		links:    make(map[linkKey]LinkMeta),
		forward:  make(map[hopKey]Endpoint),
		ret:      make(map[hopKey]Endpoint),
		floorEps: floorEpsilon,
	}
}

// AddLink registers an undirected link between a and b with the given max
// bandwidth and sample key (empty = absent), initializing its weight to the
// floor epsilon.
func (t *Topology) AddLink(a, b int64, maxBandwidth float64, sampleKey string) {
	if !t.g.HasNode(a) {
		t.g.AddNode(simple.Node(a))
	}
	if !t.g.HasNode(b) {
		t.g.AddNode(simple.Node(b))
	}
	t.g.SetWeightedEdge(t.g.NewWeightedEdge(simple.Node(a), simple.Node(b), t.floorEps))
	t.links[normLink(a, b)] = LinkMeta{MaxBandwidth: maxBandwidth, SampleKey: sampleKey}
}

// SetForward registers the forward-direction (segment, interface) for hop
// from->to.
func (t *Topology) SetForward(from, to int64, ep Endpoint) {
	t.forward[hopKey{from, to}] = ep
}

// SetReturn registers the return-direction (segment, interface) for hop
// from->to.
func (t *Topology) SetReturn(from, to int64, ep Endpoint) {
	t.ret[hopKey{from, to}] = ep
}

// Nodes returns every node ID in the topology.
func (t *Topology) Nodes() []int64 {
	it := t.g.Nodes()
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	return out
}

// Neighbors returns the nodes directly linked to n.
func (t *Topology) Neighbors(n int64) []int64 {
	it := t.g.From(n)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	return out
}

// Weight returns the current routing cost of link (a,b). Panics-free: an
// undefined link returns the floor epsilon, since the caller is expected to
// have validated connectivity via Neighbors first.
func (t *Topology) Weight(a, b int64) float64 {
	e := t.g.WeightedEdge(a, b)
	if e == nil {
		return t.floorEps
	}
	return e.Weight()
}

// SetWeight sets the routing cost of link (a,b), clamped to the floor
// epsilon (spec.md invariant: weight >= epsilon always).
func (t *Topology) SetWeight(a, b int64, w float64) {
	if w < t.floorEps {
		w = t.floorEps
	}
	t.g.SetWeightedEdge(t.g.NewWeightedEdge(simple.Node(a), simple.Node(b), w))
}

// FloorEpsilon returns the configured weight floor.
func (t *Topology) FloorEpsilon() float64 { return t.floorEps }

// SampleKey returns the time-series key for link (a,b), and whether one is
// defined (a few links intentionally have none).
func (t *Topology) SampleKey(a, b int64) (string, bool) {
	meta, ok := t.links[normLink(a, b)]
	if !ok || meta.SampleKey == "" {
		return "", false
	}
	return meta.SampleKey, true
}

// MaxBandwidth returns the configured max bandwidth for link (a,b).
func (t *Topology) MaxBandwidth(a, b int64) float64 {
	return t.links[normLink(a, b)].MaxBandwidth
}

// Forward returns the forward-direction segment and egress interface for
// hop from->to, failing with MissingEndpoint if undefined.
func (t *Topology) Forward(from, to int64) (Endpoint, error) {
	ep, ok := t.forward[hopKey{from, to}]
	if !ok {
		return Endpoint{}, &orcherr.MissingEndpoint{From: from, To: to, Forward: true}
	}
	return ep, nil
}

// Return returns the return-direction segment and egress interface for hop
// from->to, failing with MissingEndpoint if undefined.
func (t *Topology) Return(from, to int64) (Endpoint, error) {
	ep, ok := t.ret[hopKey{from, to}]
	if !ok {
		return Endpoint{}, &orcherr.MissingEndpoint{From: from, To: to, Forward: false}
	}
	return ep, nil
}

// Edge is a plain-value copy of one undirected link's endpoints and current
// weight, used by the planner to build its own private working graph.
type Edge struct {
	A, B   int64
	Weight float64
}

// Edges returns a snapshot of every link and its current weight. The
// planner clones these into a private graph before running multi-path
// Dijkstra, so that weight inflation during planning never leaks back into
// this shared Topology (spec.md section 9, "graph mutation vs. planner
// purity").
func (t *Topology) Edges() []Edge {
	out := make([]Edge, 0, len(t.links))
	seen := make(map[linkKey]bool, len(t.links))
	for lk := range t.links {
		if seen[lk] {
			continue
		}
		seen[lk] = true
		out = append(out, Edge{A: lk.A, B: lk.B, Weight: t.Weight(lk.A, lk.B)})
	}
	return out
}
