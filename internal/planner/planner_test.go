package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

func refTopo() *topology.Topology {
	return topology.Reference()
}

// TestPlan_ColdStart reproduces scenario S1: all weights at epsilon, three
// tiers requested between r1 and r16, tier-1 six hops.
func TestPlan_ColdStart(t *testing.T) {
	// GIVEN the reference topology with all weights at the floor
	topo := refTopo()

	// WHEN three tiers are planned from 1 to 16
	results, err := Plan(topo, 1, 16, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.NoError(t, err)

	// THEN three tiers are returned
	require.Len(t, results, 3)

	// THEN tier 1 is a 6-hop path from r1 to r16, matching the reference
	// topology's minimum hop count (the exact tie-broken route among
	// several equal-cost 6-hop paths is an implementation detail)
	assert.Equal(t, int64(1), results[0].Path[0])
	assert.Equal(t, int64(16), results[0].Path[len(results[0].Path)-1])
	assert.Len(t, results[0].Path, 7)

	// THEN costs are non-decreasing across tiers
	assert.LessOrEqual(t, results[0].Cost, results[1].Cost)
	assert.LessOrEqual(t, results[1].Cost, results[2].Cost)

	// THEN tier 2 diverges from tier 1 since tier 1's edges were inflated
	assert.NotEqual(t, results[0].Path, results[1].Path, "tier 2 should diverge from tier 1")
}

// TestPlan_Determinism verifies quantified invariant 2: identical inputs
// produce an identical ordered list of paths.
func TestPlan_Determinism(t *testing.T) {
	topo := refTopo()

	r1, err := Plan(topo, 1, 16, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.NoError(t, err)
	r2, err := Plan(topo, 1, 16, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.NoError(t, err)

	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		assert.Equal(t, r1[i].Path, r2[i].Path)
		assert.Equal(t, r1[i].Cost, r2[i].Cost)
	}
}

// TestPlan_MonotoneInflation verifies quantified invariant 3: for every
// edge on a chosen path, the weight used by the next tier is >= the weight
// used by the current tier.
func TestPlan_MonotoneInflation(t *testing.T) {
	topo := refTopo()
	topo.SetWeight(1, 2, 0.5)

	g := cloneGraph(topo)
	before := g.WeightedEdge(1, 2).Weight()
	inflate(g, []int64{1, 2, 4}, 3.0, Multiplicative)
	after := g.WeightedEdge(1, 2).Weight()

	assert.GreaterOrEqual(t, after, before)
}

// TestPlan_Congestion reproduces scenario S3: a congested link is avoided
// by the highest tier, and costs are ordered tier-1 <= tier-2 <= tier-3.
func TestPlan_Congestion(t *testing.T) {
	// GIVEN link (14,16) heavily congested relative to all others
	topo := refTopo()
	topo.SetWeight(14, 16, 0.9)

	// WHEN three tiers are planned
	results, err := Plan(topo, 1, 16, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// THEN tier 1 avoids the congested link, routing via 15->16 instead
	last := results[0].Path[len(results[0].Path)-1]
	secondLast := results[0].Path[len(results[0].Path)-2]
	assert.Equal(t, int64(16), last)
	assert.Equal(t, int64(15), secondLast)

	// THEN costs are non-decreasing across tiers
	assert.LessOrEqual(t, results[0].Cost, results[1].Cost)
	assert.LessOrEqual(t, results[1].Cost, results[2].Cost)
}

// TestPlan_SourceEqualsDestination verifies the boundary: source == dest
// yields zero paths and an error, never a crash, since a Path requires at
// least two distinct nodes (spec.md section 3).
func TestPlan_SourceEqualsDestination(t *testing.T) {
	topo := refTopo()

	results, err := Plan(topo, 1, 1, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.Error(t, err)
	assert.Empty(t, results)
}

// TestPlan_NoPath verifies that an unreachable destination returns NoPath
// rather than an empty, silently-successful result.
func TestPlan_NoPath(t *testing.T) {
	topo := topology.New(1e-4)
	topo.AddLink(1, 2, 1000, "")
	// node 99 is never linked

	_, err := Plan(topo, 1, 99, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.Error(t, err)
}

// TestPlan_FewerThanKWhenNoFurtherPath verifies the boundary where the
// graph runs out of distinct paths before K tiers are satisfied.
func TestPlan_FewerThanKWhenNoFurtherPath(t *testing.T) {
	// GIVEN a topology with exactly one path between src and dst
	topo := topology.New(1e-4)
	topo.AddLink(1, 2, 1000, "")
	topo.AddLink(2, 3, 1000, "")

	// WHEN 3 tiers are requested but only one path exists
	results, err := Plan(topo, 1, 3, 3, []float64{3.0, 2.0, 1.0}, Multiplicative)
	require.NoError(t, err)

	// THEN every tier after the first repeats the same (only) path, since
	// inflation discourages but never removes edges under the default
	// strategy
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, []int64{1, 2, 3}, r.Path)
	}
}
