package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReference_ConnectedAndFloored verifies that the reference topology
// loads all 16 nodes and that every link starts at the weight floor.
func TestReference_ConnectedAndFloored(t *testing.T) {
	// GIVEN the reference 16-node topology
	topo := Reference()

	// THEN all 16 nodes are present
	assert.Len(t, topo.Nodes(), 16)

	// THEN every link starts at the weight floor epsilon
	for _, e := range topo.Edges() {
		assert.GreaterOrEqual(t, e.Weight, topo.FloorEpsilon())
	}

	// THEN the graph is connected: a BFS from node 1 reaches all nodes
	visited := map[int64]bool{1: true}
	queue := []int64{1}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, nb := range topo.Neighbors(n) {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	assert.Len(t, visited, 16)
}

// TestSetWeight_FloorClamp verifies the weight-floor invariant: SetWeight
// never allows a value below epsilon to stick.
func TestSetWeight_FloorClamp(t *testing.T) {
	// GIVEN a topology with one link
	topo := New(1e-4)
	topo.AddLink(1, 2, 1000, "k")

	// WHEN a sub-floor weight is set
	topo.SetWeight(1, 2, -5)

	// THEN the stored weight is clamped to the floor
	assert.Equal(t, 1e-4, topo.Weight(1, 2))
}

// TestForward_MissingEndpoint verifies that an undefined hop fails with
// MissingEndpoint rather than silently returning a zero value.
func TestForward_MissingEndpoint(t *testing.T) {
	topo := Reference()

	_, err := topo.Forward(1, 99)
	require.Error(t, err)
}

// TestForward_EgressInterface verifies the forward endpoint for hop 1->2
// matches the transcribed reference data.
func TestForward_EgressInterface(t *testing.T) {
	topo := Reference()

	ep, err := topo.Forward(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "eth1", ep.Iface)
	assert.Equal(t, "fd01:1::12", ep.Segment)
}

// TestSampleKey_AbsentIsNotError verifies that a link with no RRD mapping
// reports absent rather than erroring.
func TestSampleKey_AbsentIsNotError(t *testing.T) {
	topo := New(1e-4)
	topo.AddLink(1, 2, 1000, "")

	_, ok := topo.SampleKey(1, 2)
	assert.False(t, ok)
}
