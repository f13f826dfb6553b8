package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiro-hcu/srv6-orchestrator/internal/applier"
	"github.com/hiro-hcu/srv6-orchestrator/internal/config"
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

// fakeStore never finds a sample, so every link falls back to the weight
// floor — this keeps the planned paths deterministic across repeated
// cycles against the reference topology.
type fakeStore struct{}

func (fakeStore) Sample(ctx context.Context, key string) (float64, bool, error) {
	return 0, false, nil
}

// fakeConn is an ExecutorCloser that accepts any command and reports
// success, recording every dial and every command issued on it.
type fakeConn struct {
	host     string
	commands []string
}

func (c *fakeConn) Run(command string) (applier.CommandResult, error) {
	c.commands = append(c.commands, command)
	return applier.CommandResult{ExitCode: 0}, nil
}

func (c *fakeConn) Close() error { return nil }

// recordingDialer counts how many times Dial was invoked per host, so
// tests can assert a direction's connection was (or was not) opened.
type recordingDialer struct {
	calls map[string]int
	conns []*fakeConn
}

func newRecordingDialer() *recordingDialer {
	return &recordingDialer{calls: make(map[string]int)}
}

func (d *recordingDialer) Dial(c applier.Credentials) (ExecutorCloser, error) {
	d.calls[c.Host]++
	conn := &fakeConn{host: c.Host}
	d.conns = append(d.conns, conn)
	return conn, nil
}

// failingHostDialer fails Dial for one configured host (simulating a
// connection timeout to that edge router) and otherwise delegates to a real
// recordingDialer.
type failingHostDialer struct {
	inner    *recordingDialer
	failHost string
}

func (d *failingHostDialer) Dial(c applier.Credentials) (ExecutorCloser, error) {
	if c.Host == d.failHost {
		d.inner.calls[c.Host]++
		return nil, errors.New("connection timed out")
	}
	return d.inner.Dial(c)
}

func testConfig() config.Config {
	c := config.Default()
	c.Ingress.Address = "fd02:1::2"
	c.Egress.Address = "fd02:1::11"
	return c
}

// TestCycle_InitialRunRecordsChangesAsInitial verifies that the first cycle
// against a fresh Orchestrator records one Initial change event per
// (direction, table) decision and dials both edges exactly once.
func TestCycle_InitialRunRecordsChangesAsInitial(t *testing.T) {
	dialer := newRecordingDialer()
	o := New(topology.Reference(), fakeStore{}, testConfig(), dialer.Dial, Bidirectional)

	require.NoError(t, o.Run(context.Background(), true))

	stats := o.Stats()
	assert.Equal(t, uint64(1), stats.Cycles)
	assert.True(t, stats.PathChanges > 0)
	assert.True(t, stats.PathChangesForward > 0)
	assert.True(t, stats.PathChangesReturn > 0)

	history := o.History()
	require.NotEmpty(t, history)
	for _, ev := range history {
		assert.Equal(t, ReasonInitial, ev.Reason)
		assert.Nil(t, ev.Old)
	}

	assert.Equal(t, 1, dialer.calls["fd02:1::2"])
	assert.Equal(t, 1, dialer.calls["fd02:1::11"])
}

// TestCycle_StablePathsProduceNoFurtherChanges verifies that a second cycle
// against an unchanged topology records no new change events beyond the
// first cycle's Initial ones, since every tier's path and interface are
// identical.
func TestCycle_StablePathsProduceNoFurtherChanges(t *testing.T) {
	dialer := newRecordingDialer()
	o := New(topology.Reference(), fakeStore{}, testConfig(), dialer.Dial, Bidirectional)

	require.NoError(t, o.Run(context.Background(), true))
	firstChanges := o.Stats().PathChanges

	require.NoError(t, o.Run(context.Background(), true))
	secondStats := o.Stats()

	assert.Equal(t, uint64(2), secondStats.Cycles)
	assert.Equal(t, firstChanges, secondStats.PathChanges)
}

// TestMode_AnalyzeOnce_NeverDials verifies that AnalyzeOnce mode samples
// and plans but applies nothing to either edge.
func TestMode_AnalyzeOnce_NeverDials(t *testing.T) {
	dialer := newRecordingDialer()
	o := New(topology.Reference(), fakeStore{}, testConfig(), dialer.Dial, AnalyzeOnce)

	require.NoError(t, o.Run(context.Background(), true))

	assert.Equal(t, 0, dialer.calls["fd02:1::2"])
	assert.Equal(t, 0, dialer.calls["fd02:1::11"])
	assert.Equal(t, uint64(1), o.Stats().Cycles)
}

// TestMode_ForwardOnly_SkipsEgress verifies that ForwardOnly mode applies
// the ingress (forward) direction but never dials the egress router.
func TestMode_ForwardOnly_SkipsEgress(t *testing.T) {
	dialer := newRecordingDialer()
	o := New(topology.Reference(), fakeStore{}, testConfig(), dialer.Dial, ForwardOnly)

	require.NoError(t, o.Run(context.Background(), true))

	assert.Equal(t, 1, dialer.calls["fd02:1::2"])
	assert.Equal(t, 0, dialer.calls["fd02:1::11"])
}

// TestCycle_EgressConnectFailure_OnlyCountsForwardChanges verifies spec.md
// section 8 scenario S5: an egress connection timeout leaves the forward
// direction's change stats intact but records zero return-direction
// changes, and does not commit the never-applied return decisions into
// comparison state.
func TestCycle_EgressConnectFailure_OnlyCountsForwardChanges(t *testing.T) {
	dialer := &failingHostDialer{inner: newRecordingDialer(), failHost: "fd02:1::11"}
	o := New(topology.Reference(), fakeStore{}, testConfig(), dialer.Dial, Bidirectional)

	require.NoError(t, o.Run(context.Background(), true))

	stats := o.Stats()
	assert.True(t, stats.PathChangesForward > 0)
	assert.Equal(t, uint64(0), stats.PathChangesReturn)

	for _, ev := range o.History() {
		assert.Equal(t, DirForward, ev.Direction)
	}

	// THEN no return-direction decision was committed, so the next cycle's
	// comparison state for return is still empty
	o.mu.Lock()
	_, exists := o.decisions[decisionKey{Direction: DirReturn, Table: "rt_table1"}]
	o.mu.Unlock()
	assert.False(t, exists)
}

// TestCycle_RecoveredApplyStillCountsAsChange verifies that once a
// previously failing direction starts applying successfully again, its
// first applied decision is compared against the last *applied* state (or
// treated as Initial if none exists yet), not silently treated as
// unchanged because of a decision computed during the earlier failure.
func TestCycle_RecoveredApplyStillCountsAsChange(t *testing.T) {
	failing := &failingHostDialer{inner: newRecordingDialer(), failHost: "fd02:1::11"}
	o := New(topology.Reference(), fakeStore{}, testConfig(), failing.Dial, Bidirectional)

	require.NoError(t, o.Run(context.Background(), true))
	require.Equal(t, uint64(0), o.Stats().PathChangesReturn)

	// WHEN the egress connection recovers and the next cycle applies cleanly
	o.Dial = failing.inner.Dial
	require.NoError(t, o.Run(context.Background(), true))

	// THEN the return direction's first successful apply is recorded as a
	// change (Initial, since no prior applied state existed)
	assert.True(t, o.Stats().PathChangesReturn > 0)

	o.mu.Lock()
	_, exists := o.decisions[decisionKey{Direction: DirReturn, Table: "rt_table1"}]
	o.mu.Unlock()
	assert.True(t, exists)
}

// TestHistoryRing_BoundedAtCapacity verifies the ring buffer never grows
// past its configured capacity and keeps only the most recent entries.
func TestHistoryRing_BoundedAtCapacity(t *testing.T) {
	r := newHistoryRing(3)
	for i := 0; i < 5; i++ {
		r.Add(ChangeEvent{Cycle: uint64(i)})
	}
	recent := r.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(2), recent[0].Cycle)
	assert.Equal(t, uint64(3), recent[1].Cycle)
	assert.Equal(t, uint64(4), recent[2].Cycle)
}

// TestTableDecision_Summary verifies the human-readable rendering used in
// log lines.
func TestTableDecision_Summary(t *testing.T) {
	d := TableDecision{Path: []int64{1, 2, 4, 16}, Cost: 0.003}
	assert.Equal(t, "r1 -> r2 -> r4 -> r16 (cost 0.003000)", d.Summary())
}
