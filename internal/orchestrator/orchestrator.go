// Package orchestrator drives the per-cycle loop that samples link
// utilization, plans ranked paths in both directions, translates them to
// SRv6 segment lists, and applies the result to the two edge routers
// (spec.md section 4.6, the orchestration loop). It is the one package that
// imports every other internal package; nothing in internal/ imports it
// back.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hiro-hcu/srv6-orchestrator/internal/applier"
	"github.com/hiro-hcu/srv6-orchestrator/internal/config"
	"github.com/hiro-hcu/srv6-orchestrator/internal/planner"
	"github.com/hiro-hcu/srv6-orchestrator/internal/sampler"
	"github.com/hiro-hcu/srv6-orchestrator/internal/segment"
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

// Mode selects which side of the loop a Run invocation actually drives.
type Mode string

const (
	// Bidirectional is the default: sample, plan, translate, and apply both
	// forward and return tables every cycle (spec.md section 4.6).
	Bidirectional Mode = "bidirectional"
	// ForwardOnly applies only the ingress-side forward tables; return
	// tables are planned but never pushed to the egress router. Useful when
	// the egress router is unreachable or intentionally managed elsewhere.
	ForwardOnly Mode = "forward_only"
	// AnalyzeOnce runs a single cycle that samples and plans both directions
	// but applies nothing, for dry-run inspection of what the loop would do.
	AnalyzeOnce Mode = "analyze_once"
)

// ExecutorCloser is what Dial must return: something that can run remote
// commands and be torn down at the end of a cycle.
type ExecutorCloser interface {
	applier.Executor
	Close() error
}

// Dialer opens one authenticated connection to an edge router. Swapped out
// in tests for a fake that never touches the network.
type Dialer func(applier.Credentials) (ExecutorCloser, error)

// DialShell is the production Dialer, backed by a real SSH connection.
func DialShell(c applier.Credentials) (ExecutorCloser, error) {
	return applier.Dial(c)
}

// Orchestrator holds everything one run of the loop needs: the topology
// being planned over, the sample source, configuration, and the
// most-recently-applied decision per (direction, table) so changes can be
// detected cycle over cycle.
type Orchestrator struct {
	Topo  *topology.Topology
	Store sampler.Store
	Cfg   config.Config
	Dial  Dialer
	Mode  Mode

	mu        sync.Mutex
	decisions map[decisionKey]TableDecision
	stats     Stats
	history   *historyRing
}

// historySize is how many recent ChangeEvents the orchestrator retains for
// operator inspection.
const historySize = 64

// New builds an Orchestrator ready to Run. store and dial may be fakes in
// tests.
func New(topo *topology.Topology, store sampler.Store, cfg config.Config, dial Dialer, mode Mode) *Orchestrator {
	return &Orchestrator{
		Topo:      topo,
		Store:     store,
		Cfg:       cfg,
		Dial:      dial,
		Mode:      mode,
		decisions: make(map[decisionKey]TableDecision),
		history:   newHistoryRing(historySize),
	}
}

// Stats returns a snapshot of the running counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// History returns the most recent change events, oldest first.
func (o *Orchestrator) History() []ChangeEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Recent()
}

func (o *Orchestrator) strategy() planner.Strategy {
	if o.Cfg.WeightDeletionStrategy {
		return planner.DeleteMiddle
	}
	return planner.Multiplicative
}

// Run drives the loop on a time.Ticker until ctx is cancelled, running one
// cycle immediately on entry (spec.md section 4.6: the first cycle runs
// without waiting a full interval). If once is true, or the mode is
// AnalyzeOnce, Run performs exactly one cycle and returns.
func (o *Orchestrator) Run(ctx context.Context, once bool) error {
	if err := o.cycle(ctx); err != nil {
		logrus.WithError(err).Error("cycle failed")
	}
	if once || o.Mode == AnalyzeOnce {
		return nil
	}

	ticker := time.NewTicker(o.Cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.cycle(ctx); err != nil {
				logrus.WithError(err).Error("cycle failed")
			}
		}
	}
}

// cycle runs the nine-step flow for one poll interval: sample, plan
// forward, reverse the forward paths into return paths, translate both,
// apply both (concurrently, over one
// connection per direction), then record changes and stats (spec.md
// section 4.6).
func (o *Orchestrator) cycle(ctx context.Context) error {
	o.mu.Lock()
	cycleNum := o.stats.Cycles + 1
	o.mu.Unlock()

	sampleCtx, cancel := context.WithTimeout(ctx, o.Cfg.SampleTimeout())
	res := sampler.UpdateWeights(sampleCtx, o.Store, o.Topo)
	cancel()

	forwardResults, fwdErr := planner.Plan(o.Topo, o.Cfg.IngressNode, o.Cfg.EgressNode, o.Cfg.PathCount, o.Cfg.WeightMultipliers, o.strategy())
	if fwdErr != nil {
		logrus.WithError(fwdErr).Warn("forward planning produced no path")
	}
	// Each return path is its forward path reversed, so a tier's return
	// traffic crosses the same physical links as its forward traffic.
	returnResults := make([]planner.Result, len(forwardResults))
	for i, r := range forwardResults {
		returnResults[i] = planner.Result{Tier: r.Tier, Path: segment.Reverse(r.Path), Cost: r.Cost}
	}

	forwardDecisions, fErr := o.translate(DirForward, forwardResults, segment.Forward)
	if fErr != nil {
		logrus.WithError(fErr).Warn("forward translation incomplete")
	}
	returnDecisions, rErr := o.translate(DirReturn, returnResults, segment.Return)
	if rErr != nil {
		logrus.WithError(rErr).Warn("return translation incomplete")
	}

	// fwdApplied/retApplied record whether each direction's decisions were
	// actually pushed to its router this cycle — AnalyzeOnce never attempts
	// either, ForwardOnly never attempts return. Only a direction that was
	// attempted and succeeded may update o.decisions/the change counters
	// (spec.md section 8 scenario S5): a decision that was merely computed
	// but never applied (apply skipped, or failed) must not be recorded as
	// the router's current state, or a later successful apply of the real
	// state would look like "no change".
	var wg sync.WaitGroup
	var fwdApplyErr, retApplyErr error
	fwdApplied, retApplied := false, false

	if o.Mode != AnalyzeOnce {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fwdApplyErr = o.applyDirection(o.Cfg.Ingress, forwardDecisions)
		}()

		if o.Mode == Bidirectional {
			wg.Add(1)
			go func() {
				defer wg.Done()
				retApplyErr = o.applyDirection(o.Cfg.Egress, returnDecisions)
			}()
		}
		wg.Wait()

		fwdApplied = fwdApplyErr == nil
		if o.Mode == Bidirectional {
			retApplied = retApplyErr == nil
		}
	}

	o.recordCycle(cycleNum, res, forwardDecisions, returnDecisions, fwdApplied, retApplied)
	o.logCycleStatus(cycleNum, res, forwardDecisions, returnDecisions)

	if fwdErr != nil {
		return fmt.Errorf("cycle %d: neither direction produced a path", cycleNum)
	}
	return nil
}

// logCycleStatus emits one structured per-cycle summary: the cycle number,
// how many samples were updated and missing, and each direction's tier-1
// decision summary (path and cost). Link rates, lower tiers, and whether
// each direction's apply succeeded are not part of this line.
func (o *Orchestrator) logCycleStatus(cycleNum uint64, sampleRes sampler.Result, forward, ret []TableDecision) {
	fields := logrus.Fields{
		"cycle":           cycleNum,
		"samples_ok":      sampleRes.Updated,
		"samples_missing": sampleRes.Missing,
	}
	if len(forward) > 0 {
		fields["forward_tier1"] = forward[0].Summary()
	}
	if len(ret) > 0 {
		fields["return_tier1"] = ret[0].Summary()
	}
	logrus.WithFields(fields).Info("cycle complete")
}

// translate converts each planner.Result into a TableDecision, pairing tier
// i with the i-th configured table. A tier whose path has a missing
// endpoint is dropped; sibling tiers still proceed (spec.md section 4.4).
func (o *Orchestrator) translate(dir Direction, results []planner.Result, segDir segment.Direction) ([]TableDecision, error) {
	var out []TableDecision
	var firstErr error
	for _, r := range results {
		if r.Tier-1 >= len(o.Cfg.Tables) {
			break
		}
		tbl := o.Cfg.Tables[r.Tier-1]

		sids, iface, err := segment.Translate(o.Topo, r.Path, segDir)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logrus.WithFields(logrus.Fields{"direction": dir, "tier": r.Tier, "error": err}).Warn("translation failed for tier")
			continue
		}

		out = append(out, TableDecision{
			Direction: dir,
			Table:     tbl.Name,
			Tier:      r.Tier,
			Path:      r.Path,
			Segments:  sids,
			Iface:     iface,
			Cost:      r.Cost,
		})
	}
	return out, firstErr
}

// applyDirection opens one connection to edge, pushes every decision's
// table over it, and closes it before returning — one connection per
// direction per cycle, never cached (spec.md section 4.5/9).
func (o *Orchestrator) applyDirection(edge config.Edge, decisions []TableDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	conn, err := o.Dial(applier.Credentials{
		Host:    edge.Address,
		Port:    edge.ShellPort,
		User:    edge.ShellUser,
		Pass:    edge.ShellPass,
		Timeout: edge.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", edge.Address, err)
	}
	defer conn.Close()

	specs := make([]applier.TableSpec, len(decisions))
	for i, d := range decisions {
		specs[i] = applier.TableSpec{
			TableName: d.Table,
			Dest:      o.destFor(d.Direction),
			Iface:     d.Iface,
			Segments:  d.Segments,
		}
	}

	applied, errs := applier.ApplyDirection(conn, specs)
	for _, e := range errs {
		logrus.WithError(e).Warn("table apply failed")
	}
	if applied != len(specs) {
		return fmt.Errorf("applied %d/%d tables", applied, len(specs))
	}
	return nil
}

func (o *Orchestrator) destFor(dir Direction) string {
	if dir == DirForward {
		return o.Cfg.ForwardPrefix
	}
	return o.Cfg.ReturnPrefix
}

// recordCycle updates stats and the change-history ring under the lock,
// comparing each new decision against the previous one for its
// (direction, table) key (spec.md section 3/9: stable key, never derived
// from path content). Only decisions whose direction was actually applied
// this cycle are compared and committed to o.decisions: a direction that
// was skipped (AnalyzeOnce, ForwardOnly's return side) or whose apply
// failed leaves the prior applied state untouched, so a later successful
// apply is still compared against what the router actually last held, not
// against an unapplied decision from a failed cycle (spec.md section 8
// scenario S5).
func (o *Orchestrator) recordCycle(cycleNum uint64, sampleRes sampler.Result, forward, ret []TableDecision, fwdApplied, retApplied bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.Cycles = cycleNum
	o.stats.SamplesTaken += uint64(sampleRes.Updated + sampleRes.Missing)

	if fwdApplied {
		o.recordDirection(cycleNum, forward)
	}
	if retApplied {
		o.recordDirection(cycleNum, ret)
	}

	if fwdApplied && (o.Mode != Bidirectional || retApplied) {
		o.stats.LastSuccess = unixNow()
	}
}

// recordDirection compares and commits every decision in decisions against
// o.decisions, assuming the caller holds o.mu and that these decisions were
// actually applied this cycle.
func (o *Orchestrator) recordDirection(cycleNum uint64, decisions []TableDecision) {
	for _, d := range decisions {
		key := decisionKey{Direction: d.Direction, Table: d.Table}
		prev, existed := o.decisions[key]
		o.decisions[key] = d

		if !existed {
			o.history.Add(ChangeEvent{Cycle: cycleNum, Direction: d.Direction, Table: d.Table, Tier: d.Tier, Old: nil, New: d, Reason: ReasonInitial})
			o.stats.PathChanges++
			o.bumpDirectionCounter(d.Direction)
			continue
		}

		reason, changed := compareDecisions(prev, d)
		if changed {
			old := prev
			o.history.Add(ChangeEvent{Cycle: cycleNum, Direction: d.Direction, Table: d.Table, Tier: d.Tier, Old: &old, New: d, Reason: reason})
			o.stats.PathChanges++
			o.bumpDirectionCounter(d.Direction)
		}
	}
}

func (o *Orchestrator) bumpDirectionCounter(dir Direction) {
	if dir == DirForward {
		o.stats.PathChangesForward++
	} else {
		o.stats.PathChangesReturn++
	}
}

// compareDecisions classifies how next differs from old, if at all.
func compareDecisions(old, next TableDecision) (ChangeReason, bool) {
	pathChanged := !int64SliceEqual(old.Path, next.Path)
	ifaceChanged := old.Iface != next.Iface

	switch {
	case pathChanged && ifaceChanged:
		return ReasonPathAndInterfaceChanged, true
	case pathChanged:
		return ReasonPathChanged, true
	case ifaceChanged:
		return ReasonInterfaceChanged, true
	default:
		return "", false
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// unixNow is a seam over time.Now().Unix() so tests can exercise
// recordCycle's success-path bookkeeping deterministically if needed.
var unixNow = func() int64 { return time.Now().Unix() }
