// Package sampler queries the external time-series source for per-link
// utilization and folds the result into topology edge weights. The store
// itself is out of scope (spec.md section 1); this package only defines the
// interface the core consumes and the barrier that applies results.
package sampler

import (
	"context"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

// Store is the opaque external time-series source: given a sample key, it
// returns the most recent byte-rate in a 60-second window, or ok=false if
// no non-missing value is available (store error, unknown key, or every
// sample NaN).
type Store interface {
	Sample(ctx context.Context, key string) (bytesPerSec float64, ok bool, err error)
}

// Result reports how many links were updated from a real sample versus
// fell back to the floor because a sample was queried but unavailable.
// Links with no sample_key at all are never queried and are counted in
// neither bucket (spec.md section 5: "For each link with a sample_key,
// read..." — a link without one is outside this accounting).
type Result struct {
	Updated int
	Missing int
}

// linkStatus classifies how one link's weight was resolved this cycle.
type linkStatus int

const (
	statusUpdated linkStatus = iota
	statusMissing
	statusUnkeyed
)

// fanOut bounds how many concurrent Sample calls UpdateWeights issues, per
// spec.md section 5 ("sampling...MAY likewise be parallelized up to a small
// fan-out bound").
const fanOut = 8

// UpdateWeights refreshes every link with a sample key in topo from store,
// clamping each to [0,1] utilization then to the weight floor, and applies
// all results in a single barrier after every sample has returned — never
// incrementally, so a half-updated graph is never visible to a concurrent
// planner (spec.md section 5: "weights must be written only after all
// samples return").
func UpdateWeights(ctx context.Context, store Store, topo *topology.Topology) Result {
	type linkSample struct {
		a, b   int64
		weight float64
		status linkStatus
	}

	edges := topo.Edges()
	results := make([]linkSample, len(edges))

	sem := make(chan struct{}, fanOut)
	var wg sync.WaitGroup

	for i, e := range edges {
		i, e := i, e
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			key, ok := topo.SampleKey(e.A, e.B)
			if !ok {
				results[i] = linkSample{a: e.A, b: e.B, weight: topo.FloorEpsilon(), status: statusUnkeyed}
				return
			}

			bps, found, err := store.Sample(ctx, key)
			if err != nil || !found || math.IsNaN(bps) {
				unavailable := &orcherr.SampleUnavailable{Key: key, Err: err}
				logrus.WithFields(logrus.Fields{"link": key}).Warn(unavailable.Error())
				results[i] = linkSample{a: e.A, b: e.B, weight: topo.FloorEpsilon(), status: statusMissing}
				return
			}

			maxBW := topo.MaxBandwidth(e.A, e.B)
			u := bps / maxBW
			u = clamp(u, 0, 1)
			w := u
			if w < topo.FloorEpsilon() {
				w = topo.FloorEpsilon()
			}
			results[i] = linkSample{a: e.A, b: e.B, weight: w, status: statusUpdated}
		}()
	}
	wg.Wait()

	var out Result
	for _, r := range results {
		topo.SetWeight(r.a, r.b, r.weight)
		switch r.status {
		case statusMissing:
			out.Missing++
		case statusUpdated:
			out.Updated++
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
