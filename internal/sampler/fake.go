package sampler

import (
	"context"
	"math"
)

// Fake is an in-memory Store for tests: a fixed map of key -> byte rate.
// A key mapped to NaN, or simply absent from the map, reports not-found.
type Fake struct {
	Values map[string]float64
	Err    error
}

func NewFake() *Fake {
	return &Fake{Values: make(map[string]float64)}
}

func (f *Fake) Sample(_ context.Context, key string) (float64, bool, error) {
	if f.Err != nil {
		return 0, false, f.Err
	}
	v, ok := f.Values[key]
	if !ok || math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}
