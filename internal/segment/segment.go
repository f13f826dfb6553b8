// Package segment translates a planned node path into an SRv6 segment list
// and identifies the egress interface of its first hop (spec.md section
// 4.4).
package segment

import (
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

// Direction selects which endpoint table a path is translated against.
type Direction int

const (
	Forward Direction = iota
	Return
)

// List is the left-to-right ordered sequence of segment addresses: "push
// this ordered list and encapsulate".
type List []string

// Translate walks path hop by hop, looking up the direction-appropriate
// endpoint for each, and returns the segment list plus the egress interface
// of the first hop — the only interface actually installed on a route
// (spec.md section 9).
func Translate(topo *topology.Topology, path []int64, dir Direction) (List, string, error) {
	if len(path) < 2 {
		return nil, "", nil
	}

	sids := make(List, 0, len(path)-1)
	var firstIface string

	for i := 0; i < len(path)-1; i++ {
		from, to := path[i], path[i+1]

		var ep topology.Endpoint
		var err error
		if dir == Forward {
			ep, err = topo.Forward(from, to)
		} else {
			ep, err = topo.Return(from, to)
		}
		if err != nil {
			return nil, "", err
		}

		sids = append(sids, ep.Segment)
		if i == 0 {
			firstIface = ep.Iface
		}
	}

	return sids, firstIface, nil
}

// Reverse returns a new slice containing path's nodes in reverse order,
// used to derive the return path from a chosen forward path (spec.md
// section 4.6 step 4: the return of a chosen forward path traverses the
// same links in reverse).
func Reverse(path []int64) []int64 {
	out := make([]int64, len(path))
	for i, n := range path {
		out[len(path)-1-i] = n
	}
	return out
}
