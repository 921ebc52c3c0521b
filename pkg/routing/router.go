// Package routing finds the shortest path between two candidate points on a
// RoadNetwork, honoring partial-edge offsets at both ends.
package routing

import (
	"errors"
	"math"

	"github.com/azybler/mapmatch/pkg/candidate"
	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/network"
)

// ErrNoPath is returned by FindShortestPath when cur is unreachable from
// prev: spec.md §7's NoPath condition. Callers recover locally by treating
// the transition as absent, per the propagation policy in SPEC_FULL.md §7.
var ErrNoPath = errors.New("routing: no path between candidates")

// WeightFunc assigns a routing cost to an edge. DefaultWeight uses the
// edge's real-world length in meters.
type WeightFunc func(e *network.Edge) float64

// DefaultWeight is the "length" weight attribute: the edge's polyline
// length in meters.
func DefaultWeight(e *network.Edge) float64 { return e.Length }

// Accelerator is an optional faster backend for vertex-to-vertex shortest
// paths over the same network and weight a Router uses, e.g. a
// Contraction Hierarchies index (pkg/ch.Index satisfies this). When set,
// Router.astar queries it instead of running A* directly; Router falls back
// to A* on a miss or when Accelerator is nil, so routing semantics never
// depend on whether one is attached.
type Accelerator interface {
	Query(src, dst network.VertexKey) (cost float64, path []network.VertexKey, ok bool)
}

// Router finds shortest paths between CandidatePoints on a fixed
// RoadNetwork. Construct it with New (Network and Weight must be set);
// Router holds no per-query state.
type Router struct {
	Network     *network.RoadNetwork
	Weight      WeightFunc
	Accelerator Accelerator
}

// New creates a Router over rn using weight (DefaultWeight if nil).
func New(rn *network.RoadNetwork, weight WeightFunc) *Router {
	if weight == nil {
		weight = DefaultWeight
	}
	return &Router{Network: rn, Weight: weight}
}

// WithAccelerator attaches an optional faster vertex-to-vertex backend.
func (r *Router) WithAccelerator(acc Accelerator) *Router {
	r.Accelerator = acc
	return r
}

// FindShortestPath computes the cost and vertex path from prev to cur,
// honoring each candidate's partial-edge offset. Returns ErrNoPath (cost
// +Inf, path nil) when cur is unreachable from prev. path may be an empty,
// non-nil slice when both candidates sit on the same directed edge.
func (r *Router) FindShortestPath(prev, cur candidate.Point) (cost float64, path []network.VertexKey, err error) {
	if r.Network.IsDirected() {
		cost, path = r.findDirected(prev, cur)
	} else {
		cost, path = r.findUndirected(prev, cur)
	}
	if path == nil {
		return cost, nil, ErrNoPath
	}
	return cost, path, nil
}

func (r *Router) findDirected(prev, cur candidate.Point) (float64, []network.VertexKey) {
	_, pv, err := r.Network.GetEdge(prev.EID)
	if err != nil {
		return math.Inf(1), nil
	}
	cu, _, err := r.Network.GetEdge(cur.EID)
	if err != nil {
		return math.Inf(1), nil
	}

	if prev.EID == cur.EID {
		if prev.Offset <= cur.Offset {
			return cur.Offset - prev.Offset, []network.VertexKey{}
		}
		return math.Inf(1), nil
	}

	prevEdge, _ := r.Network.EdgeAttr(prev.EID)

	subCost, subPath, ok := r.astar(pv, cu)
	if !ok {
		return math.Inf(1), nil
	}

	total := (prevEdge.Length - prev.Offset) + subCost + cur.Offset
	return total, subPath
}

func (r *Router) findUndirected(prev, cur candidate.Point) (float64, []network.VertexKey) {
	// Same undirected edge: the direct distance along the edge is always an
	// option regardless of which offset is larger, since either candidate
	// can be reached from the other by walking the edge in either
	// direction. This must short-circuit the whole pairing search below,
	// not just the matching pairing, or a one-sided offset check makes
	// FindShortestPath(prev, cur) disagree with FindShortestPath(cur, prev).
	if prev.EID == cur.EID {
		return math.Abs(cur.Offset - prev.Offset), []network.VertexKey{}
	}

	pu, pv, err := r.Network.GetEdge(prev.EID)
	if err != nil {
		return math.Inf(1), nil
	}
	cu, cv, err := r.Network.GetEdge(cur.EID)
	if err != nil {
		return math.Inf(1), nil
	}
	prevEdge, _ := r.Network.EdgeAttr(prev.EID)
	curEdge, _ := r.Network.EdgeAttr(cur.EID)

	type pairing struct {
		from, to       network.VertexKey
		distFromOffset float64
		distToOffset   float64
	}
	pairings := []pairing{
		{pu, cu, prev.Offset, cur.Offset},
		{pu, cv, prev.Offset, curEdge.Length - cur.Offset},
		{pv, cu, prevEdge.Length - prev.Offset, cur.Offset},
		{pv, cv, prevEdge.Length - prev.Offset, curEdge.Length - cur.Offset},
	}

	bestCost := math.Inf(1)
	var bestPath []network.VertexKey
	found := false

	for _, p := range pairings {
		subCost, subPath, ok := r.astar(p.from, p.to)
		if !ok {
			continue
		}
		total := p.distFromOffset + subCost + p.distToOffset
		if total < bestCost {
			bestCost, bestPath, found = total, subPath, true
		}
	}

	if !found {
		return math.Inf(1), nil
	}
	return bestCost, bestPath
}

// astar runs A* from src to dst using the great-circle distance as an
// admissible heuristic (valid whenever Weight never underestimates the
// geodesic distance between endpoints, as edge length does).
func (r *Router) astar(src, dst network.VertexKey) (cost float64, path []network.VertexKey, ok bool) {
	if src == dst {
		return 0, []network.VertexKey{src}, true
	}
	if r.Accelerator != nil {
		if cost, path, ok := r.Accelerator.Query(src, dst); ok {
			return cost, path, true
		}
	}

	open := newPQ()
	open.push(src, 0)

	gScore := map[network.VertexKey]float64{src: 0}
	cameFrom := map[network.VertexKey]network.VertexKey{}
	closed := map[network.VertexKey]bool{}

	for open.len() > 0 {
		cur, _ := open.pop()
		if closed[cur] {
			continue
		}
		if cur == dst {
			return gScore[cur], reconstructPath(cameFrom, src, dst), true
		}
		closed[cur] = true

		for _, e := range r.Network.Neighbors(cur) {
			next := e.Other(cur)
			if closed[next] {
				continue
			}
			tentative := gScore[cur] + r.Weight(e)
			if g, seen := gScore[next]; seen && tentative >= g {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = cur
			priority := tentative + geo.Haversine(next.Pt(), dst.Pt())
			open.push(next, priority)
		}
	}
	return math.Inf(1), nil, false
}

func reconstructPath(cameFrom map[network.VertexKey]network.VertexKey, src, dst network.VertexKey) []network.VertexKey {
	path := []network.VertexKey{dst}
	for path[len(path)-1] != src {
		prev, ok := cameFrom[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, prev)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
