// Package ch adapts Contraction Hierarchies preprocessing to
// network.RoadNetwork: an optional accelerator for pkg/routing, used when a
// caller queries the same static network many times (many trajectories,
// many candidate pairs) and wants faster-than-A* vertex-to-vertex shortest
// paths. A* remains the default, correctness-critical path; Index is an
// opt-in speedup with no effect on routing semantics.
package ch

import (
	"container/heap"
	"math"

	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/network"
	"github.com/azybler/mapmatch/pkg/routing"
)

type nodeID = uint32

// adjEntry is a mutable adjacency-list edge used only during contraction.
// middle is -1 for original edges, else the id of the node this shortcut
// bypasses.
type adjEntry struct {
	to     nodeID
	weight float64
	middle int32
}

// upEdge is a search-graph edge kept after contraction: an edge from a
// lower-rank node to a higher-rank one (forward graph) or its mirror
// (backward graph).
type upEdge struct {
	to     nodeID
	weight float64
	middle int32
}

// Index is a built Contraction Hierarchies accelerator over a fixed
// RoadNetwork and WeightFunc. Read-only once Build returns; safe for
// concurrent Query calls.
type Index struct {
	keys    []network.VertexKey
	ids     map[network.VertexKey]nodeID
	rank    []uint32
	fwdUp   [][]upEdge // fwdUp[u]: edges u->v kept for forward search (rank[v] > rank[u])
	bwdUp   [][]upEdge // bwdUp[v]: edges v->u kept for backward search (rank[u] > rank[v]), stored as v's outgoing in the reversed graph
	allEdge map[[2]nodeID]upEdge
}

// maxWitnessSettled and maxWitnessHops bound the per-contraction witness
// search, trading preprocessing accuracy (a missed witness adds a redundant
// shortcut) for preprocessing speed, same tradeoff as uncapped Dijkstra
// witness search makes intractable on large graphs.
const (
	maxWitnessSettled = 500
	maxWitnessHops    = 5
)

// Build contracts rn's vertex graph under weight into a queryable Index.
// rn must not be mutated afterward without rebuilding the Index.
func Build(rn *network.RoadNetwork, weight routing.WeightFunc) *Index {
	if weight == nil {
		weight = routing.DefaultWeight
	}

	ids := make(map[network.VertexKey]nodeID)
	var keys []network.VertexKey
	register := func(k network.VertexKey) nodeID {
		if id, ok := ids[k]; ok {
			return id
		}
		id := nodeID(len(keys))
		ids[k] = id
		keys = append(keys, k)
		return id
	}

	type rawEdge struct {
		u, v   nodeID
		weight float64
	}
	var rawEdges []rawEdge
	for _, k := range keysOf(rn) {
		u := register(k)
		for _, e := range rn.Neighbors(k) {
			v := register(e.Other(k))
			rawEdges = append(rawEdges, rawEdge{u: u, v: v, weight: weight(e)})
		}
	}

	n := nodeID(len(keys))
	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)
	allEdge := make(map[[2]nodeID]upEdge)
	for _, e := range rawEdges {
		outAdj[e.u] = append(outAdj[e.u], adjEntry{to: e.v, weight: e.weight, middle: -1})
		inAdj[e.v] = append(inAdj[e.v], adjEntry{to: e.u, weight: e.weight, middle: -1})
		allEdge[[2]nodeID{e.u, e.v}] = upEdge{to: e.v, weight: e.weight, middle: -1}
	}

	rank := contract(outAdj, inAdj, allEdge, n)

	idx := &Index{keys: keys, ids: ids, rank: rank, allEdge: allEdge}
	idx.fwdUp = make([][]upEdge, n)
	idx.bwdUp = make([][]upEdge, n)
	for pair, e := range allEdge {
		u, v := pair[0], pair[1]
		if rank[v] > rank[u] {
			idx.fwdUp[u] = append(idx.fwdUp[u], e)
		}
		if rank[u] > rank[v] {
			idx.bwdUp[v] = append(idx.bwdUp[v], upEdge{to: u, weight: e.weight, middle: e.middle})
		}
	}
	return idx
}

func keysOf(rn *network.RoadNetwork) []network.VertexKey {
	seen := make(map[network.VertexKey]bool)
	var out []network.VertexKey
	visit := func(k network.VertexKey) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	// RoadNetwork exposes neighbors per vertex; walk every edge endpoint via
	// RangeQuery over the whole world MBR to enumerate vertices without a
	// dedicated iterator.
	world := geo.MBR{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
	for _, e := range rn.RangeQuery(world) {
		visit(e.U)
		visit(e.V)
	}
	return out
}

// pqEntry and priorityQueue implement container/heap for contraction
// ordering, picking the node with the lowest edge-difference heuristic
// (fewest net edges added) to contract next.
type pqEntry struct {
	node     nodeID
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	e := x.(*pqEntry)
	e.index = len(*pq)
	*pq = append(*pq, e)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	*pq = old[:n-1]
	return e
}

// contract runs node-ordering contraction over outAdj/inAdj, mutating
// allEdge with every shortcut created, and returns each node's contraction
// rank (0 = contracted first).
func contract(outAdj, inAdj [][]adjEntry, allEdge map[[2]nodeID]upEdge, n nodeID) []uint32 {
	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)

	pq := make(priorityQueue, n)
	for i := nodeID(0); i < n; i++ {
		pq[i] = &pqEntry{node: i, priority: edgeDifference(outAdj, inAdj, i, contracted), index: int(i)}
	}
	heap.Init(&pq)

	var order uint32
	for pq.Len() > 0 {
		top := heap.Pop(&pq).(*pqEntry)
		if contracted[top.node] {
			continue
		}
		// Lazy re-priority: if the node's true priority has worsened since
		// it was queued, reinsert instead of contracting it immediately.
		fresh := edgeDifference(outAdj, inAdj, top.node, contracted)
		if fresh > top.priority && pq.Len() > 0 {
			top.priority = fresh
			heap.Push(&pq, top)
			continue
		}

		node := top.node
		shortcuts := findShortcuts(outAdj, inAdj, node, contracted)
		for _, sc := range shortcuts {
			key := [2]nodeID{sc.from, sc.to}
			if existing, ok := allEdge[key]; !ok || sc.weight < existing.weight {
				allEdge[key] = upEdge{to: sc.to, weight: sc.weight, middle: int32(node)}
				outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, weight: sc.weight, middle: int32(node)})
				inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, weight: sc.weight, middle: int32(node)})
			}
			contractedNeighbors[sc.from]++
			contractedNeighbors[sc.to]++
		}

		contracted[node] = true
		rank[node] = order
		order++
	}
	return rank
}

func edgeDifference(outAdj, inAdj [][]adjEntry, node nodeID, contracted []bool) int {
	activeIn, activeOut := 0, 0
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			activeIn++
		}
	}
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			activeOut++
		}
	}
	return activeIn*activeOut - (activeIn + activeOut)
}

type shortcut struct {
	from, to nodeID
	weight   float64
}

// findShortcuts runs one bounded witness Dijkstra per active incoming
// neighbor (rather than one per in/out pair), checking whether the direct
// in->node->out route is still the cheapest way to reach each outgoing
// neighbor without passing through node.
func findShortcuts(outAdj, inAdj [][]adjEntry, node nodeID, contracted []bool) []shortcut {
	var incoming, outgoing []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}
	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	var shortcuts []shortcut
	for _, in := range incoming {
		maxOut := 0.0
		for _, out := range outgoing {
			if out.to != in.to && out.weight > maxOut {
				maxOut = out.weight
			}
		}
		if maxOut == 0 {
			continue
		}
		maxWeight := in.weight + maxOut
		dist := boundedWitnessSearch(outAdj, in.to, node, maxWeight, contracted)

		for _, out := range outgoing {
			if out.to == in.to {
				continue
			}
			scWeight := in.weight + out.weight
			if d, ok := dist[out.to]; !ok || d > scWeight {
				shortcuts = append(shortcuts, shortcut{from: in.to, to: out.to, weight: scWeight})
			}
		}
	}
	return shortcuts
}

type witnessHeapItem struct {
	node nodeID
	dist float64
	hops int
}
type witnessHeap []witnessHeapItem

func (h witnessHeap) Len() int            { return len(h) }
func (h witnessHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h witnessHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *witnessHeap) Push(x any)         { *h = append(*h, x.(witnessHeapItem)) }
func (h *witnessHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// boundedWitnessSearch runs a Dijkstra from src, skipping avoid and any
// contracted node, bounded by maxWeight/maxWitnessSettled/maxWitnessHops.
func boundedWitnessSearch(outAdj [][]adjEntry, src, avoid nodeID, maxWeight float64, contracted []bool) map[nodeID]float64 {
	dist := map[nodeID]float64{src: 0}
	h := &witnessHeap{{node: src, dist: 0, hops: 0}}
	settled := 0

	for h.Len() > 0 && settled < maxWitnessSettled {
		cur := heap.Pop(h).(witnessHeapItem)
		if cur.dist > dist[cur.node] {
			continue
		}
		settled++
		if cur.hops >= maxWitnessHops || cur.dist > maxWeight {
			continue
		}
		for _, e := range outAdj[cur.node] {
			if e.to == avoid || contracted[e.to] {
				continue
			}
			nd := cur.dist + e.weight
			if nd > maxWeight {
				continue
			}
			if d, ok := dist[e.to]; !ok || nd < d {
				dist[e.to] = nd
				heap.Push(h, witnessHeapItem{node: e.to, dist: nd, hops: cur.hops + 1})
			}
		}
	}
	return dist
}

// queryHeapItem is a bidirectional-search priority queue entry.
type queryHeapItem struct {
	node nodeID
	dist float64
}
type queryHeap []queryHeapItem

func (h queryHeap) Len() int           { return len(h) }
func (h queryHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h queryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *queryHeap) Push(x any)        { *h = append(*h, x.(queryHeapItem)) }
func (h *queryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Query returns the shortest-path cost and the full vertex path between src
// and dst, using bidirectional search over the upward search graph. ok is
// false when no path exists.
func (idx *Index) Query(src, dst network.VertexKey) (cost float64, path []network.VertexKey, ok bool) {
	s, sOK := idx.ids[src]
	d, dOK := idx.ids[dst]
	if !sOK || !dOK {
		return math.Inf(1), nil, false
	}
	if s == d {
		return 0, []network.VertexKey{src}, true
	}

	distFwd := map[nodeID]float64{s: 0}
	distBwd := map[nodeID]float64{d: 0}
	predFwd := map[nodeID]upEdge{}
	predBwd := map[nodeID]upEdge{}

	fwdH := &queryHeap{{node: s, dist: 0}}
	bwdH := &queryHeap{{node: d, dist: 0}}

	best := math.Inf(1)
	var meet nodeID
	found := false

	settle := func(h *queryHeap, dist map[nodeID]float64, pred map[nodeID]upEdge, otherDist map[nodeID]float64, up [][]upEdge) {
		cur := heap.Pop(h).(queryHeapItem)
		if cur.dist > dist[cur.node] {
			return
		}
		if od, ok := otherDist[cur.node]; ok {
			if cur.dist+od < best {
				best = cur.dist + od
				meet = cur.node
				found = true
			}
		}
		for _, e := range up[cur.node] {
			nd := cur.dist + e.weight
			if prev, ok := dist[e.to]; !ok || nd < prev {
				dist[e.to] = nd
				pred[e.to] = upEdge{to: cur.node, weight: e.weight, middle: e.middle}
				heap.Push(h, queryHeapItem{node: e.to, dist: nd})
			}
		}
	}

	for fwdH.Len() > 0 || bwdH.Len() > 0 {
		if fwdH.Len() > 0 && (bwdH.Len() == 0 || (*fwdH)[0].dist <= (*bwdH)[0].dist) {
			settle(fwdH, distFwd, predFwd, distBwd, idx.fwdUp)
		} else {
			settle(bwdH, distBwd, predBwd, distFwd, idx.bwdUp)
		}
		fwdDone := fwdH.Len() == 0 || (*fwdH)[0].dist > best
		bwdDone := bwdH.Len() == 0 || (*bwdH)[0].dist > best
		if found && fwdDone && bwdDone {
			break
		}
	}

	if !found {
		return math.Inf(1), nil, false
	}

	overlayPath := reconstructOverlayPath(s, d, meet, predFwd, predBwd)
	full := idx.unpackOverlayPath(overlayPath)
	keys := make([]network.VertexKey, len(full))
	for i, id := range full {
		keys[i] = idx.keys[id]
	}
	return best, keys, true
}

// reconstructOverlayPath walks predFwd from meet back to s, and predBwd from
// meet back to d, splicing them into one node sequence over the contracted
// (overlay) graph — shortcuts are not yet expanded.
func reconstructOverlayPath(s, d, meet nodeID, predFwd, predBwd map[nodeID]upEdge) []overlayStep {
	var fwdSide []overlayStep
	for n := meet; n != s; {
		p, ok := predFwd[n]
		if !ok {
			break
		}
		fwdSide = append(fwdSide, overlayStep{from: p.to, to: n, middle: p.middle})
		n = p.to
	}
	for i, j := 0, len(fwdSide)-1; i < j; i, j = i+1, j-1 {
		fwdSide[i], fwdSide[j] = fwdSide[j], fwdSide[i]
	}

	var bwdSide []overlayStep
	for n := meet; n != d; {
		p, ok := predBwd[n]
		if !ok {
			break
		}
		bwdSide = append(bwdSide, overlayStep{from: n, to: p.to, middle: p.middle})
		n = p.to
	}

	return append(fwdSide, bwdSide...)
}

type overlayStep struct {
	from, to nodeID
	middle   int32
}

// unpackOverlayPath expands every shortcut step into its original-edge
// node sequence, recursively.
func (idx *Index) unpackOverlayPath(steps []overlayStep) []nodeID {
	if len(steps) == 0 {
		return nil
	}
	out := []nodeID{steps[0].from}
	for _, s := range steps {
		out = append(out, idx.unpackStep(s)...)
	}
	return out
}

// unpackStep returns the node sequence (excluding from, including to) that
// a single overlay step expands to.
func (idx *Index) unpackStep(s overlayStep) []nodeID {
	if s.middle < 0 {
		return []nodeID{s.to}
	}
	mid := nodeID(s.middle)
	e1, ok1 := idx.allEdge[[2]nodeID{s.from, mid}]
	e2, ok2 := idx.allEdge[[2]nodeID{mid, s.to}]
	if !ok1 || !ok2 {
		return []nodeID{s.to}
	}
	out := idx.unpackStep(overlayStep{from: s.from, to: mid, middle: e1.middle})
	out = append(out, idx.unpackStep(overlayStep{from: mid, to: s.to, middle: e2.middle})...)
	return out
}
