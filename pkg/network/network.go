// Package network implements the road-network model: a directed or
// undirected graph over geographic vertices, with per-edge polylines and a
// bounding-box spatial index for candidate lookup.
package network

import (
	"github.com/azybler/mapmatch/pkg/geo"
)

// VertexKey identifies a graph vertex by its (lng, lat) pair. Floating-point
// equality is used throughout — loaders must not re-round coordinates.
type VertexKey struct {
	Lng float64
	Lat float64
}

// Pt returns the VertexKey's coordinates as an SPoint.
func (k VertexKey) Pt() geo.SPoint {
	return geo.SPoint{Lat: k.Lat, Lng: k.Lng}
}

// Edge is a directed (or undirected) road segment. In directed graphs the
// reverse of an edge is a distinct Edge with its own EID and reversed
// Coords. EID is globally unique within a RoadNetwork.
type Edge struct {
	EID    uint32
	U, V   VertexKey
	Coords []geo.SPoint
	Length float64
}

// Other returns the endpoint of e that isn't from. Used when walking an
// undirected edge from either side.
func (e *Edge) Other(from VertexKey) VertexKey {
	if from == e.U {
		return e.V
	}
	return e.U
}

// RoadNetwork is a directed or undirected graph over geographic vertices,
// with per-edge polylines and an R-tree spatial index over edge bounding
// boxes. All mutations go through AddEdge/RemoveEdge, which update the
// adjacency, the eid index, and the spatial index as one operation — no
// other code may mutate the network directly.
//
// The network is read-only during matching (§5): callers must not call
// AddEdge/RemoveEdge/ToDirected concurrently with Match.
type RoadNetwork struct {
	directed bool
	out      map[VertexKey][]*Edge
	byEID    map[uint32]*Edge
	idx      spatialIndex
	nextEID  uint32
}

// New creates an empty RoadNetwork.
func New(directed bool) *RoadNetwork {
	return &RoadNetwork{
		directed: directed,
		out:      make(map[VertexKey][]*Edge),
		byEID:    make(map[uint32]*Edge),
	}
}

// IsDirected reports whether the network is directed.
func (rn *RoadNetwork) IsDirected() bool { return rn.directed }

// NumEdges returns the number of edges currently in the network.
func (rn *RoadNetwork) NumEdges() int { return len(rn.byEID) }

// AddEdge inserts an edge with the given eid, endpoints, and polyline,
// computing its length from the polyline. Coords must have at least 2
// points. The caller picks eid; NextEID() helps keep ids unique.
func (rn *RoadNetwork) AddEdge(eid uint32, u, v VertexKey, coords []geo.SPoint) *Edge {
	e := &Edge{
		EID:    eid,
		U:      u,
		V:      v,
		Coords: coords,
		Length: geo.PolylineLength(coords),
	}
	rn.byEID[eid] = e
	rn.out[u] = append(rn.out[u], e)
	if !rn.directed {
		rn.out[v] = append(rn.out[v], e)
	}
	rn.idx.insert(eid, geo.CalMBR(coords))
	if eid >= rn.nextEID {
		rn.nextEID = eid + 1
	}
	return e
}

// NextEID returns an eid not yet used by any edge in the network.
func (rn *RoadNetwork) NextEID() uint32 { return rn.nextEID }

// RemoveEdge deletes the edge with the given eid from the graph, the eid
// index, and the spatial index atomically. Returns ErrEdgeNotFound if eid
// is unknown.
func (rn *RoadNetwork) RemoveEdge(eid uint32) error {
	e, ok := rn.byEID[eid]
	if !ok {
		return ErrEdgeNotFound
	}
	rn.out[e.U] = removeEdgePtr(rn.out[e.U], e)
	if !rn.directed {
		rn.out[e.V] = removeEdgePtr(rn.out[e.V], e)
	}
	delete(rn.byEID, eid)
	rn.idx.delete(eid, geo.CalMBR(e.Coords))
	return nil
}

func removeEdgePtr(edges []*Edge, target *Edge) []*Edge {
	for i, e := range edges {
		if e == target {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

// GetEdge returns the (u,v) endpoints of eid, or ErrEdgeNotFound.
func (rn *RoadNetwork) GetEdge(eid uint32) (u, v VertexKey, err error) {
	e, ok := rn.byEID[eid]
	if !ok {
		return VertexKey{}, VertexKey{}, ErrEdgeNotFound
	}
	return e.U, e.V, nil
}

// EdgeAttr returns the full edge attributes for eid.
func (rn *RoadNetwork) EdgeAttr(eid uint32) (*Edge, error) {
	e, ok := rn.byEID[eid]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	return e, nil
}

// Neighbors returns the edges leaving v (directed) or incident to v
// (undirected), in insertion order.
func (rn *RoadNetwork) Neighbors(v VertexKey) []*Edge {
	return rn.out[v]
}

// EdgeBetween returns the first edge (in insertion order) connecting u to v,
// i.e. one whose Other(u) == v. Used to resolve the edge traversed by a
// vertex-to-vertex routing step; ambiguous when parallel edges exist
// between the same pair, in which case the first-inserted one wins.
func (rn *RoadNetwork) EdgeBetween(u, v VertexKey) (*Edge, bool) {
	for _, e := range rn.out[u] {
		if e.Other(u) == v {
			return e, true
		}
	}
	return nil, false
}

// RangeQuery returns every edge whose bounding box intersects mbr. Never
// fails — an empty slice is a valid answer.
func (rn *RoadNetwork) RangeQuery(mbr geo.MBR) []*Edge {
	eids := rn.idx.search(mbr)
	edges := make([]*Edge, 0, len(eids))
	for _, eid := range eids {
		if e, ok := rn.byEID[eid]; ok {
			edges = append(edges, e)
		}
	}
	return edges
}

// ToDirected doubles every undirected edge into a forward/backward pair: the
// forward edge keeps its eid, the backward edge gets a fresh eid and
// reversed coords. Both are inserted with the original MBR. No-op (returns
// rn unchanged semantics, but as a fresh directed copy) if rn is already
// directed.
func (rn *RoadNetwork) ToDirected() *RoadNetwork {
	out := New(true)
	if rn.directed {
		for _, e := range rn.byEID {
			out.AddEdge(e.EID, e.U, e.V, e.Coords)
		}
		return out
	}

	avail := rn.nextEID
	seen := make(map[uint32]bool, len(rn.byEID))
	for _, e := range rn.byEID {
		if seen[e.EID] {
			continue
		}
		seen[e.EID] = true

		out.AddEdge(e.EID, e.U, e.V, e.Coords)

		reversed := make([]geo.SPoint, len(e.Coords))
		for i, p := range e.Coords {
			reversed[len(e.Coords)-1-i] = p
		}
		out.AddEdge(avail, e.V, e.U, reversed)
		avail++
	}
	return out
}
