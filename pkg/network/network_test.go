package network

import (
	"testing"

	"github.com/azybler/mapmatch/pkg/geo"
)

func straight(a, b geo.SPoint) []geo.SPoint { return []geo.SPoint{a, b} }

func TestAddEdgeComputesLength(t *testing.T) {
	rn := New(true)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	coords := straight(u.Pt(), v.Pt())
	e := rn.AddEdge(1, u, v, coords)

	want := geo.PolylineLength(coords)
	if e.Length != want {
		t.Errorf("Length = %f, want %f", e.Length, want)
	}
	if rn.NumEdges() != 1 {
		t.Errorf("NumEdges = %d, want 1", rn.NumEdges())
	}
}

func TestDirectedNeighborsOneWay(t *testing.T) {
	rn := New(true)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	if got := len(rn.Neighbors(u)); got != 1 {
		t.Errorf("Neighbors(u) = %d, want 1", got)
	}
	if got := len(rn.Neighbors(v)); got != 0 {
		t.Errorf("Neighbors(v) = %d, want 0 (directed)", got)
	}
}

func TestUndirectedNeighborsBothWays(t *testing.T) {
	rn := New(false)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	if got := len(rn.Neighbors(u)); got != 1 {
		t.Errorf("Neighbors(u) = %d, want 1", got)
	}
	if got := len(rn.Neighbors(v)); got != 1 {
		t.Errorf("Neighbors(v) = %d, want 1 (undirected)", got)
	}
}

func TestRemoveEdgeUpdatesAllStructures(t *testing.T) {
	rn := New(true)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	if err := rn.RemoveEdge(1); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	if _, _, err := rn.GetEdge(1); err != ErrEdgeNotFound {
		t.Errorf("GetEdge after remove = %v, want ErrEdgeNotFound", err)
	}
	if got := len(rn.Neighbors(u)); got != 0 {
		t.Errorf("Neighbors(u) after remove = %d, want 0", got)
	}
	mbr := geo.MBRFromCenter(u.Pt(), 0.01, 0.01)
	if got := rn.RangeQuery(mbr); len(got) != 0 {
		t.Errorf("RangeQuery after remove = %d edges, want 0", len(got))
	}
}

func TestRemoveUnknownEdge(t *testing.T) {
	rn := New(true)
	if err := rn.RemoveEdge(99); err != ErrEdgeNotFound {
		t.Errorf("RemoveEdge(unknown) = %v, want ErrEdgeNotFound", err)
	}
}

func TestRangeQueryFindsInsertedEdge(t *testing.T) {
	rn := New(true)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	mbr := geo.MBRFromCenter(geo.SPoint{Lat: 0, Lng: 0.0005}, 0.01, 0.01)
	got := rn.RangeQuery(mbr)
	if len(got) != 1 || got[0].EID != 1 {
		t.Errorf("RangeQuery = %+v, want [edge 1]", got)
	}
}

func TestRangeQueryMissesFarEdge(t *testing.T) {
	rn := New(true)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	mbr := geo.MBRFromCenter(geo.SPoint{Lat: 10, Lng: 10}, 0.001, 0.001)
	if got := rn.RangeQuery(mbr); len(got) != 0 {
		t.Errorf("RangeQuery = %d edges, want 0", len(got))
	}
}

func TestToDirectedDoublesEdges(t *testing.T) {
	rn := New(false)
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	d := rn.ToDirected()
	if d.NumEdges() != 2 {
		t.Fatalf("NumEdges = %d, want 2", d.NumEdges())
	}
	fwd, err := d.EdgeAttr(1)
	if err != nil {
		t.Fatalf("EdgeAttr(1): %v", err)
	}
	if fwd.U != u || fwd.V != v {
		t.Errorf("forward edge = %+v, want U=%v V=%v", fwd, u, v)
	}

	var bwd *Edge
	for _, e := range d.byEID {
		if e.EID != 1 {
			bwd = e
		}
	}
	if bwd == nil {
		t.Fatal("no backward edge found")
	}
	if bwd.U != v || bwd.V != u {
		t.Errorf("backward edge = %+v, want U=%v V=%v", bwd, v, u)
	}
	if bwd.Coords[0] != fwd.Coords[len(fwd.Coords)-1] {
		t.Errorf("backward coords not reversed: %+v vs forward %+v", bwd.Coords, fwd.Coords)
	}
	if bwd.EID == fwd.EID {
		t.Error("backward edge must have a fresh eid")
	}
}

func TestEdgeOther(t *testing.T) {
	u := VertexKey{Lng: 0, Lat: 0}
	v := VertexKey{Lng: 1, Lat: 1}
	e := &Edge{U: u, V: v}
	if got := e.Other(u); got != v {
		t.Errorf("Other(u) = %v, want %v", got, v)
	}
	if got := e.Other(v); got != u {
		t.Errorf("Other(v) = %v, want %v", got, u)
	}
}
