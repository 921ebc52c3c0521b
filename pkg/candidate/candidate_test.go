package candidate

import (
	"testing"

	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/network"
)

func straight(a, b geo.SPoint) []geo.SPoint { return []geo.SPoint{a, b} }

func TestGetCandidatesFindsNearbyEdge(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	pt := geo.SPoint{Lat: 0.00001, Lng: 0.0005}
	cands := GetCandidates(pt, rn, 50)
	if len(cands) != 1 {
		t.Fatalf("GetCandidates = %d candidates, want 1", len(cands))
	}
	if cands[0].EID != 1 {
		t.Errorf("EID = %d, want 1", cands[0].EID)
	}
	if cands[0].Offset <= 0 || cands[0].Offset >= 111 {
		t.Errorf("Offset = %f, want roughly midpoint of ~111m edge", cands[0].Offset)
	}
}

func TestGetCandidatesDiscardsFarEdge(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	pt := geo.SPoint{Lat: 1, Lng: 1}
	if cands := GetCandidates(pt, rn, 50); cands != nil {
		t.Errorf("GetCandidates = %+v, want nil", cands)
	}
}

func TestGetCandidatesEmptyNetworkReturnsNil(t *testing.T) {
	rn := network.New(true)
	if cands := GetCandidates(geo.SPoint{}, rn, 50); cands != nil {
		t.Errorf("GetCandidates = %+v, want nil", cands)
	}
}

func TestProjectOntoEdgeOffsetAtStart(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, straight(u.Pt(), v.Pt()))

	cands := GetCandidates(geo.SPoint{Lat: 0.00001, Lng: 0}, rn, 50)
	if len(cands) != 1 {
		t.Fatalf("GetCandidates = %d candidates, want 1", len(cands))
	}
	if cands[0].Offset > 1 {
		t.Errorf("Offset = %f, want ~0 (projection near start vertex)", cands[0].Offset)
	}
}

func TestProjectOntoEdgePicksClosestSegment(t *testing.T) {
	rn := network.New(true)
	a := geo.SPoint{Lat: 0, Lng: 0}
	b := geo.SPoint{Lat: 0, Lng: 0.001}
	c := geo.SPoint{Lat: 0.001, Lng: 0.001}
	u := network.VertexKey{Lng: a.Lng, Lat: a.Lat}
	v := network.VertexKey{Lng: c.Lng, Lat: c.Lat}
	rn.AddEdge(1, u, v, []geo.SPoint{a, b, c})

	pt := geo.SPoint{Lat: 0.0005, Lng: 0.00105}
	cands := GetCandidates(pt, rn, 100)
	if len(cands) != 1 {
		t.Fatalf("GetCandidates = %d candidates, want 1", len(cands))
	}
	firstSegLen := geo.Haversine(a, b)
	if cands[0].Offset < firstSegLen {
		t.Errorf("Offset = %f, want projection on second segment (offset >= %f)", cands[0].Offset, firstSegLen)
	}
}
