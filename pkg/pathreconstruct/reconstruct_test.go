package pathreconstruct

import (
	"testing"
	"time"

	"github.com/azybler/mapmatch/pkg/candidate"
	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/matching"
	"github.com/azybler/mapmatch/pkg/network"
	"github.com/azybler/mapmatch/pkg/routing"
	"github.com/azybler/mapmatch/pkg/trajectory"
)

func withCandi(base time.Time, offset time.Duration, lat, lng float64, c *candidate.Point) trajectory.STPoint {
	return trajectory.STPoint{
		SPoint: geo.SPoint{Lat: lat, Lng: lng},
		Time:   base.Add(offset),
		Data:   &matching.CandidatePtr{Candi: c},
	}
}

func TestConstructPathSingleEdgeThreePoints(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, []geo.SPoint{u.Pt(), v.Pt()})
	r := New(rn, routing.New(rn, nil), 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := []trajectory.STPoint{
		withCandi(base, 0, 0.00005, 0, &candidate.Point{SPoint: geo.SPoint{Lat: 0, Lng: 0}, EID: 1, Offset: 0}),
		withCandi(base, 10*time.Second, 0.00005, 0.0005, &candidate.Point{SPoint: geo.SPoint{Lat: 0, Lng: 0.0005}, EID: 1, Offset: 55}),
		withCandi(base, 20*time.Second, 0.00005, 0.001, &candidate.Point{SPoint: geo.SPoint{Lat: 0, Lng: 0.001}, EID: 1, Offset: 111}),
	}
	traj := trajectory.Trajectory{OID: "veh1", TID: "t1", Pts: pts}

	paths := r.ConstructPath(traj)
	if len(paths) != 1 {
		t.Fatalf("ConstructPath = %d paths, want 1", len(paths))
	}
	if len(paths[0].Entities) != 1 {
		t.Fatalf("entities = %d, want 1 (single edge traversal)", len(paths[0].Entities))
	}
	if paths[0].Entities[0].EID != 1 {
		t.Errorf("EID = %d, want 1", paths[0].Entities[0].EID)
	}
}

func TestConstructPathGapProducesNoPathWhenShort(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, []geo.SPoint{u.Pt(), v.Pt()})
	r := New(rn, routing.New(rn, nil), 2)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &candidate.Point{SPoint: geo.SPoint{Lat: 0, Lng: 0}, EID: 1, Offset: 0}
	pts := []trajectory.STPoint{
		withCandi(base, 0, 0, 0, c),
		withCandi(base, 10*time.Second, 10, 10, nil),
	}
	traj := trajectory.Trajectory{OID: "veh1", TID: "t1", Pts: pts}

	paths := r.ConstructPath(traj)
	if len(paths) != 0 {
		t.Fatalf("ConstructPath = %d paths, want 0 (buffer too short to emit)", len(paths))
	}
}

// TestConstructPathInterpolatesInnerEdgeTimes covers S6: two observations
// 60s apart, bridged by a routed path crossing five edges of length
// 50/100/200/100/50 meters (total 500m, matching the candidates' 50m
// entrance and exit distances). Leave times must split proportionally by
// distance: 6s, 18s, 42s, 54s, 60s after the first observation.
func TestConstructPathInterpolatesInnerEdgeTimes(t *testing.T) {
	rn := network.New(true)
	// Degrees of latitude spanning exactly 50/100/200 meters along a
	// meridian, computed from the haversine formula so PolylineLength
	// reproduces these distances exactly.
	const dlat50 = 0.0004496601838808318
	const dlat100 = 0.0008993203677616636
	const dlat200 = 0.0017986407355233271

	v0 := network.VertexKey{Lng: 0, Lat: 0}
	v1 := network.VertexKey{Lng: 0, Lat: v0.Lat + dlat50}
	v2 := network.VertexKey{Lng: 0, Lat: v1.Lat + dlat100}
	v3 := network.VertexKey{Lng: 0, Lat: v2.Lat + dlat200}
	v4 := network.VertexKey{Lng: 0, Lat: v3.Lat + dlat100}
	v5 := network.VertexKey{Lng: 0, Lat: v4.Lat + dlat50}

	rn.AddEdge(1, v0, v1, []geo.SPoint{v0.Pt(), v1.Pt()})
	rn.AddEdge(2, v1, v2, []geo.SPoint{v1.Pt(), v2.Pt()})
	rn.AddEdge(3, v2, v3, []geo.SPoint{v2.Pt(), v3.Pt()})
	rn.AddEdge(4, v3, v4, []geo.SPoint{v3.Pt(), v4.Pt()})
	rn.AddEdge(5, v4, v5, []geo.SPoint{v4.Pt(), v5.Pt()})

	r := New(rn, routing.New(rn, nil), 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prevCandi := &candidate.Point{SPoint: v0.Pt(), EID: 1, Offset: 0}
	curCandi := &candidate.Point{SPoint: v5.Pt(), EID: 5, Offset: 50}
	pts := []trajectory.STPoint{
		withCandi(base, 0, v0.Lat, v0.Lng, prevCandi),
		withCandi(base, 60*time.Second, v5.Lat, v5.Lng, curCandi),
	}
	traj := trajectory.Trajectory{OID: "veh1", TID: "t1", Pts: pts}

	paths := r.ConstructPath(traj)
	if len(paths) != 1 {
		t.Fatalf("ConstructPath = %d paths, want 1", len(paths))
	}
	entities := paths[0].Entities
	if len(entities) != 5 {
		t.Fatalf("entities = %d, want 5 (one per edge)", len(entities))
	}

	wantEIDs := []uint32{1, 2, 3, 4, 5}
	wantLeaveSecs := []float64{6, 18, 42, 54, 60}
	const tolerance = time.Millisecond
	for i, e := range entities {
		if e.EID != wantEIDs[i] {
			t.Errorf("entities[%d].EID = %d, want %d", i, e.EID, wantEIDs[i])
		}
		wantLeave := base.Add(time.Duration(wantLeaveSecs[i] * float64(time.Second)))
		if d := e.LeaveTime.Sub(wantLeave); d < -tolerance || d > tolerance {
			t.Errorf("entities[%d].LeaveTime = %v, want %v (+/- 1ms)", i, e.LeaveTime, wantLeave)
		}
	}
	if entities[0].EnterTime != base {
		t.Errorf("entities[0].EnterTime = %v, want %v", entities[0].EnterTime, base)
	}
	if !entities[len(entities)-1].LeaveTime.Equal(pts[1].Time) {
		t.Errorf("last LeaveTime = %v, want trajectory end time %v", entities[len(entities)-1].LeaveTime, pts[1].Time)
	}
}

// TestConstructPathEmitsTwoPathsAfterBreakRecovery covers S5: a bracket of
// matched points, a gap of unmatched points, and a second bracket of matched
// points must produce two separate Paths rather than one merged or dropped
// path. MinPathEntities is 0 here for the same reason as
// TestConstructPathSingleEdgeThreePoints: a single-entity fragment is still
// a valid path when nothing downstream depends on a longer threshold.
func TestConstructPathEmitsTwoPathsAfterBreakRecovery(t *testing.T) {
	rn := network.New(true)
	u := network.VertexKey{Lng: 0, Lat: 0}
	v := network.VertexKey{Lng: 0.001, Lat: 0}
	rn.AddEdge(1, u, v, []geo.SPoint{u.Pt(), v.Pt()})
	r := New(rn, routing.New(rn, nil), 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &candidate.Point{SPoint: u.Pt(), EID: 1, Offset: 0}
	pts := []trajectory.STPoint{
		withCandi(base, 0, 0, 0, c),
		withCandi(base, 10*time.Second, 0, 0, c),
		withCandi(base, 20*time.Second, 10, 10, nil),
		withCandi(base, 30*time.Second, 10, 10, nil),
		withCandi(base, 40*time.Second, 10, 10, nil),
		withCandi(base, 50*time.Second, 10, 10, nil),
		withCandi(base, 60*time.Second, 0, 0, c),
		withCandi(base, 70*time.Second, 0, 0, c),
	}
	traj := trajectory.Trajectory{OID: "veh1", TID: "t1", Pts: pts}

	paths := r.ConstructPath(traj)
	if len(paths) != 2 {
		t.Fatalf("ConstructPath = %d paths, want 2 (one per bracket around the gap)", len(paths))
	}
	for i, p := range paths {
		if len(p.Entities) == 0 {
			t.Errorf("paths[%d] has no entities", i)
		}
		for _, e := range p.Entities {
			if e.EID != 1 {
				t.Errorf("paths[%d] entity EID = %d, want 1", i, e.EID)
			}
		}
	}
}

func TestConstructPathAllUnmatchedReturnsNil(t *testing.T) {
	rn := network.New(true)
	r := New(rn, routing.New(rn, nil), 2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := []trajectory.STPoint{
		withCandi(base, 0, 0, 0, nil),
		withCandi(base, 10*time.Second, 0, 0, nil),
	}
	traj := trajectory.Trajectory{OID: "veh1", TID: "t1", Pts: pts}
	if paths := r.ConstructPath(traj); paths != nil {
		t.Errorf("ConstructPath = %+v, want nil", paths)
	}
}
