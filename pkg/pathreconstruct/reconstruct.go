// Package pathreconstruct turns a map-matched trajectory into one or more
// Paths: contiguous sequences of (enter_time, leave_time, eid) entities
// describing which edge the object occupied and when.
package pathreconstruct

import (
	"time"

	"github.com/azybler/mapmatch/pkg/candidate"
	"github.com/azybler/mapmatch/pkg/matching"
	"github.com/azybler/mapmatch/pkg/network"
	"github.com/azybler/mapmatch/pkg/routing"
	"github.com/azybler/mapmatch/pkg/trajectory"
)

// Reconstructor turns matched trajectories into Paths using a Router over
// the same RoadNetwork the matcher used.
type Reconstructor struct {
	Network         *network.RoadNetwork
	Router          *routing.Router
	MinPathEntities int
}

// New builds a Reconstructor. minPathEntities is the spec's emission
// threshold: a path buffer is only emitted once it holds more than this
// many entities (default 2, dropping degenerate 1-2 edge fragments).
func New(rn *network.RoadNetwork, router *routing.Router, minPathEntities int) *Reconstructor {
	return &Reconstructor{Network: rn, Router: router, MinPathEntities: minPathEntities}
}

func candi(pt trajectory.STPoint) *candidate.Point {
	cp, ok := pt.Data.(*matching.CandidatePtr)
	if !ok || cp == nil {
		return nil
	}
	return cp.Candi
}

// ConstructPath reconstructs the edge-traversal Paths of a matched
// trajectory. A path buffer is closed at every unmatched point and at every
// transition the router cannot connect; a closed buffer is returned as a
// Path only if it holds more than MinPathEntities entities. The first
// entity's enter_time and the last entity's leave_time of each path are
// approximate, per the source heuristic this adapts.
func (r *Reconstructor) ConstructPath(traj trajectory.Trajectory) []trajectory.Path {
	pts := traj.Pts
	startIdx := len(pts)
	for i, pt := range pts {
		if candi(pt) != nil {
			startIdx = i
			break
		}
	}
	if startIdx == len(pts) {
		return nil
	}

	var paths []trajectory.Path
	var buf []trajectory.PathEntity
	preEdgeEnterTime := pts[startIdx].Time

	emit := func() {
		if len(buf) > r.MinPathEntities {
			paths = append(paths, trajectory.NewPath(traj.OID, append([]trajectory.PathEntity(nil), buf...)))
		}
		buf = nil
	}

	for i := startIdx + 1; i < len(pts); i++ {
		prevPt, curPt := pts[i-1], pts[i]
		prevCandi := candi(prevPt)

		if prevCandi == nil {
			preEdgeEnterTime = curPt.Time
			continue
		}

		curCandi := candi(curPt)
		if curCandi == nil {
			buf = append(buf, trajectory.PathEntity{EnterTime: preEdgeEnterTime, LeaveTime: prevPt.Time, EID: prevCandi.EID})
			emit()
			continue
		}

		if prevCandi.EID == curCandi.EID {
			continue
		}

		cost, path, err := r.Router.FindShortestPath(*prevCandi, *curCandi)
		if err != nil {
			buf = append(buf, trajectory.PathEntity{EnterTime: preEdgeEnterTime, LeaveTime: prevPt.Time, EID: prevCandi.EID})
			emit()
			preEdgeEnterTime = curPt.Time
			continue
		}

		distToEntrance, distToExit := r.partialEdgeDistances(*prevCandi, *curCandi, path)
		totalDist := cost

		deltaTime := curPt.Time.Sub(prevPt.Time)
		var curEdgeEnterTime time.Time

		if totalDist == 0 {
			preEdgeLeaveTime := curPt.Time
			buf = append(buf, trajectory.PathEntity{EnterTime: preEdgeEnterTime, LeaveTime: preEdgeLeaveTime, EID: prevCandi.EID})
			curEdgeEnterTime = curPt.Time
		} else {
			preEdgeLeaveTime := prevPt.Time.Add(scaleDuration(deltaTime, distToEntrance/totalDist))
			buf = append(buf, trajectory.PathEntity{EnterTime: preEdgeEnterTime, LeaveTime: preEdgeLeaveTime, EID: prevCandi.EID})
			curEdgeEnterTime = curPt.Time.Add(-scaleDuration(deltaTime, distToExit/totalDist))

			innerDist := totalDist - distToEntrance - distToExit
			buf = append(buf, r.interpolateInnerPath(path, innerDist, preEdgeLeaveTime, curEdgeEnterTime)...)
		}
		preEdgeEnterTime = curEdgeEnterTime
	}

	if last := pts[len(pts)-1]; candi(last) != nil {
		buf = append(buf, trajectory.PathEntity{EnterTime: preEdgeEnterTime, LeaveTime: last.Time, EID: candi(last).EID})
		emit()
	}

	return paths
}

func scaleDuration(d time.Duration, frac float64) time.Duration {
	return time.Duration(float64(d) * frac)
}

// partialEdgeDistances computes how far the object still had to travel on
// prev's edge to reach path's first vertex, and how far into cur's edge it
// had to travel from path's last vertex to reach the candidate.
//
// In the directed case these reduce to the remaining-length-on-edge
// formulas directly. In the undirected case we must check which endpoint of
// each edge the routed path actually touches — using cur's offset (and the
// appropriate subtraction from cur's edge length) in both branches of the
// exit-distance computation, unlike a since-fixed bug in the source this
// was ported from that reused prev's offset in the second branch.
func (r *Reconstructor) partialEdgeDistances(prev, cur candidate.Point, path []network.VertexKey) (distToEntrance, distToExit float64) {
	prevEdge, _ := r.Network.EdgeAttr(prev.EID)
	curEdge, _ := r.Network.EdgeAttr(cur.EID)

	if r.Network.IsDirected() {
		return prevEdge.Length - prev.Offset, cur.Offset
	}

	entranceVertex := path[0]
	if entranceVertex == prevEdge.U {
		distToEntrance = prev.Offset
	} else {
		distToEntrance = prevEdge.Length - prev.Offset
	}

	exitVertex := path[len(path)-1]
	if exitVertex == curEdge.U {
		distToExit = cur.Offset
	} else {
		distToExit = curEdge.Length - cur.Offset
	}
	return distToEntrance, distToExit
}

// interpolateInnerPath splits [enterTime, leaveTime] proportionally across
// the inner path's edges by length, emitting one PathEntity per edge. The
// last edge's leave time is clamped to leaveTime to absorb rounding.
func (r *Reconstructor) interpolateInnerPath(path []network.VertexKey, innerDist float64, enterTime, leaveTime time.Time) []trajectory.PathEntity {
	if len(path) < 2 {
		return nil
	}
	delta := leaveTime.Sub(enterTime)
	var entities []trajectory.PathEntity
	cur := enterTime

	for i := 0; i+1 < len(path); i++ {
		e, ok := r.Network.EdgeBetween(path[i], path[i+1])
		if !ok {
			continue
		}
		var edgeLeave time.Time
		if i == len(path)-2 {
			edgeLeave = leaveTime
		} else if innerDist > 0 {
			edgeLeave = cur.Add(scaleDuration(delta, e.Length/innerDist))
		} else {
			edgeLeave = cur
		}
		entities = append(entities, trajectory.PathEntity{EnterTime: cur, LeaveTime: edgeLeave, EID: e.EID})
		cur = edgeLeave
	}
	return entities
}
