// Package trajectory defines the input/output value types of the matcher
// (STPoint, Trajectory, Path, PathEntity) and the CSV persistence format
// for matched Paths.
package trajectory

import (
	"errors"
	"time"

	"github.com/azybler/mapmatch/pkg/geo"
)

// ErrInputInvariant covers non-monotonic timestamps, empty trajectories,
// and other caller-supplied data that violates the matcher's input
// contract.
var ErrInputInvariant = errors.New("trajectory: input invariant violation")

// STPoint is one raw observation: a point in space and time, carrying an
// optional payload (e.g. the matched CandidatePoint after map matching).
type STPoint struct {
	geo.SPoint
	Time time.Time
	Data any
}

// Trajectory is an ordered sequence of observations from one moving object.
type Trajectory struct {
	OID string
	TID string
	Pts []STPoint
}

// New validates and constructs a Trajectory. Returns ErrInputInvariant if
// pts is empty or its timestamps are not non-decreasing.
func New(oid, tid string, pts []STPoint) (Trajectory, error) {
	if len(pts) == 0 {
		return Trajectory{}, ErrInputInvariant
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Time.Before(pts[i-1].Time) {
			return Trajectory{}, ErrInputInvariant
		}
	}
	return Trajectory{OID: oid, TID: tid, Pts: pts}, nil
}

// Length returns the sum of haversine distances between consecutive points.
func (t Trajectory) Length() float64 {
	pts := make([]geo.SPoint, len(t.Pts))
	for i, p := range t.Pts {
		pts[i] = p.SPoint
	}
	return geo.PolylineLength(pts)
}

// StartTime and EndTime return the first and last observation's timestamp.
func (t Trajectory) StartTime() time.Time { return t.Pts[0].Time }
func (t Trajectory) EndTime() time.Time   { return t.Pts[len(t.Pts)-1].Time }
