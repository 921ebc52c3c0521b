// Package candidate generates CandidatePoints: projections of a raw GPS
// observation onto nearby road-network edges, ready for the HMM to score.
package candidate

import (
	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/network"
)

// Point is a projection of a raw observation onto a road edge. Identity for
// map-key purposes is the full tuple (EID, Lat, Lng, Error, Offset); a
// time step's candidate set must not mutate these fields after Point is
// used as a key.
type Point struct {
	geo.SPoint
	EID    uint32
	Error  float64
	Offset float64
}

// GetCandidates enumerates edges within searchDist meters of pt, projects pt
// onto each, and returns one Point per edge whose projection error is within
// searchDist. Returns nil if no edge qualifies.
func GetCandidates(pt geo.SPoint, rn *network.RoadNetwork, searchDist float64) []Point {
	halfLat := searchDist * geo.LatPerMeter
	halfLng := searchDist * geo.LngPerMeter
	mbr := geo.MBRFromCenter(pt, halfLat, halfLng)

	edges := rn.RangeQuery(mbr)
	if len(edges) == 0 {
		return nil
	}

	var out []Point
	for _, e := range edges {
		proj, errMeters, offset, ok := projectOntoEdge(pt, e)
		if !ok || errMeters > searchDist {
			continue
		}
		out = append(out, Point{
			SPoint: proj,
			EID:    e.EID,
			Error:  errMeters,
			Offset: offset,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// projectOntoEdge finds the polyline segment of e closest to pt, returning
// the projection, its distance from pt, and its cumulative offset along e
// from e.U. The first minimum wins on ties.
func projectOntoEdge(pt geo.SPoint, e *network.Edge) (proj geo.SPoint, dist, offset float64, ok bool) {
	if len(e.Coords) < 2 {
		return geo.SPoint{}, 0, 0, false
	}

	bestDist := -1.0
	var bestProj geo.SPoint
	var bestOffset float64
	var cumulative float64

	for i := 0; i+1 < len(e.Coords); i++ {
		a, b := e.Coords[i], e.Coords[i+1]
		segProj, rate, segDist := geo.ProjectPointToSegment(a, b, pt)
		if bestDist < 0 || segDist < bestDist {
			bestDist = segDist
			bestProj = segProj
			bestOffset = cumulative + rate*geo.Haversine(a, b)
		}
		cumulative += geo.Haversine(a, b)
	}

	return bestProj, bestDist, bestOffset, true
}
