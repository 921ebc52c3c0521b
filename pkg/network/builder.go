package network

import (
	"github.com/azybler/mapmatch/pkg/geo"
	osmparser "github.com/azybler/mapmatch/pkg/osm"
)

// Build assembles a directed RoadNetwork from parsed OSM way segments. Each
// segment becomes one or two edges depending on its Forward/Backward flags;
// VertexKeys are the segment endpoints' (lng, lat), so segments sharing an
// OSM node naturally share a vertex.
func Build(result *osmparser.ParseResult) *RoadNetwork {
	rn := New(true)
	eid := uint32(1)

	for _, w := range result.Ways {
		if len(w.Coords) < 2 {
			continue
		}
		u := VertexKey{Lng: w.Coords[0].Lng, Lat: w.Coords[0].Lat}
		v := VertexKey{Lng: w.Coords[len(w.Coords)-1].Lng, Lat: w.Coords[len(w.Coords)-1].Lat}

		if w.Forward {
			rn.AddEdge(eid, u, v, w.Coords)
			eid++
		}
		if w.Backward {
			rn.AddEdge(eid, v, u, reverse(w.Coords))
			eid++
		}
	}
	return rn
}

func reverse(pts []geo.SPoint) []geo.SPoint {
	out := make([]geo.SPoint, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
