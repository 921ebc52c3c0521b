package network

import (
	"github.com/tidwall/rtree"

	"github.com/azybler/mapmatch/pkg/geo"
)

// spatialIndex wraps a tidwall/rtree R-tree keyed by edge id. Boxes are
// recomputed from edge geometry on delete rather than cached, since a given
// edge's coords never change after insertion.
type spatialIndex struct {
	tr rtree.RTreeG[uint32]
}

func mbrBox(m geo.MBR) (min, max [2]float64) {
	// tidwall/rtree uses [2]float64{x, y}; x is lng, y is lat.
	return [2]float64{m.MinLng, m.MinLat}, [2]float64{m.MaxLng, m.MaxLat}
}

func (s *spatialIndex) insert(eid uint32, m geo.MBR) {
	min, max := mbrBox(m)
	s.tr.Insert(min, max, eid)
}

func (s *spatialIndex) delete(eid uint32, m geo.MBR) {
	min, max := mbrBox(m)
	s.tr.Delete(min, max, eid)
}

// search returns every eid whose box intersects m, in R-tree visitation
// order (not necessarily insertion order).
func (s *spatialIndex) search(m geo.MBR) []uint32 {
	min, max := mbrBox(m)
	var out []uint32
	s.tr.Search(min, max, func(_, _ [2]float64, data uint32) bool {
		out = append(out, data)
		return true
	})
	return out
}
