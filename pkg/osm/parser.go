// Package osm loads car-accessible road geometry from an OSM PBF extract,
// splitting ways at junctions so each emitted segment carries the full
// polyline a RoadNetwork edge needs (not just its endpoints).
package osm

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/azybler/mapmatch/pkg/geo"
)

// Way is a single road segment between two junctions (or way endpoints),
// ready to become a network.Edge. Forward and Backward independently say
// whether travel is permitted in the polyline's given direction and its
// reverse, per the way's oneway/highway tags.
type Way struct {
	Coords   []geo.SPoint
	Forward  bool
	Backward bool
}

// ParseResult holds every car-accessible road segment parsed from a PBF
// extract.
type ParseResult struct {
	Ways []Way
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	return true
}

// directionFlags returns (forward, backward) based on highway type and
// oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		forward, backward = false, false
	}
	return forward, backward
}

type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
}

// BBox defines a geographic bounding box for filtering.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox BBox
}

// Parse reads an OSM PBF file and returns car-accessible road segments,
// split at junction nodes so each segment's Coords is a full polyline. The
// reader is consumed twice (seeks back to start for the second pass), so it
// must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	useBBox := !opt.BBox.IsZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	nodeRefCount := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		obj := scanner.Object()
		w, ok := obj.(*osm.Way)
		if !ok {
			continue
		}
		if !isCarAccessible(w.Tags) {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
			nodeRefCount[wn.ID]++
		}
		ways = append(ways, wayInfo{NodeIDs: nodeIDs, Forward: fwd, Backward: bwd})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	log.Printf("Pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referencedNodes))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLng := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		obj := scanner.Object()
		n, ok := obj.(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLng[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()
	log.Printf("Pass 2 complete: %d node coordinates collected", len(nodeLat))

	// A node is a junction (segment boundary) if it is a way's first/last
	// node, or it is referenced by more than one way segment.
	isJunction := func(id osm.NodeID, w wayInfo, i int) bool {
		if i == 0 || i == len(w.NodeIDs)-1 {
			return true
		}
		return nodeRefCount[id] > 1
	}

	var result ParseResult
	var skipped int

	for _, w := range ways {
		var seg []geo.SPoint
		flushSeg := func() {
			if len(seg) < 2 {
				return
			}
			if useBBox {
				first, last := seg[0], seg[len(seg)-1]
				if !opt.BBox.Contains(first.Lat, first.Lng) || !opt.BBox.Contains(last.Lat, last.Lng) {
					return
				}
			}
			coords := make([]geo.SPoint, len(seg))
			copy(coords, seg)
			result.Ways = append(result.Ways, Way{Coords: coords, Forward: w.Forward, Backward: w.Backward})
		}

		for i, id := range w.NodeIDs {
			lat, ok1 := nodeLat[id]
			lng, ok2 := nodeLng[id]
			if !ok1 || !ok2 {
				skipped++
				seg = nil
				continue
			}
			seg = append(seg, geo.SPoint{Lat: lat, Lng: lng})
			if isJunction(id, w, i) && i != 0 {
				flushSeg()
				seg = []geo.SPoint{{Lat: lat, Lng: lng}}
			}
		}
	}

	if skipped > 0 {
		log.Printf("Warning: skipped %d node references with missing coordinates", skipped)
	}
	log.Printf("Built %d road segments", len(result.Ways))

	return &result, nil
}
