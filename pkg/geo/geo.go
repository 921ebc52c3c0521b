// Package geo implements the geodesy primitives the map matcher builds on:
// great-circle distance, bearing, and point-to-segment projection on
// WGS-84, treated as a sphere.
package geo

import "math"

// earthRadiusMeters is the mean radius of the WGS-84 ellipsoid modeled as a
// sphere, per IUGG.
const earthRadiusMeters = 6_371_008.7714

// LatPerMeter and LngPerMeter convert a metric search radius into degrees,
// used to build bounding boxes for spatial queries.
const (
	LatPerMeter = 8.9932e-6
	LngPerMeter = 1.1700e-5
)

// SPoint is a point in decimal degrees, WGS-84. Immutable, structural
// equality.
type SPoint struct {
	Lat float64
	Lng float64
}

// Equal reports whether two points have identical coordinates.
func (p SPoint) Equal(o SPoint) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

// Haversine returns the great-circle distance in meters between a and b.
func Haversine(a, b SPoint) float64 {
	if a.Equal(b) {
		return 0
	}
	latR1 := a.Lat * math.Pi / 180
	latR2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latR1)*math.Cos(latR2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing returns the initial bearing in degrees [0,360) from a to b.
func Bearing(a, b SPoint) float64 {
	latR1 := a.Lat * math.Pi / 180
	lngR1 := a.Lng * math.Pi / 180
	latR2 := b.Lat * math.Pi / 180
	lngR2 := b.Lng * math.Pi / 180

	y := math.Sin(lngR2-lngR1) * math.Cos(latR2)
	x := math.Cos(latR1)*math.Sin(latR2) - math.Sin(latR1)*math.Cos(latR2)*math.Cos(lngR2-lngR1)
	brng := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(brng+360, 360)
}

// CalLocAlongLine linearly interpolates a point between a and b at the
// given rate, in degree space. Acceptable for the short segments typical
// of road polylines.
func CalLocAlongLine(a, b SPoint, rate float64) SPoint {
	return SPoint{
		Lat: a.Lat + rate*(b.Lat-a.Lat),
		Lng: a.Lng + rate*(b.Lng-a.Lng),
	}
}

// ProjectPointToSegment projects t onto segment ab and returns the
// projection, the clamped along-segment fraction rate in [0,1], and the
// haversine distance from t to the projection.
//
// rate is computed in an equirectangular approximation (good enough at the
// scale of a single road segment) and then clamped: rate > 1 snaps to b,
// rate < 0 snaps to a, and a degenerate segment (a == b) snaps to a with
// rate 0.
func ProjectPointToSegment(a, b, t SPoint) (projection SPoint, rate, dist float64) {
	if a.Equal(b) {
		return a, 0, Haversine(t, a)
	}

	cosLat := math.Cos((a.Lat + b.Lat) / 2 * math.Pi / 180)
	ax, ay := a.Lng*cosLat, a.Lat
	bx, by := b.Lng*cosLat, b.Lat
	tx, ty := t.Lng*cosLat, t.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0, Haversine(t, a)
	}

	rate = ((tx-ax)*dx + (ty-ay)*dy) / lenSq
	switch {
	case rate > 1:
		projection, rate = b, 1
	case rate < 0:
		projection, rate = a, 0
	default:
		projection = CalLocAlongLine(a, b, rate)
	}
	dist = Haversine(t, projection)
	return projection, rate, dist
}

// MBR is a minimum bounding rectangle in geographic coordinates.
type MBR struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// MBRFromCenter builds an MBR centered at p with the given half-extents in
// degrees.
func MBRFromCenter(p SPoint, halfLat, halfLng float64) MBR {
	return MBR{
		MinLat: p.Lat - halfLat,
		MinLng: p.Lng - halfLng,
		MaxLat: p.Lat + halfLat,
		MaxLng: p.Lng + halfLng,
	}
}

// CalMBR returns the bounding rectangle of a polyline. Panics if pts is
// empty — callers must only call this with a non-empty polyline.
func CalMBR(pts []SPoint) MBR {
	m := MBR{MinLat: pts[0].Lat, MaxLat: pts[0].Lat, MinLng: pts[0].Lng, MaxLng: pts[0].Lng}
	for _, p := range pts[1:] {
		m.MinLat = math.Min(m.MinLat, p.Lat)
		m.MaxLat = math.Max(m.MaxLat, p.Lat)
		m.MinLng = math.Min(m.MinLng, p.Lng)
		m.MaxLng = math.Max(m.MaxLng, p.Lng)
	}
	return m
}

// Contains reports whether p lies within m (inclusive).
func (m MBR) Contains(p SPoint) bool {
	return p.Lat >= m.MinLat && p.Lat <= m.MaxLat && p.Lng >= m.MinLng && p.Lng <= m.MaxLng
}

// PolylineLength sums the haversine distance between consecutive points of
// a polyline.
func PolylineLength(pts []SPoint) float64 {
	var total float64
	for i := 0; i+1 < len(pts); i++ {
		total += Haversine(pts[i], pts[i+1])
	}
	return total
}
