// Package geo provides the geographic primitives used to size and place tile grids.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// EarthRadius is the radius used for great-circle calculations, in meters.
const EarthRadius = orb.EarthRadius

// BoundingBox is a rectangular region in degrees. North must not be below
// South and East must not be west of West; constructors do not enforce this.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// NewBoundingBox creates a bounding box from its four edges.
func NewBoundingBox(south, west, north, east float64) BoundingBox {
	return BoundingBox{South: south, West: west, North: north, East: east}
}

// FromCenterRadius builds the box whose edges lie radiusKm from the centre
// along the four cardinal bearings.
func FromCenterRadius(lat, lon, radiusKm float64) BoundingBox {
	center := orb.Point{lon, lat}
	meters := radiusKm * 1000
	n := geo.PointAtBearingAndDistance(center, 0, meters)
	s := geo.PointAtBearingAndDistance(center, 180, meters)
	e := geo.PointAtBearingAndDistance(center, 90, meters)
	w := geo.PointAtBearingAndDistance(center, 270, meters)
	return BoundingBox{South: s.Lat(), West: w.Lon(), North: n.Lat(), East: e.Lon()}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.South + b.North) / 2, (b.West + b.East) / 2
}

// Width returns the east-west extent in degrees.
func (b BoundingBox) Width() float64 { return b.East - b.West }

// Height returns the north-south extent in degrees.
func (b BoundingBox) Height() float64 { return b.North - b.South }

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// AreaKm2 approximates the area as the great-circle width through the
// centre latitude times the great-circle height through the centre longitude.
func (b BoundingBox) AreaKm2() float64 {
	lat, lon := b.Center()
	width := HaversineDistance(lat, b.West, lat, b.East)
	height := HaversineDistance(b.South, lon, b.North, lon)
	return width * height / 1e6
}

// ExpandByKm moves every edge outward by km along its cardinal bearing.
func (b BoundingBox) ExpandByKm(km float64) BoundingBox {
	lat, lon := b.Center()
	meters := km * 1000
	n := geo.PointAtBearingAndDistance(orb.Point{lon, b.North}, 0, meters)
	s := geo.PointAtBearingAndDistance(orb.Point{lon, b.South}, 180, meters)
	e := geo.PointAtBearingAndDistance(orb.Point{b.East, lat}, 90, meters)
	w := geo.PointAtBearingAndDistance(orb.Point{b.West, lat}, 270, meters)
	return BoundingBox{South: s.Lat(), West: w.Lon(), North: n.Lat(), East: e.Lon()}
}

// Extend grows the box to include the point.
func (b BoundingBox) Extend(lat, lon float64) BoundingBox {
	return BoundingBox{
		South: math.Min(b.South, lat),
		West:  math.Min(b.West, lon),
		North: math.Max(b.North, lat),
		East:  math.Max(b.East, lon),
	}
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Validate checks the edge ordering and coordinate ranges.
func (b BoundingBox) Validate() error {
	switch {
	case b.South < -90 || b.North > 90:
		return core.Errorf(core.ErrConfig, "latitude out of range in %s", b)
	case b.West < -180 || b.East > 180:
		return core.Errorf(core.ErrConfig, "longitude out of range in %s", b)
	case b.North < b.South:
		return core.Errorf(core.ErrConfig, "north %.6f is below south %.6f", b.North, b.South)
	case b.East < b.West:
		return core.Errorf(core.ErrConfig, "east %.6f is west of west %.6f", b.East, b.West)
	}
	return nil
}

// String renders the box in Overpass order: south,west,north,east.
func (b BoundingBox) String() string {
	return strings.Join([]string{ftoa(b.South), ftoa(b.West), ftoa(b.North), ftoa(b.East)}, ",")
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// HaversineDistance returns the great-circle distance between two points in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}
