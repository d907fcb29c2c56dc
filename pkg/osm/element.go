// Package osm provides the OpenStreetMap element model, parsers for the
// supported input formats, tag classification and the rate-limited HTTP
// client used to reach Overpass and Nominatim.
package osm

import (
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/grid"
)

// ElementKind is the OSM primitive type
type ElementKind string

// Element kinds
const (
	KindNode     ElementKind = "node"
	KindWay      ElementKind = "way"
	KindRelation ElementKind = "relation"
)

// LatLon is a geometry vertex in degrees
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is a parsed OSM feature. Geometry holds one point for nodes and
// two or more for lines; a polygon repeats its first point at the end.
type Element struct {
	ID       int64             `json:"id"`
	Kind     ElementKind       `json:"type"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
}

// TileType classifies the element by its tags
func (e Element) TileType() grid.TileType {
	return Classify(e.Tags)
}

// Metadata returns tile provenance for this element
func (e Element) Metadata() *grid.TileMetadata {
	return grid.NewTileMetadata(e.ID, e.Tags)
}

// Center returns the mean of the geometry points
func (e Element) Center() (lat, lon float64, ok bool) {
	if len(e.Geometry) == 0 {
		return 0, 0, false
	}
	for _, p := range e.Geometry {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(e.Geometry))
	return lat / n, lon / n, true
}

// Bounds returns the smallest box containing the geometry
func (e Element) Bounds() (geo.BoundingBox, bool) {
	if len(e.Geometry) == 0 {
		return geo.BoundingBox{}, false
	}
	first := e.Geometry[0]
	b := geo.NewBoundingBox(first.Lat, first.Lon, first.Lat, first.Lon)
	for _, p := range e.Geometry[1:] {
		b = b.Extend(p.Lat, p.Lon)
	}
	return b, true
}

// BoundsOf returns the box containing every element's geometry.
func BoundsOf(elements []Element) (geo.BoundingBox, bool) {
	var out geo.BoundingBox
	found := false
	for _, e := range elements {
		b, ok := e.Bounds()
		if !ok {
			continue
		}
		if !found {
			out, found = b, true
			continue
		}
		out = out.Extend(b.South, b.West).Extend(b.North, b.East)
	}
	return out, found
}
