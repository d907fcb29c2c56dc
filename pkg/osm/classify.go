package osm

import "github.com/NERVsystems/osmtiles/pkg/grid"

// Classify maps a tag set to a tile type. Rules are checked in order and the
// first match wins, so structural tags (building) beat use tags (landuse).
func Classify(tags map[string]string) grid.TileType {
	if v, ok := tags["building"]; ok {
		switch v {
		case "residential":
			return grid.Residential
		case "commercial", "retail":
			return grid.Commercial
		case "industrial":
			return grid.Industrial
		}
		return grid.Building
	}
	if _, ok := tags["highway"]; ok {
		return grid.Road
	}
	if _, ok := tags["waterway"]; ok || tags["natural"] == "water" {
		return grid.Water
	}
	switch {
	case tags["leisure"] == "park", tags["leisure"] == "garden",
		tags["landuse"] == "forest", tags["natural"] == "wood",
		tags["landuse"] == "grass":
		return grid.GreenSpace
	}
	if _, ok := tags["railway"]; ok {
		return grid.Railway
	}
	if tags["amenity"] == "parking" || tags["landuse"] == "parking" {
		return grid.Parking
	}
	if _, ok := tags["amenity"]; ok {
		return grid.Amenity
	}
	if _, ok := tags["tourism"]; ok {
		return grid.Tourism
	}
	if v, ok := tags["landuse"]; ok {
		switch v {
		case "residential":
			return grid.Residential
		case "commercial", "retail":
			return grid.Commercial
		case "industrial":
			return grid.Industrial
		}
		return grid.Custom("landuse_" + v)
	}
	return grid.Empty
}
