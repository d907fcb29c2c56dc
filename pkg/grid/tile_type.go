// Package grid holds the typed tile grid produced by rasterizing OSM data:
// the tile catalogue, the dense grid store with its coordinate mapping,
// statistics, serialization and exports.
package grid

import (
	"fmt"
	"strings"
)

type kind uint8

const (
	kindEmpty kind = iota
	kindRoad
	kindBuilding
	kindWater
	kindGreenSpace
	kindRailway
	kindParking
	kindAmenity
	kindTourism
	kindIndustrial
	kindResidential
	kindCommercial
	kindCustom
)

// TileType is a tile category. The zero value is Empty. Custom types carry a name
// and compare equal only when their names match.
type TileType struct {
	k    kind
	name string
}

// The fixed catalogue of tile types.
var (
	Empty       = TileType{k: kindEmpty}
	Road        = TileType{k: kindRoad}
	Building    = TileType{k: kindBuilding}
	Water       = TileType{k: kindWater}
	GreenSpace  = TileType{k: kindGreenSpace}
	Railway     = TileType{k: kindRailway}
	Parking     = TileType{k: kindParking}
	Amenity     = TileType{k: kindAmenity}
	Tourism     = TileType{k: kindTourism}
	Industrial  = TileType{k: kindIndustrial}
	Residential = TileType{k: kindResidential}
	Commercial  = TileType{k: kindCommercial}
)

// Custom returns a named custom tile type.
func Custom(name string) TileType {
	return TileType{k: kindCustom, name: name}
}

// Color is an RGB display hint.
type Color struct {
	R, G, B uint8
}

type kindInfo struct {
	name     string
	priority int
	color    Color
}

var catalogue = [...]kindInfo{
	kindEmpty:       {"empty", 0, Color{240, 240, 240}},
	kindRoad:        {"road", 7, Color{128, 128, 128}},
	kindBuilding:    {"building", 9, Color{139, 69, 19}},
	kindWater:       {"water", 2, Color{30, 144, 255}},
	kindGreenSpace:  {"green_space", 1, Color{34, 139, 34}},
	kindRailway:     {"railway", 8, Color{105, 105, 105}},
	kindParking:     {"parking", 6, Color{169, 169, 169}},
	kindAmenity:     {"amenity", 10, Color{255, 165, 0}},
	kindTourism:     {"tourism", 11, Color{255, 20, 147}},
	kindIndustrial:  {"industrial", 5, Color{128, 0, 128}},
	kindResidential: {"residential", 3, Color{255, 255, 0}},
	kindCommercial:  {"commercial", 4, Color{255, 0, 0}},
	kindCustom:      {"custom", 5, Color{200, 200, 200}},
}

const customPrefix = "custom:"

// AllBuiltin lists every non-custom tile type in catalogue order.
func AllBuiltin() []TileType {
	return []TileType{Empty, Road, Building, Water, GreenSpace, Railway, Parking,
		Amenity, Tourism, Industrial, Residential, Commercial}
}

// Name returns the human-readable name. Custom types return their own name.
func (t TileType) Name() string {
	if t.k == kindCustom {
		return t.name
	}
	return catalogue[t.k].name
}

// Priority orders tile types for overwrite resolution; higher wins.
func (t TileType) Priority() int { return catalogue[t.k].priority }

// Color returns the default display color.
func (t TileType) Color() Color { return catalogue[t.k].color }

// IsCustom reports whether t was created with Custom.
func (t TileType) IsCustom() bool { return t.k == kindCustom }

// IsEmpty reports whether t is Empty.
func (t TileType) IsEmpty() bool { return t.k == kindEmpty }

// IsNavigable reports whether an agent can move across the tile.
func (t TileType) IsNavigable() bool {
	return t.k == kindRoad || t.k == kindEmpty || t.k == kindParking
}

// IsStructure reports whether the tile represents a built structure.
func (t TileType) IsStructure() bool {
	return t.k == kindBuilding || t.k == kindAmenity || t.k == kindTourism
}

// String implements fmt.Stringer.
func (t TileType) String() string {
	if t.k == kindCustom {
		return fmt.Sprintf("Custom(%s)", t.name)
	}
	return t.Name()
}

// MarshalText encodes builtin types by name and custom types as "custom:<name>".
// It also makes TileType usable as a JSON object key.
func (t TileType) MarshalText() ([]byte, error) {
	if t.k == kindCustom {
		return []byte(customPrefix + t.name), nil
	}
	return []byte(t.Name()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *TileType) UnmarshalText(text []byte) error {
	parsed, err := ParseTileType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTileType parses the text form produced by MarshalText.
func ParseTileType(s string) (TileType, error) {
	if name, ok := strings.CutPrefix(s, customPrefix); ok {
		return Custom(name), nil
	}
	for _, tt := range AllBuiltin() {
		if tt.Name() == s {
			return tt, nil
		}
	}
	return Empty, fmt.Errorf("unknown tile type %q", s)
}
