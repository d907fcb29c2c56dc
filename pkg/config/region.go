package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
)

// Region is the geographic area a grid is generated for. It is one of
// City, BBox or CenterRadius.
type Region interface {
	// Key is a stable identifier used for cache keys and logging.
	Key() string
	isRegion()
}

// City names a place that providers geocode.
type City struct {
	Name string `json:"name"`
}

// BBox is an explicit bounding box.
type BBox struct {
	geo.BoundingBox
}

// CenterRadius is a circle around a point, resolved to its enclosing box.
type CenterRadius struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

func (City) isRegion()         {}
func (BBox) isRegion()         {}
func (CenterRadius) isRegion() {}

func (c City) Key() string { return "city:" + strings.ToLower(strings.TrimSpace(c.Name)) }
func (b BBox) Key() string { return "bbox:" + b.BoundingBox.String() }
func (c CenterRadius) Key() string {
	return fmt.Sprintf("center:%g,%g,%g", c.Lat, c.Lon, c.RadiusKm)
}

func (c City) String() string         { return c.Name }
func (c CenterRadius) String() string { return fmt.Sprintf("%g,%g r=%gkm", c.Lat, c.Lon, c.RadiusKm) }

// NewBBoxRegion builds a BBox region from its edges.
func NewBBoxRegion(south, west, north, east float64) BBox {
	return BBox{geo.NewBoundingBox(south, west, north, east)}
}

// ValidateRegion checks the invariants of a region. A nil region is invalid.
func ValidateRegion(r Region) error {
	switch v := r.(type) {
	case City:
		if strings.TrimSpace(v.Name) == "" {
			return core.NewError(core.ErrConfig, "city name must not be empty")
		}
	case BBox:
		return v.Validate()
	case CenterRadius:
		if v.RadiusKm <= 0 {
			return core.Errorf(core.ErrConfig, "radius must be positive, got %g km", v.RadiusKm)
		}
		if v.Lat < -90 || v.Lat > 90 || v.Lon < -180 || v.Lon > 180 {
			return core.Errorf(core.ErrConfig, "center (%g, %g) is outside valid coordinates", v.Lat, v.Lon)
		}
	default:
		return core.NewError(core.ErrConfig, "region is required")
	}
	return nil
}

// regionJSON is the tagged wire form: {"type":"city","name":"Berlin"},
// {"type":"bbox","south":..}, {"type":"center","lat":..,"lon":..,"radius_km":..}.
type regionJSON struct {
	Type     string  `json:"type"`
	Name     string  `json:"name,omitempty"`
	South    float64 `json:"south,omitempty"`
	West     float64 `json:"west,omitempty"`
	North    float64 `json:"north,omitempty"`
	East     float64 `json:"east,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	RadiusKm float64 `json:"radius_km,omitempty"`
}

// MarshalRegion encodes a region as a tagged JSON object.
func MarshalRegion(r Region) ([]byte, error) {
	var w regionJSON
	switch v := r.(type) {
	case City:
		w = regionJSON{Type: "city", Name: v.Name}
	case BBox:
		w = regionJSON{Type: "bbox", South: v.South, West: v.West, North: v.North, East: v.East}
	case CenterRadius:
		w = regionJSON{Type: "center", Lat: v.Lat, Lon: v.Lon, RadiusKm: v.RadiusKm}
	default:
		return nil, core.NewError(core.ErrConfig, "cannot encode empty region")
	}
	return json.Marshal(w)
}

// UnmarshalRegion decodes the form written by MarshalRegion.
func UnmarshalRegion(data []byte) (Region, error) {
	var w regionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, core.NewError(core.ErrParse, "invalid region JSON").WithCause(err)
	}
	switch w.Type {
	case "city":
		return City{Name: w.Name}, nil
	case "bbox":
		return NewBBoxRegion(w.South, w.West, w.North, w.East), nil
	case "center":
		return CenterRadius{Lat: w.Lat, Lon: w.Lon, RadiusKm: w.RadiusKm}, nil
	}
	return nil, core.Errorf(core.ErrParse, "unknown region type %q", w.Type)
}
