// Package config describes what grid to generate: the region, the grid
// resolution and the OSM features to fetch.
package config

import (
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
)

// Defaults
const (
	DefaultCity           = "Berlin"
	DefaultResolution     = 100
	DefaultTileSizeMeters = 10.0
	DefaultTimeoutSeconds = 30
)

// Config is a complete grid generation request.
type Config struct {
	Region Region
	// GridResolution is the number of cells per degree on both axes.
	GridResolution int
	// TileSizeMeters is the nominal physical size of one cell.
	TileSizeMeters float64
	TimeoutSeconds int
	Features       FeatureSet
}

// Default returns Berlin at 100 cells per degree with the urban features.
func Default() Config {
	return Config{
		Region:         City{Name: DefaultCity},
		GridResolution: DefaultResolution,
		TileSizeMeters: DefaultTileSizeMeters,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Features:       Urban(),
	}
}

// Validate checks every field. The generator does not call it; callers
// that accept untrusted input should.
func (c Config) Validate() error {
	if c.GridResolution <= 0 {
		return core.Errorf(core.ErrConfig, "grid resolution must be positive, got %d", c.GridResolution)
	}
	if c.TileSizeMeters <= 0 {
		return core.Errorf(core.ErrConfig, "tile size must be positive, got %g", c.TileSizeMeters)
	}
	if c.TimeoutSeconds <= 0 {
		return core.Errorf(core.ErrConfig, "timeout must be positive, got %d", c.TimeoutSeconds)
	}
	if c.Features.IsEmpty() {
		return core.NewError(core.ErrConfig, "at least one feature must be selected").
			WithGuidance("Use a preset such as urban or add custom tag queries")
	}
	return ValidateRegion(c.Region)
}

// Builder assembles a Config starting from Default.
type Builder struct {
	cfg Config
}

// NewBuilder starts from the default configuration.
func NewBuilder() *Builder {
	return &Builder{cfg: Default()}
}

// Region sets the region.
func (b *Builder) Region(r Region) *Builder {
	b.cfg.Region = r
	return b
}

// City sets a geocoded city region.
func (b *Builder) City(name string) *Builder {
	return b.Region(City{Name: name})
}

// BBox sets an explicit bounding box region.
func (b *Builder) BBox(south, west, north, east float64) *Builder {
	return b.Region(NewBBoxRegion(south, west, north, east))
}

// CenterRadius sets a circular region.
func (b *Builder) CenterRadius(lat, lon, radiusKm float64) *Builder {
	return b.Region(CenterRadius{Lat: lat, Lon: lon, RadiusKm: radiusKm})
}

// Resolution sets cells per degree.
func (b *Builder) Resolution(cellsPerDegree int) *Builder {
	b.cfg.GridResolution = cellsPerDegree
	return b
}

// TileSize sets the nominal cell size in meters.
func (b *Builder) TileSize(meters float64) *Builder {
	b.cfg.TileSizeMeters = meters
	return b
}

// Timeout sets the provider timeout in seconds.
func (b *Builder) Timeout(seconds int) *Builder {
	b.cfg.TimeoutSeconds = seconds
	return b
}

// Features replaces the feature set.
func (b *Builder) Features(s FeatureSet) *Builder {
	b.cfg.Features = s
	return b
}

// WithFeatures adds to the feature set.
func (b *Builder) WithFeatures(fs ...Feature) *Builder {
	b.cfg.Features = b.cfg.Features.With(fs...)
	return b
}

// WithoutFeature removes a feature.
func (b *Builder) WithoutFeature(f Feature) *Builder {
	b.cfg.Features = b.cfg.Features.Without(f)
	return b
}

// WithCustomQuery adds a free-form tag query; an empty value matches any.
func (b *Builder) WithCustomQuery(key, value string) *Builder {
	b.cfg.Features = b.cfg.Features.WithCustom(queries.Tag{Key: key, Value: value})
	return b
}

// Build returns the assembled configuration without validating it.
func (b *Builder) Build() Config {
	return b.cfg
}

// ForGaming: urban features plus amenities and tourism at a fine 5 m grid.
func ForGaming() *Builder {
	return NewBuilder().Features(Urban().With(Amenities, Tourism)).Resolution(200).TileSize(5)
}

// ForNavigation: transportation plus buildings and amenities.
func ForNavigation() *Builder {
	return NewBuilder().Features(Transportation().With(Buildings, Amenities)).Resolution(150).TileSize(8)
}

// ForUrbanPlanning: comprehensive features plus boundaries and land use.
func ForUrbanPlanning() *Builder {
	return NewBuilder().Features(Comprehensive().With(Boundaries, Landuse)).Resolution(300).TileSize(3)
}

// ForEnvironment: natural features and land use on a coarse grid.
func ForEnvironment() *Builder {
	return NewBuilder().Features(Natural().With(Landuse)).Resolution(100).TileSize(15)
}

// BuilderPresets maps builder preset names to their constructors.
var BuilderPresets = map[string]func() *Builder{
	"gaming":         ForGaming,
	"navigation":     ForNavigation,
	"urban_planning": ForUrbanPlanning,
	"environment":    ForEnvironment,
}
