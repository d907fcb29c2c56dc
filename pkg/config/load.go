package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NERVsystems/osmtiles/pkg/coords"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
)

// EnvPrefix prefixes every environment override, e.g. OSMTILES_GRID_RESOLUTION.
const EnvPrefix = "OSMTILES"

// DefaultMaxGridSize bounds both grid dimensions.
const DefaultMaxGridSize = 5000

// FileConfig mirrors the file/environment layout.
type FileConfig struct {
	Region   RegionSpec   `mapstructure:"region"`
	Grid     GridSpec     `mapstructure:"grid"`
	Provider ProviderSpec `mapstructure:"provider"`
	Features FeatureSpec  `mapstructure:"features"`
}

// RegionSpec selects a region; bbox wins over center, center over city.
type RegionSpec struct {
	City string `mapstructure:"city" json:"city,omitempty"`
	// BBox is "south,west,north,east".
	BBox string `mapstructure:"bbox" json:"bbox,omitempty"`
	// Center is decimal, DMS or MGRS.
	Center   string  `mapstructure:"center" json:"center,omitempty"`
	RadiusKm float64 `mapstructure:"radius_km" json:"radius_km,omitempty"`
}

type GridSpec struct {
	Resolution int     `mapstructure:"resolution"`
	TileSize   float64 `mapstructure:"tile_size"`
	MaxSize    int     `mapstructure:"max_size"`
}

type ProviderSpec struct {
	// Name is overpass, mock or file:<path>.
	Name           string        `mapstructure:"name"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	UserAgent      string        `mapstructure:"user_agent"`
}

type FeatureSpec struct {
	Preset string        `mapstructure:"preset"`
	List   []string      `mapstructure:"list"`
	Custom []queries.Tag `mapstructure:"custom"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region.city", DefaultCity)
	v.SetDefault("region.bbox", "")
	v.SetDefault("region.center", "")
	v.SetDefault("region.radius_km", 0.0)
	v.SetDefault("grid.resolution", DefaultResolution)
	v.SetDefault("grid.tile_size", DefaultTileSizeMeters)
	v.SetDefault("grid.max_size", DefaultMaxGridSize)
	v.SetDefault("provider.name", "overpass")
	v.SetDefault("provider.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("provider.cache_ttl", 15*time.Minute)
	v.SetDefault("provider.user_agent", "")
	v.SetDefault("features.preset", "urban")
	v.SetDefault("features.list", []string{})
}

// Load reads path (any format viper detects from the extension) and
// applies OSMTILES_* environment overrides. An empty path loads defaults
// and environment only.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.Errorf(core.ErrConfig, "failed to read config file %s", path).WithCause(err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, core.NewError(core.ErrConfig, "invalid configuration").WithCause(err)
	}
	return &fc, nil
}

// ToRegion converts the region section into a Region.
func (r RegionSpec) ToRegion() (Region, error) {
	switch {
	case strings.TrimSpace(r.BBox) != "":
		b, err := geo.ParseBoundingBox(r.BBox)
		if err != nil {
			return nil, err
		}
		return BBox{b}, nil
	case strings.TrimSpace(r.Center) != "":
		p, err := coords.Parse(r.Center)
		if err != nil {
			return nil, core.Errorf(core.ErrConfig, "invalid region center %q", r.Center).WithCause(err)
		}
		c := CenterRadius{Lat: p.Lat, Lon: p.Lon, RadiusKm: r.RadiusKm}
		if err := ValidateRegion(c); err != nil {
			return nil, err
		}
		return c, nil
	case strings.TrimSpace(r.City) != "":
		return City{Name: strings.TrimSpace(r.City)}, nil
	}
	return nil, core.NewError(core.ErrConfig, "region is required").
		WithGuidance("Set region.city, region.bbox or region.center with region.radius_km")
}

// ToFeatureSet resolves the explicit list, or the preset when the list is
// empty, and adds the custom queries.
func (f FeatureSpec) ToFeatureSet() (FeatureSet, error) {
	var set FeatureSet
	if len(f.List) > 0 {
		set = NewFeatureSet()
		for _, name := range f.List {
			if strings.TrimSpace(name) == "" {
				continue
			}
			feat, err := ParseFeature(name)
			if err != nil {
				return FeatureSet{}, err
			}
			set = set.With(feat)
		}
	} else {
		preset := f.Preset
		if preset == "" {
			preset = "urban"
		}
		var err error
		if set, err = PresetFeatureSet(preset); err != nil {
			return FeatureSet{}, err
		}
	}
	for _, t := range f.Custom {
		if t.Key == "" {
			return FeatureSet{}, core.NewError(core.ErrConfig, "custom query needs a key")
		}
	}
	return set.WithCustom(f.Custom...), nil
}

// Config converts the file layout into a validated Config.
func (fc *FileConfig) Config() (Config, error) {
	region, err := fc.Region.ToRegion()
	if err != nil {
		return Config{}, err
	}
	features, err := fc.Features.ToFeatureSet()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Region:         region,
		GridResolution: fc.Grid.Resolution,
		TileSizeMeters: fc.Grid.TileSize,
		TimeoutSeconds: fc.Provider.TimeoutSeconds,
		Features:       features,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
