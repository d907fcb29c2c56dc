package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	fc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Region.City != DefaultCity || fc.Grid.Resolution != DefaultResolution {
		t.Errorf("unexpected defaults: %+v", fc)
	}
	if fc.Grid.MaxSize != DefaultMaxGridSize || fc.Provider.Name != "overpass" {
		t.Errorf("unexpected defaults: %+v", fc)
	}
	if fc.Provider.CacheTTL != 15*time.Minute {
		t.Errorf("cache ttl = %v", fc.Provider.CacheTTL)
	}

	cfg, err := fc.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.Region != (City{Name: DefaultCity}) || !cfg.Features.Contains(Roads) {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "osmtiles.yaml", `
region:
  bbox: "52.49,13.39,52.51,13.41"
grid:
  resolution: 250
  tile_size: 4
provider:
  name: mock
  cache_ttl: 2m
features:
  list: [roads, railways]
  custom:
    - key: shop
      value: bakery
`)

	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := fc.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	want := NewBBoxRegion(52.49, 13.39, 52.51, 13.41)
	if cfg.Region != want {
		t.Errorf("region = %v, want %v", cfg.Region, want)
	}
	if cfg.GridResolution != 250 || cfg.TileSizeMeters != 4 {
		t.Errorf("grid = %d/%g", cfg.GridResolution, cfg.TileSizeMeters)
	}
	if fc.Provider.Name != "mock" || fc.Provider.CacheTTL != 2*time.Minute {
		t.Errorf("provider = %+v", fc.Provider)
	}
	if cfg.Features.Contains(Buildings) || !cfg.Features.Contains(Railways) {
		t.Errorf("features = %v", cfg.Features.Features())
	}
	custom := cfg.Features.Custom()
	if len(custom) != 1 || custom[0] != (queries.Tag{Key: "shop", Value: "bakery"}) {
		t.Errorf("custom = %v", custom)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OSMTILES_GRID_RESOLUTION", "333")
	t.Setenv("OSMTILES_REGION_CITY", "Hamburg")
	t.Setenv("OSMTILES_FEATURES_PRESET", "natural")

	fc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := fc.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.GridResolution != 333 {
		t.Errorf("resolution = %d, want 333", cfg.GridResolution)
	}
	if cfg.Region != (City{Name: "Hamburg"}) {
		t.Errorf("region = %v", cfg.Region)
	}
	if !cfg.Features.Contains(Forests) {
		t.Errorf("features = %v, want natural preset", cfg.Features.Features())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !core.IsKind(err, core.ErrConfig) {
		t.Errorf("Load error = %v, want CONFIG_ERROR", err)
	}
}

func TestRegionSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    RegionSpec
		want    Region
		wantErr bool
	}{
		{name: "city", spec: RegionSpec{City: "Munich"}, want: City{Name: "Munich"}},
		{name: "bbox wins", spec: RegionSpec{City: "Munich", BBox: "1,2,3,4"}, want: NewBBoxRegion(1, 2, 3, 4)},
		{name: "decimal center", spec: RegionSpec{Center: "52.5,13.4", RadiusKm: 2},
			want: CenterRadius{Lat: 52.5, Lon: 13.4, RadiusKm: 2}},
		{name: "center without radius", spec: RegionSpec{Center: "52.5,13.4"}, wantErr: true},
		{name: "bad center", spec: RegionSpec{Center: "somewhere", RadiusKm: 1}, wantErr: true},
		{name: "bad bbox", spec: RegionSpec{BBox: "1,2,3"}, wantErr: true},
		{name: "empty", spec: RegionSpec{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.ToRegion()
			if tt.wantErr {
				if !core.IsKind(err, core.ErrConfig) {
					t.Errorf("ToRegion() error = %v, want CONFIG_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToRegion(): %v", err)
			}
			if got != tt.want {
				t.Errorf("ToRegion() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFeatureSpecUnknownFeature(t *testing.T) {
	_, err := FeatureSpec{List: []string{"roads", "dragons"}}.ToFeatureSet()
	if !core.IsKind(err, core.ErrConfig) {
		t.Errorf("error = %v, want CONFIG_ERROR", err)
	}
}
