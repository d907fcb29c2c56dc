package osm

import (
	"testing"

	"github.com/NERVsystems/osmtiles/pkg/grid"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want grid.TileType
	}{
		{"generic building", map[string]string{"building": "yes"}, grid.Building},
		{"residential building", map[string]string{"building": "residential"}, grid.Residential},
		{"commercial building", map[string]string{"building": "commercial"}, grid.Commercial},
		{"retail building", map[string]string{"building": "retail"}, grid.Commercial},
		{"industrial building", map[string]string{"building": "industrial"}, grid.Industrial},
		{"building beats highway", map[string]string{"building": "yes", "highway": "residential"}, grid.Building},
		{"highway", map[string]string{"highway": "footway"}, grid.Road},
		{"highway beats waterway", map[string]string{"highway": "primary", "waterway": "river"}, grid.Road},
		{"waterway", map[string]string{"waterway": "stream"}, grid.Water},
		{"natural water", map[string]string{"natural": "water"}, grid.Water},
		{"park", map[string]string{"leisure": "park"}, grid.GreenSpace},
		{"garden", map[string]string{"leisure": "garden"}, grid.GreenSpace},
		{"forest", map[string]string{"landuse": "forest"}, grid.GreenSpace},
		{"wood", map[string]string{"natural": "wood"}, grid.GreenSpace},
		{"grass", map[string]string{"landuse": "grass"}, grid.GreenSpace},
		{"railway", map[string]string{"railway": "rail"}, grid.Railway},
		{"amenity parking", map[string]string{"amenity": "parking"}, grid.Parking},
		{"landuse parking", map[string]string{"landuse": "parking"}, grid.Parking},
		{"amenity", map[string]string{"amenity": "cafe"}, grid.Amenity},
		{"tourism", map[string]string{"tourism": "museum"}, grid.Tourism},
		{"amenity beats tourism", map[string]string{"amenity": "cafe", "tourism": "hotel"}, grid.Amenity},
		{"landuse residential", map[string]string{"landuse": "residential"}, grid.Residential},
		{"landuse retail", map[string]string{"landuse": "retail"}, grid.Commercial},
		{"landuse industrial", map[string]string{"landuse": "industrial"}, grid.Industrial},
		{"landuse custom", map[string]string{"landuse": "farmland"}, grid.Custom("landuse_farmland")},
		{"unrelated tags", map[string]string{"name": "Nothing"}, grid.Empty},
		{"no tags", nil, grid.Empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.tags); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.tags, got, tt.want)
			}
			// Classification is a pure function of the tags.
			if again := Classify(tt.tags); again != tt.want {
				t.Errorf("second Classify(%v) = %s, want %s", tt.tags, again, tt.want)
			}
		})
	}
}
