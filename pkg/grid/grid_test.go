package grid

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
)

var testBBox = geo.NewBoundingBox(52.49, 13.39, 52.51, 13.41)

func newTestGrid(t *testing.T, w, h int) *TileGrid {
	t.Helper()
	g, err := New(w, h, testBBox, 10)
	if err != nil {
		t.Fatalf("New(%d, %d) failed: %v", w, h, err)
	}
	return g
}

func TestNewGrid(t *testing.T) {
	g := newTestGrid(t, 4, 3)
	if g.Width() != 4 || g.Height() != 3 {
		t.Fatalf("dimensions = %dx%d, want 4x3", g.Width(), g.Height())
	}
	for p, tile := range g.All() {
		if tile.Type != Empty || tile.Metadata != nil {
			t.Errorf("tile %v = %+v, want empty", p, tile)
		}
	}
	if g.Metadata.Algorithm != AlgorithmDefault {
		t.Errorf("Algorithm = %q, want %q", g.Metadata.Algorithm, AlgorithmDefault)
	}
	if g.Metadata.TilesPopulated != 0 || g.Metadata.ElementsProcessed != 0 {
		t.Errorf("expected zeroed counters, got %+v", g.Metadata)
	}

	if _, err := New(0, 5, testBBox, 10); !core.IsKind(err, core.ErrGridGeneration) {
		t.Errorf("New(0, 5) error = %v, want %s", err, core.ErrGridGeneration)
	}
}

func TestTileAccessBounds(t *testing.T) {
	g := newTestGrid(t, 5, 5)
	tests := []struct {
		name string
		x, y int
		ok   bool
	}{
		{"origin", 0, 0, true},
		{"last cell", 4, 4, true},
		{"negative x", -1, 0, false},
		{"x past width", 5, 0, false},
		{"y past height", 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := g.Tile(tt.x, tt.y); ok != tt.ok {
				t.Errorf("Tile(%d, %d) ok = %v, want %v", tt.x, tt.y, ok, tt.ok)
			}
			if ref := g.TileRef(tt.x, tt.y); (ref != nil) != tt.ok {
				t.Errorf("TileRef(%d, %d) = %v, want non-nil %v", tt.x, tt.y, ref, tt.ok)
			}
			err := g.SetTile(tt.x, tt.y, NewTile(Road))
			if tt.ok && err != nil {
				t.Errorf("SetTile(%d, %d) unexpected error: %v", tt.x, tt.y, err)
			}
			if !tt.ok && !core.IsKind(err, core.ErrBounds) {
				t.Errorf("SetTile(%d, %d) error = %v, want %s", tt.x, tt.y, err, core.ErrBounds)
			}
		})
	}
}

func TestSetTileWithPriority(t *testing.T) {
	g := newTestGrid(t, 3, 3)

	steps := []struct {
		tt      TileType
		written bool
		want    TileType
	}{
		{GreenSpace, true, GreenSpace},
		{Building, true, Building},
		{GreenSpace, false, Building},
		{Building, false, Building},
		{Tourism, true, Tourism},
	}
	for i, s := range steps {
		written, err := g.SetTileWithPriority(1, 1, NewTile(s.tt))
		if err != nil {
			t.Fatalf("step %d: unexpected error %v", i, err)
		}
		if written != s.written {
			t.Errorf("step %d: write of %s returned %v, want %v", i, s.tt, written, s.written)
		}
		if got, _ := g.Tile(1, 1); got.Type != s.want {
			t.Errorf("step %d: tile = %s, want %s", i, got.Type, s.want)
		}
	}

	if _, err := g.SetTileWithPriority(3, 0, NewTile(Road)); !core.IsKind(err, core.ErrBounds) {
		t.Errorf("out of range write error = %v, want %s", err, core.ErrBounds)
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	sizes := [][2]int{{10, 10}, {100, 100}, {37, 13}}
	for _, size := range sizes {
		g := newTestGrid(t, size[0], size[1])
		for y := range g.Height() {
			for x := range g.Width() {
				lat, lon, ok := g.GridToGeo(x, y)
				if !ok {
					t.Fatalf("GridToGeo(%d, %d) not ok", x, y)
				}
				gx, gy, ok := g.GeoToGrid(lat, lon)
				if !ok || gx != x || gy != y {
					t.Fatalf("%dx%d: GeoToGrid(GridToGeo(%d, %d)) = (%d, %d, %v)", size[0], size[1], x, y, gx, gy, ok)
				}
			}
		}
	}
}

func TestGeoToGridBounds(t *testing.T) {
	g := newTestGrid(t, 100, 100)
	tests := []struct {
		name     string
		lat, lon float64
		ok       bool
		x, y     int
	}{
		{"north west corner", 52.51, 13.39, true, 0, 0},
		{"south east corner clamps", 52.49, 13.41, true, 99, 99},
		{"inside a cell", 52.5049, 13.3951, true, 25, 25},
		{"north of box", 52.52, 13.4, false, 0, 0},
		{"east of box", 52.5, 13.42, false, 0, 0},
		{"south of box", 52.48, 13.4, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := g.GeoToGrid(tt.lat, tt.lon)
			if ok != tt.ok {
				t.Fatalf("GeoToGrid(%f, %f) ok = %v, want %v", tt.lat, tt.lon, ok, tt.ok)
			}
			if !ok {
				return
			}
			if x < 0 || x >= g.Width() || y < 0 || y >= g.Height() {
				t.Fatalf("GeoToGrid(%f, %f) = (%d, %d) out of range", tt.lat, tt.lon, x, y)
			}
			if x != tt.x || y != tt.y {
				t.Errorf("GeoToGrid(%f, %f) = (%d, %d), want (%d, %d)", tt.lat, tt.lon, x, y, tt.x, tt.y)
			}
		})
	}

	if _, _, ok := g.GridToGeo(100, 0); ok {
		t.Error("GridToGeo(100, 0) should be out of range")
	}
}

func TestStatisticsConservation(t *testing.T) {
	g := newTestGrid(t, 10, 10)
	writes := []struct {
		x, y int
		tt   TileType
	}{
		{0, 0, Road}, {1, 0, Road}, {2, 0, Building}, {3, 3, Water}, {9, 9, Custom("landuse_x")},
	}
	for _, w := range writes {
		if err := g.SetTile(w.x, w.y, NewTile(w.tt)); err != nil {
			t.Fatalf("SetTile failed: %v", err)
		}
	}

	stats := g.Statistics()
	if stats.TotalTiles != 100 {
		t.Errorf("TotalTiles = %d, want 100", stats.TotalTiles)
	}
	if stats.NonEmptyTiles != 5 {
		t.Errorf("NonEmptyTiles = %d, want 5", stats.NonEmptyTiles)
	}
	if stats.NonEmptyTiles+stats.TileTypeCounts[Empty] != stats.TotalTiles {
		t.Errorf("non-empty %d + empty %d != total %d", stats.NonEmptyTiles, stats.TileTypeCounts[Empty], stats.TotalTiles)
	}
	if stats.TileTypeCounts[Road] != 2 || stats.TileTypeCounts[Custom("landuse_x")] != 1 {
		t.Errorf("unexpected histogram %v", stats.TileTypeCounts)
	}
	if stats.Coverage != 0.05 {
		t.Errorf("Coverage = %f, want 0.05", stats.Coverage)
	}
	if stats.MetersPerTile != 10 || stats.AreaKm2 <= 0 {
		t.Errorf("unexpected area fields: %+v", stats)
	}
}

func TestTilesOfTypeAndArea(t *testing.T) {
	g := newTestGrid(t, 4, 4)
	_ = g.SetTile(1, 2, NewTile(Water))
	_ = g.SetTile(3, 0, NewTile(Water))

	got := g.TilesOfType(Water)
	want := []Point{{3, 0}, {1, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TilesOfType(Water) = %v, want %v", got, want)
	}

	area, err := g.Area(1, 1, 2, 2)
	if err != nil {
		t.Fatalf("Area(1,1,2,2) failed: %v", err)
	}
	if len(area) != 2 || len(area[0]) != 2 || area[1][0].Type != Water {
		t.Errorf("Area(1,1,2,2) = %+v, want water at [1][0]", area)
	}

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"exceeds width", 3, 0, 2, 1},
		{"exceeds height", 0, 3, 1, 2},
		{"negative origin", -1, 0, 1, 1},
		{"empty rectangle", 0, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Area(tt.x, tt.y, tt.w, tt.h); !core.IsKind(err, core.ErrBounds) {
				t.Errorf("Area(%d,%d,%d,%d) error = %v, want %s", tt.x, tt.y, tt.w, tt.h, err, core.ErrBounds)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g := newTestGrid(t, 6, 4)
	g.Metadata.ElementsProcessed = 3
	g.Metadata.TilesPopulated = 4
	g.Metadata.GenerationTimeMs = 12
	g.Metadata.Algorithm = AlgorithmRasterization
	g.Metadata.Extra["grid_width"] = "6"

	_ = g.SetTile(0, 0, NewTile(Road).WithMetadata(NewTileMetadata(1, map[string]string{"highway": "residential"})))
	_ = g.SetTile(1, 1, NewTile(Building).WithMetadata(NewTileMetadata(2, map[string]string{"building": "yes", "name": "Hall"})))
	_ = g.SetTile(2, 2, NewTile(Custom("landuse_x")).WithMetadata(NewTileMetadata(3, map[string]string{"landuse": "x"})))
	_ = g.SetTile(5, 3, NewTile(Water))

	var buf bytes.Buffer
	if err := g.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	if back.Width() != g.Width() || back.Height() != g.Height() {
		t.Fatalf("dimensions = %dx%d, want %dx%d", back.Width(), back.Height(), g.Width(), g.Height())
	}
	if back.BoundingBox() != g.BoundingBox() || back.MetersPerTile() != g.MetersPerTile() {
		t.Errorf("bbox/meters mismatch: %+v %f", back.BoundingBox(), back.MetersPerTile())
	}
	for p, want := range g.All() {
		got, _ := back.Tile(p.X, p.Y)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tile %v = %+v, want %+v", p, got, want)
		}
	}
	if !back.Metadata.GeneratedAt.Equal(g.Metadata.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", back.Metadata.GeneratedAt, g.Metadata.GeneratedAt)
	}
	gotMeta, wantMeta := back.Metadata, g.Metadata
	gotMeta.GeneratedAt = wantMeta.GeneratedAt
	if !reflect.DeepEqual(gotMeta, wantMeta) {
		t.Errorf("Metadata = %+v, want %+v", gotMeta, wantMeta)
	}
}

func TestReadJSONRejectsMismatchedRows(t *testing.T) {
	input := `{"width":2,"height":1,"bounding_box":{"south":0,"west":0,"north":1,"east":1},"tiles":[[{"tile_type":"road"}]]}`
	if _, err := ReadJSON(bytes.NewBufferString(input)); !core.IsKind(err, core.ErrParse) {
		t.Errorf("ReadJSON error = %v, want %s", err, core.ErrParse)
	}
	if _, err := ReadJSON(bytes.NewBufferString("{")); !core.IsKind(err, core.ErrParse) {
		t.Errorf("ReadJSON(truncated) error = %v, want %s", err, core.ErrParse)
	}
}

func TestMetadataMerge(t *testing.T) {
	md := NewTileMetadata(1, map[string]string{"building": "yes"})
	md.Merge(NewTileMetadata(2, map[string]string{"building": "house", "name": "A"}))
	if !reflect.DeepEqual(md.OsmIDs, []int64{1, 2}) {
		t.Errorf("OsmIDs = %v, want [1 2]", md.OsmIDs)
	}
	if md.Tags["building"] != "yes" || md.Tags["name"] != "A" {
		t.Errorf("Tags = %v", md.Tags)
	}
	if md.Confidence != DefaultConfidence {
		t.Errorf("Confidence = %f, want %f", md.Confidence, DefaultConfidence)
	}
}
