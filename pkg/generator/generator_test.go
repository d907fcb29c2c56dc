package generator

import (
	"cmp"
	"context"
	"math"
	"slices"
	"testing"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

var testBBox = geo.NewBoundingBox(52.49, 13.39, 52.51, 13.41)

const testData = `{
  "elements": [
    {"type": "way", "id": 1, "tags": {"highway": "residential"},
     "geometry": [{"lat": 52.5, "lon": 13.4}, {"lat": 52.501, "lon": 13.401}]},
    {"type": "way", "id": 2, "tags": {"building": "yes"},
     "geometry": [{"lat": 52.500, "lon": 13.400}, {"lat": 52.500, "lon": 13.401},
                  {"lat": 52.501, "lon": 13.401}, {"lat": 52.501, "lon": 13.400},
                  {"lat": 52.500, "lon": 13.400}]},
    {"type": "node", "id": 3, "lat": 52.5005, "lon": 13.4005, "tags": {"amenity": "cafe"}},
    {"type": "way", "id": 4, "tags": {"natural": "water"},
     "geometry": [{"lat": 52.502, "lon": 13.402}, {"lat": 52.502, "lon": 13.403},
                  {"lat": 52.503, "lon": 13.403}, {"lat": 52.503, "lon": 13.402},
                  {"lat": 52.502, "lon": 13.402}]}
  ]
}`

func testOsmData(raw string) *osm.Data {
	return &osm.Data{
		Raw:         []byte(raw),
		Format:      osm.FormatJSON,
		BoundingBox: testBBox,
		Metadata:    osm.NewMetadata("test", "test"),
	}
}

func tagged(id int64, tags map[string]string, pts ...osm.LatLon) osm.Element {
	return osm.Element{ID: id, Kind: osm.KindWay, Tags: tags, Geometry: pts}
}

func TestGenerateGrid(t *testing.T) {
	g := New()
	cfg := config.NewBuilder().Resolution(100).Build()

	tg, err := g.GenerateGrid(context.Background(), testOsmData(testData), cfg)
	if err != nil {
		t.Fatalf("GenerateGrid: %v", err)
	}

	if tg.Width() != 10 || tg.Height() != 10 {
		t.Errorf("dimensions = %dx%d, want 10x10 (minimum)", tg.Width(), tg.Height())
	}
	if tg.Metadata.ElementsProcessed != 4 {
		t.Errorf("elements processed = %d, want 4", tg.Metadata.ElementsProcessed)
	}
	if tg.Metadata.TilesPopulated == 0 {
		t.Error("expected populated tiles")
	}
	if tg.Metadata.Algorithm != grid.AlgorithmRasterization {
		t.Errorf("algorithm = %q", tg.Metadata.Algorithm)
	}
	for _, key := range []string{"grid_width", "grid_height", "meters_per_tile"} {
		if tg.Metadata.Extra[key] == "" {
			t.Errorf("missing metadata extra %q", key)
		}
	}
	if tg.Metadata.Extra["grid_width"] != "10" {
		t.Errorf("grid_width = %q", tg.Metadata.Extra["grid_width"])
	}
}

func TestGenerateGridParseError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"elements": [`},
		{"missing id", `{"elements": [{"type": "node", "lat": 1, "lon": 1}]}`},
		{"no elements array", `{"version": 0.6}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg, err := New().GenerateGrid(context.Background(), testOsmData(tt.raw), config.Default())
			if !core.IsKind(err, core.ErrParse) {
				t.Errorf("error = %v, want PARSE_ERROR", err)
			}
			if tg != nil {
				t.Error("no grid should be returned on parse failure")
			}
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name       string
		gen        *Generator
		bbox       geo.BoundingBox
		resolution int
		wantW      int
		wantH      int
	}{
		{"minimum clamp", New(), testBBox, 100, 10, 10},
		{"scaled", New(), geo.NewBoundingBox(52.0, 13.0, 52.5, 13.25), 100, 25, 50},
		{"maximum clamp", New(WithMaxSize(100, 80)), geo.NewBoundingBox(50, 10, 55, 15), 1000, 100, 80},
		{"default maximum", New(), geo.NewBoundingBox(0, 0, 10, 10), 1000, 5000, 5000},
		{"max below minimum", New(WithMaxSize(5, 5)), testBBox, 10, 5, 5},
		{"huge resolution saturates", New(), geo.NewBoundingBox(-90, -180, 90, 180), math.MaxInt64 / 10, 5000, 5000},
		{"negative resolution", New(), testBBox, -100, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.gen.Dimensions(tt.bbox, tt.resolution)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Dimensions() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestMetersPerTile(t *testing.T) {
	bbox := geo.NewBoundingBox(52.0, 13.0, 52.1, 13.1)
	got := MetersPerTile(bbox, 10, 10, 10)
	// Each of the 100 cells spans roughly 690m x 1110m.
	if got < 400 || got > 550 {
		t.Errorf("MetersPerTile = %f, want about 440-500", got)
	}
	if MetersPerTile(geo.NewBoundingBox(1, 1, 1, 1), 10, 10, 8) != 4 {
		t.Error("zero-area box should yield half the nominal size")
	}
}

func lineGrid(t *testing.T) *grid.TileGrid {
	t.Helper()
	g := New(WithMaxSize(100, 100))
	cfg := config.NewBuilder().Resolution(5000).Build()
	road := tagged(987654321, map[string]string{"highway": "residential"},
		osm.LatLon{Lat: 52.499, Lon: 13.399}, osm.LatLon{Lat: 52.502, Lon: 13.402})

	tg, err := g.GenerateElements([]osm.Element{road}, testBBox, cfg)
	if err != nil {
		t.Fatalf("GenerateElements: %v", err)
	}
	if tg.Width() != 100 || tg.Height() != 100 {
		t.Fatalf("dimensions = %dx%d, want 100x100", tg.Width(), tg.Height())
	}
	return tg
}

func TestLineRasterization(t *testing.T) {
	tg := lineGrid(t)

	x1, y1, ok1 := tg.GeoToGrid(52.499, 13.399)
	x2, y2, ok2 := tg.GeoToGrid(52.502, 13.402)
	if !ok1 || !ok2 {
		t.Fatal("endpoints must map into the grid")
	}

	roads := tg.TilesOfType(grid.Road)
	steps := max(abs(x2-x1), abs(y2-y1))
	if len(roads) != steps+1 {
		t.Fatalf("got %d road tiles, want %d", len(roads), steps+1)
	}
	if tg.Metadata.TilesPopulated != steps+1 {
		t.Errorf("tiles populated = %d, want %d", tg.Metadata.TilesPopulated, steps+1)
	}

	for _, p := range []grid.Point{{X: x1, Y: y1}, {X: x2, Y: y2}} {
		if !slices.Contains(roads, p) {
			t.Errorf("endpoint %v is not a road", p)
		}
	}

	// Moving north-east: x grows and y shrinks. Every column in between is
	// covered and neighbouring cells touch.
	slices.SortFunc(roads, func(a, b grid.Point) int { return cmp.Or(a.X-b.X, b.Y-a.Y) })
	for i := 1; i < len(roads); i++ {
		dx, dy := roads[i].X-roads[i-1].X, roads[i].Y-roads[i-1].Y
		if dx < 0 || dx > 1 || abs(dy) > 1 {
			t.Errorf("gap between %v and %v", roads[i-1], roads[i])
		}
	}

	tile, _ := tg.Tile(x1, y1)
	if tile.Metadata == nil || !slices.Equal(tile.Metadata.OsmIDs, []int64{987654321}) {
		t.Errorf("road tile metadata = %+v", tile.Metadata)
	}
}

func TestPolygonFill(t *testing.T) {
	g := New(WithMaxSize(100, 100))
	cfg := config.NewBuilder().Resolution(5000).Build()
	square := tagged(2, map[string]string{"building": "yes"},
		osm.LatLon{Lat: 52.495, Lon: 13.395},
		osm.LatLon{Lat: 52.495, Lon: 13.405},
		osm.LatLon{Lat: 52.505, Lon: 13.405},
		osm.LatLon{Lat: 52.505, Lon: 13.395},
		osm.LatLon{Lat: 52.495, Lon: 13.395},
	)

	tg, err := g.GenerateElements([]osm.Element{square}, testBBox, cfg)
	if err != nil {
		t.Fatalf("GenerateElements: %v", err)
	}

	buildings := len(tg.TilesOfType(grid.Building))
	// Outline of a ~50 cell square has ~200 cells; the filled square has ~2500.
	if buildings < 2000 {
		t.Errorf("got %d building tiles, want the interior filled", buildings)
	}

	cx, cy, _ := tg.GeoToGrid(52.5, 13.4)
	if tile, _ := tg.Tile(cx, cy); tile.Type != grid.Building {
		t.Errorf("center cell type = %v, want Building", tile.Type)
	}
	if tile, _ := tg.Tile(0, 0); tile.Type != grid.Empty {
		t.Errorf("corner cell type = %v, want Empty", tile.Type)
	}
}

func TestLineTypesAreNotFilled(t *testing.T) {
	g := New(WithMaxSize(100, 100))
	cfg := config.NewBuilder().Resolution(5000).Build()
	loop := tagged(5, map[string]string{"railway": "rail"},
		osm.LatLon{Lat: 52.495, Lon: 13.395},
		osm.LatLon{Lat: 52.495, Lon: 13.405},
		osm.LatLon{Lat: 52.505, Lon: 13.405},
		osm.LatLon{Lat: 52.495, Lon: 13.395},
	)

	tg, err := g.GenerateElements([]osm.Element{loop}, testBBox, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(tg.TilesOfType(grid.Railway)); n > 200 {
		t.Errorf("railway loop produced %d tiles, want outline only", n)
	}
}

func TestEmptyElementWritesNothing(t *testing.T) {
	g := New()
	cfg := config.Default()
	road := tagged(1, map[string]string{"highway": "primary"},
		osm.LatLon{Lat: 52.5, Lon: 13.4}, osm.LatLon{Lat: 52.501, Lon: 13.401})
	untagged := tagged(2, map[string]string{"note": "nothing"},
		osm.LatLon{Lat: 52.495, Lon: 13.395}, osm.LatLon{Lat: 52.505, Lon: 13.405})
	noGeometry := tagged(3, map[string]string{"building": "yes"})

	base, err := g.GenerateElements([]osm.Element{road}, testBBox, cfg)
	if err != nil {
		t.Fatal(err)
	}
	with, err := g.GenerateElements([]osm.Element{road, untagged, noGeometry}, testBBox, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if base.Metadata.TilesPopulated != with.Metadata.TilesPopulated {
		t.Errorf("tiles populated changed from %d to %d", base.Metadata.TilesPopulated, with.Metadata.TilesPopulated)
	}
	if with.Metadata.ElementsProcessed != 3 {
		t.Errorf("elements processed = %d, want 3", with.Metadata.ElementsProcessed)
	}
}

func TestPriorityAcrossElements(t *testing.T) {
	g := New()
	cfg := config.Default()
	pt := osm.LatLon{Lat: 52.5005, Lon: 13.4005}
	park := osm.Element{ID: 1, Kind: osm.KindNode, Tags: map[string]string{"leisure": "park"}, Geometry: []osm.LatLon{pt}}
	building := osm.Element{ID: 2, Kind: osm.KindNode, Tags: map[string]string{"building": "yes"}, Geometry: []osm.LatLon{pt}}

	for _, order := range [][]osm.Element{{park, building}, {building, park}} {
		tg, err := g.GenerateElements(order, testBBox, cfg)
		if err != nil {
			t.Fatal(err)
		}
		x, y, _ := tg.GeoToGrid(pt.Lat, pt.Lon)
		if tile, _ := tg.Tile(x, y); tile.Type != grid.Building {
			t.Errorf("order %d,%d: cell = %v, want Building", order[0].ID, order[1].ID, tile.Type)
		}
	}
}

func TestOutOfBoundsSegmentsSkipped(t *testing.T) {
	g := New()
	cfg := config.Default()
	road := tagged(1, map[string]string{"highway": "primary"},
		osm.LatLon{Lat: 40, Lon: 10}, osm.LatLon{Lat: 52.5, Lon: 13.4})
	node := osm.Element{ID: 2, Kind: osm.KindNode, Tags: map[string]string{"amenity": "cafe"},
		Geometry: []osm.LatLon{{Lat: 0, Lon: 0}}}

	tg, err := g.GenerateElements([]osm.Element{road, node}, testBBox, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tg.Metadata.TilesPopulated != 0 {
		t.Errorf("tiles populated = %d, want 0", tg.Metadata.TilesPopulated)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []osm.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}, {Lat: 0, Lon: 0}}
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"center", 0.5, 0.5, true},
		{"near corner", 0.01, 0.99, true},
		{"outside east", 0.5, 1.5, false},
		{"outside north", 1.5, 0.5, false},
		{"outside west", 0.5, -0.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pointInPolygon(tt.lat, tt.lon, square); got != tt.want {
				t.Errorf("pointInPolygon(%g, %g) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestBresenhamSkipsNegativeSteps(t *testing.T) {
	tg, err := grid.New(10, 10, testBBox, 1)
	if err != nil {
		t.Fatal(err)
	}
	r := rasterizer{g: tg}
	n, err := r.line(-3, 2, 3, 2, grid.NewTile(grid.Road))
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	if n != 4 {
		t.Errorf("wrote %d tiles, want 4 (x=0..3)", n)
	}
}

func TestCapabilities(t *testing.T) {
	c := New(WithMaxSize(640, 480)).Capabilities()
	if c.MaxWidth != 640 || c.MaxHeight != 480 {
		t.Errorf("max size = %dx%d", c.MaxWidth, c.MaxHeight)
	}
	if c.SupportsParallel {
		t.Error("generator does not parallelise a single grid")
	}
	if !slices.Equal(c.SupportedCRS, []string{"EPSG:4326"}) {
		t.Errorf("crs = %v", c.SupportedCRS)
	}
	if len(c.FillTypes) != 7 || !slices.Contains(c.FillTypes, grid.GreenSpace) {
		t.Errorf("fill types = %v", c.FillTypes)
	}
}

func TestGenerateBatch(t *testing.T) {
	g := New()
	jobs := []Job{
		{Data: testOsmData(testData), Config: config.NewBuilder().Resolution(100).Build()},
		{Data: testOsmData(testData), Config: config.NewBuilder().Resolution(1000).Build()},
	}

	grids, err := g.GenerateBatch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if len(grids) != 2 {
		t.Fatalf("got %d grids, want 2", len(grids))
	}
	// Results keep job order: the finer job yields the wider grid.
	if grids[0].Width() != 10 || grids[1].Width() <= grids[0].Width() {
		t.Errorf("widths = %d, %d", grids[0].Width(), grids[1].Width())
	}

	jobs = append(jobs, Job{Data: testOsmData(`not json`), Config: config.Default()})
	if _, err := g.GenerateBatch(context.Background(), jobs); !core.IsKind(err, core.ErrParse) {
		t.Errorf("batch error = %v, want PARSE_ERROR", err)
	}
}
