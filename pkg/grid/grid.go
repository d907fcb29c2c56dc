package grid

import (
	"iter"
	"math"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
)

// Algorithm names recorded in GridMetadata.
const (
	AlgorithmDefault       = "default"
	AlgorithmRasterization = "default_rasterization"
)

// GridMetadata describes how a grid was produced.
type GridMetadata struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	ElementsProcessed int               `json:"elements_processed"`
	TilesPopulated    int               `json:"tiles_populated"`
	GenerationTimeMs  int64             `json:"generation_time_ms"`
	Algorithm         string            `json:"algorithm"`
	Extra             map[string]string `json:"extra"`
}

// Point is a grid cell coordinate. Row 0 is the northern edge.
type Point struct {
	X, Y int
}

// TileGrid is a dense row-major grid of tiles covering a bounding box.
// Its dimensions are fixed; it is not safe for concurrent mutation.
type TileGrid struct {
	width         int
	height        int
	bbox          geo.BoundingBox
	metersPerTile float64
	tiles         []Tile

	Metadata GridMetadata
}

// New allocates a width x height grid of Empty tiles.
func New(width, height int, bbox geo.BoundingBox, metersPerTile float64) (*TileGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, core.Errorf(core.ErrGridGeneration, "invalid grid dimensions %dx%d", width, height)
	}
	return &TileGrid{
		width:         width,
		height:        height,
		bbox:          bbox,
		metersPerTile: metersPerTile,
		tiles:         make([]Tile, width*height),
		Metadata: GridMetadata{
			GeneratedAt: time.Now().UTC(),
			Algorithm:   AlgorithmDefault,
			Extra:       map[string]string{},
		},
	}, nil
}

// Width returns the number of columns.
func (g *TileGrid) Width() int { return g.width }

// Height returns the number of rows.
func (g *TileGrid) Height() int { return g.height }

// BoundingBox returns the geographic extent of the grid.
func (g *TileGrid) BoundingBox() geo.BoundingBox { return g.bbox }

// MetersPerTile returns the approximate ground size of one cell.
func (g *TileGrid) MetersPerTile() float64 { return g.metersPerTile }

func (g *TileGrid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *TileGrid) boundsError(x, y int) error {
	return core.Errorf(core.ErrBounds, "tile (%d, %d) outside %dx%d grid", x, y, g.width, g.height)
}

// Tile returns the tile at (x, y) and whether the coordinate is in range.
func (g *TileGrid) Tile(x, y int) (Tile, bool) {
	if !g.inBounds(x, y) {
		return Tile{}, false
	}
	return g.tiles[y*g.width+x], true
}

// TileRef returns a pointer to the stored tile, or nil outside the grid.
func (g *TileGrid) TileRef(x, y int) *Tile {
	if !g.inBounds(x, y) {
		return nil
	}
	return &g.tiles[y*g.width+x]
}

// SetTile overwrites the tile at (x, y) unconditionally.
func (g *TileGrid) SetTile(x, y int, t Tile) error {
	if !g.inBounds(x, y) {
		return g.boundsError(x, y)
	}
	g.tiles[y*g.width+x] = t
	return nil
}

// SetTileWithPriority writes t only when it outranks the current tile and
// reports whether the write happened.
func (g *TileGrid) SetTileWithPriority(x, y int, t Tile) (bool, error) {
	if !g.inBounds(x, y) {
		return false, g.boundsError(x, y)
	}
	cur := &g.tiles[y*g.width+x]
	if !cur.CanBeOverwrittenBy(t) {
		return false, nil
	}
	*cur = t
	return true, nil
}

// GeoToGrid maps a coordinate to the cell containing it. Points outside the
// bounding box report ok=false.
func (g *TileGrid) GeoToGrid(lat, lon float64) (x, y int, ok bool) {
	if !g.bbox.Contains(lat, lon) {
		return 0, 0, false
	}
	fx := (lon - g.bbox.West) / g.bbox.Width() * float64(g.width)
	fy := (g.bbox.North - lat) / g.bbox.Height() * float64(g.height)
	return clamp(fx, g.width), clamp(fy, g.height), true
}

func clamp(f float64, dim int) int {
	// NaN comes from a zero-width box; everything maps to the first cell.
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	i := int(math.Floor(f))
	if i > dim-1 {
		return dim - 1
	}
	return i
}

// GridToGeo returns the centre coordinate of cell (x, y).
func (g *TileGrid) GridToGeo(x, y int) (lat, lon float64, ok bool) {
	if !g.inBounds(x, y) {
		return 0, 0, false
	}
	lon = g.bbox.West + (float64(x)+0.5)/float64(g.width)*g.bbox.Width()
	lat = g.bbox.North - (float64(y)+0.5)/float64(g.height)*g.bbox.Height()
	return lat, lon, true
}

// CellBounds returns the geographic extent of cell (x, y).
func (g *TileGrid) CellBounds(x, y int) (geo.BoundingBox, bool) {
	if !g.inBounds(x, y) {
		return geo.BoundingBox{}, false
	}
	dx := g.bbox.Width() / float64(g.width)
	dy := g.bbox.Height() / float64(g.height)
	west := g.bbox.West + float64(x)*dx
	north := g.bbox.North - float64(y)*dy
	return geo.NewBoundingBox(north-dy, west, north, west+dx), true
}

// All iterates every cell in row-major order.
func (g *TileGrid) All() iter.Seq2[Point, Tile] {
	return func(yield func(Point, Tile) bool) {
		for i, t := range g.tiles {
			if !yield(Point{X: i % g.width, Y: i / g.width}, t) {
				return
			}
		}
	}
}

// TilesOfType returns the coordinates of every cell holding t.
func (g *TileGrid) TilesOfType(t TileType) []Point {
	var out []Point
	for p, tile := range g.All() {
		if tile.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Area copies the w x h rectangle whose top-left corner is (x, y), as rows.
// The rectangle must lie entirely inside the grid.
func (g *TileGrid) Area(x, y, w, h int) ([][]Tile, error) {
	if w <= 0 || h <= 0 || !g.inBounds(x, y) || !g.inBounds(x+w-1, y+h-1) {
		return nil, core.Errorf(core.ErrBounds, "area (%d, %d) %dx%d exceeds %dx%d grid", x, y, w, h, g.width, g.height)
	}
	rows := make([][]Tile, h)
	for dy := range h {
		start := (y+dy)*g.width + x
		rows[dy] = append([]Tile(nil), g.tiles[start:start+w]...)
	}
	return rows, nil
}
