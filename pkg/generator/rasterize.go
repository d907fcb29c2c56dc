package generator

import (
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

// fillable lists the tile types whose closed outlines get interior fill.
var fillable = map[grid.TileType]bool{
	grid.Building:    true,
	grid.Water:       true,
	grid.GreenSpace:  true,
	grid.Parking:     true,
	grid.Residential: true,
	grid.Commercial:  true,
	grid.Industrial:  true,
}

// FillTypes returns the tile types that are filled when drawn as polygons.
func FillTypes() []grid.TileType {
	var out []grid.TileType
	for _, t := range grid.AllBuiltin() {
		if fillable[t] {
			out = append(out, t)
		}
	}
	return out
}

// rasterizer writes elements into one grid. It is not safe for concurrent use.
type rasterizer struct {
	g *grid.TileGrid
}

// element draws e and returns the number of successful tile writes.
func (r rasterizer) element(e osm.Element) (int, error) {
	tt := e.TileType()
	if tt.IsEmpty() || len(e.Geometry) == 0 {
		return 0, nil
	}
	tile := grid.NewTile(tt).WithMetadata(e.Metadata())

	if len(e.Geometry) == 1 {
		p := e.Geometry[0]
		x, y, ok := r.g.GeoToGrid(p.Lat, p.Lon)
		if !ok {
			return 0, nil
		}
		return r.set(x, y, tile)
	}

	written, err := r.outline(e.Geometry, tile)
	if err != nil {
		return written, err
	}
	if fillable[tt] && len(e.Geometry) >= 3 {
		n, err := r.fill(e.Geometry, tile)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (r rasterizer) set(x, y int, tile grid.Tile) (int, error) {
	ok, err := r.g.SetTileWithPriority(x, y, tile)
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}

// outline draws every segment whose two endpoints both fall inside the grid.
func (r rasterizer) outline(geom []osm.LatLon, tile grid.Tile) (int, error) {
	written := 0
	for i := 1; i < len(geom); i++ {
		x1, y1, ok1 := r.g.GeoToGrid(geom[i-1].Lat, geom[i-1].Lon)
		x2, y2, ok2 := r.g.GeoToGrid(geom[i].Lat, geom[i].Lon)
		if !ok1 || !ok2 {
			continue
		}
		n, err := r.line(x1, y1, x2, y2, tile)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// line steps from (x1,y1) to (x2,y2) with Bresenham's error accumulator.
// Steps with negative coordinates are dropped.
func (r rasterizer) line(x1, y1, x2, y2 int, tile grid.Tile) (int, error) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 >= x2 {
		sx = -1
	}
	if y1 >= y2 {
		sy = -1
	}
	e := dx - dy

	written := 0
	x, y := x1, y1
	for {
		if x >= 0 && y >= 0 {
			n, err := r.set(x, y, tile)
			if err != nil {
				return written, err
			}
			written += n
		}
		if x == x2 && y == y2 {
			return written, nil
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x += sx
		}
		if e2 < dx {
			e += dx
			y += sy
		}
	}
}

// fill scans the grid rectangle spanned by the in-grid vertices and writes
// every cell whose center lies inside the polygon.
func (r rasterizer) fill(geom []osm.LatLon, tile grid.Tile) (int, error) {
	minX, minY := r.g.Width(), r.g.Height()
	maxX, maxY := -1, -1
	for _, p := range geom {
		x, y, ok := r.g.GeoToGrid(p.Lat, p.Lon)
		if !ok {
			continue
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if maxX < 0 {
		return 0, nil
	}

	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			lat, lon, ok := r.g.GridToGeo(x, y)
			if !ok || !pointInPolygon(lat, lon, geom) {
				continue
			}
			n, err := r.set(x, y, tile)
			if err != nil {
				return written, err
			}
			written += n
		}
	}
	return written, nil
}

// pointInPolygon casts a ray along the latitude axis and counts edge
// crossings; an odd count is inside.
func pointInPolygon(lat, lon float64, poly []osm.LatLon) bool {
	inside := false
	j := len(poly) - 1
	for i := range poly {
		pi, pj := poly[i], poly[j]
		if (pi.Lat > lat) != (pj.Lat > lat) &&
			lon < (pj.Lon-pi.Lon)*(lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
