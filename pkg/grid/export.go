package grid

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/image/draw"
)

// GeoJSON returns one polygon feature per non-empty cell.
func (g *TileGrid) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for p, t := range g.All() {
		if t.Type.IsEmpty() {
			continue
		}
		cell, _ := g.CellBounds(p.X, p.Y)
		f := geojson.NewFeature(cell.Bound().ToPolygon())
		f.Properties["tile_type"] = t.Type.Name()
		f.Properties["priority"] = t.Type.Priority()
		f.Properties["x"] = p.X
		f.Properties["y"] = p.Y
		if t.Metadata != nil {
			f.Properties["osm_ids"] = t.Metadata.OsmIDs
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes GeoJSON() to w.
func (g *TileGrid) WriteGeoJSON(w io.Writer) error {
	data, err := g.GeoJSON().MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Image renders one pixel per tile using the type colors, enlarged by scale
// with nearest-neighbour sampling.
func (g *TileGrid) Image(scale int) image.Image {
	src := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	for p, t := range g.All() {
		c := t.Type.Color()
		src.SetRGBA(p.X, p.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
	}
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, g.width*scale, g.height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// WritePNG encodes Image(scale) as PNG.
func (g *TileGrid) WritePNG(w io.Writer, scale int) error {
	if err := png.Encode(w, g.Image(scale)); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

var asciiGlyphs = map[TileType]byte{
	Empty:       '.',
	Road:        '#',
	Building:    'B',
	Water:       '~',
	GreenSpace:  '"',
	Railway:     '=',
	Parking:     'P',
	Amenity:     'A',
	Tourism:     'T',
	Industrial:  'I',
	Residential: 'R',
	Commercial:  'C',
}

// ASCII renders the grid one character per tile, north at the top.
func (g *TileGrid) ASCII() string {
	var sb strings.Builder
	sb.Grow((g.width + 1) * g.height)
	for y := range g.height {
		for x := range g.width {
			glyph, ok := asciiGlyphs[g.tiles[y*g.width+x].Type]
			if !ok {
				glyph = '?'
			}
			sb.WriteByte(glyph)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
