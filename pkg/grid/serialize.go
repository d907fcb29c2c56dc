package grid

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
)

type gridJSON struct {
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	BoundingBox   geo.BoundingBox `json:"bounding_box"`
	MetersPerTile float64         `json:"meters_per_tile"`
	Metadata      GridMetadata    `json:"metadata"`
	Tiles         [][]Tile        `json:"tiles"`
}

// MarshalJSON encodes the grid with tiles as an array of rows.
func (g *TileGrid) MarshalJSON() ([]byte, error) {
	rows := make([][]Tile, g.height)
	for y := range g.height {
		rows[y] = g.tiles[y*g.width : (y+1)*g.width]
	}
	return json.Marshal(gridJSON{
		Width:         g.width,
		Height:        g.height,
		BoundingBox:   g.bbox,
		MetersPerTile: g.metersPerTile,
		Metadata:      g.Metadata,
		Tiles:         rows,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON and checks that the
// tile rows match the declared dimensions.
func (g *TileGrid) UnmarshalJSON(data []byte) error {
	var raw gridJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.NewError(core.ErrParse, "invalid grid JSON").WithCause(err)
	}
	if raw.Width <= 0 || raw.Height <= 0 || len(raw.Tiles) != raw.Height {
		return core.Errorf(core.ErrParse, "grid declares %dx%d but has %d rows", raw.Width, raw.Height, len(raw.Tiles))
	}
	tiles := make([]Tile, 0, raw.Width*raw.Height)
	for y, row := range raw.Tiles {
		if len(row) != raw.Width {
			return core.Errorf(core.ErrParse, "row %d has %d tiles, want %d", y, len(row), raw.Width)
		}
		tiles = append(tiles, row...)
	}
	if raw.Metadata.Extra == nil {
		raw.Metadata.Extra = map[string]string{}
	}
	*g = TileGrid{
		width:         raw.Width,
		height:        raw.Height,
		bbox:          raw.BoundingBox,
		metersPerTile: raw.MetersPerTile,
		tiles:         tiles,
		Metadata:      raw.Metadata,
	}
	return nil
}

// WriteJSON writes the grid as indented JSON.
func (g *TileGrid) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encoding grid: %w", err)
	}
	return nil
}

// ReadJSON decodes a grid written by WriteJSON.
func ReadJSON(r io.Reader) (*TileGrid, error) {
	var g TileGrid
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		if core.IsKind(err, core.ErrParse) {
			return nil, err
		}
		return nil, core.NewError(core.ErrParse, "reading grid").WithCause(err)
	}
	return &g, nil
}
