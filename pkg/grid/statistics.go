package grid

// GridStatistics summarises a grid's contents.
type GridStatistics struct {
	TotalTiles     int              `json:"total_tiles"`
	NonEmptyTiles  int              `json:"non_empty_tiles"`
	TileTypeCounts map[TileType]int `json:"tile_type_counts"`
	Coverage       float64          `json:"coverage"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	AreaKm2        float64          `json:"area_km2"`
	MetersPerTile  float64          `json:"meters_per_tile"`
}

// Statistics computes counts and coverage in a single pass.
func (g *TileGrid) Statistics() GridStatistics {
	stats := GridStatistics{
		TotalTiles:     len(g.tiles),
		TileTypeCounts: make(map[TileType]int),
		Width:          g.width,
		Height:         g.height,
		AreaKm2:        g.bbox.AreaKm2(),
		MetersPerTile:  g.metersPerTile,
	}
	for _, t := range g.tiles {
		stats.TileTypeCounts[t.Type]++
		if !t.Type.IsEmpty() {
			stats.NonEmptyTiles++
		}
	}
	if stats.TotalTiles > 0 {
		stats.Coverage = float64(stats.NonEmptyTiles) / float64(stats.TotalTiles)
	}
	return stats
}
