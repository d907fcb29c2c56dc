package grid

import "maps"

// DefaultConfidence is assigned to every tile written by the rasterizer.
const DefaultConfidence = 1.0

// TileMetadata records which elements produced a tile.
type TileMetadata struct {
	OsmIDs     []int64           `json:"osm_ids"`
	Tags       map[string]string `json:"tags"`
	Confidence float64           `json:"confidence"`
}

// NewTileMetadata builds metadata for a single source element.
func NewTileMetadata(osmID int64, tags map[string]string) *TileMetadata {
	return &TileMetadata{
		OsmIDs:     []int64{osmID},
		Tags:       maps.Clone(tags),
		Confidence: DefaultConfidence,
	}
}

// Merge folds other into m: IDs are appended and tags are added without
// replacing existing keys.
func (m *TileMetadata) Merge(other *TileMetadata) {
	if other == nil {
		return
	}
	m.OsmIDs = append(m.OsmIDs, other.OsmIDs...)
	if m.Tags == nil && len(other.Tags) > 0 {
		m.Tags = make(map[string]string, len(other.Tags))
	}
	for k, v := range other.Tags {
		if _, ok := m.Tags[k]; !ok {
			m.Tags[k] = v
		}
	}
}

// Tile is one grid cell.
type Tile struct {
	Type     TileType      `json:"tile_type"`
	Metadata *TileMetadata `json:"metadata,omitempty"`
}

// NewTile returns a tile of the given type without metadata.
func NewTile(t TileType) Tile {
	return Tile{Type: t}
}

// WithMetadata returns a copy of the tile carrying md.
func (t Tile) WithMetadata(md *TileMetadata) Tile {
	t.Metadata = md
	return t
}

// CanBeOverwrittenBy reports whether other has strictly higher priority.
// Equal priorities keep the existing tile.
func (t Tile) CanBeOverwrittenBy(other Tile) bool {
	return other.Type.Priority() > t.Type.Priority()
}
