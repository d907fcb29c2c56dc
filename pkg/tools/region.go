package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/geo"
)

// ResolveRegionInput is the input of resolve_region
type ResolveRegionInput struct {
	config.RegionSpec
	Resolution int     `json:"resolution,omitempty"`
	TileSize   float64 `json:"tile_size,omitempty"`
}

// ResolveRegionOutput previews the grid a generation would produce
type ResolveRegionOutput struct {
	Provider      string          `json:"provider"`
	BBox          geo.BoundingBox `json:"bbox"`
	Center        [2]float64      `json:"center"`
	AreaKm2       float64         `json:"area_km2"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	MetersPerTile float64         `json:"meters_per_tile"`
}

// ResolveRegionTool returns the resolve_region definition
func ResolveRegionTool() mcp.Tool {
	return mcp.NewTool("resolve_region",
		mcp.WithDescription("Resolve a city, bounding box or center and radius to the bounding box and "+
			"grid size a generation would use, without fetching map data"),
		mcp.WithString("city", mcp.Description("City or place name")),
		mcp.WithString("bbox", mcp.Description("Bounding box as \"south,west,north,east\"")),
		mcp.WithString("center", mcp.Description("Center point as decimal, DMS or MGRS")),
		mcp.WithNumber("radius_km", mcp.Description("Radius around center in kilometers")),
		mcp.WithNumber("resolution", mcp.Description("Grid cells per degree (default 100)")),
		mcp.WithNumber("tile_size", mcp.Description("Nominal tile size in meters (default 10)")),
	)
}

func (r *Registry) handleResolveRegion(ctx context.Context, in ResolveRegionInput, logger *slog.Logger) (any, error) {
	region, err := in.ToRegion()
	if err != nil {
		return nil, err
	}
	bbox, err := r.provider.ResolveRegion(ctx, region)
	if err != nil {
		return nil, err
	}

	res := in.Resolution
	if res <= 0 {
		res = config.DefaultResolution
	}
	tileSize := in.TileSize
	if tileSize <= 0 {
		tileSize = config.DefaultTileSizeMeters
	}
	w, h := r.generator.Dimensions(bbox, res)
	lat, lon := bbox.Center()

	logger.Debug("resolved region", "region", region.Key(), "bbox", bbox.String())
	return ResolveRegionOutput{
		Provider:      r.provider.Type(),
		BBox:          bbox,
		Center:        [2]float64{lat, lon},
		AreaKm2:       bbox.AreaKm2(),
		Width:         w,
		Height:        h,
		MetersPerTile: generator.MetersPerTile(bbox, w, h, tileSize),
	}, nil
}
