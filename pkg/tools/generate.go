package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/osm"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
)

// MaxInlineCells bounds grids whose cells are returned inline (ascii, json, geojson).
const MaxInlineCells = 250_000

// Output modes for generate_tile_grid
const (
	OutputSummary = "summary"
	OutputASCII   = "ascii"
	OutputJSON    = "json"
	OutputGeoJSON = "geojson"
)

// GridRequest is the input of generate_tile_grid.
type GridRequest struct {
	config.RegionSpec
	Resolution int           `json:"resolution,omitempty"`
	TileSize   float64       `json:"tile_size,omitempty"`
	Timeout    int           `json:"timeout_seconds,omitempty"`
	Profile    string        `json:"profile,omitempty"`
	Preset     string        `json:"preset,omitempty"`
	Features   []string      `json:"features,omitempty"`
	Custom     []queries.Tag `json:"custom,omitempty"`
	Output     string        `json:"output,omitempty"`
}

// Config builds a validated generation config from the request, filling
// unset fields with the defaults.
func (r GridRequest) Config() (config.Config, error) {
	region, err := r.ToRegion()
	if err != nil {
		return config.Config{}, err
	}
	b := config.NewBuilder()
	if r.Profile != "" {
		newBuilder, ok := config.BuilderPresets[strings.ToLower(strings.TrimSpace(r.Profile))]
		if !ok {
			return config.Config{}, core.Errorf(core.ErrConfig, "unknown profile %q", r.Profile).
				WithGuidance("Use gaming, navigation, urban_planning or environment")
		}
		b = newBuilder()
	}
	b.Region(region)

	// A profile brings its own features unless the request names some.
	if r.Profile == "" || r.Preset != "" || len(r.Features) > 0 || len(r.Custom) > 0 {
		features, err := config.FeatureSpec{Preset: r.Preset, List: r.Features, Custom: r.Custom}.ToFeatureSet()
		if err != nil {
			return config.Config{}, err
		}
		b.Features(features)
	}
	if r.Resolution != 0 {
		b.Resolution(r.Resolution)
	}
	if r.TileSize != 0 {
		b.TileSize(r.TileSize)
	}
	if r.Timeout != 0 {
		b.Timeout(r.Timeout)
	}
	cfg := b.Build()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// GridResponse is the output of generate_tile_grid.
type GridResponse struct {
	Provider   string                     `json:"provider"`
	BBox       geo.BoundingBox            `json:"bbox"`
	Statistics grid.GridStatistics        `json:"statistics"`
	Metadata   grid.GridMetadata          `json:"metadata"`
	Source     osm.Metadata               `json:"source"`
	ASCII      string                     `json:"ascii,omitempty"`
	Grid       *grid.TileGrid             `json:"grid,omitempty"`
	GeoJSON    *geojson.FeatureCollection `json:"geojson,omitempty"`
}

// GenerateTileGridTool returns the generate_tile_grid definition
func GenerateTileGridTool() mcp.Tool {
	return mcp.NewTool("generate_tile_grid",
		mcp.WithDescription("Fetch OpenStreetMap data for a region and rasterize it into a typed tile grid "+
			"(road, building, water, green_space, ...). Give exactly one of city, bbox or center with radius_km."),
		mcp.WithString("city", mcp.Description("City or place name, geocoded by the provider")),
		mcp.WithString("bbox", mcp.Description("Bounding box as \"south,west,north,east\" in degrees")),
		mcp.WithString("center", mcp.Description("Center point as decimal (52.52,13.405), DMS or MGRS")),
		mcp.WithNumber("radius_km", mcp.Description("Radius around center in kilometers")),
		mcp.WithNumber("resolution", mcp.Description("Grid cells per degree on both axes (default 100)")),
		mcp.WithNumber("tile_size", mcp.Description("Nominal tile size in meters (default 10)")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Provider query timeout (default 30)")),
		mcp.WithString("profile",
			mcp.Description("Starting configuration tuned for a use case"),
			mcp.Enum("gaming", "navigation", "urban_planning", "environment"),
		),
		mcp.WithString("preset",
			mcp.Description("Feature preset used when features is empty"),
			mcp.Enum("urban", "transportation", "natural", "comprehensive"),
		),
		mcp.WithArray("features",
			mcp.Description("Feature names such as roads, buildings, water, parks"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("custom",
			mcp.Description("Extra tag queries as {key, value}; value may be omitted to match any value"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithString("output",
			mcp.Description("What to return besides statistics"),
			mcp.Enum(OutputSummary, OutputASCII, OutputJSON, OutputGeoJSON),
		),
	)
}

func (r *Registry) handleGenerateTileGrid(ctx context.Context, in GridRequest, logger *slog.Logger) (any, error) {
	output := strings.ToLower(strings.TrimSpace(in.Output))
	switch output {
	case "":
		output = OutputSummary
	case OutputSummary, OutputASCII, OutputJSON, OutputGeoJSON:
	default:
		return nil, core.Errorf(core.ErrInvalidInput, "unknown output %q", in.Output).
			WithGuidance("Use summary, ascii, json or geojson")
	}

	cfg, err := in.Config()
	if err != nil {
		return nil, err
	}

	data, err := r.provider.Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tg, err := r.generator.GenerateGrid(ctx, data, cfg)
	if err != nil {
		return nil, err
	}

	resp := GridResponse{
		Provider:   r.provider.Type(),
		BBox:       tg.BoundingBox(),
		Statistics: tg.Statistics(),
		Metadata:   tg.Metadata,
		Source:     data.Metadata,
	}
	if output != OutputSummary {
		if cells := tg.Width() * tg.Height(); cells > MaxInlineCells {
			return nil, core.Errorf(core.ErrInvalidInput,
				"grid has %d cells, more than the %d that can be returned inline", cells, MaxInlineCells).
				WithGuidance("Lower the resolution, shrink the region or use output=summary")
		}
	}
	switch output {
	case OutputASCII:
		resp.ASCII = tg.ASCII()
	case OutputJSON:
		resp.Grid = tg
	case OutputGeoJSON:
		resp.GeoJSON = tg.GeoJSON()
	}

	logger.Info("generated tile grid",
		"width", tg.Width(),
		"height", tg.Height(),
		"populated", tg.Metadata.TilesPopulated,
		"output", output,
	)
	return resp, nil
}
