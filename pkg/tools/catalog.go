package tools

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
	"github.com/NERVsystems/osmtiles/pkg/provider"
	"github.com/NERVsystems/osmtiles/pkg/version"
)

// FeatureInfo describes one selectable feature
type FeatureInfo struct {
	Name        config.Feature `json:"name"`
	Description string         `json:"description"`
	Queries     []queries.Tag  `json:"queries"`
}

// CatalogOutput is the output of list_features
type CatalogOutput struct {
	Features     []FeatureInfo               `json:"features"`
	Presets      map[string][]config.Feature `json:"presets"`
	Profiles     []string                    `json:"profiles"`
	TileTypes    []TileTypeInfo              `json:"tile_types"`
	Provider     string                      `json:"provider"`
	Capabilities provider.Capabilities       `json:"provider_capabilities"`
	Generator    generator.Capabilities      `json:"generator_capabilities"`
	Providers    []string                    `json:"available_providers"`
}

// ListFeaturesTool returns the list_features definition
func ListFeaturesTool() mcp.Tool {
	return mcp.NewTool("list_features",
		mcp.WithDescription("List the OSM features, presets, tile types and limits available for tile grid generation"),
	)
}

func (r *Registry) handleListFeatures(_ context.Context, _ struct{}, _ *slog.Logger) (any, error) {
	out := CatalogOutput{
		Presets:      make(map[string][]config.Feature, len(config.Presets)),
		Profiles:     slices.Sorted(maps.Keys(config.BuilderPresets)),
		Provider:     r.provider.Type(),
		Capabilities: r.provider.Capabilities(),
		Generator:    r.generator.Capabilities(),
		Providers:    provider.Available(),
	}
	for _, f := range config.AllFeatures() {
		out.Features = append(out.Features, FeatureInfo{Name: f, Description: f.Description(), Queries: f.Queries()})
	}
	for name, preset := range config.Presets {
		out.Presets[name] = preset().Features()
	}
	for _, t := range grid.AllBuiltin() {
		out.TileTypes = append(out.TileTypes, DescribeTileType(t))
	}
	return out, nil
}

// GetVersionTool returns the get_version definition
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the tile grid service"),
	)
}

func handleGetVersion(_ context.Context, _ struct{}, _ *slog.Logger) (any, error) {
	return version.Info(), nil
}
