package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

// TileTypeInfo describes one tile type
type TileTypeInfo struct {
	Name      string     `json:"name"`
	Priority  int        `json:"priority"`
	Color     grid.Color `json:"color"`
	Navigable bool       `json:"navigable"`
	Structure bool       `json:"structure"`
}

// DescribeTileType collects the catalogue properties of t.
func DescribeTileType(t grid.TileType) TileTypeInfo {
	return TileTypeInfo{
		Name:      t.Name(),
		Priority:  t.Priority(),
		Color:     t.Color(),
		Navigable: t.IsNavigable(),
		Structure: t.IsStructure(),
	}
}

// ClassifyTagsInput is the input of classify_tags
type ClassifyTagsInput struct {
	Tags map[string]string `json:"tags"`
}

// ClassifyTagsOutput is the output of classify_tags
type ClassifyTagsOutput struct {
	TileType TileTypeInfo `json:"tile_type"`
	Filled   bool         `json:"filled_as_polygon"`
}

// ClassifyTagsTool returns the classify_tags definition
func ClassifyTagsTool() mcp.Tool {
	return mcp.NewTool("classify_tags",
		mcp.WithDescription("Show which tile type an OSM element with the given tags would produce"),
		mcp.WithObject("tags",
			mcp.Required(),
			mcp.Description("OSM tags as string key/value pairs, e.g. {\"highway\": \"residential\"}"),
		),
	)
}

func (r *Registry) handleClassifyTags(_ context.Context, in ClassifyTagsInput, logger *slog.Logger) (any, error) {
	if len(in.Tags) == 0 {
		return nil, core.NewError(core.ErrInvalidInput, "tags must not be empty").
			WithGuidance("Pass at least one tag, for example {\"building\": \"yes\"}")
	}
	t := osm.Classify(in.Tags)
	logger.Debug("classified tags", "tags", len(in.Tags), "tile_type", t)
	return ClassifyTagsOutput{
		TileType: DescribeTileType(t),
		Filled:   r.fillable[t],
	}, nil
}
