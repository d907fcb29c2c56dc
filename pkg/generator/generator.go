// Package generator rasterizes OSM elements into a typed tile grid.
//
// Generation is synchronous and single-threaded per grid. A Generator holds
// no mutable state, so independent grids may be generated concurrently.
package generator

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/osm"
	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

// Grid size bounds
const (
	MinGridSize      = 10
	DefaultMaxWidth  = 5000
	DefaultMaxHeight = 5000
)

// Generator converts OSM data into tile grids.
type Generator struct {
	maxWidth  int
	maxHeight int
	logger    *slog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithMaxSize caps the grid dimensions. The cap is applied after the
// MinGridSize floor, so a cap below the floor wins.
func WithMaxSize(width, height int) Option {
	return func(g *Generator) {
		g.maxWidth = max(width, 1)
		g.maxHeight = max(height, 1)
	}
}

// WithLogger replaces the default logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New creates a generator limited to 5000×5000 cells unless configured otherwise.
func New(opts ...Option) *Generator {
	g := &Generator{
		maxWidth:  DefaultMaxWidth,
		maxHeight: DefaultMaxHeight,
		logger:    slog.Default().With("component", "generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Capabilities describes what a generator supports
type Capabilities struct {
	MaxWidth         int             `json:"max_width"`
	MaxHeight        int             `json:"max_height"`
	SupportedCRS     []string        `json:"supported_crs"`
	SupportsParallel bool            `json:"supports_parallel"`
	FillTypes        []grid.TileType `json:"fill_types"`
	Notes            string          `json:"notes,omitempty"`
}

// Capabilities reports the limits of g
func (g *Generator) Capabilities() Capabilities {
	return Capabilities{
		MaxWidth:         g.maxWidth,
		MaxHeight:        g.maxHeight,
		SupportedCRS:     []string{"EPSG:4326"},
		SupportsParallel: false,
		FillTypes:        FillTypes(),
		Notes:            "Default rasterization-based grid generator",
	}
}

// Dimensions returns the grid size for bbox at the given resolution:
// ceil(degrees × cells per degree) per axis, raised to MinGridSize and then
// capped at the configured maximum.
func (g *Generator) Dimensions(bbox geo.BoundingBox, resolution int) (width, height int) {
	width = clampCells(math.Ceil(bbox.Width()*float64(resolution)), g.maxWidth)
	height = clampCells(math.Ceil(bbox.Height()*float64(resolution)), g.maxHeight)
	return width, height
}

// clampCells bounds v in float space so huge or NaN products never reach an
// out-of-range int conversion.
func clampCells(v float64, limit int) int {
	if !(v >= MinGridSize) {
		v = MinGridSize
	}
	if v > float64(limit) {
		v = float64(limit)
	}
	return int(v)
}

// MetersPerTile blends the side length implied by area and cell count with
// the configured nominal tile size, weighting both equally.
func MetersPerTile(bbox geo.BoundingBox, width, height int, tileSize float64) float64 {
	derived := math.Sqrt(bbox.AreaKm2()/float64(width*height)) * 1000
	return (derived + tileSize) / 2
}

// GenerateGrid parses data and rasterizes it. Parse errors abort the
// generation and no grid is returned. ctx carries tracing only.
func (g *Generator) GenerateGrid(ctx context.Context, data *osm.Data, cfg config.Config) (*grid.TileGrid, error) {
	ctx, span := tracing.StartSpan(ctx, "generator.generate_grid",
		trace.WithAttributes(
			attribute.Int(tracing.AttrGridResolution, cfg.GridResolution),
			attribute.String(tracing.AttrProviderType, data.Metadata.ProviderType),
		),
	)
	defer span.End()

	start := time.Now()
	elements, err := data.Elements()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		monitoring.RecordGridGeneration(time.Since(start), 0, 0, 0, false)
		return nil, err
	}
	g.logger.Debug("parsed OSM elements", "count", len(elements), "format", data.Format)

	tg, err := g.GenerateElements(elements, data.BoundingBox, cfg)
	if err != nil {
		tracing.RecordError(ctx, err)
		monitoring.RecordGridGeneration(time.Since(start), len(elements), 0, 0, false)
		return nil, err
	}

	span.SetAttributes(tracing.GridAttributes(tg.Width(), tg.Height(),
		tg.Metadata.ElementsProcessed, tg.Metadata.TilesPopulated)...)
	span.SetStatus(codes.Ok, "")
	monitoring.RecordGridGeneration(time.Since(start), tg.Metadata.ElementsProcessed,
		tg.Metadata.TilesPopulated, tg.Width()*tg.Height(), true)
	return tg, nil
}

// GenerateElements rasterizes already parsed elements over bbox.
func (g *Generator) GenerateElements(elements []osm.Element, bbox geo.BoundingBox, cfg config.Config) (*grid.TileGrid, error) {
	start := time.Now()

	width, height := g.Dimensions(bbox, cfg.GridResolution)
	mpt := MetersPerTile(bbox, width, height, cfg.TileSizeMeters)
	g.logger.Info("creating grid",
		"width", width,
		"height", height,
		"tiles", width*height,
		"meters_per_tile", mpt,
	)

	tg, err := grid.New(width, height, bbox, mpt)
	if err != nil {
		return nil, err
	}

	r := rasterizer{g: tg}
	populated := 0
	for _, e := range elements {
		n, err := r.element(e)
		if err != nil {
			return nil, core.Errorf(core.ErrGridGeneration, "failed to rasterize %s %d", e.Kind, e.ID).WithCause(err)
		}
		populated += n
	}

	elapsed := time.Since(start)
	tg.Metadata.ElementsProcessed = len(elements)
	tg.Metadata.TilesPopulated = populated
	tg.Metadata.GenerationTimeMs = elapsed.Milliseconds()
	tg.Metadata.Algorithm = grid.AlgorithmRasterization
	tg.Metadata.Extra["grid_width"] = strconv.Itoa(width)
	tg.Metadata.Extra["grid_height"] = strconv.Itoa(height)
	tg.Metadata.Extra["meters_per_tile"] = strconv.FormatFloat(mpt, 'f', -1, 64)

	g.logger.Info("grid generation complete",
		"populated", populated,
		"tiles", width*height,
		"elements", len(elements),
		"duration", elapsed,
	)
	return tg, nil
}

// Job is one independent generation request
type Job struct {
	Data   *osm.Data
	Config config.Config
}

// GenerateBatch generates independent grids concurrently. Results are in
// job order; the first error cancels jobs that have not started.
func (g *Generator) GenerateBatch(ctx context.Context, jobs []Job) ([]*grid.TileGrid, error) {
	out := make([]*grid.TileGrid, len(jobs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tg, err := g.GenerateGrid(ctx, job.Data, job.Config)
			if err != nil {
				return err
			}
			out[i] = tg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
