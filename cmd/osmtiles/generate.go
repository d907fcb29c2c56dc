package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/provider"
)

// summary is what -stats prints.
type summary struct {
	Provider   string              `json:"provider"`
	Statistics grid.GridStatistics `json:"statistics"`
	Metadata   grid.GridMetadata   `json:"metadata"`
}

// generate fetches, rasterizes and writes the requested outputs.
func generate(ctx context.Context, o *options, p provider.Provider, gen *generator.Generator, cfg config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("generating tile grid",
		"region", cfg.Region.Key(),
		"resolution", cfg.GridResolution,
		"features", len(cfg.Features.Features()))

	data, err := p.Fetch(ctx, cfg)
	if err != nil {
		return err
	}
	tg, err := gen.GenerateGrid(ctx, data, cfg)
	if err != nil {
		return err
	}

	if o.out != "" {
		if err := writeOutput(o.out, stdout, tg.WriteJSON); err != nil {
			return err
		}
	}
	if o.geojson != "" {
		if err := writeOutput(o.geojson, stdout, tg.WriteGeoJSON); err != nil {
			return err
		}
	}
	if o.png != "" {
		write := func(w io.Writer) error { return tg.WritePNG(w, o.pngScale) }
		if err := writeOutput(o.png, stdout, write); err != nil {
			return err
		}
	}
	if o.ascii {
		if _, err := io.WriteString(stdout, tg.ASCII()); err != nil {
			return err
		}
	}
	if o.stats {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary{Provider: p.Type(), Statistics: tg.Statistics(), Metadata: tg.Metadata}); err != nil {
			return fmt.Errorf("encoding statistics: %w", err)
		}
	}
	return nil
}

// writeOutput runs write against path, or stdout when path is "-".
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
