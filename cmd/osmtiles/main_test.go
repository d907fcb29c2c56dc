package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/provider"
)

func mustParse(t *testing.T, args ...string) *options {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o, err := parseFlags(fs, args)
	if err != nil {
		t.Fatalf("parseFlags(%v) error = %v", args, err)
	}
	return o
}

func TestParseFlags(t *testing.T) {
	o := mustParse(t, "-file", "berlin.osm.pbf", "-resolution", "200")
	if o.providerName != "file:berlin.osm.pbf" || !o.set["provider"] {
		t.Errorf("provider = %q, set %v", o.providerName, o.set["provider"])
	}
	if !o.set["resolution"] || o.set["tile-size"] {
		t.Errorf("set flags = %v", o.set)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseFlags(fs, []string{"-http-only"}); err == nil {
		t.Error("expected error for -http-only without -http-addr")
	}
}

func TestOptionsMode(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "generate"},
		{[]string{"-mcp"}, "stdio"},
		{[]string{"-http-addr", ":0"}, "stdio+http"},
		{[]string{"-http-addr", ":0", "-http-only"}, "http"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := mustParse(t, tt.args...).mode(); got != tt.want {
				t.Errorf("mode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmtiles.yaml")
	content := `
region:
  bbox: "52.5,13.4,52.6,13.5"
grid:
  resolution: 150
features:
  preset: natural
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		wantRegion string
		wantRes    int
		wantRoads  bool
	}{
		{"file only", nil, "bbox:52.5,13.4,52.6,13.5", 150, false},
		{"city flag replaces region", []string{"-city", "Hamburg"}, "city:hamburg", 150, false},
		{"resolution flag", []string{"-resolution", "300"}, "bbox:52.5,13.4,52.6,13.5", 300, false},
		{"features flag", []string{"-features", "roads,water"}, "bbox:52.5,13.4,52.6,13.5", 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := mustParse(t, append([]string{"-config", path}, tt.args...)...)
			fc, err := config.Load(o.configPath)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			o.apply(fc)
			cfg, err := o.generationConfig(fc)
			if err != nil {
				t.Fatalf("generationConfig() error = %v", err)
			}
			if got := cfg.Region.Key(); got != tt.wantRegion {
				t.Errorf("region = %q, want %q", got, tt.wantRegion)
			}
			if cfg.GridResolution != tt.wantRes {
				t.Errorf("resolution = %d, want %d", cfg.GridResolution, tt.wantRes)
			}
			if got := cfg.Features.Contains(config.Roads); got != tt.wantRoads {
				t.Errorf("has roads = %v, want %v", got, tt.wantRoads)
			}
		})
	}
}

func TestGenerationConfigProfile(t *testing.T) {
	o := mustParse(t, "-city", "test", "-profile", "navigation")
	fc, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	o.apply(fc)
	cfg, err := o.generationConfig(fc)
	if err != nil {
		t.Fatalf("generationConfig() error = %v", err)
	}
	if !cfg.Features.Contains(config.Roads) {
		t.Error("navigation profile should select roads")
	}

	o = mustParse(t, "-city", "test", "-profile", "racing")
	o.apply(fc)
	if _, err := o.generationConfig(fc); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	o := mustParse(t,
		"-city", "test",
		"-resolution", "500",
		"-out", filepath.Join(dir, "grid.json"),
		"-geojson", filepath.Join(dir, "grid.geojson"),
		"-png", filepath.Join(dir, "grid.png"),
		"-png-scale", "2",
	)
	fc, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	o.apply(fc)
	cfg, err := o.generationConfig(fc)
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var stdout bytes.Buffer
	if err := generate(context.Background(), o, provider.NewMock(), generator.New(), cfg, &stdout, logger); err != nil {
		t.Fatalf("generate() error = %v", err)
	}

	var s summary
	if err := json.Unmarshal(stdout.Bytes(), &s); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, stdout.String())
	}
	// test spans 0.2 degrees on both axes.
	if s.Statistics.Width < 100 || s.Statistics.Height < 100 {
		t.Errorf("grid is %dx%d, want at least 100x100", s.Statistics.Width, s.Statistics.Height)
	}
	if s.Metadata.ElementsProcessed != len(provider.MockElements()) {
		t.Errorf("elements processed = %d, want %d", s.Metadata.ElementsProcessed, len(provider.MockElements()))
	}

	f, err := os.Open(filepath.Join(dir, "grid.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	tg, err := grid.ReadJSON(f)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if tg.Width() != s.Statistics.Width || tg.Height() != s.Statistics.Height {
		t.Errorf("JSON grid is %dx%d, stats say %dx%d", tg.Width(), tg.Height(), s.Statistics.Width, s.Statistics.Height)
	}

	geo, err := os.ReadFile(filepath.Join(dir, "grid.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(geo), `"FeatureCollection"`) {
		t.Error("geojson output is not a feature collection")
	}

	pf, err := os.Open(filepath.Join(dir, "grid.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()
	img, err := png.Decode(pf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if got := img.Bounds().Dx(); got != 2*s.Statistics.Width {
		t.Errorf("png width = %d, want %d", got, 2*s.Statistics.Width)
	}
}

func TestGenerateASCIIToStdout(t *testing.T) {
	o := mustParse(t, "-bbox", "52.499,13.399,52.505,13.406", "-resolution", "2000", "-ascii", "-stats=false")
	fc, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	o.apply(fc)
	cfg, err := o.generationConfig(fc)
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := generate(context.Background(), o, provider.NewMock(), generator.New(), cfg, &stdout, logger); err != nil {
		t.Fatalf("generate() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "#") {
		t.Errorf("ascii output has no road:\n%s", stdout.String())
	}
	if strings.Contains(stdout.String(), "{") {
		t.Error("stats printed despite -stats=false")
	}
}

func TestGenerateProviderError(t *testing.T) {
	o := mustParse(t, "-city", "atlantis")
	fc, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	o.apply(fc)
	cfg, err := o.generationConfig(fc)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := generate(context.Background(), o, provider.NewMock(), generator.New(), cfg, io.Discard, logger); err == nil {
		t.Error("expected error for unknown mock city")
	}
}
