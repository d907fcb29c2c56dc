package provider

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

// DefaultFileBBox is used when a file's extent can be neither supplied nor inferred.
var DefaultFileBBox = geo.NewBoundingBox(0, 0, 1, 1)

// File loads OSM data from a local Overpass JSON, OSM XML or PBF file.
type File struct {
	path   string
	known  *geo.BoundingBox
	logger *slog.Logger
}

// FileOption configures a File provider
type FileOption func(*File)

// WithKnownBBox declares the extent of the file's data
func WithKnownBBox(bbox geo.BoundingBox) FileOption {
	return func(f *File) { f.known = &bbox }
}

// NewFile creates a provider reading path. The format follows the extension.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{
		path:   path,
		logger: slog.Default().With("component", "provider", "provider", "file", "path", path),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Type implements Provider
func (f *File) Type() string { return "file" }

// Path returns the file the provider reads
func (f *File) Path() string { return f.path }

// Capabilities implements Provider
func (f *File) Capabilities() Capabilities {
	return Capabilities{
		SupportedFormats: []osm.Format{osm.FormatJSON, osm.FormatXML, osm.FormatPBF},
		Notes:            "Local OSM data file; regions other than a bounding box resolve to the file extent",
	}
}

// Fetch implements Provider. The region in cfg is ignored; the whole file is returned.
func (f *File) Fetch(_ context.Context, _ config.Config) (data *osm.Data, err error) {
	start := time.Now()
	defer observeFetch(f.Type(), start, &err)

	raw, err := f.read()
	if err != nil {
		return nil, err
	}
	format := osm.FormatFromPath(f.path)

	md := osm.NewMetadata(f.path, f.Type())
	md.Extra["file_size"] = strconv.Itoa(len(raw))
	md.Extra["format"] = string(format)
	if format == osm.FormatJSON {
		if n, ok := osm.CountElements(raw); ok {
			md.ElementCount = &n
		}
	}
	md.ProcessingTimeMs = ptr(time.Since(start).Milliseconds())

	bbox := f.extent(raw, format)
	f.logger.Info("loaded OSM file", "bytes", len(raw), "format", format, "bbox", bbox.String())
	return &osm.Data{
		Raw:         raw,
		Format:      format,
		BoundingBox: bbox,
		Metadata:    md,
	}, nil
}

func (f *File) read() ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, core.Errorf(core.ErrConfig, "Failed to read file '%s'", f.path).
			WithCause(err).
			WithGuidance("Check that the file exists and is readable")
	}
	return raw, nil
}

// extent returns the known bbox, else the bounds of the parsed elements,
// else DefaultFileBBox.
func (f *File) extent(raw []byte, format osm.Format) geo.BoundingBox {
	if f.known != nil {
		return *f.known
	}
	if format == osm.FormatXML {
		return DefaultFileBBox
	}
	elements, err := osm.Parse(raw, format)
	if err != nil {
		f.logger.Debug("could not infer extent", "error", err)
		return DefaultFileBBox
	}
	if bbox, ok := osm.BoundsOf(elements); ok {
		return bbox
	}
	return DefaultFileBBox
}

// ResolveRegion implements Provider. A bounding box is returned unchanged;
// cities and centers cannot be resolved from a file, so they map to the
// file's extent.
func (f *File) ResolveRegion(_ context.Context, region config.Region) (geo.BoundingBox, error) {
	if r, ok := region.(config.BBox); ok {
		return r.BoundingBox, nil
	}
	if f.known != nil {
		return *f.known, nil
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return DefaultFileBBox, nil
	}
	return f.extent(raw, osm.FormatFromPath(f.path)), nil
}

// TestAvailability implements Provider
func (f *File) TestAvailability(context.Context) error {
	if _, err := os.Stat(f.path); err != nil {
		return core.Errorf(core.ErrConfig, "File not found: %s", f.path).WithCause(err)
	}
	return nil
}
