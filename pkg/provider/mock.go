package provider

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

// mockCities are the only names the mock provider can geocode.
var mockCities = map[string]geo.BoundingBox{
	"berlin":   geo.NewBoundingBox(52.3, 13.0, 52.7, 13.8),
	"munich":   geo.NewBoundingBox(48.0, 11.3, 48.3, 11.8),
	"münchen":  geo.NewBoundingBox(48.0, 11.3, 48.3, 11.8),
	"hamburg":  geo.NewBoundingBox(53.4, 9.7, 53.8, 10.3),
	"test":     geo.NewBoundingBox(52.4, 13.3, 52.6, 13.5),
	"testcity": geo.NewBoundingBox(52.4, 13.3, 52.6, 13.5),
	"mock":     geo.NewBoundingBox(52.4, 13.3, 52.6, 13.5),
}

// MockElements is the built-in dataset: one building, one road, one park
// and one cafe near central Berlin.
func MockElements() []osm.Element {
	return []osm.Element{
		{
			ID:   123456789,
			Kind: osm.KindWay,
			Tags: map[string]string{
				"building":         "residential",
				"addr:street":      "Mock Street",
				"addr:housenumber": "42",
			},
			Geometry: []osm.LatLon{
				{Lat: 52.5, Lon: 13.4}, {Lat: 52.501, Lon: 13.4}, {Lat: 52.501, Lon: 13.401},
				{Lat: 52.5, Lon: 13.401}, {Lat: 52.5, Lon: 13.4},
			},
		},
		{
			ID:       987654321,
			Kind:     osm.KindWay,
			Tags:     map[string]string{"highway": "residential", "name": "Mock Street"},
			Geometry: []osm.LatLon{{Lat: 52.499, Lon: 13.399}, {Lat: 52.502, Lon: 13.402}},
		},
		{
			ID:   555666777,
			Kind: osm.KindWay,
			Tags: map[string]string{"leisure": "park", "name": "Mock Park"},
			Geometry: []osm.LatLon{
				{Lat: 52.503, Lon: 13.403}, {Lat: 52.504, Lon: 13.403}, {Lat: 52.504, Lon: 13.405},
				{Lat: 52.503, Lon: 13.405}, {Lat: 52.503, Lon: 13.403},
			},
		},
		{
			ID:       4001,
			Kind:     osm.KindNode,
			Tags:     map[string]string{"amenity": "cafe", "name": "Mock Cafe"},
			Geometry: []osm.LatLon{{Lat: 52.5015, Lon: 13.4015}},
		},
	}
}

// Mock serves fixed data without network access. It is meant for tests and
// offline demos.
type Mock struct {
	data    []byte
	failing bool
	logger  *slog.Logger
}

// MockOption configures a Mock provider
type MockOption func(*Mock)

// WithMockData replaces the built-in dataset with raw Overpass JSON
func WithMockData(raw []byte) MockOption {
	return func(m *Mock) { m.data = raw }
}

// WithSimulatedFailure makes every fetch and availability check fail
func WithSimulatedFailure() MockOption {
	return func(m *Mock) { m.failing = true }
}

// NewMock creates a mock provider serving MockElements unless configured otherwise.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{logger: slog.Default().With("component", "provider", "provider", "mock")}
	for _, opt := range opts {
		opt(m)
	}
	if m.data == nil {
		// The built-in elements always encode.
		m.data, _ = osm.EncodeOverpassJSON(MockElements())
	}
	return m
}

// Type implements Provider
func (m *Mock) Type() string { return "mock" }

// Capabilities implements Provider
func (m *Mock) Capabilities() Capabilities {
	return Capabilities{
		SupportsGeocoding: true,
		SupportedFormats:  []osm.Format{osm.FormatJSON},
		Notes:             "Fixed test data; knows berlin, munich, hamburg and test",
	}
}

// Fetch implements Provider
func (m *Mock) Fetch(ctx context.Context, cfg config.Config) (data *osm.Data, err error) {
	start := time.Now()
	defer observeFetch(m.Type(), start, &err)

	if m.failing {
		return nil, core.NewError(core.ErrNetwork, "Simulated network failure")
	}
	bbox, err := m.ResolveRegion(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	md := osm.NewMetadata("mock-provider", m.Type())
	if n, ok := osm.CountElements(m.data); ok {
		md.ElementCount = &n
	}
	md.ProcessingTimeMs = ptr(int64(1))
	md.Extra["simulated"] = "true"
	md.Extra["test_data"] = "true"

	m.logger.Debug("returning mock data", "bytes", len(m.data))
	return &osm.Data{
		Raw:         m.data,
		Format:      osm.FormatJSON,
		BoundingBox: bbox,
		Metadata:    md,
	}, nil
}

// ResolveRegion implements Provider. A center and radius becomes a square of
// radius/111 degrees on each side of the center.
func (m *Mock) ResolveRegion(_ context.Context, region config.Region) (geo.BoundingBox, error) {
	if err := config.ValidateRegion(region); err != nil {
		return geo.BoundingBox{}, err
	}
	switch r := region.(type) {
	case config.BBox:
		return r.BoundingBox, nil
	case config.CenterRadius:
		d := r.RadiusKm / 111.0
		return geo.NewBoundingBox(r.Lat-d, r.Lon-d, r.Lat+d, r.Lon+d), nil
	case config.City:
		if bbox, ok := mockCities[strings.ToLower(strings.TrimSpace(r.Name))]; ok {
			return bbox, nil
		}
		return geo.BoundingBox{}, core.Errorf(core.ErrGeographic,
			"Mock provider doesn't know city: '%s'. Try: berlin, munich, hamburg, or test", r.Name)
	default:
		return geo.BoundingBox{}, core.Errorf(core.ErrConfig, "unsupported region type %T", region)
	}
}

// TestAvailability implements Provider
func (m *Mock) TestAvailability(context.Context) error {
	if m.failing {
		return core.NewError(core.ErrServiceUnavailable, "Mock failure enabled")
	}
	return nil
}
