// Package provider fetches OSM data for a region from interchangeable sources.
package provider

import (
	"context"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/osm"
)

// Provider is a source of OSM data.
type Provider interface {
	// Type is a short stable name such as "overpass" or "mock".
	Type() string
	// Fetch retrieves the data selected by cfg's region and features.
	Fetch(ctx context.Context, cfg config.Config) (*osm.Data, error)
	// ResolveRegion turns a region into the bounding box the provider would fetch.
	ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error)
	// TestAvailability reports whether the provider can currently serve requests.
	TestAvailability(ctx context.Context) error
	Capabilities() Capabilities
}

// Capabilities describes what a provider supports
type Capabilities struct {
	SupportsRealTime  bool         `json:"supports_real_time"`
	RequiresNetwork   bool         `json:"requires_network"`
	SupportsGeocoding bool         `json:"supports_geocoding"`
	MaxAreaKm2        *float64     `json:"max_area_km2,omitempty"`
	SupportedFormats  []osm.Format `json:"supported_formats"`
	RateLimitRPM      int          `json:"rate_limit_rpm,omitempty"`
	Notes             string       `json:"notes,omitempty"`
}

// observeFetch records the outcome of a fetch. Use with defer and a named error.
func observeFetch(provider string, start time.Time, err *error) {
	monitoring.RecordProviderFetch(provider, time.Since(start), *err == nil)
	if *err != nil {
		monitoring.RecordError("provider."+provider, string(core.CodeOf(*err)))
	}
}

func ptr[T any](v T) *T { return &v }
