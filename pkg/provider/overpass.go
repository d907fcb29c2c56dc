package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/geo"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/osm"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

// Area limits for a single Overpass request, in km²
const (
	OverpassWarnAreaKm2 = 1000
	OverpassMaxAreaKm2  = 5000
)

const (
	defaultGeocodeCacheSize = 256
	// Extra client-side time on top of the server-side query timeout.
	overpassTimeoutSlack = 15 * time.Second
)

// Overpass fetches live data from an Overpass interpreter and geocodes city
// names through Nominatim.
type Overpass struct {
	overpassURL  string
	nominatimURL string
	retry        core.RetryOptions
	geocodes     *lru.Cache[string, geo.BoundingBox]
	logger       *slog.Logger
}

// OverpassOption configures an Overpass provider
type OverpassOption func(*Overpass)

// WithOverpassURL points the provider at a different interpreter
func WithOverpassURL(u string) OverpassOption {
	return func(o *Overpass) { o.overpassURL = u }
}

// WithNominatimURL points geocoding at a different Nominatim instance
func WithNominatimURL(u string) OverpassOption {
	return func(o *Overpass) { o.nominatimURL = strings.TrimRight(u, "/") }
}

// WithRetryOptions replaces the retry policy
func WithRetryOptions(r core.RetryOptions) OverpassOption {
	return func(o *Overpass) { o.retry = r }
}

// WithGeocodeCacheSize sets how many resolved city names are remembered
func WithGeocodeCacheSize(n int) OverpassOption {
	return func(o *Overpass) {
		if c, err := lru.New[string, geo.BoundingBox](max(n, 1)); err == nil {
			o.geocodes = c
		}
	}
}

// NewOverpass creates a provider backed by the public OSM services.
func NewOverpass(opts ...OverpassOption) *Overpass {
	geocodes, _ := lru.New[string, geo.BoundingBox](defaultGeocodeCacheSize)
	o := &Overpass{
		overpassURL:  osm.OverpassBaseURL,
		nominatimURL: osm.NominatimBaseURL,
		retry:        core.DefaultRetryOptions,
		geocodes:     geocodes,
		logger:       slog.Default().With("component", "provider", "provider", "overpass"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Type implements Provider
func (o *Overpass) Type() string { return "overpass" }

// Capabilities implements Provider
func (o *Overpass) Capabilities() Capabilities {
	return Capabilities{
		SupportsRealTime:  true,
		RequiresNetwork:   true,
		SupportsGeocoding: true,
		MaxAreaKm2:        ptr(float64(OverpassMaxAreaKm2)),
		SupportedFormats:  []osm.Format{osm.FormatJSON},
		RateLimitRPM:      60,
		Notes:             "Live OpenStreetMap data from the Overpass API; cities are geocoded with Nominatim",
	}
}

// BuildQuery renders the Overpass QL request for cfg over bbox.
func BuildQuery(bbox geo.BoundingBox, cfg config.Config) string {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = queries.DefaultTimeout
	}
	return queries.NewOverpassBuilder(bbox).
		WithTimeout(timeout).
		WithTags(cfg.Features.Queries()).
		Build()
}

// Fetch implements Provider
func (o *Overpass) Fetch(ctx context.Context, cfg config.Config) (data *osm.Data, err error) {
	start := time.Now()
	defer observeFetch(o.Type(), start, &err)

	ctx, span := tracing.StartSpan(ctx, "provider.overpass.fetch",
		trace.WithAttributes(attribute.String(tracing.AttrProviderType, o.Type())),
	)
	defer span.End()

	bbox, err := o.ResolveRegion(ctx, cfg.Region)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	area := bbox.AreaKm2()
	span.SetAttributes(
		attribute.String(tracing.AttrRegion, bbox.String()),
		attribute.Float64(tracing.AttrAreaKm2, area),
	)
	if area > OverpassMaxAreaKm2 {
		err = core.Errorf(core.ErrConfig, "area %.0f km² exceeds the Overpass limit of %d km²", area, OverpassMaxAreaKm2).
			WithGuidance("Use a smaller bounding box or radius, or split the region into several requests")
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if area > OverpassWarnAreaKm2 {
		o.logger.Warn("large area requested, the query may be slow", "area_km2", area)
	}

	query := BuildQuery(bbox, cfg)
	o.logger.Debug("overpass query", "bbox", bbox.String(), "query", query)

	timeout := time.Duration(max(cfg.TimeoutSeconds, queries.DefaultTimeout))*time.Second + overpassTimeoutSlack
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := o.post(ctx, "interpreter", query, o.retry)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	md := osm.NewMetadata(o.overpassURL, o.Type())
	if n, ok := osm.CountElements(body); ok {
		md.ElementCount = &n
	}
	md.ProcessingTimeMs = ptr(time.Since(start).Milliseconds())
	md.Extra["query_size"] = strconv.Itoa(len(body))
	md.Extra["area_km2"] = fmt.Sprintf("%.2f", area)
	md.Extra["bbox"] = bbox.String()

	o.logger.Info("fetched overpass data",
		"bytes", len(body),
		"area_km2", area,
		"duration", time.Since(start),
	)
	span.SetStatus(codes.Ok, "")
	return &osm.Data{
		Raw:         body,
		Format:      osm.FormatJSON,
		BoundingBox: bbox,
		Metadata:    md,
	}, nil
}

// post sends query as the form field "data" and returns the response body.
func (o *Overpass) post(ctx context.Context, operation, query string, retry core.RetryOptions) ([]byte, error) {
	form := url.Values{"data": {query}}.Encode()
	factory := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.overpassURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	do := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return osm.DoRequest(ctx, tracing.ServiceOverpass, operation, req)
	}

	resp, err := core.WithRetry(ctx, tracing.ServiceOverpass, factory, do, retry)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.ErrNetwork, "failed to read Overpass response").WithCause(err)
	}
	return body, nil
}

// ResolveRegion implements Provider
func (o *Overpass) ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error) {
	if err := config.ValidateRegion(region); err != nil {
		return geo.BoundingBox{}, err
	}
	switch r := region.(type) {
	case config.BBox:
		return r.BoundingBox, nil
	case config.CenterRadius:
		return geo.FromCenterRadius(r.Lat, r.Lon, r.RadiusKm), nil
	case config.City:
		return o.Geocode(ctx, r.Name)
	default:
		return geo.BoundingBox{}, core.Errorf(core.ErrConfig, "unsupported region type %T", region)
	}
}

type nominatimPlace struct {
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
}

// Geocode looks up the bounding box of a named place.
func (o *Overpass) Geocode(ctx context.Context, name string) (geo.BoundingBox, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if bbox, ok := o.geocodes.Get(key); ok {
		monitoring.RecordCacheHit("geocode")
		tracing.SetAttributes(ctx, tracing.CacheAttributes("geocode", true)...)
		return bbox, nil
	}
	monitoring.RecordCacheMiss("geocode")

	ctx, span := tracing.StartSpan(ctx, "provider.overpass.geocode",
		trace.WithAttributes(attribute.String(tracing.AttrRegion, name)),
	)
	defer span.End()

	u, err := url.Parse(o.nominatimURL + "/search")
	if err != nil {
		return geo.BoundingBox{}, core.NewError(core.ErrConfig, "invalid Nominatim URL").WithCause(err)
	}
	q := u.Query()
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	u.RawQuery = q.Encode()

	factory := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	do := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return osm.DoRequest(ctx, tracing.ServiceNominatim, "search", req)
	}
	resp, err := core.WithRetry(ctx, tracing.ServiceNominatim, factory, do, o.retry)
	if err != nil {
		span.RecordError(err)
		return geo.BoundingBox{}, err
	}
	defer resp.Body.Close()

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		err := core.NewError(core.ErrParse, "failed to decode Nominatim response").WithCause(err)
		span.RecordError(err)
		return geo.BoundingBox{}, err
	}
	if len(places) == 0 {
		err := core.Errorf(core.ErrGeographic, "Could not find city: %s", name).
			WithGuidance("Check the spelling or provide a bounding box instead")
		span.RecordError(err)
		return geo.BoundingBox{}, err
	}

	bbox, err := parseNominatimBBox(places[0].BoundingBox)
	if err != nil {
		span.RecordError(err)
		return geo.BoundingBox{}, err
	}
	o.geocodes.Add(key, bbox)
	monitoring.UpdateCacheSize("geocode", o.geocodes.Len())
	o.logger.Info("geocoded city", "city", name, "match", places[0].DisplayName, "bbox", bbox.String())
	return bbox, nil
}

// parseNominatimBBox reads Nominatim's [south, north, west, east] strings.
func parseNominatimBBox(raw []string) (geo.BoundingBox, error) {
	if len(raw) != 4 {
		return geo.BoundingBox{}, core.Errorf(core.ErrParse, "invalid bounding box format: %d values", len(raw))
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.BoundingBox{}, core.Errorf(core.ErrParse, "invalid bounding box value %q", s).WithCause(err)
		}
		v[i] = f
	}
	return geo.NewBoundingBox(v[0], v[2], v[1], v[3]), nil
}

// TestAvailability sends a tiny query with a single attempt.
func (o *Overpass) TestAvailability(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	retry := o.retry
	retry.MaxAttempts = 1
	_, err := o.post(ctx, "status", queries.AvailabilityQuery, retry)
	return err
}
