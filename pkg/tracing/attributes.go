package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// Grid generation
	AttrGridWidth         = "grid.width"
	AttrGridHeight        = "grid.height"
	AttrGridResolution    = "grid.resolution"
	AttrElementsProcessed = "grid.elements_processed"
	AttrTilesPopulated    = "grid.tiles_populated"

	// Providers and external services
	AttrProviderType     = "osm.provider.type"
	AttrServiceName      = "osm.service.name"
	AttrRegion           = "osm.region"
	AttrAreaKm2          = "osm.area_km2"
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// Cache
	AttrCacheType = "osm.cache.type"
	AttrCacheHit  = "osm.cache.hit"

	// HTTP
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPSessionID  = "http.session_id"

	// MCP tools
	AttrMCPToolName   = "mcp.tool.name"
	AttrMCPToolStatus = "mcp.tool.status"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Service names
const (
	ServiceNominatim = "nominatim"
	ServiceOverpass  = "overpass"
)

// GridAttributes describes a generated grid
func GridAttributes(width, height, elements, populated int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGridWidth, width),
		attribute.Int(AttrGridHeight, height),
		attribute.Int(AttrElementsProcessed, elements),
		attribute.Int(AttrTilesPopulated, populated),
	}
}

// CacheAttributes describes a cache lookup
func CacheAttributes(cacheType string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
	}
}
