package osm

const (
	// NominatimBaseURL is the public geocoding endpoint
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	// OverpassBaseURL is the public Overpass interpreter endpoint
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent identifies requests, as required by the Nominatim usage policy
	DefaultUserAgent = "osmtiles/0.1.0"
)
