package osm

import (
	"time"

	"github.com/NERVsystems/osmtiles/pkg/geo"
)

// Data is a fetched, still encoded OSM payload together with the box it
// was fetched for.
type Data struct {
	Raw         []byte          `json:"-"`
	Format      Format          `json:"format"`
	BoundingBox geo.BoundingBox `json:"bounding_box"`
	Metadata    Metadata        `json:"metadata"`
}

// Metadata describes where and how Data was obtained
type Metadata struct {
	Timestamp        time.Time         `json:"timestamp"`
	Source           string            `json:"source"`
	ProviderType     string            `json:"provider_type"`
	ElementCount     *int              `json:"element_count,omitempty"`
	ProcessingTimeMs *int64            `json:"processing_time_ms,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// NewMetadata stamps metadata with the current time
func NewMetadata(source, providerType string) Metadata {
	return Metadata{
		Timestamp:    time.Now().UTC(),
		Source:       source,
		ProviderType: providerType,
		Extra:        make(map[string]string),
	}
}

// Elements parses the payload
func (d *Data) Elements() ([]Element, error) {
	return Parse(d.Raw, d.Format)
}
