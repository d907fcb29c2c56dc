// Package queries builds Overpass QL requests for tile grid generation.
package queries

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/geo"
)

// Tag selects elements by key, or by key and value when Value is set.
type Tag struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value,omitempty" mapstructure:"value"`
}

// Filter renders the tag as an Overpass filter: ["k"] or ["k"="v"].
func (t Tag) Filter() string {
	if t.Value == "" {
		return fmt.Sprintf("[%q]", t.Key)
	}
	return fmt.Sprintf("[%q=%q]", t.Key, t.Value)
}

// Keys whose features are also mapped as relations or as standalone nodes.
var (
	relationKeys = map[string]bool{
		"building": true, "natural": true, "landuse": true,
		"leisure": true, "boundary": true, "waterway": true,
	}
	nodeKeys = map[string]bool{"amenity": true, "tourism": true, "power": true}
)

// DefaultTimeout is the server-side timeout in seconds
const DefaultTimeout = 30

// OverpassBuilder assembles a union query over one bounding box that
// returns full geometry.
type OverpassBuilder struct {
	timeout int
	bbox    geo.BoundingBox
	lines   []string
}

// NewOverpassBuilder creates a builder with the default timeout.
func NewOverpassBuilder(bbox geo.BoundingBox) *OverpassBuilder {
	return &OverpassBuilder{timeout: DefaultTimeout, bbox: bbox}
}

// WithTimeout sets the [timeout:N] setting.
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithTag adds the statements matching tag: always a way, plus a relation
// or node statement for keys that commonly appear that way.
func (b *OverpassBuilder) WithTag(tag Tag) *OverpassBuilder {
	filter := tag.Filter()
	bbox := b.bbox.String()
	b.lines = append(b.lines, fmt.Sprintf("  way%s(%s);", filter, bbox))
	if relationKeys[tag.Key] {
		b.lines = append(b.lines, fmt.Sprintf("  relation%s(%s);", filter, bbox))
	}
	if nodeKeys[tag.Key] {
		b.lines = append(b.lines, fmt.Sprintf("  node%s(%s);", filter, bbox))
	}
	return b
}

// WithTags adds every tag in order.
func (b *OverpassBuilder) WithTags(tags []Tag) *OverpassBuilder {
	for _, t := range tags {
		b.WithTag(t)
	}
	return b
}

// Build returns the complete query.
func (b *OverpassBuilder) Build() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n(\n", b.timeout)
	for _, l := range b.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString(");\nout geom;")
	return sb.String()
}

// AvailabilityQuery is a tiny query used to probe the interpreter.
const AvailabilityQuery = "[out:json][timeout:5];\nnode(0,0,0.001,0.001);\nout;"
