package osm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// Format identifies the encoding of raw OSM data
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatPBF  Format = "pbf"
)

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".osm", ".xml":
		return FormatXML
	case ".pbf":
		return FormatPBF
	default:
		return FormatJSON
	}
}

// Parse decodes raw data of the given format into elements.
func Parse(data []byte, format Format) ([]Element, error) {
	switch format {
	case FormatJSON:
		return ParseOverpassJSON(data)
	case FormatPBF:
		return DecodePBF(bytes.NewReader(data))
	case FormatXML:
		return nil, core.NewError(core.ErrParse, "XML parsing not implemented").
			WithGuidance("Request Overpass JSON output or use a .pbf extract")
	default:
		return nil, core.Errorf(core.ErrParse, "unsupported format %q", format)
	}
}

type overpassResponse struct {
	Elements *[]overpassElement `json:"elements"`
}

type overpassElement struct {
	ID       *int64          `json:"id"`
	Type     *string         `json:"type"`
	Lat      *float64        `json:"lat"`
	Lon      *float64        `json:"lon"`
	Tags     map[string]any  `json:"tags"`
	Geometry []overpassPoint `json:"geometry"`
}

type overpassPoint struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// ParseOverpassJSON decodes an Overpass API JSON response. Elements of
// unknown type and elements with neither geometry nor tags are skipped;
// structurally invalid elements fail the whole parse.
func ParseOverpassJSON(data []byte) ([]Element, error) {
	var resp overpassResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, core.NewError(core.ErrParse, "invalid JSON").WithCause(err)
	}
	if resp.Elements == nil {
		return nil, core.NewError(core.ErrParse, "no 'elements' array found in JSON")
	}

	elements := make([]Element, 0, len(*resp.Elements))
	for i, raw := range *resp.Elements {
		el, keep, err := raw.toElement()
		if err != nil {
			return nil, core.Errorf(core.ErrParse, "element %d: %s", i, err)
		}
		if keep {
			elements = append(elements, el)
		}
	}
	slog.Default().Debug("parsed overpass response",
		"component", "parser",
		"raw_elements", len(*resp.Elements),
		"elements", len(elements))
	return elements, nil
}

func (raw overpassElement) toElement() (Element, bool, error) {
	if raw.ID == nil {
		return Element{}, false, fmt.Errorf("missing 'id'")
	}
	if raw.Type == nil {
		return Element{}, false, fmt.Errorf("missing 'type'")
	}

	el := Element{ID: *raw.ID}
	switch ElementKind(*raw.Type) {
	case KindNode, KindWay, KindRelation:
		el.Kind = ElementKind(*raw.Type)
	default:
		return Element{}, false, nil
	}

	if len(raw.Tags) > 0 {
		el.Tags = make(map[string]string, len(raw.Tags))
		for k, v := range raw.Tags {
			if s, ok := v.(string); ok {
				el.Tags[k] = s
			}
		}
	}

	switch {
	case el.Kind == KindNode:
		if raw.Lat == nil {
			return Element{}, false, fmt.Errorf("node %d missing 'lat'", el.ID)
		}
		if raw.Lon == nil {
			return Element{}, false, fmt.Errorf("node %d missing 'lon'", el.ID)
		}
		el.Geometry = []LatLon{{Lat: *raw.Lat, Lon: *raw.Lon}}
	case raw.Geometry != nil:
		el.Geometry = make([]LatLon, 0, len(raw.Geometry))
		for _, p := range raw.Geometry {
			if p.Lat == nil {
				return Element{}, false, fmt.Errorf("%s %d geometry point missing 'lat'", el.Kind, el.ID)
			}
			if p.Lon == nil {
				return Element{}, false, fmt.Errorf("%s %d geometry point missing 'lon'", el.Kind, el.ID)
			}
			el.Geometry = append(el.Geometry, LatLon{Lat: *p.Lat, Lon: *p.Lon})
		}
	case raw.Lat != nil && raw.Lon != nil:
		el.Geometry = []LatLon{{Lat: *raw.Lat, Lon: *raw.Lon}}
	}

	if len(el.Geometry) == 0 && len(el.Tags) == 0 {
		return Element{}, false, nil
	}
	return el, true, nil
}

// CountElements returns the length of the top-level "elements" array, or
// false when data is not an Overpass JSON document.
func CountElements(data []byte) (int, bool) {
	var resp struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Elements == nil {
		return 0, false
	}
	return len(resp.Elements), true
}

// EncodeOverpassJSON writes elements in the Overpass JSON layout accepted by
// ParseOverpassJSON: nodes carry lat/lon, ways and relations a geometry list.
func EncodeOverpassJSON(elements []Element) ([]byte, error) {
	type encoded struct {
		Type     ElementKind       `json:"type"`
		ID       int64             `json:"id"`
		Lat      *float64          `json:"lat,omitempty"`
		Lon      *float64          `json:"lon,omitempty"`
		Tags     map[string]string `json:"tags,omitempty"`
		Geometry []LatLon          `json:"geometry,omitempty"`
	}
	out := struct {
		Elements []encoded `json:"elements"`
	}{Elements: make([]encoded, 0, len(elements))}

	for _, e := range elements {
		enc := encoded{Type: e.Kind, ID: e.ID, Tags: e.Tags}
		if e.Kind == KindNode && len(e.Geometry) > 0 {
			enc.Lat, enc.Lon = &e.Geometry[0].Lat, &e.Geometry[0].Lon
		} else {
			enc.Geometry = e.Geometry
		}
		out.Elements = append(out.Elements, enc)
	}
	return json.Marshal(out)
}
