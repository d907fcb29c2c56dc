package geo

import (
	"strconv"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// ParseBoundingBox parses "south,west,north,east".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, core.Errorf(core.ErrConfig, "bounding box %q must have four comma-separated values", s).
			WithGuidance("Use south,west,north,east, e.g. 52.49,13.39,52.51,13.41")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, core.Errorf(core.ErrConfig, "invalid bounding box value %q", p).WithCause(err)
		}
		v[i] = f
	}
	b := NewBoundingBox(v[0], v[1], v[2], v[3])
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}
