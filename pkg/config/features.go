package config

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/osm/queries"
)

// Feature is a named group of OSM tag queries.
type Feature string

const (
	Roads       Feature = "roads"
	Highways    Feature = "highways"
	Footpaths   Feature = "footpaths"
	Railways    Feature = "railways"
	Buildings   Feature = "buildings"
	Residential Feature = "residential"
	Commercial  Feature = "commercial"
	Industrial  Feature = "industrial"
	Water       Feature = "water"
	Rivers      Feature = "rivers"
	Lakes       Feature = "lakes"
	Forests     Feature = "forests"
	Parks       Feature = "parks"
	Grassland   Feature = "grassland"
	Parking     Feature = "parking"
	Amenities   Feature = "amenities"
	Tourism     Feature = "tourism"
	PowerLines  Feature = "power_lines"
	Boundaries  Feature = "boundaries"
	Landuse     Feature = "landuse"
)

type featureInfo struct {
	description string
	queries     []queries.Tag
}

func tags(key string, values ...string) []queries.Tag {
	if len(values) == 0 {
		return []queries.Tag{{Key: key}}
	}
	out := make([]queries.Tag, len(values))
	for i, v := range values {
		out[i] = queries.Tag{Key: key, Value: v}
	}
	return out
}

var catalogue = map[Feature]featureInfo{
	Roads: {"Local roads and streets",
		tags("highway", "primary", "secondary", "tertiary", "residential", "unclassified")},
	Highways:  {"Major highways and motorways", tags("highway", "motorway", "trunk", "primary")},
	Footpaths: {"Walking paths and pedestrian areas", tags("highway", "footway", "path", "pedestrian", "steps")},
	Railways:  {"Railway lines and stations", tags("railway")},
	Buildings: {"All building structures", tags("building")},
	Residential: {"Residential buildings and areas",
		append(tags("building", "residential"), tags("landuse", "residential")...)},
	Commercial: {"Commercial buildings and retail areas",
		append(tags("building", "commercial", "retail"), tags("landuse", "commercial")...)},
	Industrial: {"Industrial buildings and zones",
		append(tags("building", "industrial"), tags("landuse", "industrial")...)},
	Water:     {"All water features", append(tags("natural", "water"), tags("waterway")...)},
	Rivers:    {"Rivers and streams", tags("waterway", "river", "stream")},
	Lakes:     {"Lakes and ponds", append(tags("natural", "water"), tags("water", "lake")...)},
	Forests:   {"Forests and wooded areas", append(tags("natural", "wood"), tags("landuse", "forest")...)},
	Parks:     {"Parks and recreational areas", tags("leisure", "park", "garden")},
	Grassland: {"Grass and meadow areas", append(tags("landuse", "grass"), tags("natural", "grassland")...)},
	Parking:   {"Parking areas and lots", append(tags("amenity", "parking"), tags("landuse", "parking")...)},
	Amenities: {"Public amenities and services", tags("amenity")},
	Tourism:   {"Tourist attractions and facilities", tags("tourism")},
	PowerLines: {"Power lines and electrical infrastructure",
		tags("power", "line", "tower")},
	Boundaries: {"Administrative and other boundaries", tags("boundary")},
	Landuse:    {"General land use classifications", tags("landuse")},
}

// AllFeatures returns every known feature sorted by name.
func AllFeatures() []Feature {
	return slices.Sorted(maps.Keys(catalogue))
}

// ParseFeature accepts a feature name case-insensitively; "powerlines" and
// "power-lines" are accepted for PowerLines.
func ParseFeature(name string) (Feature, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	if n == "powerlines" {
		n = string(PowerLines)
	}
	f := Feature(n)
	if _, ok := catalogue[f]; !ok {
		return "", core.Errorf(core.ErrConfig, "unknown feature %q", name).
			WithGuidance("Use one of: " + strings.Join(featureNames(), ", "))
	}
	return f, nil
}

func featureNames() []string {
	all := AllFeatures()
	names := make([]string, len(all))
	for i, f := range all {
		names[i] = string(f)
	}
	return names
}

// Queries returns the tag queries selecting this feature.
func (f Feature) Queries() []queries.Tag {
	return slices.Clone(catalogue[f].queries)
}

// Description returns a short human readable description.
func (f Feature) Description() string {
	return catalogue[f].description
}

// FeatureSet is the set of features plus free-form tag queries to fetch.
type FeatureSet struct {
	features map[Feature]struct{}
	custom   []queries.Tag
}

// NewFeatureSet creates a set holding the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	s := FeatureSet{features: make(map[Feature]struct{}, len(features))}
	for _, f := range features {
		s.features[f] = struct{}{}
	}
	return s
}

// Urban is the default set: roads, buildings, parks and water.
func Urban() FeatureSet { return NewFeatureSet(Roads, Buildings, Parks, Water) }

// Transportation selects road, rail, footpath and parking features.
func Transportation() FeatureSet {
	return NewFeatureSet(Roads, Highways, Railways, Footpaths, Parking)
}

// Natural selects water bodies and vegetation.
func Natural() FeatureSet {
	return NewFeatureSet(Water, Rivers, Lakes, Forests, Parks, Grassland)
}

// Comprehensive selects most features.
func Comprehensive() FeatureSet {
	return NewFeatureSet(Roads, Highways, Buildings, Residential, Commercial,
		Water, Parks, Forests, Railways, Amenities)
}

// Presets maps preset names to their constructors.
var Presets = map[string]func() FeatureSet{
	"urban":          Urban,
	"transportation": Transportation,
	"natural":        Natural,
	"comprehensive":  Comprehensive,
}

// PresetFeatureSet looks up a preset by name.
func PresetFeatureSet(name string) (FeatureSet, error) {
	p, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FeatureSet{}, core.Errorf(core.ErrConfig, "unknown feature preset %q", name).
			WithGuidance("Use one of: " + strings.Join(slices.Sorted(maps.Keys(Presets)), ", "))
	}
	return p(), nil
}

// With returns a copy of s that also holds features.
func (s FeatureSet) With(features ...Feature) FeatureSet {
	out := s.clone()
	for _, f := range features {
		out.features[f] = struct{}{}
	}
	return out
}

// Without returns a copy of s without f.
func (s FeatureSet) Without(f Feature) FeatureSet {
	out := s.clone()
	delete(out.features, f)
	return out
}

// WithCustom returns a copy of s with additional tag queries.
func (s FeatureSet) WithCustom(tags ...queries.Tag) FeatureSet {
	out := s.clone()
	out.custom = append(out.custom, tags...)
	return out
}

// Union returns the features and custom queries of both sets.
func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	return s.With(other.Features()...).WithCustom(other.custom...)
}

func (s FeatureSet) clone() FeatureSet {
	out := FeatureSet{features: maps.Clone(s.features), custom: slices.Clone(s.custom)}
	if out.features == nil {
		out.features = make(map[Feature]struct{})
	}
	return out
}

// Contains reports whether f is in the set.
func (s FeatureSet) Contains(f Feature) bool {
	_, ok := s.features[f]
	return ok
}

// Features returns the member features sorted by name.
func (s FeatureSet) Features() []Feature {
	return slices.Sorted(maps.Keys(s.features))
}

// Custom returns the free-form tag queries.
func (s FeatureSet) Custom() []queries.Tag {
	return slices.Clone(s.custom)
}

// IsEmpty reports whether the set would select nothing.
func (s FeatureSet) IsEmpty() bool {
	return len(s.features) == 0 && len(s.custom) == 0
}

// Queries returns the union of every feature's queries and the custom
// queries, sorted by key then value (key-only first) without duplicates.
func (s FeatureSet) Queries() []queries.Tag {
	var all []queries.Tag
	for f := range s.features {
		all = append(all, catalogue[f].queries...)
	}
	all = append(all, s.custom...)
	slices.SortFunc(all, func(a, b queries.Tag) int {
		return cmp.Or(cmp.Compare(a.Key, b.Key), cmp.Compare(a.Value, b.Value))
	})
	return slices.Compact(all)
}
