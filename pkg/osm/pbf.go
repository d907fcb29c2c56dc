package osm

import (
	"errors"
	"io"
	"log/slog"
	"runtime"

	"github.com/qedus/osmpbf"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// DecodePBF reads an OSM PBF extract. Way geometry is resolved from the
// node table, which relies on the standard ordering of nodes before ways.
// Untagged nodes only serve as way vertices and are not returned.
func DecodePBF(r io.Reader) ([]Element, error) {
	decoder := osmpbf.NewDecoder(r)
	decoder.SetBufferSize(osmpbf.MaxBlobSize)
	if err := decoder.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, core.NewError(core.ErrParse, "invalid PBF data").WithCause(err)
	}

	nodes := make(map[int64]LatLon)
	var elements []Element
	var missingRefs int

	for {
		obj, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewError(core.ErrParse, "decoding PBF data").WithCause(err)
		}

		switch v := obj.(type) {
		case *osmpbf.Node:
			p := LatLon{Lat: v.Lat, Lon: v.Lon}
			nodes[v.ID] = p
			if len(v.Tags) > 0 {
				elements = append(elements, Element{ID: v.ID, Kind: KindNode, Tags: v.Tags, Geometry: []LatLon{p}})
			}
		case *osmpbf.Way:
			geometry := make([]LatLon, 0, len(v.NodeIDs))
			for _, id := range v.NodeIDs {
				p, ok := nodes[id]
				if !ok {
					missingRefs++
					continue
				}
				geometry = append(geometry, p)
			}
			if len(geometry) == 0 && len(v.Tags) == 0 {
				continue
			}
			elements = append(elements, Element{ID: v.ID, Kind: KindWay, Tags: v.Tags, Geometry: geometry})
		case *osmpbf.Relation:
			if len(v.Tags) > 0 {
				elements = append(elements, Element{ID: v.ID, Kind: KindRelation, Tags: v.Tags})
			}
		}
	}

	slog.Default().Debug("decoded PBF data",
		"component", "parser",
		"nodes", len(nodes),
		"elements", len(elements),
		"missing_refs", missingRefs)
	return elements, nil
}
