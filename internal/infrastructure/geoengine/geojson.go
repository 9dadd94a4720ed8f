package geoengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
)

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type rawFeature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id"`
	Geometry   *rawGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// ring is a closed sequence of lon/lat positions.
type ring [][]float64

// decodeCollection reads a GeoJSON FeatureCollection, or a single Feature,
// and covers every polygon with coverer.
func decodeCollection(r io.Reader, coverer *s2.RegionCoverer) (*geo.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}

	var raws []rawFeature
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		var fc rawCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		raws = fc.Features
	case "feature":
		var f rawFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		raws = []rawFeature{f}
	default:
		return nil, fmt.Errorf("geojson: unsupported top-level type %q", head.Type)
	}

	out := &geo.FeatureCollection{Features: make([]geo.Feature, 0, len(raws))}
	for i, rf := range raws {
		f := geo.Feature{Properties: rf.Properties}
		if rf.ID != nil {
			f.ID = geo.PropertyKey(rf.ID)
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		if rf.Geometry != nil {
			g, err := coverGeometry(rf.Geometry, coverer)
			if err != nil {
				return nil, fmt.Errorf("geojson: feature %d: %w", i, err)
			}
			f.Geometry = g
		}
		out.Features = append(out.Features, f)
	}
	return out, nil
}

func coverGeometry(g *rawGeometry, coverer *s2.RegionCoverer) (*Geometry, error) {
	var polygons [][]ring
	switch strings.ToLower(g.Type) {
	case "polygon":
		var rings []ring
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, err
		}
		polygons = append(polygons, rings)
	case "multipolygon":
		if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	var parts []s2.CellUnion
	for _, rings := range polygons {
		cu, err := coverPolygon(rings, coverer)
		if err != nil {
			return nil, err
		}
		parts = append(parts, cu)
	}
	return newGeometry(s2.CellUnionFromUnion(parts...)), nil
}

// coverPolygon covers the outer ring and removes the holes. Every ring is
// normalized to enclose at most half the sphere, so winding order does not
// matter.
func coverPolygon(rings []ring, coverer *s2.RegionCoverer) (s2.CellUnion, error) {
	if len(rings) == 0 {
		return nil, nil
	}
	outer, err := loopFromRing(rings[0])
	if err != nil {
		return nil, err
	}
	if outer == nil {
		return nil, nil
	}
	cu := coverer.Covering(outer)
	for _, hole := range rings[1:] {
		l, err := loopFromRing(hole)
		if err != nil {
			return nil, err
		}
		if l == nil {
			continue
		}
		cu = s2.CellUnionFromDifference(cu, coverer.InteriorCovering(l))
	}
	return cu, nil
}

func loopFromRing(r ring) (*s2.Loop, error) {
	pts := make([]s2.Point, 0, len(r))
	for _, pos := range r {
		if len(pos) < 2 {
			return nil, fmt.Errorf("position has %d coordinates", len(pos))
		}
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(pos[1], pos[0]))
		if n := len(pts); n > 0 && pts[n-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < 3 {
		return nil, nil
	}
	l := s2.LoopFromPoints(pts)
	l.Normalize()
	return l, nil
}

// encodeRect renders a lon/lat box as a GeoJSON polygon feature. Used to
// seed data directories and tests.
func encodeRect(minLon, minLat, maxLon, maxLat float64, props map[string]any) rawFeature {
	coords := [][][]float64{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
	raw, _ := json.Marshal(coords)
	return rawFeature{Type: "Feature", Geometry: &rawGeometry{Type: "Polygon", Coordinates: raw}, Properties: props}
}

// RectCollection renders boxes as a GeoJSON FeatureCollection.
func RectCollection(boxes ...RectFeature) []byte {
	fc := rawCollection{Type: "FeatureCollection"}
	for _, b := range boxes {
		f := encodeRect(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, b.Properties)
		if b.ID != "" {
			f.ID = b.ID
		}
		fc.Features = append(fc.Features, f)
	}
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(fc)
	return buf.Bytes()
}

// RectFeature is a lon/lat box with attributes.
type RectFeature struct {
	ID                             string
	MinLon, MinLat, MaxLon, MaxLat float64
	Properties                     map[string]any
}

//Personal.AI order the ending
