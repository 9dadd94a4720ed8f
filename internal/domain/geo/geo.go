// Package geo defines the geometry vocabulary shared by the statistics
// pipeline: opaque geometries and images owned by an Engine, and in-memory
// features carrying their attribute maps.
package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorMargin is the maximum positional error, in meters, tolerated by
// intersection, union, difference and area computations.
type ErrorMargin float64

// Geometry is an engine-owned shape. Callers never inspect it; they pass it
// back to the Engine that produced it.
type Geometry interface {
	IsEmpty() bool
}

// Image is an engine-owned raster.
type Image interface {
	// Bands lists the band names a reduction returns values for.
	Bands() []string
}

// Feature is one element of a FeatureCollection.
type Feature struct {
	ID         string
	Geometry   Geometry
	Properties map[string]any
}

// Get returns the raw property value and whether it is present and non-nil.
func (f Feature) Get(key string) (any, bool) {
	if f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// StringProperty returns the property as a string. Numbers are formatted without a
// trailing ".0".
func (f Feature) StringProperty(key string) (string, bool) {
	v, ok := f.Get(key)
	if !ok {
		return "", false
	}
	return PropertyKey(v), true
}

// IntProperty returns the property as an int64.
func (f Feature) IntProperty(key string) (int64, bool) {
	v, ok := f.Get(key)
	if !ok {
		return 0, false
	}
	n, err := ParseID(PropertyKey(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// PropertyKey renders a property value the way histogram keys are rendered.
func PropertyKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ParseID parses a histogram key into an integer identifier. Keys such as
// "555.0" are accepted.
func ParseID(key string) (int64, error) {
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return 0, fmt.Errorf("geo: %q is not a numeric id", key)
	}
	return int64(f), nil
}

// FeatureCollection is an ordered list of features loaded from one dataset.
type FeatureCollection struct {
	Features []Feature
}

// Len returns the number of features.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Filter returns a new collection holding the features for which keep
// returns true, in their original order.
func (fc *FeatureCollection) Filter(keep func(Feature) bool) *FeatureCollection {
	out := &FeatureCollection{}
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Equals returns a predicate matching features whose property renders to key.
func Equals(field, key string) func(Feature) bool {
	return func(f Feature) bool {
		s, ok := f.StringProperty(field)
		return ok && s == key
	}
}

// Merge returns a collection holding the features of every input in order.
func Merge(fcs ...*FeatureCollection) *FeatureCollection {
	out := &FeatureCollection{}
	for _, fc := range fcs {
		if fc == nil {
			continue
		}
		out.Features = append(out.Features, fc.Features...)
	}
	return out
}

// Geometries returns the geometry of every feature.
func (fc *FeatureCollection) Geometries() []Geometry {
	if fc == nil {
		return nil
	}
	out := make([]Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, f.Geometry)
	}
	return out
}

//Personal.AI order the ending
