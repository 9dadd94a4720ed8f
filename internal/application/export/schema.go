package export

import (
	"fmt"
)

// Granularity is the level a table is flattened to.
type Granularity string

const (
	GranularityCountry   Granularity = "country"
	GranularityState     Granularity = "state"
	GranularityLandscape Granularity = "landscape"
)

// ParseGranularity validates s.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityCountry, GranularityState, GranularityLandscape:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// Selector names a field of a record.
type Selector string

const (
	SelLandscapeID    Selector = "landscape.id"
	SelLandscapeName  Selector = "landscape.name"
	SelLandscapeClass Selector = "landscape.class"
	SelTotalArea      Selector = "landscape.total_area"
	SelCountry        Selector = "country.code"
	SelCountryArea    Selector = "country.area"
	SelCountries      Selector = "country.codes"
	SelState          Selector = "state.code"
	SelStateName      Selector = "state.name"
	SelStateArea      Selector = "state.area"
	SelAreas          Selector = "areas"
)

// selectorsByGranularity lists what each record type can provide.
var selectorsByGranularity = map[Granularity]map[Selector]bool{
	GranularityCountry: {
		SelLandscapeID: true, SelLandscapeName: true, SelLandscapeClass: true, SelTotalArea: true,
		SelCountry: true, SelCountryArea: true, SelAreas: true,
	},
	GranularityState: {
		SelLandscapeID: true, SelLandscapeName: true, SelLandscapeClass: true, SelTotalArea: true,
		SelCountry: true, SelState: true, SelStateName: true, SelStateArea: true, SelAreas: true,
	},
	GranularityLandscape: {
		SelLandscapeID: true, SelLandscapeName: true, SelLandscapeClass: true, SelTotalArea: true,
		SelCountries: true,
	},
}

// Column maps a selector to an output property.
type Column struct {
	Selector Selector
	Key      string
	// OmitEmpty leaves the property out when the value is the zero string.
	OmitEmpty bool
}

// Schema is the property layout of one granularity.
type Schema struct {
	Granularity Granularity
	Columns     []Column
	// Carry names attributes copied from the intersecting feature and from
	// the landscape. The landscape's value wins when both have one.
	Carry []string
}

// DefaultSchema returns the layout downstream consumers expect.
func DefaultSchema(g Granularity) Schema {
	nameClass := []Column{
		{Selector: SelLandscapeName, Key: "lsname", OmitEmpty: true},
		{Selector: SelLandscapeClass, Key: "lsclass", OmitEmpty: true},
	}
	switch g {
	case GranularityState:
		return Schema{Granularity: g, Columns: append([]Column{
			{Selector: SelCountry, Key: "lscountry"},
			{Selector: SelState, Key: "lsstate"},
			{Selector: SelStateName, Key: "lsstatename"},
			{Selector: SelTotalArea, Key: "ls_total_area"},
			{Selector: SelStateArea, Key: "lsstate_area"},
			{Selector: SelAreas, Key: "areas"},
		}, nameClass...)}
	case GranularityLandscape:
		return Schema{Granularity: g, Columns: append([]Column{
			{Selector: SelLandscapeID, Key: "lsid"},
			{Selector: SelTotalArea, Key: "ls_total_area"},
			{Selector: SelCountries, Key: "lscountries"},
		}, nameClass...)}
	default:
		return Schema{Granularity: GranularityCountry, Columns: append([]Column{
			{Selector: SelCountry, Key: "lscountry"},
			{Selector: SelTotalArea, Key: "ls_total_area"},
			{Selector: SelCountryArea, Key: "lscountry_area"},
			{Selector: SelAreas, Key: "areas"},
		}, nameClass...)}
	}
}

// Validate checks every selector is available at the schema's granularity
// and that no output key is used twice.
func (s Schema) Validate() error {
	allowed, ok := selectorsByGranularity[s.Granularity]
	if !ok {
		return fmt.Errorf("schema: unknown granularity %q", s.Granularity)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s: no columns", s.Granularity)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !allowed[c.Selector] {
			return fmt.Errorf("schema %s: selector %q is not available", s.Granularity, c.Selector)
		}
		if c.Key == "" {
			return fmt.Errorf("schema %s: selector %q has no output key", s.Granularity, c.Selector)
		}
		if seen[c.Key] {
			return fmt.Errorf("schema %s: duplicate output key %q", s.Granularity, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

// record is implemented by the three record types.
type record interface {
	value(sel Selector) any
	landscapeProperties() map[string]any
	featureProperties() map[string]any
}

// project renders rec through s. Carried attributes go in first, landscape
// over feature, and the schema columns are written last.
func (s Schema) project(rec record) map[string]any {
	out := make(map[string]any, len(s.Columns)+len(s.Carry))
	for _, key := range s.Carry {
		if v, ok := rec.featureProperties()[key]; ok && v != nil {
			out[key] = v
		}
		if v, ok := rec.landscapeProperties()[key]; ok && v != nil {
			out[key] = v
		}
	}
	for _, c := range s.Columns {
		v := rec.value(c.Selector)
		if c.OmitEmpty {
			if str, ok := v.(string); ok && str == "" {
				continue
			}
		}
		out[c.Key] = v
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Selector resolution
// ─────────────────────────────────────────────────────────────────────────────

func (l LandscapeRef) value(sel Selector) (any, bool) {
	switch sel {
	case SelLandscapeID:
		return l.ID, true
	case SelLandscapeName:
		return l.Name, true
	case SelLandscapeClass:
		return l.Class, true
	case SelTotalArea:
		return l.TotalArea, true
	}
	return nil, false
}

func areasValue(entries []BiomeEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.properties())
	}
	return out
}

func (r CountryRecord) value(sel Selector) any {
	if v, ok := r.Landscape.value(sel); ok {
		return v
	}
	switch sel {
	case SelCountry:
		return r.Country
	case SelCountryArea:
		return r.CountryArea
	case SelAreas:
		return areasValue(r.Areas)
	}
	return nil
}

func (r CountryRecord) landscapeProperties() map[string]any { return r.Landscape.Properties }
func (r CountryRecord) featureProperties() map[string]any   { return r.RegionProperties }

func (r StateRecord) value(sel Selector) any {
	if v, ok := r.Landscape.value(sel); ok {
		return v
	}
	switch sel {
	case SelCountry:
		return r.Country
	case SelState:
		return r.State
	case SelStateName:
		return r.StateName
	case SelStateArea:
		return r.StateArea
	case SelAreas:
		return areasValue(r.Areas)
	}
	return nil
}

func (r StateRecord) landscapeProperties() map[string]any { return r.Landscape.Properties }
func (r StateRecord) featureProperties() map[string]any   { return r.StateProperties }

func (r LandscapeRecord) value(sel Selector) any {
	if v, ok := r.Landscape.value(sel); ok {
		return v
	}
	if sel == SelCountries {
		return append([]string{}, r.Countries...)
	}
	return nil
}

func (r LandscapeRecord) landscapeProperties() map[string]any { return r.Landscape.Properties }
func (r LandscapeRecord) featureProperties() map[string]any   { return nil }

//Personal.AI order the ending
