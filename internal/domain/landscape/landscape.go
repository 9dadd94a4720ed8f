// Package landscape holds the vocabulary of the input layers: landscape type
// keys, the attribute names each reference layer is read through, and the
// per-variant rules for tagging regions and admitting protected areas.
package landscape

import (
	"fmt"
	"strings"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
)

// Landscape type keys. Each is computed and exported independently.
const (
	KeySpecies     = "scl_species"
	KeyRestoration = "scl_restoration"
	KeySurvey      = "scl_survey"
	KeyFragment    = "scl_fragment"
)

// Input keys of the reference layers.
const (
	InputCountries       = "countries"
	InputLeuser          = "leuser"
	InputEcoregions      = "ecoregions"
	InputPAs             = "pas"
	InputKBAs            = "kbas"
	InputStates          = "states"
	InputHistoricalRange = "historical_range"
)

// Attribute names.
const (
	FieldISO         = "iso_alpha2"
	FieldCountryName = "COUNTRY_NA"

	FieldStateCode = "ADM1_CODE"
	FieldStateName = "ADM1_NAME"

	FieldBiomeID   = "BIOME_NUM"
	FieldBiomeName = "BIOME_NAME"

	FieldPAID         = "WDPAID"
	FieldPAName       = "NAME"
	FieldPAStatus     = "STATUS"
	FieldPAStatusYear = "STATUS_YR"

	FieldKBAID   = "SitRecID"
	FieldKBAName = "IntName"

	FieldLandscapeID    = "dissolved_poly_id"
	FieldLandscapeName  = "name"
	FieldLandscapeClass = "class"
)

// StatusProposed marks protected areas that are not yet designated.
const StatusProposed = "Proposed"

var knownKeys = map[string]bool{
	KeySpecies:     true,
	KeyRestoration: true,
	KeySurvey:      true,
	KeyFragment:    true,
}

// ValidateKey rejects anything that is not a landscape type key.
func ValidateKey(key string) error {
	if !knownKeys[key] {
		return fmt.Errorf("unknown landscape key %q", key)
	}
	return nil
}

// CarriesNameAndClass reports whether records of this landscape type are
// tagged with the landscape's name and class.
func CarriesNameAndClass(key string) bool {
	return key == KeySpecies
}

// Landscape is one polygon of a landscape collection.
type Landscape struct {
	// Index is the position in the source collection. Together with the
	// source version it identifies the landscape within a run.
	Index      int
	ID         string
	Name       string
	Class      string
	Geometry   geo.Geometry
	Properties map[string]any
}

// FromFeature reads a Landscape from a collection element.
func FromFeature(index int, f geo.Feature) Landscape {
	ls := Landscape{Index: index, Geometry: f.Geometry, Properties: f.Properties}
	ls.ID, _ = f.StringProperty(FieldLandscapeID)
	if ls.ID == "" {
		ls.ID = f.ID
	}
	ls.Name, _ = f.StringProperty(FieldLandscapeName)
	ls.Class, _ = f.StringProperty(FieldLandscapeClass)
	return ls
}

// ISOForName returns the alpha-2 code for a boundary-layer country name.
func ISOForName(name string) (string, bool) {
	code, ok := isoAlpha2ByName[strings.TrimSpace(name)]
	return code, ok
}

// Rules are the variant-specific choices made while aggregating.
type Rules struct {
	// ISOFromName derives the region code from the country name instead of
	// reading it from the region's own attributes.
	ISOFromName bool
	// FilterPAStatus drops proposed protected areas and those designated
	// after the task year.
	FilterPAStatus bool
}

// RulesForVariant returns the rules of the named pipeline variant. Anything
// other than "legacy" gets the current rules.
func RulesForVariant(variant string) Rules {
	if variant == "legacy" {
		return Rules{ISOFromName: true}
	}
	return Rules{FilterPAStatus: true}
}

// RegionCode returns the two-letter code a region record is tagged with.
// Regions whose name is not in the table fall back to their own code
// attribute, which is how merged pseudo-countries are tagged.
func (r Rules) RegionCode(f geo.Feature) string {
	if r.ISOFromName {
		if name, ok := f.StringProperty(FieldCountryName); ok {
			if code, ok := ISOForName(name); ok {
				return code
			}
		}
	}
	code, _ := f.StringProperty(FieldISO)
	return code
}

// AdmitPA reports whether a protected area counts towards protection in the
// given task year. Features without a status year are excluded.
func (r Rules) AdmitPA(f geo.Feature, taskYear int) bool {
	if !r.FilterPAStatus {
		return true
	}
	if status, _ := f.StringProperty(FieldPAStatus); status == StatusProposed {
		return false
	}
	year, ok := f.IntProperty(FieldPAStatusYear)
	if !ok {
		return false
	}
	return year <= int64(taskYear)
}

// FilterPAs applies AdmitPA to every feature of fc.
func (r Rules) FilterPAs(fc *geo.FeatureCollection, taskYear int) *geo.FeatureCollection {
	if !r.FilterPAStatus {
		return fc
	}
	return fc.Filter(func(f geo.Feature) bool { return r.AdmitPA(f, taskYear) })
}

//Personal.AI order the ending
