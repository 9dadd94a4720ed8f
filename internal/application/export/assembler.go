package export

import (
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Table is an exportable list of flat property rows.
type Table struct {
	Rows []map[string]any
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Assembler turns aggregation trees into tables. It performs no arithmetic:
// every area it emits was rounded by the stats package.
type Assembler struct {
	schemas map[Granularity]Schema
}

// NewAssembler validates the given schemas and falls back to DefaultSchema
// for every granularity not overridden.
func NewAssembler(overrides ...Schema) (*Assembler, error) {
	a := &Assembler{schemas: map[Granularity]Schema{
		GranularityCountry:   DefaultSchema(GranularityCountry),
		GranularityState:     DefaultSchema(GranularityState),
		GranularityLandscape: DefaultSchema(GranularityLandscape),
	}}
	for _, s := range overrides {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid export schema")
		}
		a.schemas[s.Granularity] = s
	}
	return a, nil
}

// Schema returns the schema used for g.
func (a *Assembler) Schema(g Granularity) Schema { return a.schemas[g] }

func landscapeRef(key string, ls stats.LandscapeStats, withNameClass bool) LandscapeRef {
	ref := LandscapeRef{
		Index:      ls.Landscape.Index,
		ID:         ls.Landscape.ID,
		TotalArea:  ls.TotalArea,
		Properties: ls.Landscape.Properties,
	}
	if withNameClass || landscape.CarriesNameAndClass(key) {
		ref.Name, ref.Class = ls.Landscape.Name, ls.Landscape.Class
	}
	return ref
}

// Countries flattens tree into one record per landscape × region.
func Countries(key string, tree []stats.LandscapeStats) []CountryRecord {
	var out []CountryRecord
	for _, ls := range tree {
		ref := landscapeRef(key, ls, false)
		for _, r := range ls.Regions {
			out = append(out, CountryRecord{
				Landscape:        ref,
				Country:          r.Code,
				CountryArea:      r.Area,
				Areas:            biomeEntries(r.Biomes),
				RegionProperties: r.Feature.Properties,
			})
		}
	}
	return out
}

// States flattens tree into one record per landscape × state.
func States(key string, tree []stats.LandscapeStats) []StateRecord {
	var out []StateRecord
	for _, ls := range tree {
		ref := landscapeRef(key, ls, false)
		for _, r := range ls.Regions {
			for _, s := range r.States {
				out = append(out, StateRecord{
					Landscape:       ref,
					Country:         r.Code,
					State:           s.Code,
					StateName:       s.Name,
					StateArea:       s.Area,
					Areas:           biomeEntries(s.Biomes),
					StateProperties: s.Feature.Properties,
				})
			}
		}
	}
	return out
}

// Landscapes flattens tree into one record per landscape.
func Landscapes(key string, tree []stats.LandscapeStats) []LandscapeRecord {
	out := make([]LandscapeRecord, 0, len(tree))
	for _, ls := range tree {
		rec := LandscapeRecord{Landscape: landscapeRef(key, ls, true), Countries: []string{}}
		seen := map[string]bool{}
		for _, r := range ls.Regions {
			if r.Code != "" && !seen[r.Code] {
				seen[r.Code] = true
				rec.Countries = append(rec.Countries, r.Code)
			}
		}
		out = append(out, rec)
	}
	return out
}

// Table projects tree at granularity g for the landscape type key.
func (a *Assembler) Table(g Granularity, key string, tree []stats.LandscapeStats) (Table, error) {
	schema, ok := a.schemas[g]
	if !ok {
		return Table{}, errors.InvalidParam("unknown granularity " + string(g))
	}
	t := Table{Rows: []map[string]any{}}
	switch g {
	case GranularityCountry:
		for _, r := range Countries(key, tree) {
			t.Rows = append(t.Rows, schema.project(r))
		}
	case GranularityState:
		for _, r := range States(key, tree) {
			t.Rows = append(t.Rows, schema.project(r))
		}
	case GranularityLandscape:
		for _, r := range Landscapes(key, tree) {
			t.Rows = append(t.Rows, schema.project(r))
		}
	}
	return t, nil
}

// HistoricalRangeTable lists the area of the historical range per country.
func HistoricalRangeTable(areas []stats.CountryArea) Table {
	t := Table{Rows: make([]map[string]any, 0, len(areas))}
	for _, a := range areas {
		t.Rows = append(t.Rows, map[string]any{
			"lscountry":      a.Code,
			"lscountry_area": a.Area,
		})
	}
	return t
}

//Personal.AI order the ending
