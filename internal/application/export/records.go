// Package export flattens aggregation trees into per-granularity records,
// projects them through a property schema, and writes the result as a
// GeoJSON table to object storage.
package export

import (
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
)

// ─────────────────────────────────────────────────────────────────────────────
// Biome entries
// ─────────────────────────────────────────────────────────────────────────────

// SubFeature is one protected area or KBA inside a biome entry.
type SubFeature struct {
	ID   int64
	Name string
	Area float64
}

// BiomeEntry is the per-biome breakdown carried by every record.
type BiomeEntry struct {
	BiomeID     int64
	BiomeName   string
	Protected   float64
	Unprotected float64
	PAs         []SubFeature
	// HasKBA is false when the KBA layer was not part of the run; the KBA
	// fields are then left out of the output.
	HasKBA bool
	KBA    float64
	NonKBA float64
	KBAs   []SubFeature
}

func biomeEntries(in []stats.BiomeStats) []BiomeEntry {
	out := make([]BiomeEntry, 0, len(in))
	for _, b := range in {
		e := BiomeEntry{
			BiomeID:     b.ID,
			BiomeName:   b.Name,
			Protected:   b.Protected,
			Unprotected: b.Unprotected,
			PAs:         subFeatures(b.PAs),
		}
		if b.KBA != nil && b.NonKBA != nil {
			e.HasKBA = true
			e.KBA, e.NonKBA = *b.KBA, *b.NonKBA
			e.KBAs = subFeatures(b.KBAs)
		}
		out = append(out, e)
	}
	return out
}

func subFeatures(in []stats.SubFeatureArea) []SubFeature {
	out := make([]SubFeature, 0, len(in))
	for _, s := range in {
		out = append(out, SubFeature{ID: s.ID, Name: s.Name, Area: s.Area})
	}
	return out
}

func (e BiomeEntry) properties() map[string]any {
	pas := make([]map[string]any, 0, len(e.PAs))
	for _, p := range e.PAs {
		pas = append(pas, map[string]any{"paid": p.ID, "paname": p.Name, "paarea": p.Area})
	}
	props := map[string]any{
		"biome":       map[string]any{"biomeid": e.BiomeID, "biomename": e.BiomeName},
		"protected":   e.Protected,
		"unprotected": e.Unprotected,
		"pas":         pas,
	}
	if e.HasKBA {
		kbas := make([]map[string]any, 0, len(e.KBAs))
		for _, k := range e.KBAs {
			kbas = append(kbas, map[string]any{"kbaid": k.ID, "kbaname": k.Name, "kbaarea": k.Area})
		}
		props["kba"] = e.KBA
		props["nonkba"] = e.NonKBA
		props["kbas"] = kbas
	}
	return props
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// LandscapeRef identifies the landscape a record was derived from.
type LandscapeRef struct {
	Index int
	ID    string
	// Name and Class are only set for landscape types that carry them.
	Name       string
	Class      string
	TotalArea  float64
	Properties map[string]any
}

// CountryRecord is one landscape × country combination.
type CountryRecord struct {
	Landscape   LandscapeRef
	Country     string
	CountryArea float64
	Areas       []BiomeEntry
	// RegionProperties are the attributes of the intersecting region.
	RegionProperties map[string]any
}

// StateRecord is one landscape × state combination.
type StateRecord struct {
	Landscape       LandscapeRef
	Country         string
	State           string
	StateName       string
	StateArea       float64
	Areas           []BiomeEntry
	StateProperties map[string]any
}

// LandscapeRecord is one landscape with its per-country areas rolled up.
type LandscapeRecord struct {
	Landscape LandscapeRef
	// Countries lists the codes of every region the landscape intersects.
	Countries []string
}

//Personal.AI order the ending
