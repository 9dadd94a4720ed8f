package export

import (
	"path"
)

const (
	statsRoot           = "ls_stats"
	historicalRangeName = "country_historical_range"
	objectExt           = ".geojson"
)

// PathSpec is the run-scoped part of an export path.
type PathSpec struct {
	Species  string
	Scenario string
	TaskDate string
	// OmitScenario drops the scenario segment, as the legacy layout does.
	OmitScenario bool
}

// TablePath is the blob path of one per-run table, without extension.
func TablePath(p PathSpec, landscapeKey string, g Granularity) string {
	name := landscapeKey
	switch g {
	case GranularityState:
		name += "_state"
	case GranularityLandscape:
		name += "_landscape"
	}
	if p.OmitScenario {
		return path.Join(statsRoot, p.Species, p.TaskDate, name)
	}
	return path.Join(statsRoot, p.Species, p.Scenario, p.TaskDate, name)
}

// HistoricalRangePath is the one-time table of a species.
func HistoricalRangePath(species string) string {
	return path.Join(statsRoot, species, historicalRangeName)
}

// ObjectKey is the storage key a table path is written to.
func ObjectKey(tablePath string) string {
	return tablePath + objectExt
}

//Personal.AI order the ending
