// Package dataset models the logical input datasets of a run and resolves
// each to a concrete materialized version.
package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind is the asset type of an input.
type Kind string

const (
	KindFeatureCollection Kind = "featurecollection"
	KindImage             Kind = "image"
)

// InputSpec declares one logical input. Path is already expanded: for static
// inputs it is the asset itself, otherwise it names the family whose dated
// versions are listed in the catalog.
type InputSpec struct {
	Key         string
	Kind        Kind
	Path        string
	Static      bool
	MaxAgeYears float64
	Mandatory   bool
}

// Validate checks the declaration is usable.
func (s InputSpec) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("input key is required")
	}
	if s.Path == "" {
		return fmt.Errorf("input %s: path is required", s.Key)
	}
	if s.Kind != KindFeatureCollection && s.Kind != KindImage {
		return fmt.Errorf("input %s: unknown kind %q", s.Key, s.Kind)
	}
	if !s.Static && s.MaxAgeYears <= 0 {
		return fmt.Errorf("input %s: maxage must be positive for versioned inputs", s.Key)
	}
	if strings.Contains(s.Path, "{") {
		return fmt.Errorf("input %s: path %q has unexpanded placeholders", s.Key, s.Path)
	}
	return nil
}

// Version is one materialized, dated copy of a dataset family.
type Version struct {
	Family       string    `json:"family"`
	Date         time.Time `json:"date"`
	Path         string    `json:"path"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Catalog lists the materialized versions of dataset families.
type Catalog interface {
	// ListVersions returns every version of family dated at or before
	// notAfter. Order is unspecified.
	ListVersions(ctx context.Context, family string, notAfter time.Time) ([]Version, error)
	// Register records a new version. Registering the same family and date
	// twice replaces the path.
	Register(ctx context.Context, v Version) error
}

// PathVars are the run-scoped values substituted into input paths.
type PathVars struct {
	Root     string
	Species  string
	Scenario string
	TaskDate string
}

// ExpandPath substitutes {root}, {species}, {scenario} and {taskdate}.
func ExpandPath(tmpl string, vars PathVars) string {
	return strings.NewReplacer(
		"{root}", vars.Root,
		"{species}", vars.Species,
		"{scenario}", vars.Scenario,
		"{taskdate}", vars.TaskDate,
	).Replace(tmpl)
}

// VersionPath is the conventional location of a version inside its family
// folder.
func VersionPath(family string, date time.Time) string {
	return strings.TrimSuffix(family, "/") + "/" + date.Format("2006-01-02")
}

//Personal.AI order the ending
