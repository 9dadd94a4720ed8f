package dataset

import (
	"context"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

const daysPerYear = 365.0

// Resolved is the outcome of resolving one input.
type Resolved struct {
	Spec InputSpec
	// Path is the concrete asset to load.
	Path string
	// VersionDate is zero for static inputs.
	VersionDate time.Time
}

// Resolver picks the newest acceptable version of each input.
type Resolver struct {
	catalog Catalog
	logger  logging.Logger
}

// NewResolver creates a Resolver backed by catalog.
func NewResolver(catalog Catalog, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{catalog: catalog, logger: logger.Named("resolver")}
}

// AgeYears is the age of a version at ref in 365-day years.
func AgeYears(version, ref time.Time) float64 {
	return ref.Sub(version).Hours() / 24 / daysPerYear
}

// ResolveMostRecent returns the newest version of family dated at or before
// ref. The boolean is false when there is no such version or when the newest
// one is older than maxAgeYears. An error is returned only when the catalog
// itself fails.
func (r *Resolver) ResolveMostRecent(ctx context.Context, family string, ref time.Time, maxAgeYears float64) (Version, bool, error) {
	v, reason, err := r.mostRecent(ctx, family, ref, maxAgeYears)
	if err != nil {
		return Version{}, false, err
	}
	return v, reason == "", nil
}

func (r *Resolver) mostRecent(ctx context.Context, family string, ref time.Time, maxAgeYears float64) (Version, errors.ErrorCode, error) {
	versions, err := r.catalog.ListVersions(ctx, family, ref)
	if err != nil {
		return Version{}, "", errors.Wrapf(err, errors.CodeDatabaseError, "list versions of %s", family)
	}

	var best Version
	found := false
	for _, v := range versions {
		if v.Date.After(ref) {
			continue
		}
		if !found || v.Date.After(best.Date) {
			best, found = v, true
		}
	}
	if !found {
		return Version{}, errors.ErrCodeInputUnavailable, nil
	}
	if AgeYears(best.Date, ref) > maxAgeYears {
		return best, errors.ErrCodeInputStale, nil
	}
	return best, "", nil
}

// Resolve turns spec into a concrete asset path. Static inputs resolve to
// their own path unconditionally. A versioned input that is missing or stale
// yields an INPUT_002 or INPUT_003 error, upgraded to INPUT_004 when the input
// is mandatory.
func (r *Resolver) Resolve(ctx context.Context, spec InputSpec, ref time.Time) (Resolved, error) {
	if spec.Static {
		return Resolved{Spec: spec, Path: spec.Path}, nil
	}

	v, reason, err := r.mostRecent(ctx, spec.Path, ref, spec.MaxAgeYears)
	if err != nil {
		return Resolved{}, err
	}
	if reason == "" {
		r.logger.Debug("input resolved",
			logging.String("input", spec.Key),
			logging.String("path", v.Path),
			logging.String("version", v.Date.Format("2006-01-02")))
		return Resolved{Spec: spec, Path: v.Path, VersionDate: v.Date}, nil
	}

	var appErr *errors.AppError
	if reason == errors.ErrCodeInputStale {
		appErr = errors.Newf(reason, "%s: newest version %s is older than %.4g years",
			spec.Key, v.Date.Format("2006-01-02"), spec.MaxAgeYears)
	} else {
		appErr = errors.Newf(reason, "%s: no version of %s at or before %s",
			spec.Key, spec.Path, ref.Format("2006-01-02"))
	}
	if spec.Mandatory {
		return Resolved{}, errors.Wrap(appErr, errors.ErrCodeMandatoryInput, "mandatory input unavailable")
	}
	return Resolved{}, appErr
}

//Personal.AI order the ending
