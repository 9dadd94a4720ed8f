package job

import (
	"sort"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// PathVarsFor returns the placeholder values of a run.
func PathVarsFor(cfg jobdomain.RunConfig) dataset.PathVars {
	return dataset.PathVars{
		Root:     cfg.RootDir,
		Species:  cfg.Species,
		Scenario: cfg.Scenario,
		TaskDate: cfg.TaskDate.String(),
	}
}

// InputSpecs expands the configured input declarations for one run. The
// result is keyed by input key.
func InputSpecs(inputs map[string]config.InputConfig, vars dataset.PathVars) (map[string]dataset.InputSpec, error) {
	specs := make(map[string]dataset.InputSpec, len(inputs))
	for key, in := range inputs {
		spec := dataset.InputSpec{
			Key:         key,
			Kind:        dataset.Kind(in.Kind),
			Path:        dataset.ExpandPath(in.Path, vars),
			Static:      in.Static,
			MaxAgeYears: in.MaxAgeYears,
			Mandatory:   in.Mandatory,
		}
		if err := spec.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInputSpecInvalid, "invalid input declaration")
		}
		specs[key] = spec
	}
	return specs, nil
}

// sortedSpecKeys returns the keys of specs not in exclude, sorted.
func sortedSpecKeys(specs map[string]dataset.InputSpec, exclude map[string]bool) []string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		if !exclude[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

//Personal.AI order the ending
