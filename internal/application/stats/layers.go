package stats

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// LayerRequest names the resolved reference inputs of one work item.
type LayerRequest struct {
	// Inputs maps input keys to resolved asset paths. Optional inputs that
	// were not resolved are simply absent.
	Inputs   map[string]string
	Rules    landscape.Rules
	TaskYear int
	// WithStates loads the states layer when it is available.
	WithStates bool
}

// LayerLoader loads reference collections once and shares them, read-only,
// between every landscape key processed by the same process.
type LayerLoader struct {
	engine geo.Engine
	logger logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*geo.FeatureCollection
}

// NewLayerLoader creates a LayerLoader.
func NewLayerLoader(engine geo.Engine, logger logging.Logger) *LayerLoader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LayerLoader{
		engine: engine,
		logger: logger.Named("layers"),
		cache:  make(map[string]*geo.FeatureCollection),
	}
}

// Collection returns the collection at path. Concurrent callers asking for
// the same path share one load.
func (l *LayerLoader) Collection(ctx context.Context, path string) (*geo.FeatureCollection, error) {
	l.mu.RLock()
	fc, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return fc, nil
	}

	v, err, _ := l.group.Do(path, func() (interface{}, error) {
		fc, err := l.engine.LoadFeatureCollection(ctx, path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[path] = fc
		l.mu.Unlock()
		l.logger.Debug("layer loaded", logging.String("path", path), logging.Int("features", fc.Len()))
		return fc, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "load %s", path)
	}
	return v.(*geo.FeatureCollection), nil
}

// Load assembles the reference layers of req. Countries, ecoregions and
// protected areas are required; the rest are loaded when present.
func (l *LayerLoader) Load(ctx context.Context, req LayerRequest) (Layers, error) {
	required := func(key string) (*geo.FeatureCollection, error) {
		path, ok := req.Inputs[key]
		if !ok || path == "" {
			return nil, errors.Precondition("reference layer " + key + " is not resolved")
		}
		return l.Collection(ctx, path)
	}
	optional := func(key string) (*geo.FeatureCollection, error) {
		path, ok := req.Inputs[key]
		if !ok || path == "" {
			return nil, nil
		}
		return l.Collection(ctx, path)
	}

	var (
		layers Layers
		err    error
	)
	if layers.Regions, err = required(landscape.InputCountries); err != nil {
		return Layers{}, err
	}
	leuser, err := optional(landscape.InputLeuser)
	if err != nil {
		return Layers{}, err
	}
	if leuser != nil {
		layers.Regions = geo.Merge(layers.Regions, leuser)
	}
	if layers.Ecoregions, err = required(landscape.InputEcoregions); err != nil {
		return Layers{}, err
	}
	pas, err := required(landscape.InputPAs)
	if err != nil {
		return Layers{}, err
	}
	if layers.PAs, err = l.admitPAs(ctx, req, pas); err != nil {
		return Layers{}, err
	}
	if layers.KBAs, err = optional(landscape.InputKBAs); err != nil {
		return Layers{}, err
	}
	if req.WithStates {
		if layers.States, err = optional(landscape.InputStates); err != nil {
			return Layers{}, err
		}
		if layers.States == nil {
			l.logger.Warn("state statistics requested but the states layer is unavailable")
		}
	}
	return layers, nil
}

// admitPAs applies the variant's status filter and, for the current
// variant, restricts the layer to the historical range when it is known.
func (l *LayerLoader) admitPAs(ctx context.Context, req LayerRequest, pas *geo.FeatureCollection) (*geo.FeatureCollection, error) {
	admitted := req.Rules.FilterPAs(pas, req.TaskYear)
	if !req.Rules.FilterPAStatus {
		return admitted, nil
	}
	path, ok := req.Inputs[landscape.InputHistoricalRange]
	if !ok || path == "" {
		return admitted, nil
	}
	img, err := l.engine.LoadImage(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "load %s", path)
	}
	footprint, err := l.engine.Footprint(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeometry, "historical range footprint")
	}
	inRange, err := l.engine.FilterBounds(ctx, admitted, footprint)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeometry, "filter protected areas to historical range")
	}
	l.logger.Debug("protected areas admitted",
		logging.Int("loaded", pas.Len()),
		logging.Int("admitted", inRange.Len()))
	return inRange, nil
}

//Personal.AI order the ending
