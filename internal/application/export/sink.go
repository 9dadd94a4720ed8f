package export

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

const contentTypeGeoJSON = "application/geo+json"

// Mode selects what Export does when the target already exists.
type Mode int

const (
	// Overwrite always writes. Per-run tables are path-qualified by task
	// date, so rewriting them is deterministic.
	Overwrite Mode = iota
	// SkipIfExists leaves an existing object untouched.
	SkipIfExists
)

func (m Mode) String() string {
	if m == SkipIfExists {
		return "skip_if_exists"
	}
	return "overwrite"
}

// ObjectStore is the blob storage a Sink writes to.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Unlocker releases a lock taken by a Locker.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// Locker serializes existence-checked writes across processes.
type Locker interface {
	// TryLock takes the named lock without waiting. ok is false when
	// somebody else holds it.
	TryLock(ctx context.Context, name string) (unlock Unlocker, ok bool, err error)
}

// Recorder observes exports. prometheus.AppMetrics implements it.
type Recorder interface {
	RecordExport(mode string, skipped bool, err error, bytes int, duration time.Duration)
}

// Result describes one Export call.
type Result struct {
	Bucket  string
	Key     string
	Skipped bool
	Bytes   int
}

// Sink writes tables as GeoJSON feature collections without geometry.
type Sink struct {
	store    ObjectStore
	locker   Locker
	recorder Recorder
	logger   logging.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithLocker guards SkipIfExists writes with locker.
func WithLocker(l Locker) SinkOption { return func(s *Sink) { s.locker = l } }

// WithRecorder reports every export to r.
func WithRecorder(r Recorder) SinkOption { return func(s *Sink) { s.recorder = r } }

// NewSink creates a Sink over store.
func NewSink(store ObjectStore, logger logging.Logger, opts ...SinkOption) *Sink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Sink{store: store, logger: logger.Named("export")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether the table at tablePath has been written.
func (s *Sink) Exists(ctx context.Context, bucket, tablePath string) (bool, error) {
	ok, err := s.store.Exists(ctx, bucket, ObjectKey(tablePath))
	if err != nil {
		return false, errors.Wrapf(err, errors.CodeStorageError, "stat %s/%s", bucket, tablePath)
	}
	return ok, nil
}

// Export writes t to bucket at tablePath. Write failures are returned as
// EXPORT_002 and not retried here. Under SkipIfExists a target locked by
// another writer yields a CodeConflict error, never a skip.
func (s *Sink) Export(ctx context.Context, t Table, bucket, tablePath string, mode Mode) (res Result, err error) {
	start := time.Now()
	res = Result{Bucket: bucket, Key: ObjectKey(tablePath)}
	defer func() {
		if s.recorder != nil {
			s.recorder.RecordExport(mode.String(), res.Skipped, err, res.Bytes, time.Since(start))
		}
	}()

	if mode == SkipIfExists {
		if s.locker != nil {
			unlock, ok, err := s.locker.TryLock(ctx, "export:"+bucket+"/"+tablePath)
			if err != nil {
				return res, errors.Wrap(err, errors.CodeCacheError, "acquire export lock")
			}
			if !ok {
				// The holder may still fail, so the caller retries and then
				// finds the target written.
				s.logger.Info("export in progress elsewhere", logging.String("key", res.Key))
				return res, errors.New(errors.CodeConflict, "export of "+res.Key+" is in progress elsewhere")
			}
			defer func() {
				if uerr := unlock.Unlock(context.WithoutCancel(ctx)); uerr != nil {
					s.logger.Warn("release export lock", logging.Err(uerr))
				}
			}()
		}
		exists, err := s.Exists(ctx, bucket, tablePath)
		if err != nil {
			return res, err
		}
		if exists {
			s.logger.Info("export target already exists", logging.String("bucket", bucket), logging.String("key", res.Key))
			res.Skipped = true
			return res, nil
		}
	}

	data, err := EncodeGeoJSON(t)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSerialization, "encode table")
	}
	if err := s.store.Put(ctx, bucket, res.Key, data, contentTypeGeoJSON); err != nil {
		return res, errors.Wrapf(err, errors.ErrCodeExportWriteFailed, "write %s/%s", bucket, res.Key)
	}
	res.Bytes = len(data)
	s.logger.Info("table exported",
		logging.String("bucket", bucket),
		logging.String("key", res.Key),
		logging.Int("rows", t.Len()),
		logging.Int("bytes", res.Bytes))
	return res, nil
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// EncodeGeoJSON renders t as a FeatureCollection whose features have a null
// geometry. Map keys are emitted sorted, so equal tables encode to equal
// bytes.
func EncodeGeoJSON(t Table) ([]byte, error) {
	fc := geoJSONCollection{Type: "FeatureCollection", Features: make([]geoJSONFeature, 0, len(t.Rows))}
	for _, row := range t.Rows {
		fc.Features = append(fc.Features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   json.RawMessage("null"),
			Properties: row,
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGeoJSON reads a table written by EncodeGeoJSON.
func DecodeGeoJSON(data []byte) (Table, error) {
	var fc geoJSONCollection
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fc); err != nil {
		return Table{}, err
	}
	t := Table{Rows: make([]map[string]any, 0, len(fc.Features))}
	for _, f := range fc.Features {
		t.Rows = append(t.Rows, f.Properties)
	}
	return t, nil
}

//Personal.AI order the ending
