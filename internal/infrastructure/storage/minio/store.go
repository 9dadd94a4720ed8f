package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/geoengine"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Export object store
// ─────────────────────────────────────────────────────────────────────────────

// ObjectStore implements export.ObjectStore.
type ObjectStore struct {
	client *Client
}

func NewObjectStore(client *Client) *ObjectStore {
	return &ObjectStore{client: client}
}

func (s *ObjectStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	api, err := s.client.getAPI()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.CodeStorageError, "stat %s/%s", bucket, key)
	}
	return true, nil
}

func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	api, err := s.client.getAPI()
	if err != nil {
		return err
	}
	info, err := api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "put %s/%s", bucket, key)
	}
	s.client.logger.Debug("Object uploaded",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return nil
}

var _ export.ObjectStore = (*ObjectStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Dataset source
// ─────────────────────────────────────────────────────────────────────────────

// DatasetSource serves GeoJSON datasets from the data bucket to the geometry
// engine. A dataset path maps to the object geoengine.AssetKey(path).
type DatasetSource struct {
	client *Client
	bucket string
}

func NewDatasetSource(client *Client) *DatasetSource {
	return &DatasetSource{client: client, bucket: client.cfg.DataBucket}
}

func (s *DatasetSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	api, err := s.client.getAPI()
	if err != nil {
		return nil, err
	}
	key := geoengine.AssetKey(path)
	// GetObject is lazy, so a missing object only surfaces on first read.
	if _, err := api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("dataset " + path + " not found")
		}
		return nil, errors.Wrapf(err, errors.CodeStorageError, "stat %s/%s", s.bucket, key)
	}
	rc, err := api.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeStorageError, "get %s/%s", s.bucket, key)
	}
	return rc, nil
}

func (s *DatasetSource) Exists(ctx context.Context, path string) (bool, error) {
	return NewObjectStore(s.client).Exists(ctx, s.bucket, geoengine.AssetKey(path))
}

var _ geoengine.Source = (*DatasetSource)(nil)

//Personal.AI order the ending
