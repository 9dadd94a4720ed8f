package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListVersions(ctx context.Context, family string, notAfter time.Time) ([]dataset.Version, error) {
	args := m.Called(ctx, family, notAfter)
	v, _ := args.Get(0).([]dataset.Version)
	return v, args.Error(1)
}

func (m *mockCatalog) Register(ctx context.Context, v dataset.Version) error {
	return m.Called(ctx, v).Error(0)
}

func TestCachedCatalog_ListVersions(t *testing.T) {
	client, _ := newTestClient(t)
	next := new(mockCatalog)
	catalog := NewCachedCatalog(next, NewRedisCache(client, nil), time.Minute, nil)
	ctx := context.Background()
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	versions := []dataset.Version{{
		Family: "scl_species",
		Date:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Path:   "projects/SCL/v1/Panthera_tigris/scl_species/2023-12-01",
	}}
	next.On("ListVersions", mock.Anything, "scl_species", ref).Return(versions, nil).Once()

	for i := 0; i < 3; i++ {
		got, err := catalog.ListVersions(ctx, "scl_species", ref)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, versions[0].Path, got[0].Path)
		assert.True(t, versions[0].Date.Equal(got[0].Date))
	}
	next.AssertExpectations(t)
}

func TestCachedCatalog_LoadError(t *testing.T) {
	client, _ := newTestClient(t)
	next := new(mockCatalog)
	catalog := NewCachedCatalog(next, NewRedisCache(client, nil), time.Minute, nil)
	boom := errors.New("db down")
	next.On("ListVersions", mock.Anything, "scl_species", mock.Anything).Return(nil, boom).Once()

	_, err := catalog.ListVersions(context.Background(), "scl_species", time.Now())
	assert.Equal(t, boom, err)
	next.AssertExpectations(t)
}

func TestCachedCatalog_RegisterInvalidates(t *testing.T) {
	client, mr := newTestClient(t)
	next := new(mockCatalog)
	catalog := NewCachedCatalog(next, NewRedisCache(client, nil), time.Minute, nil)
	ctx := context.Background()
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next.On("ListVersions", mock.Anything, "scl_species", ref).Return([]dataset.Version{}, nil).Twice()
	next.On("ListVersions", mock.Anything, "structural_habitat", ref).Return([]dataset.Version{}, nil).Once()
	v := dataset.Version{Family: "scl_species", Date: ref, Path: "p"}
	next.On("Register", mock.Anything, v).Return(nil).Once()

	_, err := catalog.ListVersions(ctx, "scl_species", ref)
	require.NoError(t, err)
	_, err = catalog.ListVersions(ctx, "structural_habitat", ref)
	require.NoError(t, err)

	require.NoError(t, catalog.Register(ctx, v))
	assert.False(t, mr.Exists("test:cache:catalog:scl_species:2024-01-01"))
	assert.True(t, mr.Exists("test:cache:catalog:structural_habitat:2024-01-01"))

	_, err = catalog.ListVersions(ctx, "scl_species", ref)
	require.NoError(t, err)
	next.AssertExpectations(t)
}

func TestCachedCatalog_RegisterError(t *testing.T) {
	client, _ := newTestClient(t)
	next := new(mockCatalog)
	catalog := NewCachedCatalog(next, NewRedisCache(client, nil), time.Minute, nil)
	boom := errors.New("constraint")
	next.On("Register", mock.Anything, mock.Anything).Return(boom)

	assert.Equal(t, boom, catalog.Register(context.Background(), dataset.Version{Family: "f"}))
}

func TestCachedCatalog_CacheDownReadsThrough(t *testing.T) {
	client, mr := newTestClient(t)
	next := new(mockCatalog)
	catalog := NewCachedCatalog(next, NewRedisCache(client, nil), time.Minute, nil)
	next.On("ListVersions", mock.Anything, "scl_species", mock.Anything).Return([]dataset.Version{{Family: "scl_species", Path: "p"}}, nil)

	mr.SetError("LOADING")
	got, err := catalog.ListVersions(context.Background(), "scl_species", time.Now())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

//Personal.AI order the ending
