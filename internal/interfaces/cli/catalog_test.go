package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

const family = "projects/SCL/v1/Panthera_tigris/canonical/scl_poly/scl_species"

func TestCatalogRegister_DefaultPath(t *testing.T) {
	f := newFakeRuntime()
	path := writeConfig(t, quietConfig)

	out, _, err := execute(t, f.factory, "--config", path, "-o", "json",
		"catalog", "register", "--family", family, "--date", "2024-01-01")
	require.NoError(t, err)

	var v dataset.Version
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, family+"/2024-01-01", v.Path)

	versions, err := f.catalog.ListVersions(context.Background(), family, date(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, date(2024, time.January, 1), versions[0].Date)
}

func TestCatalogRegister_ExplicitPath(t *testing.T) {
	f := newFakeRuntime()
	path := writeConfig(t, quietConfig)

	_, _, err := execute(t, f.factory, "--config", path,
		"catalog", "register", "--family", "countries", "--date", "2019-06-30", "--path", "countries/2019")
	require.NoError(t, err)

	versions, err := f.catalog.ListVersions(context.Background(), "countries", date(2020, time.January, 1))
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "countries/2019", versions[0].Path)
}

func TestCatalogRegister_Validation(t *testing.T) {
	path := writeConfig(t, quietConfig)
	cases := map[string][]string{
		"no family": {"catalog", "register", "--date", "2024-01-01"},
		"no date":   {"catalog", "register", "--family", family},
		"bad date":  {"catalog", "register", "--family", family, "--date", "2024-13-01"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFakeRuntime()
			_, _, err := execute(t, f.factory, append([]string{"--config", path}, args...)...)
			require.Error(t, err)
			assert.Equal(t, 2, ExitStatus(err))
			assert.Zero(t, f.builds)
		})
	}
}

func TestCatalogList_NewestFirstAsOf(t *testing.T) {
	f := newFakeRuntime()
	f.catalog.Add(family, date(2023, time.January, 1))
	f.catalog.Add(family, date(2024, time.January, 1))
	f.catalog.Add(family, date(2024, time.June, 1))
	path := writeConfig(t, quietConfig)

	out, _, err := execute(t, f.factory, "--config", path, "-o", "json",
		"catalog", "list", "--family", family, "--as-of", "2024-03-01")
	require.NoError(t, err)

	var list VersionList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, "2024-03-01", list.AsOf)
	require.Len(t, list.Versions, 2)
	assert.Equal(t, date(2024, time.January, 1), list.Versions[0].Date)
	assert.Equal(t, date(2023, time.January, 1), list.Versions[1].Date)
}

func TestCatalogList_Text(t *testing.T) {
	f := newFakeRuntime()
	path := writeConfig(t, quietConfig)

	out, _, err := execute(t, f.factory, "--config", path, "catalog", "list", "--family", "countries", "--as-of", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "no versions of countries on or before 2024-01-01")

	f.catalog.Add("countries", date(2020, time.January, 1))
	out, _, err = execute(t, f.factory, "--config", path, "-o", "table", "catalog", "list", "--family", "countries", "--as-of", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "countries/2020-01-01")
}

func TestCatalog_ListError(t *testing.T) {
	f := newFakeRuntime()
	f.catalog.ListErr = errors.New(errors.ErrCodeDatabaseError, "connection reset")
	path := writeConfig(t, quietConfig)

	_, _, err := execute(t, f.factory, "--config", path, "catalog", "list", "--family", "countries")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestCatalog_RequiresDatabase(t *testing.T) {
	path := writeConfig(t, quietConfig)
	_, _, err := execute(t, noCatalogFactory, "--config", path, "catalog", "list", "--family", "countries")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition))
}

//Personal.AI order the ending
