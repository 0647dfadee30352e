package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
	"github.com/hrygo/cortex/store/storetest"
)

func openDriver(t *testing.T) store.Driver {
	t.Helper()
	driver, err := sqlite.NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "cortex.db")})
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestDriver(t *testing.T) {
	storetest.Run(t, openDriver)
}

func TestNewDBRequiresDSN(t *testing.T) {
	_, err := sqlite.NewDB(&profile.Profile{})
	assert.Error(t, err)
}

func TestMigrateIsRepeatable(t *testing.T) {
	driver := openDriver(t)
	defer driver.Close()
	assert.NoError(t, driver.Migrate(context.Background()))
}

func TestMigrateChecksSchemaVersion(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "cortex.db")
	migrate := func(version string) (string, error) {
		p := &profile.Profile{DSN: dsn, Version: version}
		driver, err := sqlite.NewDB(p)
		require.NoError(t, err)
		defer driver.Close()
		if err := store.New(driver, p).Migrate(ctx); err != nil {
			return "", err
		}
		return driver.GetSchemaVersion(ctx)
	}

	stored, err := migrate("0.2.0")
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", stored)

	stored, err = migrate("0.3.0-dev")
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", stored, "pre-release suffix is dropped")

	_, err = migrate("0.2.5")
	assert.ErrorContains(t, err, "newer than this release")

	_, err = migrate("latest")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	stored, err = migrate("0.3.0")
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", stored)
}
