package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/solwatch/core/config"
	coredatabase "github.com/m3rciful/solwatch/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipsDisabledDatabase(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not run")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.NoError(t, res.Close())
}

func TestRunMigratesBeforeConnect(t *testing.T) {
	var steps []string
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Host: "db", Name: "solwatch"},
		Migrations: fstest.MapFS{"0001_x.up.sql": {Data: []byte("select 1")}},
		LoggerInit: noLogger,
		Migrate: func(context.Context, coredatabase.Config, fs.FS) error {
			steps = append(steps, "migrate")
			return nil
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, errors.New("refused")
		},
	})
	assert.ErrorContains(t, err, "refused")
	assert.Equal(t, []string{"migrate", "connect"}, steps)
}

func TestRunStopsOnLoggerFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
	})
	assert.ErrorContains(t, err, "logger init failed")

	_, err = Run(context.Background(), Options{})
	assert.Error(t, err)
}
