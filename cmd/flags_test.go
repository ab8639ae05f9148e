package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"mmfeed/config"
	"mmfeed/db"
	"mmfeed/pmap"
)

// runLoadConfig runs the serve flags through a throwaway app and returns the
// resulting configuration
func runLoadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()

	var loaded *config.Config
	serve := serveCmd()
	serve.Action = func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		loaded = cfg
		return err
	}

	app := RootApp()
	app.Commands = []*cli.Command{serve}
	require.NoError(t, app.Run(append([]string{"mmfeed"}, args...)))
	return loaded
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmfeed.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090
max_entries = 10

[feed]
poll_interval = "2s"
`), 0644))

	t.Run("defaults without a file", func(t *testing.T) {
		cfg := runLoadConfig(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "serve")
		assert.Equal(t, config.Default(), cfg)
	})

	t.Run("file over defaults", func(t *testing.T) {
		cfg := runLoadConfig(t, "--config", path, "serve")
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 10, cfg.Server.MaxEntries)
		assert.Equal(t, 2*time.Second, cfg.Feed.PollInterval.Duration)
		assert.Equal(t, config.BackendLog, cfg.Server.Backend)
	})

	t.Run("flags over file", func(t *testing.T) {
		cfg := runLoadConfig(t, "--config", path, "serve", "--port", "7070", "--backend", "sqlite")
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, config.BackendSQLite, cfg.Server.Backend)
		assert.Equal(t, 10, cfg.Server.MaxEntries)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("MMFEED_MAX_ENTRIES", "3")
		cfg := runLoadConfig(t, "--config", path, "serve")
		assert.Equal(t, 3, cfg.Server.MaxEntries)
	})
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	serve := serveCmd()
	serve.Action = func(ctx *cli.Context) error {
		_, err := loadConfig(ctx)
		return err
	}

	app := RootApp()
	app.Commands = []*cli.Command{serve}
	err := app.Run([]string{"mmfeed", "--config", "", "serve", "--backend", "redis"})
	assert.ErrorContains(t, err, "unknown backend")
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{config.BackendLog, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default().Server
			cfg.DataDir = t.TempDir()
			cfg.Backend = backend

			store, err := openStore(cfg)
			require.NoError(t, err)
			defer store.Close()

			switch backend {
			case config.BackendLog:
				assert.IsType(t, &pmap.Log{}, store)
			case config.BackendSQLite:
				assert.IsType(t, &db.Store{}, store)
			}
			assert.FileExists(t, cfg.StorePath())
		})
	}
}
