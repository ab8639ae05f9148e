/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"mmfeed/config"
	"mmfeed/db"
	"mmfeed/pmap"
)

func endpointFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"e"},
		Value:   config.Default().Feed.Endpoint,
		Usage:   "Base URL of the feed server",
		EnvVars: []string{"MMFEED_ENDPOINT"},
	}
}

func dataDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Value:   config.Default().Server.DataDir,
		Usage:   "Directory holding the store",
		EnvVars: []string{"MMFEED_DATA_DIR"},
	}
}

func backendFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "backend",
		Value:   config.Default().Server.Backend,
		Usage:   "Store backend, log (NDJSON file) or sqlite",
		EnvVars: []string{"MMFEED_BACKEND"},
	}
}

func prefsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "prefs",
		Usage:   "Preferences file, defaults to mmfeed/prefs.toml in the user config directory",
		EnvVars: []string{"MMFEED_PREFS"},
	}
}

// loadConfig reads the config file and applies the flags that were set
// explicitly, on the command line or through the environment.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}
	if ctx.IsSet("data-dir") {
		cfg.Server.DataDir = ctx.String("data-dir")
	}
	if ctx.IsSet("backend") {
		cfg.Server.Backend = ctx.String("backend")
	}
	if ctx.IsSet("max-entries") {
		cfg.Server.MaxEntries = ctx.Int("max-entries")
	}
	if ctx.IsSet("compact-every") {
		cfg.Server.CompactEvery.Duration = ctx.Duration("compact-every")
	}
	if ctx.IsSet("webhook-token") {
		cfg.Server.WebhookToken = ctx.String("webhook-token")
	}
	if ctx.IsSet("endpoint") {
		cfg.Feed.Endpoint = ctx.String("endpoint")
	}
	if ctx.IsSet("poll-interval") {
		cfg.Feed.PollInterval.Duration = ctx.Duration("poll-interval")
	}
	if ctx.IsSet("welcome") {
		cfg.Feed.Welcome = ctx.String("welcome")
	}
	if ctx.IsSet("contact-message") {
		cfg.Feed.ContactMessage = ctx.String("contact-message")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the store selected by the server configuration
func openStore(cfg config.Server) (pmap.Store, error) {
	path := cfg.StorePath()
	switch cfg.Backend {
	case config.BackendSQLite:
		return db.Open(path)
	case config.BackendLog:
		return pmap.Open(path)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
