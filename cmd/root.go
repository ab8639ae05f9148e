/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "mmfeed",
		Usage: "A timestamp-keyed message feed with a polling client",
		Description: `A small message feed. The server keeps the latest messages in a
		persistent key-value map exposed at /api/pmap and accepts incoming
		WhatsApp messages through a webhook. The client commands poll the
		map, show new messages newest first and can post or delete messages.

		Settings can be read from a TOML file (--config) and generally be set
		via environment variables, e.g.:

		--port => MMFEED_PORT=8080
		--endpoint => MMFEED_ENDPOINT=http://localhost:8080
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"MMFEED_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "mmfeed.toml",
				Usage:   "Path to the configuration file, skipped when missing",
				EnvVars: []string{"MMFEED_CONFIG"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			watchCmd(),
			itemsCmd(),
			postCmd(),
			deleteCmd(),
			themeCmd(),
			compactCmd(),
			migrateCmd(),
			rollbackCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
