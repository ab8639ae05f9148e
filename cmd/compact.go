/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/urfave/cli/v2"

	"mmfeed/server"
)

func compactCmd() *cli.Command {
	return &cli.Command{
		Name:  "compact",
		Usage: "Compact the store",
		Description: `Rewrites the store so it only holds the live messages.

The server does this on its own every --compact-every. Run it while the
server is stopped.`,
		Flags: []cli.Flag{
			dataDirFlag(),
			backendFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			store, err := openStore(cfg.Server)
			if err != nil {
				return err
			}
			defer store.Close()

			compactor, err := server.NewCompactor(store, cfg.Server.CompactEvery.Duration)
			if err != nil {
				return err
			}
			compactor.Run()
			return nil
		},
	}
}
