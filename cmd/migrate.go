/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"mmfeed/config"
	"mmfeed/db"
)

func sqlitePath(ctx *cli.Context) (string, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	cfg.Server.Backend = config.BackendSQLite
	return filepath.Clean(cfg.Server.StorePath()), nil
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs the SQLite database migrations. Will create the database if it does not exist.`,
		Flags: []cli.Flag{
			dataDirFlag(),
		},
		Action: func(ctx *cli.Context) error {
			path, err := sqlitePath(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Database configured: ", path)
			return db.Migrate(path)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last SQLite database migration`,
		Flags: []cli.Flag{
			dataDirFlag(),
		},
		Action: func(ctx *cli.Context) error {
			path, err := sqlitePath(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Database configured: ", path)
			return db.Rollback(path)
		},
	}
}
