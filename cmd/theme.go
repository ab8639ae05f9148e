/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	"mmfeed/theme"
)

func themeCmd() *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show or change the terminal theme",
		ArgsUsage: "[light|dark|toggle]",
		Description: `Prints the theme used by the watch command. With an argument the
theme is changed and saved in the preferences file.`,
		Flags: []cli.Flag{
			prefsFlag(),
		},
		Action: func(ctx *cli.Context) error {
			prefs, err := prefsStore(ctx)
			if err != nil {
				return err
			}

			saved, ok, err := prefs.Get()
			if err != nil {
				return err
			}
			current := theme.Resolve(saved, ok, lipgloss.HasDarkBackground())

			arg := ctx.Args().First()
			if arg == "" {
				fmt.Println(current)
				return nil
			}

			next := current.Toggle()
			if arg != "toggle" {
				if next, err = theme.Parse(arg); err != nil {
					return err
				}
			}

			if err := prefs.Set(next); err != nil {
				return err
			}
			fmt.Println(next)
			return nil
		},
	}
}
