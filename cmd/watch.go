/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mmfeed/client"
	"mmfeed/config"
	"mmfeed/feed"
	"mmfeed/theme"
	"mmfeed/tui"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the feed in the terminal",
		Description: `Shows the feed newest first and polls the server for new messages.

Type a message and press enter to post it. Use the arrow keys to select a
message and ctrl+d to delete it, ctrl+r to reload everything, ctrl+p to pause
polling and ctrl+t to switch between the light and dark theme.`,
		Flags: []cli.Flag{
			endpointFlag(),
			&cli.DurationFlag{
				Name:    "poll-interval",
				Value:   config.Default().Feed.PollInterval.Duration,
				Usage:   "How often to poll for new messages",
				EnvVars: []string{"MMFEED_POLL_INTERVAL"},
			},
			prefsFlag(),
			&cli.StringFlag{
				Name:    "welcome",
				Usage:   "Notice shown after the first load",
				EnvVars: []string{"MMFEED_WELCOME"},
			},
			&cli.StringFlag{
				Name:    "contact-message",
				Value:   config.Default().Feed.ContactMessage,
				Usage:   "Text before the quoted message in WhatsApp links",
				EnvVars: []string{"MMFEED_CONTACT_MESSAGE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI
			log.SetOutput(io.Discard)

			prefs, err := prefsStore(ctx)
			if err != nil {
				return err
			}
			saved, ok, err := prefs.Get()
			if err != nil {
				return err
			}

			list := feed.NewList()
			sync := feed.New(client.New(cfg.Feed.Endpoint), list,
				feed.WithInterval(cfg.Feed.PollInterval.Duration),
				feed.WithContactMessage(cfg.Feed.ContactMessage),
				feed.WithWelcome(cfg.Feed.WelcomeText()),
			)

			poller := sync.Start(ctx.Context)
			defer poller.Stop()

			return tui.Run(ctx.Context, tui.Options{
				Sync:  sync,
				List:  list,
				Theme: theme.Resolve(saved, ok, lipgloss.HasDarkBackground()),
				Prefs: prefs,
			})
		},
	}
}

func prefsStore(ctx *cli.Context) (*theme.Store, error) {
	if path := ctx.String("prefs"); path != "" {
		return theme.NewStore(path), nil
	}
	path, err := theme.DefaultPath()
	if err != nil {
		return nil, err
	}
	return theme.NewStore(path), nil
}
