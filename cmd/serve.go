/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mmfeed/config"
	"mmfeed/ids"
	"mmfeed/server"
)

func serveCmd() *cli.Command {
	defaults := config.Default()

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed",
		Description: `Starts the feed HTTP server.

Keeps the latest messages in the configured store and exposes them at
/api/pmap. Incoming WhatsApp messages posted to /wabox/hook are stored as
new messages when the request carries the webhook token. The feed itself is
rendered at / and metrics are available at /metrics.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   defaults.Server.Port,
				Usage:   "Port to listen on",
				EnvVars: []string{"MMFEED_PORT", "PORT"},
			},
			dataDirFlag(),
			backendFlag(),
			&cli.IntFlag{
				Name:    "max-entries",
				Value:   defaults.Server.MaxEntries,
				Usage:   "Number of messages to keep",
				EnvVars: []string{"MMFEED_MAX_ENTRIES"},
			},
			&cli.DurationFlag{
				Name:    "compact-every",
				Value:   defaults.Server.CompactEvery.Duration,
				Usage:   "Interval between store compactions",
				EnvVars: []string{"MMFEED_COMPACT_EVERY"},
			},
			&cli.StringFlag{
				Name:    "webhook-token",
				Usage:   "Token required by the webhook, the webhook refuses every call when empty",
				EnvVars: []string{"MMFEED_WEBHOOK_TOKEN", "WBX_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "welcome",
				Usage:   "Notice shown above the feed page",
				EnvVars: []string{"MMFEED_WELCOME"},
			},
			&cli.StringFlag{
				Name:    "contact-message",
				Value:   defaults.Feed.ContactMessage,
				Usage:   "Text before the quoted message in WhatsApp links",
				EnvVars: []string{"MMFEED_CONTACT_MESSAGE"},
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Value:   defaults.Feed.PollInterval.Duration,
				Usage:   "How often the feed page reloads",
				EnvVars: []string{"MMFEED_POLL_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"backend": cfg.Server.Backend,
				"path":    cfg.Server.StorePath(),
			}).Info("Opening store")

			store, err := openStore(cfg.Server)
			if err != nil {
				return err
			}

			if cfg.Server.WebhookToken == "" {
				log.Warn("No webhook token configured, webhook calls will be refused")
			}

			bc := server.NewBroadcaster()
			items := server.NewItems(store, ids.NewGenerator(), cfg.Server.MaxEntries, bc)
			app := server.Server(&server.ServerConfig{
				Items:           items,
				Broadcaster:     bc,
				WebhookToken:    cfg.Server.WebhookToken,
				ContactMessage:  cfg.Feed.ContactMessage,
				Welcome:         cfg.Feed.WelcomeText(),
				RefreshInterval: cfg.Feed.PollInterval.Duration,
			})

			compactor, err := server.NewCompactor(store, cfg.Server.CompactEvery.Duration)
			if err != nil {
				store.Close()
				return err
			}
			compactor.Start()

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			log.WithFields(log.Fields{
				"port": cfg.Server.Port,
			}).Info("Starting server...")

			listenErr := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port))

			// Stop the scheduler before closing the store
			compactor.Stop()
			if err := store.Close(); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Error closing store")
			}

			log.Info("Done!")
			return listenErr
		},
	}
}
