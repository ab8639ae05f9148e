/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cqroot/prompt"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mmfeed/client"
	"mmfeed/feed"
)

func postCmd() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Post a message to the feed",
		ArgsUsage: "[text]",
		Description: `Posts a message to the feed and prints its key.

Asks for the message when no text is given.`,
		Flags: []cli.Flag{
			endpointFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			text := strings.Join(ctx.Args().Slice(), " ")
			if text == "" {
				text, err = prompt.New().Ask("Message:").Input("")
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(text) == "" {
				return feed.ErrEmptyMessage
			}

			key, err := client.New(cfg.Feed.Endpoint).Create(ctx.Context, text)
			if err != nil {
				return fmt.Errorf("could not post message: %w", err)
			}

			log.WithFields(log.Fields{
				"key": key,
			}).Info("Posted message")
			fmt.Println(key)
			return nil
		},
	}
}

func deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a message from the feed",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			endpointFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			key := ctx.Args().First()
			if key == "" {
				return errors.New("please specify the key of the message to delete")
			}

			if err := client.New(cfg.Feed.Endpoint).Delete(ctx.Context, key); err != nil {
				return fmt.Errorf("could not delete message: %w", err)
			}

			log.WithFields(log.Fields{
				"key": key,
			}).Info("Deleted message")
			return nil
		},
	}
}
