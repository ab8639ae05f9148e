/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mmfeed/client"
	"mmfeed/feed"
)

// itemLine is the JSON form of an entry printed by the items command
type itemLine struct {
	Key        string `json:"k"`
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	Phone      string `json:"wa,omitempty"`
	ContactURL string `json:"contact_url,omitempty"`
}

func itemsCmd() *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "Print the feed once",
		Description: `Loads every message from the server and prints them newest first.

With --json each message is printed as a JSON object on a single line. Use a
tool like jq to process the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			endpointFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print one JSON object per line",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			list := feed.NewList()
			sync := feed.New(client.New(cfg.Feed.Endpoint), list,
				feed.WithContactMessage(cfg.Feed.ContactMessage),
			)
			if err := sync.LoadAll(ctx.Context, false); err != nil {
				return fmt.Errorf("could not load items: %w", err)
			}

			for _, e := range list.Entries() {
				if ctx.Bool("json") {
					printJSON(e)
					continue
				}
				fmt.Printf("%s  %s · %s\n    %s\n",
					feed.StripControl(e.Key), feed.StripControl(e.Sender), e.Clock(), feed.StripControl(e.Text))
				if e.ContactURL != "" {
					fmt.Printf("    %s\n", e.ContactURL)
				}
			}
			return nil
		},
	}
}

func printJSON(e feed.Entry) {
	line, err := json.Marshal(itemLine{
		Key:        e.Key,
		Sender:     e.Sender,
		Text:       e.Text,
		Phone:      e.Phone,
		ContactURL: e.ContactURL,
	})
	if err == nil {
		fmt.Println(string(line))
	}
}
