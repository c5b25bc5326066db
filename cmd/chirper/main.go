package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chirper",
		Usage: "tweets, follows, likes, notifications and search",
		Commands: []*cli.Command{
			newAPICommand(),
			newMigrateCommand(),
			newRelayCommand(),
			newSubscriberCommand(),
			newTokenCommand(),
		},
		Version: "0.1.0",
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalln("error", err)
	}
}
