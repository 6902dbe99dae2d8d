package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ecoguard",
		Usage: "Environmental report routing, lifecycle and notification service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-prefix",
				Aliases: []string{"p"},
				Usage:   "Environment variable prefix",
				Value:   "ECOGUARD",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			workerCommand,
			seedCommand,
			reindexCommand,
			candidatesCommand,
			exportCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
