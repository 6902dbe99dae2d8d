package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecoguard/internal/db"
	"ecoguard/internal/store"

	"github.com/urfave/cli/v2"
)

var workerCommand = &cli.Command{
	Name:  "worker",
	Usage: "Drain the notification outbox",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "once",
			Usage: "Process a single batch and exit",
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(true)

		config, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		dispatcher := newDispatcher(config, store.New(pool), logger)

		if c.Bool("once") {
			processed, err := dispatcher.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			logger.WithField("processed", processed).Info("outbox batch processed")
			return nil
		}

		return dispatcher.Run(ctx)
	},
}
