package main

import (
	"context"
	"fmt"

	"ecoguard/internal/db"
	"ecoguard/internal/seed"
	"ecoguard/internal/store"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Sync organizations and agencies with the seed list and index them",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "skip-index",
			Usage: "Only sync database rows",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		logger := newLogger(false)

		config, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logger.Info("Connected to database")

		var index seed.Index
		if !c.Bool("skip-index") {
			rdb, err := connectRedis(ctx, config, logger)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			router, err := newRouter(config, rdb, logger)
			if err != nil {
				return err
			}
			index = router
		}

		results, err := seed.SyncCandidates(ctx, store.New(pool), index, logger)
		if err != nil {
			return fmt.Errorf("failed to seed candidates: %w", err)
		}

		for _, result := range results {
			fmt.Printf("%-13s %d upserted, %d deleted, %d indexed, %d index failures\n",
				result.Type, result.Upserted, result.Deleted, result.Indexed, result.IndexFailures)
		}

		return nil
	},
}
