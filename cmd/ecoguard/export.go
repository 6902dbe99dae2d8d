package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ecoguard/internal/db"
	"ecoguard/internal/export"
	"ecoguard/internal/store"
	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/urfave/cli/v2"
)

var exportCommand = &cli.Command{
	Name:  "export-metrics",
	Usage: "Write an organization's assigned reports and outcomes to an xlsx file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "org",
			Usage:    "Organization id",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Output file",
			Value: "metrics.xlsx",
		},
		&cli.TimestampFlag{
			Name:   "from",
			Usage:  "Only reports submitted on or after this date",
			Layout: time.DateOnly,
		},
		&cli.TimestampFlag{
			Name:   "to",
			Usage:  "Only reports submitted before this date",
			Layout: time.DateOnly,
		},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()

		config, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		var filter types.ReportFilter
		if from := c.Timestamp("from"); from != nil {
			filter.From = utils.TimePtr(*from)
		}
		if to := c.Timestamp("to"); to != nil {
			filter.To = utils.TimePtr(*to)
		}

		file, err := os.Create(c.String("out"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.String("out"), err)
		}
		defer file.Close()

		if err := export.WriteOrganizationWorkbook(ctx, store.New(pool), c.String("org"), filter, time.Now(), file); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", c.String("out"))
		return nil
	},
}
