package main

import (
	"context"
	"fmt"

	"ecoguard/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var candidatesCommand = &cli.Command{
	Name:  "candidates",
	Usage: "Rank routing candidates for a piece of text",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "organization or agency",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "query",
			Aliases:  []string{"q"},
			Usage:    "Report description to route",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		logger := newLogger(false)

		candidateType, err := types.ParseCandidateType(c.String("type"))
		if err != nil {
			return err
		}

		config, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

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

		candidates, err := router.FindCandidates(ctx, c.String("query"), candidateType)
		if err != nil {
			return err
		}

		pp.Println(candidates)
		return nil
	},
}
