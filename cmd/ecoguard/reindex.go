package main

import (
	"context"
	"fmt"

	"ecoguard/internal/db"
	"ecoguard/internal/store"
	"ecoguard/pkg/types"

	"github.com/urfave/cli/v2"
)

var reindexCommand = &cli.Command{
	Name:  "reindex",
	Usage: "Rebuild vector index points for organizations or agencies",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "organization or agency",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "Only reindex this candidate",
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

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		st := store.New(pool)

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

		var candidates []*types.RoutingCandidate
		if id := c.String("id"); id != "" {
			candidate, err := st.Candidate(ctx, candidateType, id)
			if err != nil {
				return err
			}
			candidates = append(candidates, candidate)
		} else {
			candidates, err = st.Candidates(ctx, candidateType)
			if err != nil {
				return err
			}
		}

		failures := 0
		for _, candidate := range candidates {
			points, err := router.IndexCandidate(ctx, *candidate)
			if err != nil {
				logger.WithError(err).WithField("candidate_id", candidate.ID).Error("failed to index candidate")
				failures++
				continue
			}
			fmt.Printf("  %s (%s): %d points\n", candidate.Name, candidate.ID, points)
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d candidates failed to index", failures, len(candidates))
		}
		fmt.Printf("\nReindexed %d %s candidates\n", len(candidates), candidateType)
		return nil
	},
}
