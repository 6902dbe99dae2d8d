package main

import (
	"context"
	"fmt"

	"ecoguard/internal/embedding"
	"ecoguard/internal/notify"
	"ecoguard/internal/push"
	"ecoguard/internal/qdrant"
	"ecoguard/internal/routing"
	"ecoguard/internal/storage"
	"ecoguard/internal/store"
	"ecoguard/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newLogger(json bool) *logrus.Logger {
	logger := logrus.New()
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// connectRedis returns nil when no REDIS_URL is configured; embeddings are
// then not cached.
func connectRedis(ctx context.Context, cfg *types.Config, logger logrus.FieldLogger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, embedding cache will miss until it recovers")
	}
	return rdb, nil
}

func newRouter(cfg *types.Config, rdb *redis.Client, logger logrus.FieldLogger) (*routing.Router, error) {
	embedder, err := embedding.New(cfg, rdb, logger)
	if err != nil {
		return nil, err
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.EmbeddingDimensions)
	return routing.New(embedder, index, logger), nil
}

func newMedia(ctx context.Context, cfg *types.Config) (*storage.SupabaseMedia, error) {
	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	client := storage.NewS3Client(awsConfig, cfg.MediaEndpoint)
	return storage.NewSupabaseMedia(client, cfg.SupabaseProjectID, cfg.MediaBucket), nil
}

func newDispatcher(cfg *types.Config, st *store.Store, logger logrus.FieldLogger) *notify.Dispatcher {
	pusher := push.NewClient(cfg.ExpoPushURL, cfg.ExpoAccessToken)
	fanout := notify.NewFanout(st, pusher, logger)

	return notify.NewDispatcher(st, fanout, notify.DispatcherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, logger)
}
