package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecoguard/internal/db"
	"ecoguard/internal/feed"
	"ecoguard/internal/lifecycle"
	"ecoguard/internal/server"
	"ecoguard/internal/store"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP API and change feed",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(true)

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
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

	media, err := newMedia(ctx, config)
	if err != nil {
		return err
	}

	engine := lifecycle.New(st, media, router, lifecycle.Options{
		SerializeTransitions: config.SerializeTransitions,
		VerifyMedia:          config.MediaVerify,
	}, logger)

	jwkCache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	keysURL := jwksURL(config)
	if err := jwkCache.Register(ctx, keysURL); err != nil {
		return fmt.Errorf("failed to register supabase jwk with cache: %w", err)
	}

	auth, err := server.NewJWTAuthenticator(config, server.CachedKeys(jwkCache, keysURL))
	if err != nil {
		return err
	}

	hub := feed.NewHub(feed.NewReducer(), logger)
	listener := feed.NewListener(pool, config.FeedChannel, func(d feed.Delta) { hub.Publish(d) }, logger)

	srv := server.New(config, logger, st, engine, router, hub, auth)

	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.WithError(err).Error("change feed listener stopped")
		}
	}()

	if config.OutboxEmbedded {
		dispatcher := newDispatcher(config, st, logger)
		go func() {
			if err := dispatcher.Run(ctx); err != nil {
				logger.WithError(err).Error("outbox dispatcher stopped")
			}
		}()
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
