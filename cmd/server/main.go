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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corvino/graphtalk/internal/config"
	"github.com/corvino/graphtalk/internal/graphs"
	"github.com/corvino/graphtalk/internal/logger"
	"github.com/corvino/graphtalk/internal/server"
	"github.com/corvino/graphtalk/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, err := store.OpenBadger(cfg.BadgerPath, log)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer func() {
		if err := messages.Close(); err != nil {
			log.Error("close message log", zap.Error(err))
		}
	}()

	dir, closeDir, err := graphs.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open graph directory: %w", err)
	}
	defer func() {
		if err := closeDir(context.Background()); err != nil {
			log.Error("close graph directory", zap.Error(err))
		}
	}()

	hub := server.NewHub(messages, cfg.Room(), log)
	srv := server.NewHTTPServer(cfg.Addr(), server.New(hub, dir, log).Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("graphtalk server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("env", cfg.Env),
			zap.String("badger", cfg.BadgerPath),
			zap.Bool("graph_check", cfg.GraphCheckEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Hijacked WebSocket connections are not tracked by Shutdown.
		hub.CloseAll()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
