package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolDesk/internal/config"
	"poolDesk/internal/model"
	"poolDesk/internal/reconcile"
	"poolDesk/internal/storage"
	"poolDesk/internal/storage/postgres"
	"poolDesk/internal/upstream"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	rec, err := newReconciler(cfg, b, logger, nil)
	if err != nil {
		return err
	}

	date := cfg.Date
	if date == "" {
		date = rec.Today()
	}
	res, err := rec.Run(ctx, date)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, res)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	date := cfg.Date
	if date == "" {
		date = time.Now().UTC().Format(reconcile.DateLayout)
	}
	if _, err := reconcile.ParseDate(date); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	doc, err := b.store.Get(ctx, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no snapshot for %s", date)
		}
		return err
	}
	return writeJSON(os.Stdout, doc)
}

func runIcons(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Upstream.IndexIn == "" {
		return fmt.Errorf("index input is required")
	}
	entries, err := upstream.ReadJSONL[model.TokenIconEntry](cfg.Upstream.IndexIn)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.Store.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.InsertTokenIcons(ctx, entries); err != nil {
		return err
	}

	logger.Info("icons imported",
		zap.String("in", cfg.Upstream.IndexIn),
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.Int("entries", len(entries)),
	)
	return nil
}
