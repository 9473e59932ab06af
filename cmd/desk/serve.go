package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolDesk/internal/api"
	"poolDesk/internal/cache"
	"poolDesk/internal/candle"
	"poolDesk/internal/config"
	"poolDesk/internal/metrics"
	"poolDesk/internal/reconcile"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Reconcile.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Reconcile.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	b, err := openBackend(ctx, cfg.Reconcile, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	rec, err := newReconciler(cfg.Reconcile, b, logger, m)
	if err != nil {
		return err
	}

	source, err := newTradeSource(cfg.Reconcile.Upstream, logger)
	if err != nil {
		return err
	}
	var candleCache candle.Cache
	if b.redis != nil {
		candleCache = cache.NewRedisCandleCache(b.redis, "", cfg.CacheTTL)
	}
	candles := candle.NewService(source, candleCache, candle.ServiceConfig{
		Pager:         newPager(cfg.Reconcile.Upstream),
		HistoryWindow: cfg.HistoryWindow,
	}, logger, m)

	router := api.NewRouter(api.NewHandler(candles, rec, logger), reg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server start", zap.String("listen", cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.ReconcileInterval > 0 {
		go reconcileLoop(ctx, rec, cfg.ReconcileInterval, logger)
	}

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	logger.Info("http server shutdown", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reconcileLoop reconciles today's snapshot once at start and then on every tick.
// Failures are logged by the reconciler and retried on the next tick.
func reconcileLoop(ctx context.Context, rec *reconcile.Reconciler, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("reconcile loop start", zap.Duration("interval", interval))
	for {
		_, _ = rec.Run(ctx, rec.Today())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
