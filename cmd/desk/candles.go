package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolDesk/internal/cache"
	"poolDesk/internal/candle"
	"poolDesk/internal/config"
	"poolDesk/internal/overlay"
)

func runCandles(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCandles(cfgFile, cmd.Flags())
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

	series, err := buildSeries(ctx, cfg, logger)
	if err != nil {
		return err
	}

	writer, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	for _, c := range series.Candles {
		if err := writer.Write(c); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	logger.Info("candles done",
		zap.String("pool", series.Pool),
		zap.String("basis", string(series.Basis)),
		zap.Int64("resolution", series.Resolution),
		zap.Int("candles", len(series.Candles)),
		zap.Int("gap_fillers", candle.Fillers(series.Candles)),
		zap.String("out", cfg.Out),
	)
	if series.Incomplete {
		return fmt.Errorf("incomplete series: %s", series.Error)
	}
	return nil
}

func runOverlay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOverlay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Candles.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := overlay.Validate(cfg.Bot); err != nil {
		return err
	}

	var price decimal.Decimal
	if cfg.Price != "" {
		price, err = decimal.NewFromString(cfg.Price)
		if err != nil {
			return fmt.Errorf("parse price: %w", err)
		}
	} else {
		if cfg.Candles.Pool == "" {
			return fmt.Errorf("price or pool is required")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		series, err := buildSeries(ctx, cfg.Candles, logger)
		if err != nil {
			return err
		}
		last, ok := series.Last()
		if !ok {
			if series.Incomplete {
				return fmt.Errorf("no candles for pool: %s", series.Error)
			}
			return fmt.Errorf("no candles for pool %s", series.Pool)
		}
		price = last
	}

	lines, err := overlay.Calculate(price, cfg.Bot)
	if err != nil {
		return err
	}

	writer, err := newJSONLWriter(cfg.Candles.Out)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := writer.Write(line); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	logger.Info("overlay done",
		zap.String("price", price.String()),
		zap.Int("lines", len(lines)),
		zap.String("out", cfg.Candles.Out),
	)
	return nil
}

func buildSeries(ctx context.Context, cfg config.CandlesConfig, logger *zap.Logger) (candle.Series, error) {
	if cfg.Pool == "" {
		return candle.Series{}, fmt.Errorf("pool is required")
	}
	basis, err := candle.ParseBasis(cfg.Basis)
	if err != nil {
		return candle.Series{}, err
	}
	resolution, err := candle.ParseResolution(cfg.Resolution)
	if err != nil {
		return candle.Series{}, err
	}

	source, err := newTradeSource(cfg.Upstream, logger)
	if err != nil {
		return candle.Series{}, err
	}

	var candleCache candle.Cache
	if cfg.RedisAddr != "" {
		client, err := newRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return candle.Series{}, err
		}
		defer client.Close()
		candleCache = cache.NewRedisCandleCache(client, "", cfg.CacheTTL)
	}

	svc := candle.NewService(source, candleCache, candle.ServiceConfig{
		Pager:         newPager(cfg.Upstream),
		HistoryWindow: cfg.HistoryWindow,
	}, logger, nil)

	logger.Info("candles start",
		zap.String("source", cfg.Upstream.Source),
		zap.String("pool", cfg.Pool),
		zap.String("basis", string(basis)),
		zap.Int64("resolution", resolution),
		zap.Int64("start", cfg.Start),
		zap.Int64("end", cfg.End),
		zap.Bool("cache", candleCache != nil),
	)

	return svc.GetCandles(ctx, candle.Query{
		Pool:       cfg.Pool,
		Basis:      basis,
		Resolution: resolution,
		Start:      cfg.Start,
		End:        cfg.End,
	})
}

// jsonlWriter writes one JSON value per line. Path "-" writes to stdout.
type jsonlWriter struct {
	closer io.Closer
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	if path == "" || path == "-" {
		return &jsonlWriter{writer: bufio.NewWriter(os.Stdout)}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		closer: file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
