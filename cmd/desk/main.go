package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "desk",
		Short:        "Pool analytics desk: candles, overlays and daily snapshots",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	candlesCmd := &cobra.Command{
		Use:   "candles",
		Short: "Build gap-filled OHLC candles for a pool",
		RunE:  runCandles,
	}
	addCandleFlags(candlesCmd.Flags())
	candlesCmd.Flags().String("out", "-", "output JSONL path (- for stdout)")
	root.AddCommand(candlesCmd)

	overlayCmd := &cobra.Command{
		Use:   "overlay",
		Short: "Compute safety-order and take-profit lines for a bot config",
		RunE:  runOverlay,
	}
	addCandleFlags(overlayCmd.Flags())
	overlayCmd.Flags().String("out", "-", "output JSONL path (- for stdout)")
	overlayCmd.Flags().String("price", "", "current price; empty uses the latest close of --pool")
	overlayCmd.Flags().Float64("price-deviation", 0, "first safety order deviation (0 < d < 1)")
	overlayCmd.Flags().Int("safety-orders", 0, "number of safety orders")
	overlayCmd.Flags().Float64("gap-multiplier", 1, "safety order gap multiplier")
	overlayCmd.Flags().Float64("take-profit", 0, "take profit fraction")
	root.AddCommand(overlayCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the daily pool snapshot for a date",
		RunE:  runReconcile,
	}
	addReconcileFlags(reconcileCmd.Flags())
	root.AddCommand(reconcileCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the stored daily pool snapshot for a date",
		RunE:  runSnapshot,
	}
	addStoreFlags(snapshotCmd.Flags())
	snapshotCmd.Flags().String("date", "", "snapshot date (YYYY-MM-DD), empty means today UTC")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(snapshotCmd)

	iconsCmd := &cobra.Command{
		Use:   "icons",
		Short: "Import a token icon index JSONL into Postgres",
		RunE:  runIcons,
	}
	iconsCmd.Flags().String("index-in", "", "token icon index JSONL")
	iconsCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	iconsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(iconsCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and optionally reconcile on a schedule",
		RunE:  runServe,
	}
	addReconcileFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("reconcile-interval", 0, "reconcile today's snapshot on this interval, 0 disables")
	serveCmd.Flags().Duration("history-window", 7*24*time.Hour, "trade fetch window for candle queries")
	serveCmd.Flags().Duration("cache-ttl", 24*time.Hour, "candle cache TTL")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addUpstreamFlags(fs *pflag.FlagSet) {
	fs.String("source", "subgraph", "market data source (subgraph, file)")
	fs.String("subgraph-url", "", "market data GraphQL endpoint")
	fs.Int("page-size", 1000, "records per page")
	fs.Int("max-pages", 0, "page limit per walk, 0 means unlimited")
	fs.Duration("page-timeout", 15*time.Second, "timeout per page request")
	fs.Duration("request-timeout", 30*time.Second, "HTTP client timeout")
	fs.Int("max-retries", 3, "maximum retry attempts per page")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addCandleFlags(fs *pflag.FlagSet) {
	addUpstreamFlags(fs)
	fs.String("trades-in", "", "swaps JSONL when --source=file")
	fs.String("pool", "", "pool address")
	fs.String("basis", "usd", "price basis (usd, tradeToken)")
	fs.String("resolution", "hour", "candle resolution (hour, day)")
	fs.String("start", "", "range start (unix seconds or RFC3339)")
	fs.String("end", "", "range end (unix seconds or RFC3339)")
	fs.Duration("history-window", 7*24*time.Hour, "trade fetch window when a start is given")
	fs.String("redis-addr", "", "redis address for the candle cache")
	fs.Duration("cache-ttl", 24*time.Hour, "candle cache TTL")
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("store", "memory", "snapshot store (memory, file, postgres)")
	fs.String("state-dir", "./data/snapshots", "snapshot directory for the file store")
	fs.String("pg-dsn", "", "Postgres DSN")
	fs.String("redis-addr", "", "redis address for the distributed lock")
}

func addReconcileFlags(fs *pflag.FlagSet) {
	addUpstreamFlags(fs)
	addStoreFlags(fs)
	fs.String("pool-days-in", "", "pool day statistics JSONL when --source=file")
	fs.String("index-in", "", "token icon index JSONL; empty reads the Postgres index")
	fs.String("date", "", "snapshot date (YYYY-MM-DD), empty means today UTC")
	fs.Duration("pass-timeout", 5*time.Minute, "timeout for one reconciliation pass")
	fs.Duration("lock-ttl", 10*time.Minute, "distributed lock lease")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers for snapshot events (comma-separated)")
	fs.String("kafka-topic", "pool-snapshots", "Kafka topic for snapshot events")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
