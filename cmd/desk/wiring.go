package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"poolDesk/internal/candle"
	"poolDesk/internal/config"
	"poolDesk/internal/events"
	"poolDesk/internal/identity"
	"poolDesk/internal/lock"
	"poolDesk/internal/metrics"
	"poolDesk/internal/reconcile"
	"poolDesk/internal/storage"
	"poolDesk/internal/storage/file"
	"poolDesk/internal/storage/memory"
	"poolDesk/internal/storage/postgres"
	"poolDesk/internal/upstream"
)

const (
	lockPrefix  = "desk:lock:"
	lockRetry   = 250 * time.Millisecond
	pingTimeout = 5 * time.Second
)

func newPager(cfg config.UpstreamConfig) upstream.Pager {
	return upstream.Pager{
		PageSize:     cfg.PageSize,
		MaxPages:     cfg.MaxPages,
		PageTimeout:  cfg.PageTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
}

func newTradeSource(cfg config.UpstreamConfig, logger *zap.Logger) (candle.TradeSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == "file" {
		if cfg.TradesIn == "" {
			return nil, fmt.Errorf("trades input is required for file source")
		}
		return upstream.NewFileTradeSource(cfg.TradesIn), nil
	}
	return upstream.NewSubgraphClient(cfg.SubgraphURL, cfg.RequestTimeout, logger), nil
}

func newPoolDaySource(cfg config.UpstreamConfig, logger *zap.Logger) (reconcile.PoolDaySource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == "file" {
		if cfg.PoolDaysIn == "" {
			return nil, fmt.Errorf("pool days input is required for file source")
		}
		return upstream.NewFilePoolDaySource(cfg.PoolDaysIn), nil
	}
	return upstream.NewSubgraphClient(cfg.SubgraphURL, cfg.RequestTimeout, logger), nil
}

func newRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// backend holds the stateful collaborators of reconciliation and snapshot reads.
type backend struct {
	store     storage.SnapshotStore
	pg        *postgres.Store
	redis     *redis.Client
	locker    lock.Locker
	publisher events.Publisher
	index     identity.Source
}

func openBackend(ctx context.Context, cfg config.ReconcileConfig, logger *zap.Logger) (*backend, error) {
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}

	b := &backend{publisher: events.Nop{}}
	switch cfg.Store.Kind {
	case "file":
		store, err := file.NewSnapshotStore(cfg.Store.StateDir)
		if err != nil {
			return nil, err
		}
		b.store = store
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.Store.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		b.store = store
		b.pg = store
	default:
		b.store = memory.NewSnapshotStore()
	}

	if cfg.Store.RedisAddr != "" {
		client, err := newRedisClient(ctx, cfg.Store.RedisAddr)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.redis = client
		b.locker = lock.NewRedisLocker(client, lockPrefix, cfg.LockTTL, lockRetry)
	} else {
		b.locker = lock.NewKeyedMutex()
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.publisher = publisher
	}

	switch {
	case cfg.Upstream.IndexIn != "":
		b.index = identity.FileSource{Path: cfg.Upstream.IndexIn}
	case b.pg != nil:
		b.index = b.pg
	default:
		logger.Warn("no token icon index configured, icons will be unresolved")
		b.index = identity.StaticSource(nil)
	}

	logger.Info("backend ready",
		zap.String("store", cfg.Store.Kind),
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.Bool("redis_lock", b.redis != nil),
		zap.Strings("kafka_brokers", cfg.Events.KafkaBrokers),
	)
	return b, nil
}

func (b *backend) Close() {
	if b.publisher != nil {
		b.publisher.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
	if b.pg != nil {
		b.pg.Close()
	}
}

func newReconciler(cfg config.ReconcileConfig, b *backend, logger *zap.Logger, m *metrics.Metrics) (*reconcile.Reconciler, error) {
	source, err := newPoolDaySource(cfg.Upstream, logger)
	if err != nil {
		return nil, err
	}
	return reconcile.New(reconcile.Deps{
		Source:    source,
		Index:     b.index,
		Store:     b.store,
		Locker:    b.locker,
		Publisher: b.publisher,
		Logger:    logger,
		Metrics:   m,
	}, reconcile.Config{
		Pager:       newPager(cfg.Upstream),
		PassTimeout: cfg.PassTimeout,
	})
}
