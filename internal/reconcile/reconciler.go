// Package reconcile builds and merges the per-day pool snapshot from upstream daily statistics.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poolDesk/internal/events"
	"poolDesk/internal/identity"
	"poolDesk/internal/lock"
	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
	"poolDesk/internal/storage"
	"poolDesk/internal/upstream"
)

// DateLayout is the snapshot key format.
const DateLayout = "2006-01-02"

const defaultMergeAttempts = 3

var ErrInvalidDate = errors.New("invalid snapshot date")

// PoolDaySource fetches one page of daily pool statistics.
type PoolDaySource interface {
	FetchPoolDays(ctx context.Context, skip, first int) ([]model.PoolDayWire, error)
}

// Config controls one reconciliation pass.
type Config struct {
	Pager         upstream.Pager
	PassTimeout   time.Duration
	MergeAttempts int
}

// Deps are the collaborators of a Reconciler. Locker, Publisher, Logger and Metrics are optional.
type Deps struct {
	Source    PoolDaySource
	Index     identity.Source
	Store     storage.SnapshotStore
	Locker    lock.Locker
	Publisher events.Publisher
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Result summarizes a pass. PoolCount is zero when the pass failed.
type Result struct {
	RunID      string `json:"runId"`
	Date       string `json:"date"`
	PoolCount  int    `json:"poolCount"`
	Fetched    int    `json:"fetched"`
	Retained   int    `json:"retained"`
	Skipped    int    `json:"skipped"`
	Ambiguous  int    `json:"ambiguous"`
	Unresolved int    `json:"unresolved"`
	Pages      int    `json:"pages"`
	Version    int64  `json:"version"`
}

// Reconciler runs reconciliation passes. Passes for the same date are serialized by the
// Locker, and the store write is a compare-and-swap on the document version.
type Reconciler struct {
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) (*Reconciler, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("pool day source is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("token index source is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MergeAttempts <= 0 {
		cfg.MergeAttempts = defaultMergeAttempts
	}
	if cfg.Pager.Source == "" {
		cfg.Pager.Source = "pool_days"
	}
	cfg.Pager.Logger = deps.Logger
	cfg.Pager.Metrics = deps.Metrics
	return &Reconciler{deps: deps, cfg: cfg}, nil
}

// ParseDate validates a YYYY-MM-DD snapshot key.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil || t.Format(DateLayout) != date {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// Today returns the current UTC date key.
func (r *Reconciler) Today() string {
	return r.deps.Now().UTC().Format(DateLayout)
}

// Run performs one pass for date and persists the merged snapshot. On failure nothing is
// written and the returned Result carries a zero PoolCount.
func (r *Reconciler) Run(ctx context.Context, date string) (Result, error) {
	res := Result{RunID: uuid.NewString(), Date: date}
	logger := r.deps.Logger.With(zap.String("run_id", res.RunID), zap.String("date", date))

	fail := func(err error) (Result, error) {
		res.PoolCount = 0
		res.Version = 0
		r.deps.Metrics.ReconcileFinished("failure")
		logger.Error("reconcile pass failed", zap.Error(err), zap.Int("pages", res.Pages), zap.Int("fetched", res.Fetched))
		return res, err
	}

	if _, err := ParseDate(date); err != nil {
		return fail(err)
	}

	unlock, err := r.deps.Locker.Lock(ctx, "snapshot:"+date)
	if err != nil {
		return fail(fmt.Errorf("lock snapshot %s: %w", date, err))
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			logger.Warn("release lock failed", zap.Error(err))
		}
	}()

	passCtx := ctx
	if r.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, r.cfg.PassTimeout)
		defer cancel()
	}

	index, err := identity.Load(passCtx, r.deps.Index)
	if err != nil {
		return fail(fmt.Errorf("load token index: %w", err))
	}
	resolver := identity.NewResolver(index, logger, r.deps.Metrics)
	logger.Debug("token index loaded", zap.Int("symbols", index.Len()))

	pools := make(map[string]model.PoolSnapshotEntry)
	res.Pages, err = upstream.Paginate(passCtx, r.cfg.Pager, r.deps.Source.FetchPoolDays, func(page []model.PoolDayWire) error {
		for _, rec := range page {
			res.Fetched++
			if time.Unix(rec.Date, 0).UTC().Format(DateLayout) != date {
				continue
			}
			entry, outcomes, err := buildEntry(rec, date, resolver)
			if err != nil {
				res.Skipped++
				logger.Warn("skip pool day", zap.Error(err), zap.String("pool", rec.Pool.ID))
				continue
			}
			for _, o := range outcomes {
				switch o {
				case identity.Ambiguous:
					res.Ambiguous++
				case identity.Unresolved:
					res.Unresolved++
				}
			}
			res.Retained++
			pools[entry.Address] = entry
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	doc, err := r.merge(passCtx, date, pools, logger)
	if err != nil {
		return fail(err)
	}
	res.PoolCount = doc.PoolCount
	res.Version = doc.Version

	r.deps.Metrics.ReconcileFinished("success")
	r.deps.Metrics.SnapshotPersisted(date, doc.PoolCount)
	logger.Info("reconcile pass complete",
		zap.Int("pool_count", res.PoolCount),
		zap.Int("pages", res.Pages),
		zap.Int("fetched", res.Fetched),
		zap.Int("retained", res.Retained),
		zap.Int("skipped", res.Skipped),
		zap.Int("ambiguous", res.Ambiguous),
		zap.Int("unresolved", res.Unresolved),
		zap.Int64("version", res.Version),
	)

	evt := events.SnapshotReconciled{
		RunID:       res.RunID,
		Date:        date,
		PoolCount:   doc.PoolCount,
		Retained:    res.Retained,
		Version:     doc.Version,
		LastUpdated: doc.LastUpdated,
	}
	if err := r.deps.Publisher.PublishReconciled(ctx, evt); err != nil {
		logger.Warn("publish reconciled event failed", zap.Error(err))
	}
	return res, nil
}

func (r *Reconciler) merge(ctx context.Context, date string, pools map[string]model.PoolSnapshotEntry, logger *zap.Logger) (*model.DailySnapshotDocument, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MergeAttempts; attempt++ {
		current, err := r.deps.Store.Get(ctx, date)
		var expected int64
		switch {
		case err == nil:
			expected = current.Version
		case errors.Is(err, storage.ErrNotFound):
			current = &model.DailySnapshotDocument{Date: date}
		default:
			return nil, fmt.Errorf("load snapshot: %w", err)
		}

		doc := current.Clone()
		for addr, entry := range pools {
			doc.Pools[addr] = entry
		}
		doc.Date = date
		doc.PoolCount = len(doc.Pools)
		doc.LastUpdated = r.deps.Now().UTC()

		err = r.deps.Store.Put(ctx, doc, expected)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		lastErr = err
		logger.Warn("snapshot changed during merge, retrying", zap.Int("attempt", attempt), zap.Int64("expected", expected))
	}
	return nil, fmt.Errorf("save snapshot after %d attempts: %w", r.cfg.MergeAttempts, lastErr)
}

// Snapshot returns the persisted document for date, or storage.ErrNotFound.
func (r *Reconciler) Snapshot(ctx context.Context, date string) (*model.DailySnapshotDocument, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return r.deps.Store.Get(ctx, date)
}

func buildEntry(rec model.PoolDayWire, date string, resolver *identity.Resolver) (model.PoolSnapshotEntry, []identity.Outcome, error) {
	address, err := upstream.NormalizeAddress(rec.Pool.ID)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, err
	}
	volume, err := upstream.ParseDecimal(rec.VolumeUSD)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse volumeUSD: %w", err)
	}
	txCount, err := upstream.ParseInt(rec.TxCount)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse txCount: %w", err)
	}
	feeTier, err := upstream.ParseInt(rec.FeeTier)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse feeTier: %w", err)
	}
	liquidity, err := upstream.ParseDecimal(rec.Pool.Liquidity)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse liquidity: %w", err)
	}
	price0, err := upstream.ParseDecimal(rec.Pool.Token0Price)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse token0Price: %w", err)
	}
	price1, err := upstream.ParseDecimal(rec.Pool.Token1Price)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse token1Price: %w", err)
	}
	createdAt, err := upstream.ParseInt(rec.Pool.CreatedAtTimestamp)
	if err != nil {
		return model.PoolSnapshotEntry{}, nil, fmt.Errorf("parse createdAtTimestamp: %w", err)
	}

	token0, o0 := resolver.Token(rec.Pool.Token0)
	token1, o1 := resolver.Token(rec.Pool.Token1)

	return model.PoolSnapshotEntry{
		Address:            address,
		Token0:             token0,
		Token1:             token1,
		VolumeUSD:          volume,
		TxCount:            txCount,
		FeeTier:            int(feeTier),
		Liquidity:          liquidity,
		Token0Price:        price0,
		Token1Price:        price1,
		CreatedAtTimestamp: createdAt,
		Date:               date,
	}, []identity.Outcome{o0, o1}, nil
}
