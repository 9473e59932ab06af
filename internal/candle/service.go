package candle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
	"poolDesk/internal/upstream"
)

// TradeSource fetches one page of trades for a pool within [start, end]. end <= 0 is unbounded.
type TradeSource interface {
	FetchTrades(ctx context.Context, pool string, skip, first int, start, end int64) ([]model.TradeRecord, error)
}

// Cache stores real candles between requests.
type Cache interface {
	Load(ctx context.Context, key string) ([]model.Candle, error)
	Store(ctx context.Context, key string, candles []model.Candle) error
}

// Query selects a candle series. Zero Start and End select the full history.
type Query struct {
	Pool       string
	Basis      PriceBasis
	Resolution int64
	Start      int64
	End        int64
}

// Series is a candle series for one pool. Incomplete is set when fetching stopped early;
// Candles then holds whatever was built from the trades received.
type Series struct {
	Pool       string         `json:"pool"`
	Basis      PriceBasis     `json:"basis"`
	Resolution int64          `json:"resolution"`
	Candles    []model.Candle `json:"candles"`
	Incomplete bool           `json:"incomplete"`
	Error      string         `json:"error,omitempty"`
}

// Last returns the close of the latest candle.
func (s Series) Last() (decimal.Decimal, bool) {
	if len(s.Candles) == 0 {
		return decimal.Zero, false
	}
	return s.Candles[len(s.Candles)-1].Close, true
}

type ServiceConfig struct {
	Pager         upstream.Pager
	HistoryWindow time.Duration
}

// Service runs fetch, aggregate, dedupe and gap-fill for a pool.
type Service struct {
	source  TradeSource
	cache   Cache
	cfg     ServiceConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService builds a Service. cache may be nil.
func NewService(source TradeSource, cache Cache, cfg ServiceConfig, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pager.Source == "" {
		cfg.Pager.Source = "trades"
	}
	cfg.Pager.Logger = logger
	cfg.Pager.Metrics = m
	return &Service{
		source:  source,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// GetCandles returns the gap-filled candle series for q. Invalid queries return an error;
// upstream failures return a partial Series instead.
func (s *Service) GetCandles(ctx context.Context, q Query) (Series, error) {
	pool, err := upstream.NormalizeAddress(q.Pool)
	if err != nil {
		return Series{}, err
	}
	if q.Resolution == 0 {
		q.Resolution = Hour
	}
	if q.Resolution != Hour && q.Resolution != Day {
		return Series{}, fmt.Errorf("%w: %d", ErrInvalidInterval, q.Resolution)
	}
	if q.End > 0 && q.End < q.Start {
		return Series{}, fmt.Errorf("invalid range: end %d before start %d", q.End, q.Start)
	}
	agg, err := NewAggregator(Config{Basis: q.Basis, Interval: q.Resolution}, s.logger, s.metrics)
	if err != nil {
		return Series{}, err
	}

	series := Series{Pool: pool, Basis: q.Basis, Resolution: q.Resolution}
	logger := s.logger.With(zap.String("pool", pool), zap.String("basis", string(q.Basis)))

	useCache := s.cache != nil && q.Start == 0 && q.End == 0
	key := cacheKey(pool, q.Basis, q.Resolution)
	var cached []model.Candle
	start := q.Start
	if useCache {
		cached, err = s.cache.Load(ctx, key)
		if err != nil {
			logger.Warn("load cached candles failed", zap.Error(err))
			cached = nil
		}
		if len(cached) > 0 {
			start = cached[len(cached)-1].BucketStart
		}
	}

	trades, fetchErr := s.fetchTrades(ctx, pool, start, q.End)
	if fetchErr != nil {
		series.Incomplete = true
		series.Error = fetchErr.Error()
		logger.Warn("fetch trades incomplete", zap.Error(fetchErr), zap.Int("trades", len(trades)))
	}

	fresh, stats := agg.Aggregate(trades)
	logger.Info("aggregated trades",
		zap.Int("total", stats.Total),
		zap.Int("skipped", stats.Skipped),
		zap.Int("candles", stats.Candles),
	)

	merged := make([]model.Candle, 0, len(fresh)+len(cached))
	merged = append(merged, fresh...)
	merged = append(merged, cached...)
	deduped := Deduplicate(merged)

	filled, policy, err := fill(deduped, q.Resolution)
	if err != nil {
		return Series{}, fmt.Errorf("fill gaps: %w", err)
	}
	s.metrics.GapFilled(policy, Fillers(filled))
	series.Candles = filled

	if useCache && fetchErr == nil && len(deduped) > 0 {
		if err := s.cache.Store(ctx, key, deduped); err != nil {
			logger.Warn("store cached candles failed", zap.Error(err))
		}
	}
	return series, nil
}

func (s *Service) fetchTrades(ctx context.Context, pool string, start, end int64) ([]model.TradeRecord, error) {
	windows := []upstream.TimeRange{{From: start, To: end}}
	width := int64(s.cfg.HistoryWindow / time.Second)
	if width > 0 && start > 0 {
		to := end
		if to <= 0 {
			to = s.now().Unix()
		}
		if to >= start {
			split, err := upstream.SplitRange(start, to, width)
			if err != nil {
				return nil, err
			}
			windows = split
		}
	}

	trades := make([]model.TradeRecord, 0)
	for _, w := range windows {
		window := w
		_, err := upstream.Paginate(ctx, s.cfg.Pager,
			func(ctx context.Context, skip, first int) ([]model.TradeRecord, error) {
				return s.source.FetchTrades(ctx, pool, skip, first, window.From, window.To)
			},
			func(page []model.TradeRecord) error {
				trades = append(trades, page...)
				return nil
			},
		)
		if err != nil {
			return trades, err
		}
	}
	return trades, nil
}

func fill(candles []model.Candle, resolution int64) ([]model.Candle, string, error) {
	if resolution == Day {
		out, err := FillDailyGaps(candles)
		return out, "daily", err
	}
	out, err := FillHourlyGaps(candles)
	return out, "hourly", err
}

func cacheKey(pool string, basis PriceBasis, resolution int64) string {
	return fmt.Sprintf("%s:%s:%d", pool, basis, resolution)
}
