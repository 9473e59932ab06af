package candle

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
)

// Bucket widths in seconds.
const (
	Hour int64 = 3600
	Day  int64 = 24 * Hour
)

var (
	ErrZeroAmount0      = errors.New("zero amount0")
	ErrInvalidAmountUSD = errors.New("negative amountUSD")
	ErrUnknownBasis     = errors.New("unknown price basis")
	ErrInvalidInterval  = errors.New("invalid bucket interval")
)

// PriceBasis selects how a trade is priced.
type PriceBasis string

const (
	// BasisTradeToken prices a trade as |amount1| / |amount0|.
	BasisTradeToken PriceBasis = "tradeToken"
	// BasisUSD prices a trade as amountUSD / |amount0|.
	BasisUSD PriceBasis = "usd"
)

// ParseBasis accepts "usd" or "tradeToken" in any case.
func ParseBasis(input string) (PriceBasis, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "usd":
		return BasisUSD, nil
	case "tradetoken", "trade-token", "token":
		return BasisTradeToken, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBasis, input)
	}
}

// ParseResolution accepts "hour" / "1h" or "day" / "1d".
func ParseResolution(input string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "hour", "1h":
		return Hour, nil
	case "day", "1d":
		return Day, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, input)
	}
}

// TradePrice computes the price of a single trade. A zero amount0 has no defined price.
func TradePrice(trade model.TradeRecord, basis PriceBasis) (decimal.Decimal, error) {
	if trade.Amount0.IsZero() {
		return decimal.Zero, ErrZeroAmount0
	}
	denom := trade.Amount0.Abs()

	switch basis {
	case BasisTradeToken:
		return trade.Amount1.Abs().Div(denom), nil
	case BasisUSD:
		if trade.AmountUSD.IsNegative() {
			return decimal.Zero, ErrInvalidAmountUSD
		}
		return trade.AmountUSD.Div(denom), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownBasis, basis)
	}
}

// Config controls aggregation.
type Config struct {
	Basis    PriceBasis
	Interval int64
}

// Stats summarizes one aggregation run.
type Stats struct {
	Total   int
	Skipped int
	Candles int
}

// Aggregator buckets trades into fixed-width OHLC candles.
type Aggregator struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAggregator(cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Aggregator, error) {
	if cfg.Basis != BasisUSD && cfg.Basis != BasisTradeToken {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBasis, cfg.Basis)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, cfg.Interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{cfg: cfg, logger: logger, metrics: m}, nil
}

type accumulator struct {
	start  int64
	open   decimal.Decimal
	high   decimal.Decimal
	low    decimal.Decimal
	close  decimal.Decimal
	trades int
	volume decimal.Decimal
}

func newAccumulator(start int64, price, volume decimal.Decimal) *accumulator {
	return &accumulator{
		start:  start,
		open:   price,
		high:   price,
		low:    price,
		close:  price,
		trades: 1,
		volume: volume,
	}
}

func (a *accumulator) add(price, volume decimal.Decimal) {
	if price.GreaterThan(a.high) {
		a.high = price
	}
	if price.LessThan(a.low) {
		a.low = price
	}
	a.close = price
	a.trades++
	a.volume = a.volume.Add(volume)
}

func (a *accumulator) candle() model.Candle {
	c := model.Candle{
		BucketStart: a.start,
		Open:        a.open,
		High:        a.high,
		Low:         a.low,
		Close:       a.close,
		Trades:      a.trades,
		VolumeUSD:   a.volume,
	}
	c.IsFlatBar = c.Flat()
	return c
}

// Aggregate produces one candle per bucket holding at least one valid trade, ascending by
// bucket start. Trades are ordered by timestamp first; equal timestamps keep input order.
func (a *Aggregator) Aggregate(trades []model.TradeRecord) ([]model.Candle, Stats) {
	stats := Stats{Total: len(trades)}
	if len(trades) == 0 {
		return nil, stats
	}

	ordered := make([]model.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	candles := make([]model.Candle, 0)
	var acc *accumulator
	for _, trade := range ordered {
		price, err := TradePrice(trade, a.cfg.Basis)
		if err != nil {
			stats.Skipped++
			a.metrics.TradeSkipped(skipReason(err))
			a.logger.Warn("skip trade", zap.Error(err), zap.Int64("timestamp", trade.Timestamp))
			continue
		}

		start := BucketStart(trade.Timestamp, a.cfg.Interval)
		if acc != nil && acc.start != start {
			candles = append(candles, acc.candle())
			acc = nil
		}
		if acc == nil {
			acc = newAccumulator(start, price, trade.AmountUSD.Abs())
			continue
		}
		acc.add(price, trade.AmountUSD.Abs())
	}
	if acc != nil {
		candles = append(candles, acc.candle())
	}

	stats.Candles = len(candles)
	a.metrics.CandlesAdded(len(candles))
	return candles, stats
}

// Aggregate is a one-shot helper around Aggregator.
func Aggregate(trades []model.TradeRecord, basis PriceBasis, interval int64) ([]model.Candle, error) {
	agg, err := NewAggregator(Config{Basis: basis, Interval: interval}, nil, nil)
	if err != nil {
		return nil, err
	}
	candles, _ := agg.Aggregate(trades)
	return candles, nil
}

// BucketStart truncates ts down to the start of its bucket.
func BucketStart(ts, width int64) int64 {
	r := ts % width
	if r < 0 {
		r += width
	}
	return ts - r
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrZeroAmount0):
		return "zero_amount0"
	case errors.Is(err, ErrInvalidAmountUSD):
		return "negative_amount_usd"
	default:
		return "invalid"
	}
}
