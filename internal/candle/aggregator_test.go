package candle

import (
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(ts int64, a0, a1, usd string) model.TradeRecord {
	return model.TradeRecord{Timestamp: ts, Amount0: d(a0), Amount1: d(a1), AmountUSD: d(usd)}
}

func assertOHLC(t *testing.T, c model.Candle, open, high, low, close string) {
	t.Helper()
	assert.True(t, c.Open.Equal(d(open)), "open %s != %s", c.Open, open)
	assert.True(t, c.High.Equal(d(high)), "high %s != %s", c.High, high)
	assert.True(t, c.Low.Equal(d(low)), "low %s != %s", c.Low, low)
	assert.True(t, c.Close.Equal(d(close)), "close %s != %s", c.Close, close)
}

func TestAggregateUSDBasis(t *testing.T) {
	trades := []model.TradeRecord{
		trade(0, "-10", "1", "50"),
		trade(1800, "-10", "1", "55"),
		trade(3600, "-10", "1", "60"),
	}

	candles, err := Aggregate(trades, BasisUSD, Hour)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(0), candles[0].BucketStart)
	assertOHLC(t, candles[0], "5", "5.5", "5", "5.5")
	assert.False(t, candles[0].IsFlatBar)
	assert.Equal(t, 2, candles[0].Trades)
	assert.True(t, candles[0].VolumeUSD.Equal(d("105")))

	assert.Equal(t, int64(3600), candles[1].BucketStart)
	assertOHLC(t, candles[1], "6", "6", "6", "6")
	assert.True(t, candles[1].IsFlatBar)
	assert.False(t, candles[1].IsGapFiller)
}

func TestAggregateTradeTokenBasis(t *testing.T) {
	trades := []model.TradeRecord{
		trade(100, "4", "-8", "0"),
		trade(200, "-2", "6", "0"),
	}

	candles, err := Aggregate(trades, BasisTradeToken, Hour)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assertOHLC(t, candles[0], "2", "3", "2", "3")
}

func TestAggregateOrdersByTimestamp(t *testing.T) {
	trades := []model.TradeRecord{
		trade(1800, "-10", "1", "55"),
		trade(0, "-10", "1", "50"),
		trade(900, "-10", "1", "40"),
	}

	candles, err := Aggregate(trades, BasisUSD, Hour)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assertOHLC(t, candles[0], "5", "5.5", "4", "5.5")
}

func TestAggregateEqualTimestampsKeepInputOrder(t *testing.T) {
	trades := []model.TradeRecord{
		trade(60, "-1", "1", "7"),
		trade(60, "-1", "1", "3"),
	}

	candles, err := Aggregate(trades, BasisUSD, Hour)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assertOHLC(t, candles[0], "7", "7", "3", "3")
}

func TestAggregateSkipsInvalidTrades(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agg, err := NewAggregator(Config{Basis: BasisUSD, Interval: Hour}, nil, m)
	require.NoError(t, err)

	candles, stats := agg.Aggregate([]model.TradeRecord{
		trade(0, "0", "1", "50"),
		trade(10, "-10", "1", "-5"),
		trade(20, "-10", "1", "20"),
	})

	require.Len(t, candles, 1)
	assertOHLC(t, candles[0], "2", "2", "2", "2")
	assert.Equal(t, Stats{Total: 3, Skipped: 2, Candles: 1}, stats)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSkipped.WithLabelValues("zero_amount0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSkipped.WithLabelValues("negative_amount_usd")))
}

func TestAggregateEmpty(t *testing.T) {
	candles, err := Aggregate(nil, BasisUSD, Hour)
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestAggregateDailyInterval(t *testing.T) {
	trades := []model.TradeRecord{
		trade(3600, "-1", "1", "10"),
		trade(Day-1, "-1", "1", "12"),
		trade(Day+5, "-1", "1", "11"),
	}

	candles, err := Aggregate(trades, BasisUSD, Day)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(0), candles[0].BucketStart)
	assert.Equal(t, Day, candles[1].BucketStart)
}

func TestNewAggregatorRejectsBadConfig(t *testing.T) {
	_, err := NewAggregator(Config{Basis: "eth", Interval: Hour}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownBasis)

	_, err = NewAggregator(Config{Basis: BasisUSD}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestTradePrice(t *testing.T) {
	_, err := TradePrice(trade(0, "0", "1", "1"), BasisTradeToken)
	assert.ErrorIs(t, err, ErrZeroAmount0)

	price, err := TradePrice(trade(0, "-4", "-2", "8"), BasisTradeToken)
	require.NoError(t, err)
	assert.True(t, price.Equal(d("0.5")))

	price, err = TradePrice(trade(0, "-4", "-2", "8"), BasisUSD)
	require.NoError(t, err)
	assert.True(t, price.Equal(d("2")))
}

func TestParseBasisAndResolution(t *testing.T) {
	basis, err := ParseBasis("USD")
	require.NoError(t, err)
	assert.Equal(t, BasisUSD, basis)

	basis, err = ParseBasis("tradeToken")
	require.NoError(t, err)
	assert.Equal(t, BasisTradeToken, basis)

	_, err = ParseBasis("btc")
	assert.ErrorIs(t, err, ErrUnknownBasis)

	res, err := ParseResolution("")
	require.NoError(t, err)
	assert.Equal(t, Hour, res)

	res, err = ParseResolution("day")
	require.NoError(t, err)
	assert.Equal(t, Day, res)

	_, err = ParseResolution("week")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestBucketStartNegative(t *testing.T) {
	assert.Equal(t, int64(-3600), BucketStart(-1, Hour))
	assert.Equal(t, int64(7200), BucketStart(7299, Hour))
}

func TestAggregateOutputSortedAndUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		trades := make([]model.TradeRecord, 200)
		for i := range trades {
			a0 := decimal.NewFromInt(int64(rng.Intn(20) - 10))
			trades[i] = model.TradeRecord{
				Timestamp: rng.Int63n(5 * Day),
				Amount0:   a0,
				Amount1:   decimal.NewFromInt(int64(rng.Intn(100))),
				AmountUSD: decimal.NewFromInt(int64(rng.Intn(1000))),
			}
		}

		candles, err := Aggregate(trades, BasisUSD, Hour)
		require.NoError(t, err)
		for i, c := range candles {
			assert.Zero(t, c.BucketStart%Hour)
			assert.True(t, c.Low.LessThanOrEqual(c.Open) && c.Open.LessThanOrEqual(c.High))
			assert.True(t, c.Low.LessThanOrEqual(c.Close) && c.Close.LessThanOrEqual(c.High))
			assert.Equal(t, c.Flat(), c.IsFlatBar)
			if i > 0 {
				assert.Greater(t, c.BucketStart, candles[i-1].BucketStart)
			}
		}
	}
}
