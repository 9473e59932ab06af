package candle

import (
	"errors"
	"fmt"

	"poolDesk/internal/model"
)

// HourlyGapThreshold is the largest gap between hourly candles left unmarked.
const HourlyGapThreshold = 4 * Hour

var ErrUnordered = errors.New("candles not strictly ascending")

// FillHourlyGaps inserts a single flat marker candle at the hour-aligned midpoint of every
// gap wider than HourlyGapThreshold. The marker carries the close of the earlier candle.
// The series is not densified.
func FillHourlyGaps(candles []model.Candle) ([]model.Candle, error) {
	if err := checkOrder(candles); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(candles))
	for i, c := range candles {
		if i > 0 {
			prev := candles[i-1]
			gap := c.BucketStart - prev.BucketStart
			if gap > HourlyGapThreshold {
				mid := BucketStart(prev.BucketStart+gap/2, Hour)
				out = append(out, model.FlatCandle(mid, prev.Close))
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// FillDailyGaps inserts one flat candle per missing day between daily candles. Each inserted
// day carries the close of its immediate predecessor.
func FillDailyGaps(candles []model.Candle) ([]model.Candle, error) {
	if err := checkOrder(candles); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(candles))
	for i, c := range candles {
		if i > 0 {
			last := out[len(out)-1]
			for next := last.BucketStart + Day; next < c.BucketStart; next += Day {
				filler := model.FlatCandle(next, last.Close)
				out = append(out, filler)
				last = filler
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Fillers counts synthetic candles in a series.
func Fillers(candles []model.Candle) int {
	n := 0
	for _, c := range candles {
		if c.IsGapFiller {
			n++
		}
	}
	return n
}

func checkOrder(candles []model.Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].BucketStart <= candles[i-1].BucketStart {
			return fmt.Errorf("%w: bucket %d after %d", ErrUnordered, candles[i].BucketStart, candles[i-1].BucketStart)
		}
	}
	return nil
}
