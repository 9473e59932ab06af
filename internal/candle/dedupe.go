package candle

import (
	"sort"

	"poolDesk/internal/model"
)

// Deduplicate keeps exactly one candle per bucket start. Within a bucket the first candle
// carrying price movement wins; if every candle is flat the first one seen is kept.
// The result is sorted ascending by bucket start.
func Deduplicate(candles []model.Candle) []model.Candle {
	if len(candles) == 0 {
		return nil
	}

	index := make(map[int64]int, len(candles))
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		i, seen := index[c.BucketStart]
		if !seen {
			index[c.BucketStart] = len(out)
			out = append(out, c)
			continue
		}
		if out[i].IsFlatBar && !c.IsFlatBar {
			out[i] = c
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BucketStart < out[j].BucketStart
	})
	return out
}
