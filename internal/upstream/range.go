package upstream

import "fmt"

// TimeRange is an inclusive range of unix seconds.
type TimeRange struct {
	From int64
	To   int64
}

// SplitRange splits a time range into consecutive windows of at most width seconds.
func SplitRange(from, to, width int64) ([]TimeRange, error) {
	if width <= 0 {
		return nil, fmt.Errorf("window width must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end must be >= range start")
	}

	ranges := make([]TimeRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end int64
		if remaining <= width {
			end = to
		} else {
			end = start + width - 1
		}
		ranges = append(ranges, TimeRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
