package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"poolDesk/internal/model"
)

// ReadJSONL decodes every non-blank line of a JSONL file into T.
func ReadJSONL[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var out []T
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", lineNo, err)
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return out, nil
}

type fileSwap struct {
	Pool string `json:"pool"`
	model.SwapWire
}

// FileTradeSource serves trades from a JSONL file of swaps. Lines without a pool match every pool.
type FileTradeSource struct {
	path string

	once  sync.Once
	swaps []fileSwap
	err   error
}

func NewFileTradeSource(path string) *FileTradeSource {
	return &FileTradeSource{path: path}
}

func (s *FileTradeSource) load() error {
	s.once.Do(func() {
		s.swaps, s.err = ReadJSONL[fileSwap](s.path)
	})
	return s.err
}

// FetchTrades returns one page of trades for pool within [start, end]. end <= 0 means unbounded.
func (s *FileTradeSource) FetchTrades(ctx context.Context, pool string, skip, first int, start, end int64) ([]model.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	matched := make([]model.TradeRecord, 0)
	for _, swap := range s.swaps {
		if swap.Pool != "" {
			addr, err := NormalizeAddress(swap.Pool)
			if err != nil || addr != pool {
				continue
			}
		}
		trade, err := TradeFromWire(swap.SwapWire)
		if err != nil {
			return nil, err
		}
		if trade.Timestamp < start || (end > 0 && trade.Timestamp > end) {
			continue
		}
		matched = append(matched, trade)
	}
	return pageOf(matched, skip, first), nil
}

// FilePoolDaySource serves daily pool statistics from a JSONL file.
type FilePoolDaySource struct {
	path string

	once sync.Once
	days []model.PoolDayWire
	err  error
}

func NewFilePoolDaySource(path string) *FilePoolDaySource {
	return &FilePoolDaySource{path: path}
}

// FetchPoolDays returns one page of daily pool statistics in file order.
func (s *FilePoolDaySource) FetchPoolDays(ctx context.Context, skip, first int) ([]model.PoolDayWire, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.once.Do(func() {
		s.days, s.err = ReadJSONL[model.PoolDayWire](s.path)
	})
	if s.err != nil {
		return nil, s.err
	}
	return pageOf(s.days, skip, first), nil
}

func pageOf[T any](items []T, skip, first int) []T {
	if skip >= len(items) || first <= 0 {
		return nil
	}
	end := skip + first
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-skip)
	copy(out, items[skip:end])
	return out
}
