package upstream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"poolDesk/internal/model"
)

// TradeFromWire converts an upstream swap into a TradeRecord.
func TradeFromWire(w model.SwapWire) (model.TradeRecord, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(w.Timestamp), 10, 64)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("parse timestamp %q: %w", w.Timestamp, err)
	}
	amount0, err := ParseDecimal(w.Amount0)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("parse amount0: %w", err)
	}
	amount1, err := ParseDecimal(w.Amount1)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("parse amount1: %w", err)
	}
	amountUSD, err := ParseDecimal(w.AmountUSD)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("parse amountUSD: %w", err)
	}

	return model.TradeRecord{
		Timestamp: ts,
		Amount0:   amount0,
		Amount1:   amount1,
		AmountUSD: amountUSD,
	}, nil
}

// ParseDecimal parses a decimal string; an empty value is zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// ParseInt parses a base-10 integer string; an empty value is zero.
func ParseInt(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
