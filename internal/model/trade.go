package model

import "github.com/shopspring/decimal"

// TradeRecord is one swap against a pool. The sign of Amount0/Amount1 gives direction.
type TradeRecord struct {
	Timestamp int64           `json:"timestamp"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	AmountUSD decimal.Decimal `json:"amountUSD"`
}

// SwapWire is the upstream JSON shape of a swap; numeric fields arrive as strings.
type SwapWire struct {
	Timestamp string `json:"timestamp"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	AmountUSD string `json:"amountUSD"`
}
