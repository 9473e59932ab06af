package model

import "github.com/shopspring/decimal"

// OverlayRole identifies what a chart reference line stands for.
type OverlayRole string

const (
	RoleSafetyOrder  OverlayRole = "safetyOrder"
	RoleTakeProfit   OverlayRole = "takeProfit"
	RoleCurrentPrice OverlayRole = "currentPrice"
)

// OverlayLine is a horizontal price line drawn over the candle chart.
type OverlayLine struct {
	Price decimal.Decimal `json:"price"`
	Role  OverlayRole     `json:"role"`
	Rank  int             `json:"rank"`
}

// BotConfig holds the risk settings of a DCA bot. Fractions are expressed as 0.05 for 5%.
type BotConfig struct {
	PriceDeviation           float64 `json:"priceDeviation" validate:"gt=0,lt=1"`
	SafetyOrders             int     `json:"safetyOrders" validate:"gte=0,lte=100"`
	SafetyOrderGapMultiplier float64 `json:"safetyOrderGapMultiplier" validate:"gt=0"`
	TakeProfit               float64 `json:"takeProfit" validate:"gte=0"`
}
