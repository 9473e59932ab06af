package model

import "github.com/shopspring/decimal"

// Candle is an OHLC bar for one bucket. BucketStart is unix seconds aligned to the bucket width.
type Candle struct {
	BucketStart int64           `json:"bucketStart"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Trades      int             `json:"trades"`
	VolumeUSD   decimal.Decimal `json:"volumeUSD"`
	IsFlatBar   bool            `json:"isFlatBar"`
	IsGapFiller bool            `json:"isGapFiller"`
}

// FlatCandle builds a synthetic no-movement candle at price.
func FlatCandle(bucketStart int64, price decimal.Decimal) Candle {
	return Candle{
		BucketStart: bucketStart,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		VolumeUSD:   decimal.Zero,
		IsFlatBar:   true,
		IsGapFiller: true,
	}
}

// Flat reports whether open, high, low and close are all equal.
func (c Candle) Flat() bool {
	return c.Open.Equal(c.High) && c.High.Equal(c.Low) && c.Low.Equal(c.Close)
}
