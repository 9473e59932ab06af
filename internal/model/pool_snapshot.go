package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenIdentity maps a token to its display icon.
type TokenIdentity struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	IconID int    `json:"iconId"`
}

// TokenDetails is a pool token augmented with its resolved icon.
type TokenDetails struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	IconID   int    `json:"iconId"`
}

// PoolSnapshotEntry is one pool's statistics for a day.
type PoolSnapshotEntry struct {
	Address            string          `json:"address"`
	Token0             TokenDetails    `json:"token0"`
	Token1             TokenDetails    `json:"token1"`
	VolumeUSD          decimal.Decimal `json:"volumeUSD"`
	TxCount            int64           `json:"txCount"`
	FeeTier            int             `json:"feeTier"`
	Liquidity          decimal.Decimal `json:"liquidity"`
	Token0Price        decimal.Decimal `json:"token0Price"`
	Token1Price        decimal.Decimal `json:"token1Price"`
	CreatedAtTimestamp int64           `json:"createdAtTimestamp"`
	Date               string          `json:"date"`
}

// DailySnapshotDocument is the persisted per-date pool snapshot, keyed by pool address.
// Version increases by one on every successful write.
type DailySnapshotDocument struct {
	Date        string                       `json:"date"`
	Pools       map[string]PoolSnapshotEntry `json:"pools"`
	PoolCount   int                          `json:"poolCount"`
	LastUpdated time.Time                    `json:"lastUpdated"`
	Version     int64                        `json:"version"`
}

// Clone returns a deep copy safe for independent mutation.
func (d *DailySnapshotDocument) Clone() *DailySnapshotDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Pools = make(map[string]PoolSnapshotEntry, len(d.Pools))
	for k, v := range d.Pools {
		out.Pools[k] = v
	}
	return &out
}

// TokenWire is the upstream token shape inside a pool.
type TokenWire struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals string `json:"decimals"`
}

// PoolWire is the upstream pool shape inside a daily statistics record.
type PoolWire struct {
	ID                 string    `json:"id"`
	Token0             TokenWire `json:"token0"`
	Token1             TokenWire `json:"token1"`
	Token0Price        string    `json:"token0Price"`
	Token1Price        string    `json:"token1Price"`
	Liquidity          string    `json:"liquidity"`
	CreatedAtTimestamp string    `json:"createdAtTimestamp"`
}

// PoolDayWire is one upstream daily pool statistics record. Date is epoch seconds.
type PoolDayWire struct {
	Date      int64    `json:"date"`
	VolumeUSD string   `json:"volumeUSD"`
	TxCount   string   `json:"txCount"`
	FeeTier   string   `json:"feeTier"`
	Pool      PoolWire `json:"pool"`
}

// TokenIconEntry is one (symbol, name, iconId) triple of the reference index.
type TokenIconEntry struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	IconID int    `json:"iconId"`
}
