// Package storagetest holds behaviour checks shared by every SnapshotStore implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolDesk/internal/model"
	"poolDesk/internal/storage"
)

// Document builds a snapshot for date holding the given pool addresses.
func Document(date string, addresses ...string) *model.DailySnapshotDocument {
	doc := &model.DailySnapshotDocument{
		Date:        date,
		Pools:       make(map[string]model.PoolSnapshotEntry, len(addresses)),
		LastUpdated: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for i, addr := range addresses {
		doc.Pools[addr] = model.PoolSnapshotEntry{
			Address:     addr,
			Token0:      model.TokenDetails{Address: "0x01", Symbol: "ABC", Name: "Able Coin", Decimals: 18, IconID: 22},
			Token1:      model.TokenDetails{Address: "0x02", Symbol: "USDC", Name: "USD Coin", Decimals: 6, IconID: 3},
			VolumeUSD:   decimal.NewFromInt(int64(100 * (i + 1))),
			TxCount:     int64(i + 1),
			FeeTier:     3000,
			Liquidity:   decimal.RequireFromString("12345.678"),
			Token0Price: decimal.RequireFromString("0.5"),
			Token1Price: decimal.RequireFromString("2"),
			Date:        date,
		}
	}
	doc.PoolCount = len(doc.Pools)
	return doc
}

// RunSnapshotStore exercises the storage.SnapshotStore contract against a fresh store.
func RunSnapshotStore(t *testing.T, newStore func(t *testing.T) storage.SnapshotStore) {
	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), "2024-01-02")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		doc := Document("2024-01-02", "0xaa", "0xbb")
		require.NoError(t, store.Put(ctx, doc, 0))
		assert.Equal(t, int64(1), doc.Version)

		got, err := store.Get(ctx, "2024-01-02")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, 2, got.PoolCount)
		require.Len(t, got.Pools, 2)
		assert.True(t, got.Pools["0xbb"].VolumeUSD.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, 22, got.Pools["0xaa"].Token0.IconID)
		assert.True(t, got.LastUpdated.Equal(doc.LastUpdated))
	})

	t.Run("VersionConflict", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, Document("2024-01-03", "0xaa"), 0))

		err := store.Put(ctx, Document("2024-01-03", "0xbb"), 0)
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		next := Document("2024-01-03", "0xaa", "0xbb")
		require.NoError(t, store.Put(ctx, next, 1))
		assert.Equal(t, int64(2), next.Version)

		got, err := store.Get(ctx, "2024-01-03")
		require.NoError(t, err)
		assert.Equal(t, 2, got.PoolCount)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, Document("2024-01-04", "0xaa"), 0))

		got, err := store.Get(ctx, "2024-01-04")
		require.NoError(t, err)
		delete(got.Pools, "0xaa")

		again, err := store.Get(ctx, "2024-01-04")
		require.NoError(t, err)
		assert.Len(t, again.Pools, 1)
	})
}
