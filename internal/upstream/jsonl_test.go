package upstream

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolDesk/internal/model"
)

const poolA = "0x1111111111111111111111111111111111111111"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileTradeSourceFiltersAndPages(t *testing.T) {
	path := writeFile(t, "swaps.jsonl", `
{"pool":"0x1111111111111111111111111111111111111111","timestamp":"0","amount0":"-10","amount1":"1","amountUSD":"50"}
{"pool":"0x2222222222222222222222222222222222222222","timestamp":"10","amount0":"-10","amount1":"1","amountUSD":"50"}

{"pool":"0x1111111111111111111111111111111111111111","timestamp":"1800","amount0":"-10","amount1":"1","amountUSD":"55"}
{"timestamp":"3600","amount0":"-10","amount1":"1","amountUSD":"60"}
`)
	src := NewFileTradeSource(path)
	ctx := context.Background()

	page, err := src.FetchTrades(ctx, poolA, 0, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(0), page[0].Timestamp)
	assert.Equal(t, int64(1800), page[1].Timestamp)

	page, err = src.FetchTrades(ctx, poolA, 2, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(3600), page[0].Timestamp)

	page, err = src.FetchTrades(ctx, poolA, 0, 10, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1800), page[0].Timestamp)
}

func TestFilePoolDaySource(t *testing.T) {
	path := writeFile(t, "days.jsonl", `{"date":1704153600,"volumeUSD":"1","txCount":"1","feeTier":"500","pool":{"id":"0x01"}}
{"date":1704153600,"volumeUSD":"2","txCount":"2","feeTier":"500","pool":{"id":"0x02"}}
`)
	src := NewFilePoolDaySource(path)

	page, err := src.FetchPoolDays(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "0x02", page[0].Pool.ID)

	page, err = src.FetchPoolDays(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestReadJSONLReportsLine(t *testing.T) {
	path := writeFile(t, "bad.jsonl", "{\"symbol\":\"A\"}\nnot-json\n")
	_, err := ReadJSONL[map[string]string](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress(" 0xAbCdEf0000000000000000000000000000000001 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", addr)

	_, err = NormalizeAddress("0x123")
	require.Error(t, err)

	list, err := ParseAddresses([]string{"", poolA})
	require.NoError(t, err)
	assert.Equal(t, []string{poolA}, list)
}

func TestTradeFromWireRejectsGarbage(t *testing.T) {
	_, err := TradeFromWire(swapWire("abc", "1", "1", "1"))
	require.Error(t, err)
	_, err = TradeFromWire(swapWire("1", "x", "1", "1"))
	require.Error(t, err)
}

func swapWire(ts, a0, a1, usd string) model.SwapWire {
	return model.SwapWire{Timestamp: ts, Amount0: a0, Amount1: a1, AmountUSD: usd}
}
