package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubgraphFetchTrades(t *testing.T) {
	var gotVars map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotVars = req.Variables
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"swaps":[
			{"timestamp":"1800","amount0":"-10","amount1":"20.5","amountUSD":"55"},
			{"timestamp":"3600","amount0":"4","amount1":"-8","amountUSD":"24"}
		]}}`))
	}))
	defer srv.Close()

	client := NewSubgraphClient(srv.URL, time.Second, nil)
	trades, err := client.FetchTrades(context.Background(), "0xpool", 100, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, int64(1800), trades[0].Timestamp)
	assert.Equal(t, "-10", trades[0].Amount0.String())
	assert.Equal(t, "20.5", trades[0].Amount1.String())
	assert.Equal(t, "0xpool", gotVars["pool"])
	assert.Equal(t, float64(100), gotVars["skip"])
	assert.Equal(t, "9223372036854775807", gotVars["end"])
}

func TestSubgraphFetchPoolDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"poolDayDatas":[{
			"date":1704153600,"volumeUSD":"100.5","txCount":"7","feeTier":"3000",
			"pool":{"id":"0xAbC0000000000000000000000000000000000001",
				"token0":{"id":"0x01","symbol":"ABC","name":"Able Coin","decimals":"18"},
				"token1":{"id":"0x02","symbol":"USDC","name":"USD Coin","decimals":"6"},
				"token0Price":"0.5","token1Price":"2","liquidity":"1000","createdAtTimestamp":"1600000000"}
		}]}}`))
	}))
	defer srv.Close()

	client := NewSubgraphClient(srv.URL, time.Second, nil)
	days, err := client.FetchPoolDays(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, int64(1704153600), days[0].Date)
	assert.Equal(t, "Able Coin", days[0].Pool.Token0.Name)
	assert.Equal(t, "3000", days[0].FeeTier)
}

func TestSubgraphErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"errors":[{"message":"indexing error"}]}`))
	}))
	defer srv.Close()

	_, err := NewSubgraphClient(srv.URL, time.Second, nil).FetchPoolDays(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing error")

	_, err = NewSubgraphClient(srv.URL+"/down", time.Second, nil).FetchPoolDays(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
