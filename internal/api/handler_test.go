package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolDesk/internal/candle"
	"poolDesk/internal/lock"
	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
	"poolDesk/internal/reconcile"
	"poolDesk/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCandles struct {
	last   candle.Query
	series candle.Series
	err    error
}

func (f *fakeCandles) GetCandles(_ context.Context, q candle.Query) (candle.Series, error) {
	f.last = q
	if f.err != nil {
		return candle.Series{}, f.err
	}
	return f.series, nil
}

type fakeSnapshots struct {
	runErr error
	docs   map[string]*model.DailySnapshotDocument
}

func (f *fakeSnapshots) Run(_ context.Context, date string) (reconcile.Result, error) {
	if _, err := reconcile.ParseDate(date); err != nil {
		return reconcile.Result{Date: date}, err
	}
	if f.runErr != nil {
		return reconcile.Result{Date: date}, f.runErr
	}
	return reconcile.Result{RunID: "run-1", Date: date, PoolCount: 3}, nil
}

func (f *fakeSnapshots) Snapshot(_ context.Context, date string) (*model.DailySnapshotDocument, error) {
	if _, err := reconcile.ParseDate(date); err != nil {
		return nil, err
	}
	doc, ok := f.docs[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func newTestRouter(c CandleService, s SnapshotService) *gin.Engine {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return NewRouter(NewHandler(c, s, nil), reg)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetCandles(t *testing.T) {
	fc := &fakeCandles{series: candle.Series{
		Pool:    "0xpool",
		Candles: []model.Candle{model.FlatCandle(3600, decimal.NewFromInt(6))},
	}}
	r := newTestRouter(fc, &fakeSnapshots{})

	w := do(t, r, http.MethodGet, "/api/v1/pools/0xpool/candles?basis=tradeToken&resolution=day&start=10&end=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, candle.Query{Pool: "0xpool", Basis: candle.BasisTradeToken, Resolution: candle.Day, Start: 10, End: 20}, fc.last)

	var got candle.Series
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Candles, 1)
	assert.True(t, got.Candles[0].IsGapFiller)
}

func TestGetCandlesBadInput(t *testing.T) {
	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{})
	for _, path := range []string{
		"/api/v1/pools/0xpool/candles?basis=eur",
		"/api/v1/pools/0xpool/candles?resolution=week",
		"/api/v1/pools/0xpool/candles?start=abc",
	} {
		w := do(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	r = newTestRouter(&fakeCandles{err: errors.New("invalid address")}, &fakeSnapshots{})
	w := do(t, r, http.MethodGet, "/api/v1/pools/nope/candles", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCandlesIncompleteIsOK(t *testing.T) {
	fc := &fakeCandles{series: candle.Series{Incomplete: true, Error: "upstream down"}}
	r := newTestRouter(fc, &fakeSnapshots{})

	w := do(t, r, http.MethodGet, "/api/v1/pools/0xpool/candles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pool":"","basis":"","resolution":0,"candles":[],"incomplete":true,"error":"upstream down"}`, w.Body.String())
}

func TestCreateOverlay(t *testing.T) {
	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{})

	body := `{"currentPrice":100,"priceDeviation":0.05,"safetyOrders":2,"safetyOrderGapMultiplier":1.2,"takeProfit":0.1}`
	w := do(t, r, http.MethodPost, "/api/v1/overlay", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp OverlayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 4)
	assert.True(t, resp.Lines[1].Price.Equal(decimal.RequireFromString("89.3")))
	assert.Equal(t, model.RoleCurrentPrice, resp.Lines[3].Role)
}

func TestCreateOverlayFromPool(t *testing.T) {
	fc := &fakeCandles{series: candle.Series{Candles: []model.Candle{model.FlatCandle(0, decimal.NewFromInt(50))}}}
	r := newTestRouter(fc, &fakeSnapshots{})

	body := `{"pool":"0xpool","priceDeviation":0.1,"safetyOrders":1,"safetyOrderGapMultiplier":1,"takeProfit":0.2}`
	w := do(t, r, http.MethodPost, "/api/v1/overlay", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp OverlayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CurrentPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, resp.Lines[0].Price.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, "0xpool", fc.last.Pool)
}

func TestCreateOverlayErrors(t *testing.T) {
	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{})

	w := do(t, r, http.MethodPost, "/api/v1/overlay", `{"priceDeviation":0.1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/overlay", `{"currentPrice":100,"priceDeviation":2,"safetyOrderGapMultiplier":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/overlay", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/overlay", `{"pool":"0xpool","priceDeviation":0.1,"safetyOrderGapMultiplier":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshotEndpoints(t *testing.T) {
	docs := map[string]*model.DailySnapshotDocument{
		"2024-01-02": {Date: "2024-01-02", PoolCount: 0, Pools: map[string]model.PoolSnapshotEntry{}, Version: 1},
	}
	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{docs: docs})

	w := do(t, r, http.MethodGet, "/api/v1/snapshots/2024-01-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":1`)

	w = do(t, r, http.MethodGet, "/api/v1/snapshots/2024-01-03", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/snapshots/today", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/snapshots/2024-01-02/reconcile", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res reconcile.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.PoolCount)
}

func TestReconcileErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("lock snapshot: %w", lock.ErrNotAcquired), http.StatusConflict},
		{errors.New("fetch pool_days page skip=0: boom"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		r := newTestRouter(&fakeCandles{}, &fakeSnapshots{runErr: tc.err})
		w := do(t, r, http.MethodPost, "/api/v1/snapshots/2024-01-02/reconcile", "")
		assert.Equal(t, tc.want, w.Code)
		assert.Contains(t, w.Body.String(), `"poolCount":0`)
	}

	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{})
	w := do(t, r, http.MethodPost, "/api/v1/snapshots/2024-1-2/reconcile", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeCandles{}, &fakeSnapshots{})

	w := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
