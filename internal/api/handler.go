// Package api exposes candles, overlays and daily snapshots over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolDesk/internal/candle"
	"poolDesk/internal/lock"
	"poolDesk/internal/model"
	"poolDesk/internal/overlay"
	"poolDesk/internal/reconcile"
	"poolDesk/internal/storage"
)

// CandleService builds candle series.
type CandleService interface {
	GetCandles(ctx context.Context, q candle.Query) (candle.Series, error)
}

// SnapshotService runs and reads daily reconciliations.
type SnapshotService interface {
	Run(ctx context.Context, date string) (reconcile.Result, error)
	Snapshot(ctx context.Context, date string) (*model.DailySnapshotDocument, error)
}

// Handler serves the HTTP endpoints.
type Handler struct {
	candles   CandleService
	snapshots SnapshotService
	logger    *zap.Logger
}

func NewHandler(candles CandleService, snapshots SnapshotService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{candles: candles, snapshots: snapshots, logger: logger}
}

// GetCandles handles GET /pools/:address/candles.
func (h *Handler) GetCandles(c *gin.Context) {
	basis, err := candle.ParseBasis(c.DefaultQuery("basis", "usd"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolution, err := candle.ParseResolution(c.DefaultQuery("resolution", "hour"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := queryInt(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	end, err := queryInt(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return
	}

	series, err := h.candles.GetCandles(c.Request.Context(), candle.Query{
		Pool:       c.Param("address"),
		Basis:      basis,
		Resolution: resolution,
		Start:      start,
		End:        end,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if series.Candles == nil {
		series.Candles = []model.Candle{}
	}
	c.JSON(http.StatusOK, series)
}

// OverlayRequest is the body of POST /overlay. When CurrentPrice is absent the latest
// close of Pool is used.
type OverlayRequest struct {
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
	Pool         string           `json:"pool"`
	Basis        string           `json:"basis"`
	model.BotConfig
}

// OverlayResponse lists the computed lines.
type OverlayResponse struct {
	CurrentPrice decimal.Decimal     `json:"currentPrice"`
	Lines        []model.OverlayLine `json:"lines"`
}

// CreateOverlay handles POST /overlay.
func (h *Handler) CreateOverlay(c *gin.Context) {
	var req OverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var price decimal.Decimal
	switch {
	case req.CurrentPrice != nil:
		price = *req.CurrentPrice
	case req.Pool != "":
		last, status, err := h.latestClose(c.Request.Context(), req.Pool, req.Basis)
		if err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		price = last
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "currentPrice or pool is required"})
		return
	}

	lines, err := overlay.Calculate(price, req.BotConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, OverlayResponse{CurrentPrice: price, Lines: lines})
}

func (h *Handler) latestClose(ctx context.Context, pool, basisInput string) (decimal.Decimal, int, error) {
	if basisInput == "" {
		basisInput = string(candle.BasisUSD)
	}
	basis, err := candle.ParseBasis(basisInput)
	if err != nil {
		return decimal.Zero, http.StatusBadRequest, err
	}
	series, err := h.candles.GetCandles(ctx, candle.Query{Pool: pool, Basis: basis, Resolution: candle.Hour})
	if err != nil {
		return decimal.Zero, http.StatusBadRequest, err
	}
	last, ok := series.Last()
	if !ok {
		if series.Incomplete {
			return decimal.Zero, http.StatusBadGateway, errors.New(series.Error)
		}
		return decimal.Zero, http.StatusNotFound, errors.New("no candles for pool")
	}
	return last, http.StatusOK, nil
}

// ReconcileSnapshot handles POST /snapshots/:date/reconcile.
func (h *Handler) ReconcileSnapshot(c *gin.Context) {
	date := c.Param("date")
	res, err := h.snapshots.Run(c.Request.Context(), date)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, reconcile.ErrInvalidDate):
			status = http.StatusBadRequest
		case errors.Is(err, lock.ErrNotAcquired):
			status = http.StatusConflict
		}
		h.logger.Error("reconcile request failed", zap.String("date", date), zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error(), "date": res.Date, "poolCount": res.PoolCount})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetSnapshot handles GET /snapshots/:date.
func (h *Handler) GetSnapshot(c *gin.Context) {
	date := c.Param("date")
	doc, err := h.snapshots.Snapshot(c.Request.Context(), date)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found", "date": date})
		default:
			h.logger.Error("load snapshot failed", zap.String("date", date), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load snapshot failed"})
		}
		return
	}
	c.JSON(http.StatusOK, doc)
}

func queryInt(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
