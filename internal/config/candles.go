package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"poolDesk/internal/model"
)

// CandlesConfig holds configuration for the candles command.
type CandlesConfig struct {
	Upstream      UpstreamConfig
	Pool          string
	Basis         string
	Resolution    string
	Start         int64
	End           int64
	HistoryWindow time.Duration
	RedisAddr     string
	CacheTTL      time.Duration
	Out           string
	LogLevel      string
}

// LoadCandles merges config file, environment variables, and flags into CandlesConfig.
func LoadCandles(cfgFile string, flags *pflag.FlagSet) (CandlesConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"basis":          "usd",
		"resolution":     "hour",
		"history-window": 7 * 24 * time.Hour,
		"cache-ttl":      24 * time.Hour,
		"out":            "-",
	})
	if err != nil {
		return CandlesConfig{}, err
	}

	start, err := ParseTimestamp(v.GetString("start"))
	if err != nil {
		return CandlesConfig{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := ParseTimestamp(v.GetString("end"))
	if err != nil {
		return CandlesConfig{}, fmt.Errorf("parse end: %w", err)
	}

	return CandlesConfig{
		Upstream:      upstreamConfig(v),
		Pool:          v.GetString("pool"),
		Basis:         v.GetString("basis"),
		Resolution:    v.GetString("resolution"),
		Start:         start,
		End:           end,
		HistoryWindow: v.GetDuration("history-window"),
		RedisAddr:     v.GetString("redis-addr"),
		CacheTTL:      v.GetDuration("cache-ttl"),
		Out:           v.GetString("out"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// OverlayConfig holds configuration for the overlay command. A zero Price means the
// latest close of Pool is used.
type OverlayConfig struct {
	Candles CandlesConfig
	Price   string
	Bot     model.BotConfig
}

// LoadOverlay merges config file, environment variables, and flags into OverlayConfig.
func LoadOverlay(cfgFile string, flags *pflag.FlagSet) (OverlayConfig, error) {
	candles, err := LoadCandles(cfgFile, flags)
	if err != nil {
		return OverlayConfig{}, err
	}
	v, err := newViper(cfgFile, flags, map[string]any{
		"safety-orders":  0,
		"gap-multiplier": 1.0,
	})
	if err != nil {
		return OverlayConfig{}, err
	}

	return OverlayConfig{
		Candles: candles,
		Price:   v.GetString("price"),
		Bot: model.BotConfig{
			PriceDeviation:           v.GetFloat64("price-deviation"),
			SafetyOrders:             v.GetInt("safety-orders"),
			SafetyOrderGapMultiplier: v.GetFloat64("gap-multiplier"),
			TakeProfit:               v.GetFloat64("take-profit"),
		},
	}, nil
}
