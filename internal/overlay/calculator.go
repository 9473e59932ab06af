// Package overlay derives the safety-order ladder and reference lines for a DCA bot.
package overlay

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"poolDesk/internal/model"
)

var (
	ErrInvalidConfig = errors.New("invalid bot config")
	ErrInvalidPrice  = errors.New("current price must be positive")
)

var validate = validator.New()

// Validate checks the value ranges of cfg.
func Validate(cfg model.BotConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Calculate returns the safety orders by rank, then the take-profit line, then the current price.
func Calculate(currentPrice decimal.Decimal, cfg model.BotConfig) ([]model.OverlayLine, error) {
	if !currentPrice.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, currentPrice)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	deviation := decimal.NewFromFloat(cfg.PriceDeviation)
	multiplier := decimal.NewFromFloat(cfg.SafetyOrderGapMultiplier)

	lines := make([]model.OverlayLine, 0, cfg.SafetyOrders+2)
	orderPrice := currentPrice.Mul(one.Sub(deviation))
	gap := multiplier
	for rank := 0; rank < cfg.SafetyOrders; rank++ {
		lines = append(lines, model.OverlayLine{Price: orderPrice, Role: model.RoleSafetyOrder, Rank: rank})

		if rank == cfg.SafetyOrders-1 {
			break
		}
		step := one.Sub(deviation.Mul(gap))
		if !step.IsPositive() {
			return nil, fmt.Errorf("%w: safety order %d step factor %s is not positive", ErrInvalidConfig, rank+1, step)
		}
		orderPrice = orderPrice.Mul(step)
		gap = gap.Mul(multiplier)
	}

	lines = append(lines,
		model.OverlayLine{Price: currentPrice.Mul(one.Add(decimal.NewFromFloat(cfg.TakeProfit))), Role: model.RoleTakeProfit},
		model.OverlayLine{Price: currentPrice, Role: model.RoleCurrentPrice},
	)
	return lines, nil
}
