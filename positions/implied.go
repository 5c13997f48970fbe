package positions

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/bcdannyboy/trinomial/models"
)

// ErrNoImpliedVolatility is returned when no volatility reproduces the target price.
var ErrNoImpliedVolatility = errors.New("positions: no implied volatility for target price")

const (
	initialVolatility = 0.2
	penalty           = 1e10
)

// ImpliedVolatility finds the volatility at which the lattice reproduces target.
// The search runs Nelder-Mead over log volatility so every trial stays positive.
func ImpliedVolatility(ctx context.Context, market models.Market, option models.Option, target float64, cfg PricingConfig) (float64, error) {
	if !(target > 0) || math.IsInf(target, 0) {
		return 0, fmt.Errorf("%w: target %v", ErrNoImpliedVolatility, target)
	}
	log := zerolog.Ctx(ctx)

	guess := market.Volatility
	if !(guess > 0) {
		guess = initialVolatility
	}

	evaluations := 0
	var lastErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			evaluations++
			if ctx.Err() != nil {
				return penalty
			}
			trial := market
			trial.Volatility = math.Exp(x[0])
			p, err := cfg.Price(trial, option)
			if err != nil {
				lastErr = err
				return penalty
			}
			return (p - target) * (p - target)
		},
	}

	result, err := optimize.Minimize(problem, []float64{math.Log(guess)}, nil, &optimize.NelderMead{})
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoImpliedVolatility, err)
	}

	sigma := math.Exp(result.X[0])
	residual := math.Sqrt(result.F)
	log.Debug().
		Float64("sigma", sigma).
		Float64("residual", residual).
		Int("evaluations", evaluations).
		Msg("implied volatility")

	if residual > 1e-4*math.Max(1, target) {
		if lastErr != nil {
			return 0, fmt.Errorf("%w: residual %g: %w", ErrNoImpliedVolatility, residual, lastErr)
		}
		return 0, fmt.Errorf("%w: residual %g at sigma %g", ErrNoImpliedVolatility, residual, sigma)
	}
	return sigma, nil
}
