package positions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/trinomial/models"
)

// ErrNoMaturityBump is returned when theta is requested for a contract that
// cannot be re-issued with a longer maturity.
var ErrNoMaturityBump = errors.New("positions: option cannot be re-issued with another maturity")

// Relative bump sizes.
const (
	spotBump     = 0.01
	volBump      = 0.01
	maturityBump = 0.01
	rateBump     = 0.01
	zeroRateBump = 1e-4 // absolute, used when the rate is 0
)

type Greeks struct {
	Price float64
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64 // per year of calendar decay
	Rho   float64
}

type maturityShifter interface {
	WithMaturity(maturity float64) models.Option
}

type scenario struct {
	name   string
	market models.Market
	option models.Option
}

// CalculateGreeks prices the option and its bumped scenarios, each on its own
// lattice, and takes finite differences. Delta and gamma are central in spot;
// vega, theta and rho are one sided.
func CalculateGreeks(ctx context.Context, market models.Market, option models.Option, cfg PricingConfig) (Greeks, error) {
	shifter, ok := option.(maturityShifter)
	if !ok {
		return Greeks{}, ErrNoMaturityBump
	}

	dS := market.Spot * spotBump
	dV := market.Volatility * volBump
	dT := option.TimeToMaturity() * maturityBump
	dR := market.Rate * rateBump
	if dR == 0 {
		dR = zeroRateBump
	}

	spotUp, spotDown, volUp, rateUp := market, market, market, market
	spotUp.Spot += dS
	spotDown.Spot -= dS
	volUp.Volatility += dV
	rateUp.Rate += dR

	scenarios := []scenario{
		{"base", market, option},
		{"spot up", spotUp, option},
		{"spot down", spotDown, option},
		{"vol up", volUp, option},
		{"maturity up", market, shifter.WithMaturity(option.TimeToMaturity() + dT)},
		{"rate up", rateUp, option},
	}

	prices, err := priceScenarios(ctx, scenarios, cfg)
	if err != nil {
		return Greeks{}, err
	}
	base, up, down := prices[0], prices[1], prices[2]

	return Greeks{
		Price: base,
		Delta: (up - down) / (2 * dS),
		Gamma: (up - 2*base + down) / (dS * dS),
		Vega:  (prices[3] - base) / dV,
		Theta: -(prices[4] - base) / dT,
		Rho:   (prices[5] - base) / dR,
	}, nil
}

func priceScenarios(ctx context.Context, scenarios []scenario, cfg PricingConfig) ([]float64, error) {
	log := zerolog.Ctx(ctx)
	prices := make([]float64, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			p, err := cfg.Price(sc.market, sc.option)
			if err != nil {
				return fmt.Errorf("%s scenario: %w", sc.name, err)
			}
			if math.IsNaN(p) {
				return fmt.Errorf("%s scenario: price is NaN", sc.name)
			}
			log.Debug().
				Str("scenario", sc.name).
				Float64("price", p).
				Dur("elapsed", time.Since(start)).
				Msg("repriced")
			prices[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}
