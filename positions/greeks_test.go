package positions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/trinomial/lattice"
	"github.com/bcdannyboy/trinomial/models"
)

var start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestCalculateGreeks_EuropeanCallMatchesBlackScholes(t *testing.T) {
	market := models.NewMarket(100, 0.2, 0.05)
	call := models.NewEuropean(models.Call, 100, 1, start)

	bs, err := models.BlackScholes(market, call)
	require.NoError(t, err)

	cfg := PricingConfig{Steps: 500, Threshold: 1e-10}
	g, err := CalculateGreeks(context.Background(), market, call, cfg)
	require.NoError(t, err)

	assert.InDelta(t, bs.Price, g.Price, 5e-3)
	assert.InDelta(t, bs.Delta, g.Delta, 5e-3)
	assert.InDelta(t, bs.Gamma, g.Gamma, 2e-3)
	assert.InDelta(t, bs.Vega, g.Vega, 0.5)
	assert.InDelta(t, bs.Theta, g.Theta, 0.2)
	assert.InDelta(t, bs.Rho, g.Rho, 1.0)
}

func TestCalculateGreeks_Signs(t *testing.T) {
	market := models.NewMarket(50, 0.3, 0.03)
	put := models.NewAmerican(models.Put, 52, 0.5, start)

	g, err := CalculateGreeks(context.Background(), market, put, PricingConfig{Steps: 200, Threshold: 1e-10, Workers: 2})
	require.NoError(t, err)

	assert.Greater(t, g.Price, 2.0)
	assert.Less(t, g.Delta, 0.0)
	assert.Greater(t, g.Delta, -1.0)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.Rho, 0.0)
}

func TestCalculateGreeks_ZeroRateUsesAbsoluteBump(t *testing.T) {
	market := models.NewMarket(100, 0.2, 0)
	call := models.NewEuropean(models.Call, 100, 1, start)

	g, err := CalculateGreeks(context.Background(), market, call, PricingConfig{Steps: 200, Threshold: 1e-10})
	require.NoError(t, err)
	assert.Greater(t, g.Rho, 0.0)
}

func TestCalculateGreeks_PropagatesLatticeErrors(t *testing.T) {
	market := models.NewMarket(100, 0.2, 0.05).WithDividend(1, start.AddDate(0, 3, 0))
	call := models.NewEuropean(models.Call, 100, 1, start)

	_, err := CalculateGreeks(context.Background(), market, call, PricingConfig{Steps: 100, Threshold: 1e-10, Bounded: true})
	assert.ErrorIs(t, err, lattice.ErrUnsupportedConfiguration)

	_, err = CalculateGreeks(context.Background(), models.NewMarket(100, 0.2, 0.05), call, PricingConfig{Steps: 0, Threshold: 1e-10})
	assert.ErrorIs(t, err, lattice.ErrInvalidParameter)
}

func TestCalculateGreeks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CalculateGreeks(ctx, models.NewMarket(100, 0.2, 0.05), models.NewEuropean(models.Call, 100, 1, start), DefaultPricingConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPricingConfig_BoundedMatchesFull(t *testing.T) {
	market := models.NewMarket(100, 0.25, 0.02)
	put := models.NewAmerican(models.Put, 95, 0.75, start)

	full, err := PricingConfig{Steps: 150, Threshold: 1e-14}.Price(market, put)
	require.NoError(t, err)
	bounded, err := PricingConfig{Steps: 150, Threshold: 1e-14, Bounded: true}.Price(market, put)
	require.NoError(t, err)
	assert.InDelta(t, full, bounded, 1e-8)
}
