package positions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/trinomial/models"
)

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	cfg := PricingConfig{Steps: 200, Threshold: 1e-10}
	tests := []struct {
		name   string
		option models.Option
		sigma  float64
	}{
		{"european call", models.NewEuropean(models.Call, 105, 1, start), 0.3},
		{"american put", models.NewAmerican(models.Put, 100, 0.5, start), 0.45},
		{"low vol put", models.NewEuropean(models.Put, 95, 1, start), 0.12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := models.NewMarket(100, tt.sigma, 0.04)
			target, err := cfg.Price(market, tt.option)
			require.NoError(t, err)

			// start the search away from the answer
			market.Volatility = 0.2
			sigma, err := ImpliedVolatility(context.Background(), market, tt.option, target, cfg)
			require.NoError(t, err)
			assert.InDelta(t, tt.sigma, sigma, 1e-3)
		})
	}
}

func TestImpliedVolatility_RejectsUnreachableTargets(t *testing.T) {
	cfg := PricingConfig{Steps: 100, Threshold: 1e-10}
	market := models.NewMarket(100, 0.2, 0.04)
	call := models.NewEuropean(models.Call, 100, 1, start)

	_, err := ImpliedVolatility(context.Background(), market, call, 0, cfg)
	assert.ErrorIs(t, err, ErrNoImpliedVolatility)

	// a call is never worth more than its underlying
	_, err = ImpliedVolatility(context.Background(), market, call, 150, cfg)
	assert.ErrorIs(t, err, ErrNoImpliedVolatility)
}
