package positions

import (
	"fmt"

	"github.com/bcdannyboy/trinomial/lattice"
	"github.com/bcdannyboy/trinomial/models"
)

const (
	DefaultSteps     = 500
	DefaultThreshold = 1e-10
)

// PricingConfig selects the lattice used for every reprice.
type PricingConfig struct {
	Steps     int
	Threshold float64
	Bounded   bool // price with lattice.PriceBounded
	Workers   int  // concurrent lattices, 0 means one per bump
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{Steps: DefaultSteps, Threshold: DefaultThreshold}
}

// Price builds and prices a fresh lattice for market and option.
func (c PricingConfig) Price(market models.Market, option models.Option) (float64, error) {
	if c.Bounded {
		return lattice.PriceBounded(market, option, c.Steps, c.Threshold)
	}
	l, err := lattice.BuildLattice(market, option, c.Steps, c.Threshold)
	if err != nil {
		return 0, err
	}
	return l.Price()
}

func (c PricingConfig) String() string {
	mode := "full"
	if c.Bounded {
		mode = "bounded"
	}
	return fmt.Sprintf("%s lattice, %d steps, threshold %g", mode, c.Steps, c.Threshold)
}
