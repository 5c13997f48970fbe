package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidMarket is returned by Market.Validate.
var ErrInvalidMarket = errors.New("models: invalid market")

// Market describes the underlying and its financing. It is never mutated by a pricer;
// a bumped scenario is a new Market value.
type Market struct {
	Spot         float64
	Volatility   float64
	Rate         float64
	Dividend     float64   // discrete cash dividend, 0 when none
	DividendDate time.Time // ex-dividend date
}

func NewMarket(spot, volatility, rate float64) Market {
	return Market{Spot: spot, Volatility: volatility, Rate: rate}
}

// WithDividend returns a copy of m paying a single cash dividend on date.
func (m Market) WithDividend(amount float64, date time.Time) Market {
	m.Dividend = amount
	m.DividendDate = date
	return m
}

func (m Market) HasDividend() bool {
	return m.Dividend > 0
}

// DividendYield approximates the discrete dividend as a continuous yield.
func (m Market) DividendYield() float64 {
	if !m.HasDividend() || m.Spot <= 0 {
		return 0
	}
	return m.Dividend / m.Spot
}

func (m Market) Validate() error {
	switch {
	case !(m.Spot > 0) || math.IsInf(m.Spot, 0):
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidMarket, m.Spot)
	case !(m.Volatility > 0) || math.IsInf(m.Volatility, 0):
		return fmt.Errorf("%w: volatility must be positive, got %v", ErrInvalidMarket, m.Volatility)
	case math.IsNaN(m.Rate) || math.IsInf(m.Rate, 0):
		return fmt.Errorf("%w: rate must be finite, got %v", ErrInvalidMarket, m.Rate)
	case m.Dividend < 0 || math.IsNaN(m.Dividend):
		return fmt.Errorf("%w: dividend must be non-negative, got %v", ErrInvalidMarket, m.Dividend)
	case m.Dividend >= m.Spot:
		return fmt.Errorf("%w: dividend %v must be below spot %v", ErrInvalidMarket, m.Dividend, m.Spot)
	case m.HasDividend() && m.DividendDate.IsZero():
		return fmt.Errorf("%w: dividend without an ex-dividend date", ErrInvalidMarket)
	}
	return nil
}
