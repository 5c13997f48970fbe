package models

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoClosedForm is returned when a contract has no Black-Scholes formula.
var ErrNoClosedForm = errors.New("models: no closed form for this contract")

type BSMResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholes prices European contracts in closed form. A discrete dividend is
// approximated by the continuous yield Dividend/Spot.
func BlackScholes(market Market, option Option) (BSMResult, error) {
	if err := market.Validate(); err != nil {
		return BSMResult{}, err
	}
	if err := option.Validate(); err != nil {
		return BSMResult{}, err
	}

	switch o := option.(type) {
	case *Vanilla:
		if o.Style != European {
			return BSMResult{}, ErrNoClosedForm
		}
		return calculateBSM(market.Spot, o.Strike, o.Maturity, market.Rate, market.DividendYield(), market.Volatility, o.Kind == Call), nil
	case *Digital:
		if o.Style != European {
			return BSMResult{}, ErrNoClosedForm
		}
		return calculateDigital(market.Spot, o.Strike, o.Payout, o.Maturity, market.Rate, market.DividendYield(), market.Volatility, o.Kind == Call), nil
	}
	return BSMResult{}, ErrNoClosedForm
}

func d1d2(S, K, T, r, q, sigma float64) (float64, float64) {
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return d1, d1 - sigma*math.Sqrt(T)
}

func calculateBSM(S, K, T, r, q, sigma float64, isCall bool) BSMResult {
	n := distuv.UnitNormal
	d1, d2 := d1d2(S, K, T, r, q, sigma)
	carry := math.Exp(-q * T)
	discount := math.Exp(-r * T)

	var res BSMResult
	if isCall {
		res.Price = S*carry*n.CDF(d1) - K*discount*n.CDF(d2)
		res.Delta = carry * n.CDF(d1)
		res.Theta = -(S*carry*n.Prob(d1)*sigma)/(2*math.Sqrt(T)) - r*K*discount*n.CDF(d2) + q*S*carry*n.CDF(d1)
		res.Rho = K * T * discount * n.CDF(d2)
	} else {
		res.Price = K*discount*n.CDF(-d2) - S*carry*n.CDF(-d1)
		res.Delta = carry * (n.CDF(d1) - 1)
		res.Theta = -(S*carry*n.Prob(d1)*sigma)/(2*math.Sqrt(T)) + r*K*discount*n.CDF(-d2) - q*S*carry*n.CDF(-d1)
		res.Rho = -K * T * discount * n.CDF(-d2)
	}
	res.Gamma = carry * n.Prob(d1) / (S * sigma * math.Sqrt(T))
	res.Vega = S * carry * n.Prob(d1) * math.Sqrt(T)
	return res
}

func calculateDigital(S, K, payout, T, r, q, sigma float64, isCall bool) BSMResult {
	n := distuv.UnitNormal
	_, d2 := d1d2(S, K, T, r, q, sigma)
	discount := math.Exp(-r * T)

	sign := 1.0
	if !isCall {
		sign = -1
	}
	price := payout * discount * n.CDF(sign*d2)
	delta := sign * payout * discount * n.Prob(d2) / (S * sigma * math.Sqrt(T))
	return BSMResult{Price: price, Delta: delta}
}
