package models

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
)

var rngPool = sync.Pool{
	New: func() interface{} {
		return rand.New(rand.NewSource(uint64(rand.Int63())))
	},
}

// MonteCarlo prices European payoffs by simulating geometric Brownian paths.
// A discrete dividend is subtracted on the step its date maps onto.
type MonteCarlo struct {
	Paths int
	Steps int
	Seed  uint64 // 0 draws generators from the shared pool
}

func NewMonteCarlo(paths, steps int) *MonteCarlo {
	return &MonteCarlo{Paths: paths, Steps: steps}
}

// SimulatePrice returns one terminal price.
func (mc *MonteCarlo) SimulatePrice(market Market, option Option, rng *rand.Rand) float64 {
	steps := mc.Steps
	if steps < 1 {
		steps = 1
	}
	T := option.TimeToMaturity()
	dt := T / float64(steps)
	drift := (market.Rate - 0.5*market.Volatility*market.Volatility) * dt
	diffusion := market.Volatility * math.Sqrt(dt)

	divStep := -1
	if market.HasDividend() {
		divStep = StepOf(option.StartDate(), market.DividendDate, dt)
	}

	s := market.Spot
	for i := 0; i < steps; i++ {
		s *= math.Exp(drift + diffusion*rng.NormFloat64())
		if i == divStep {
			s = math.Max(s-market.Dividend, 1e-12)
		}
	}
	return s
}

// SimulatePricesBatch fans the paths out over GOMAXPROCS workers.
func (mc *MonteCarlo) SimulatePricesBatch(market Market, option Option) []float64 {
	results := make([]float64, mc.Paths)
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > mc.Paths {
		numWorkers = mc.Paths
	}
	if numWorkers < 1 {
		return results
	}
	perWorker := (mc.Paths + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > mc.Paths {
			end = mc.Paths
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			var rng *rand.Rand
			if mc.Seed != 0 {
				rng = rand.New(rand.NewSource(mc.Seed + uint64(worker)))
			} else {
				rng = rngPool.Get().(*rand.Rand)
				defer rngPool.Put(rng)
			}
			for j := start; j < end; j++ {
				results[j] = mc.SimulatePrice(market, option, rng)
			}
		}(w, start, end)
	}
	wg.Wait()
	return results
}

// Price returns the discounted mean payoff and its standard error.
func (mc *MonteCarlo) Price(market Market, option Option) (float64, float64, error) {
	if err := market.Validate(); err != nil {
		return 0, 0, err
	}
	if err := option.Validate(); err != nil {
		return 0, 0, err
	}
	if mc.Paths < 2 {
		return 0, 0, fmt.Errorf("models: monte carlo needs at least 2 paths, got %d", mc.Paths)
	}

	discount := math.Exp(-market.Rate * option.TimeToMaturity())
	sum, sumSq := 0.0, 0.0
	for _, s := range mc.SimulatePricesBatch(market, option) {
		p := option.Payoff(s)
		sum += p
		sumSq += p * p
	}
	n := float64(mc.Paths)
	mean := sum / n
	variance := (sumSq - n*mean*mean) / (n - 1)
	return discount * mean, discount * math.Sqrt(math.Max(variance, 0)/n), nil
}
