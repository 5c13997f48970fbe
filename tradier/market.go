package tradier

import (
	"fmt"
	"time"

	"github.com/bcdannyboy/trinomial/models"
)

// MarketFromHistory builds a pricing market from the last close and the
// estimator's volatility over the last window bars. A zero dividend leaves the
// market dividend free.
func MarketFromHistory(history *QuoteHistory, estimator string, window int, rate, dividend float64, dividendDate time.Time) (models.Market, error) {
	last, ok := history.Last()
	if !ok {
		return models.Market{}, fmt.Errorf("%w: empty history", ErrNotEnoughData)
	}
	vol, err := Volatility(estimator, history.Window(window))
	if err != nil {
		return models.Market{}, err
	}

	market := models.NewMarket(last.Close, vol, rate)
	if dividend > 0 {
		market = market.WithDividend(dividend, dividendDate)
	}
	if err := market.Validate(); err != nil {
		return models.Market{}, err
	}
	return market, nil
}

// AsOf returns the date of the last bar.
func AsOf(history *QuoteHistory) (time.Time, error) {
	last, ok := history.Last()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: empty history", ErrNotEnoughData)
	}
	return last.Time()
}
