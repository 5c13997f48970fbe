package tradier

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/VividCortex/ewma"
	"gonum.org/v1/gonum/stat"
)

// TradingDays annualises daily estimates.
const TradingDays = 252

// ErrNotEnoughData is returned when a window is too short for an estimator.
var ErrNotEnoughData = errors.New("tradier: not enough price history")

// Estimator names accepted by Volatility.
const (
	CloseToClose   = "close"
	EWMA           = "ewma"
	Parkinson      = "parkinson"
	GarmanKlass    = "garman-klass"
	RogersSatchell = "rogers-satchell"
	YangZhang      = "yang-zhang"
)

// Periods are the look-back windows reported by VolatilityTable, in trading days.
var Periods = []struct {
	Name string
	Days int
}{
	{"1w", 5},
	{"1m", 21},
	{"3m", 63},
	{"6m", 126},
	{"1y", 252},
}

// LogReturns returns log(close[i]/close[i-1]) for consecutive closes.
func LogReturns(days []Day) []float64 {
	if len(days) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		returns = append(returns, math.Log(days[i].Close/days[i-1].Close))
	}
	return returns
}

// HistoricalVolatility is the annualised sample deviation of daily log returns.
func HistoricalVolatility(days []Day) (float64, error) {
	returns := LogReturns(days)
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: close-to-close needs 3 bars, got %d", ErrNotEnoughData, len(days))
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDays), nil
}

// EWMAVolatility weights recent squared returns more heavily. age is the
// average age of the samples in days; 0 selects the package default of 30.
func EWMAVolatility(days []Day, age float64) (float64, error) {
	returns := LogReturns(days)
	avg := ewma.NewMovingAverage()
	if age > 0 {
		if len(returns) <= int(ewma.WARMUP_SAMPLES) {
			return 0, fmt.Errorf("%w: ewma needs more than %d returns, got %d", ErrNotEnoughData, ewma.WARMUP_SAMPLES, len(returns))
		}
		avg = ewma.NewMovingAverage(age)
	}
	if len(returns) == 0 {
		return 0, fmt.Errorf("%w: ewma needs 2 bars", ErrNotEnoughData)
	}
	for _, r := range returns {
		avg.Add(r * r)
	}
	return math.Sqrt(avg.Value() * TradingDays), nil
}

// ParkinsonVolatility uses the daily high-low range.
func ParkinsonVolatility(days []Day) (float64, error) {
	if len(days) == 0 {
		return 0, fmt.Errorf("%w: parkinson needs 1 bar", ErrNotEnoughData)
	}
	sum := 0.0
	for _, d := range days {
		hl := math.Log(d.High / d.Low)
		sum += hl * hl
	}
	return math.Sqrt(sum/(4*float64(len(days))*math.Ln2)) * math.Sqrt(TradingDays), nil
}

// GarmanKlassVolatility combines the high-low range with the open-close move.
func GarmanKlassVolatility(days []Day) (float64, error) {
	if len(days) == 0 {
		return 0, fmt.Errorf("%w: garman-klass needs 1 bar", ErrNotEnoughData)
	}
	sum := 0.0
	for _, d := range days {
		hl := math.Log(d.High / d.Low)
		co := math.Log(d.Close / d.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	return math.Sqrt(math.Max(sum, 0) / float64(len(days)) * TradingDays), nil
}

func rogersSatchellVariance(days []Day) float64 {
	sum := 0.0
	for _, d := range days {
		sum += math.Log(d.High/d.Close)*math.Log(d.High/d.Open) +
			math.Log(d.Low/d.Close)*math.Log(d.Low/d.Open)
	}
	return sum / float64(len(days))
}

// RogersSatchellVolatility is drift independent.
func RogersSatchellVolatility(days []Day) (float64, error) {
	if len(days) == 0 {
		return 0, fmt.Errorf("%w: rogers-satchell needs 1 bar", ErrNotEnoughData)
	}
	return math.Sqrt(math.Max(rogersSatchellVariance(days), 0) * TradingDays), nil
}

// YangZhangVolatility adds overnight gaps to the Rogers-Satchell estimate.
func YangZhangVolatility(days []Day) (float64, error) {
	n := len(days)
	if n < 3 {
		return 0, fmt.Errorf("%w: yang-zhang needs 3 bars, got %d", ErrNotEnoughData, n)
	}
	overnight := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		overnight = append(overnight, math.Log(days[i].Open/days[i-1].Close))
	}
	openClose := make([]float64, n)
	for i, d := range days {
		openClose[i] = math.Log(d.Close / d.Open)
	}

	k := 0.34 / (1.34 + float64(n+1)/float64(n-1))
	variance := stat.Variance(overnight, nil) + k*stat.Variance(openClose, nil) + (1-k)*rogersSatchellVariance(days)
	return math.Sqrt(math.Max(variance, 0) * TradingDays), nil
}

// Volatility runs the named estimator over days.
func Volatility(estimator string, days []Day) (float64, error) {
	switch strings.ToLower(estimator) {
	case CloseToClose, "", "historical":
		return HistoricalVolatility(days)
	case EWMA:
		return EWMAVolatility(days, 0)
	case Parkinson:
		return ParkinsonVolatility(days)
	case GarmanKlass:
		return GarmanKlassVolatility(days)
	case RogersSatchell:
		return RogersSatchellVolatility(days)
	case YangZhang:
		return YangZhangVolatility(days)
	}
	return 0, fmt.Errorf("tradier: unknown volatility estimator %q", estimator)
}

// VolatilityTable estimates every period the history is long enough for.
func VolatilityTable(history *QuoteHistory, estimator string) map[string]float64 {
	results := make(map[string]float64)
	for _, period := range Periods {
		if len(history.Days()) < period.Days+1 {
			continue
		}
		if v, err := Volatility(estimator, history.Window(period.Days+1)); err == nil && v > 0 {
			results[period.Name] = v
		}
	}
	return results
}
