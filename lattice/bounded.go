package lattice

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/trinomial/models"
)

// window is the half width of the neighbourhood kept around the trunk of
// column i: six standard deviations of the level count, capped at i.
func window(i int) int {
	k := int(math.Round(6 * math.Sqrt(float64(i)/3)))
	if k > i {
		return i
	}
	return k
}

// boundedRun reports the resource use of a bounded pricing pass.
type boundedRun struct {
	peakNodes int
	columns   int
}

// PriceBounded prices the option without keeping the lattice. Only the trunk
// prices are stored; each column is rebuilt inside its window around the trunk,
// priced against the column after it, and that column is then released. It
// rejects markets carrying a dividend.
//
// The pruning threshold is validated but does not shape the window. The result
// matches Price on the full lattice only when the threshold is small enough
// that the full lattice prunes nothing inside the six standard deviation
// window; at 1e-10 and a thousand steps the two differ in the eighth decimal.
func PriceBounded(market models.Market, option models.Option, steps int, threshold float64) (float64, error) {
	v, _, err := priceBounded(market, option, steps, threshold)
	return v, err
}

func priceBounded(market models.Market, option models.Option, steps int, threshold float64) (float64, boundedRun, error) {
	l, err := New(market, option, steps, threshold)
	if err != nil {
		return 0, boundedRun{}, err
	}
	if market.HasDividend() {
		return 0, boundedRun{}, fmt.Errorf("%w: bounded pricing with a dividend of %v", ErrUnsupportedConfiguration, market.Dividend)
	}

	g := l.geo
	trunk := make([]float64, steps+1)
	trunk[0] = market.Spot
	for i := 1; i <= steps; i++ {
		trunk[i] = trunk[i-1] * g.growth
	}

	var a arena
	a.reset(2 * (2*window(steps) + 1))
	run := boundedRun{}

	nextK := window(steps)
	nextBase := layColumn(&a, trunk[steps], nextK, g.alpha)
	for j := 0; j < 2*nextK+1; j++ {
		id := nextBase + NodeID(j)
		a.setPayoff(id, option.Payoff(a.nodes[id].Price))
	}
	trunk = trunk[:steps]

	for i := steps - 1; i >= 0; i-- {
		k := window(i)
		base := layColumn(&a, trunk[i], k, g.alpha)
		for j := -k; j <= k; j++ {
			id := base + NodeID(j+k)
			linkWindow(&a, id, j, nextBase, nextK, g)
			a.backwardPayoff(id, i, option, l.exercise, g.discount)
		}
		if n := a.len(); n > run.peakNodes {
			run.peakNodes = n
		}
		run.columns++

		a.releaseFront(2*nextK + 1)
		trunk = trunk[:i]
		nextBase, nextK = 0, k
	}

	v, _ := a.nodes[0].Payoff()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, run, fmt.Errorf("%w: root value %v", ErrNumericalDegeneracy, v)
	}
	return v, run, nil
}

// layColumn appends 2k+1 nodes centred on the trunk price and links them as
// neighbours. Prices are chained outward from the centre.
func layColumn(a *arena, center float64, k int, alpha float64) NodeID {
	base := NodeID(a.len())
	for j := 0; j < 2*k+1; j++ {
		a.alloc(0)
	}
	mid := base + NodeID(k)
	a.nodes[mid].Price = center
	for j := NodeID(1); j <= NodeID(k); j++ {
		a.nodes[mid+j].Price = a.nodes[mid+j-1].Price * alpha
		a.nodes[mid-j].Price = a.nodes[mid-j+1].Price / alpha
	}
	for id := base; id < base+NodeID(2*k); id++ {
		a.nodes[id].Up = id + 1
		a.nodes[id+1].Down = id
	}
	return base
}

// linkWindow connects the node at offset j to the next column's window. A node
// whose outer child falls outside that window branches onto its mid child only.
func linkWindow(a *arena, id NodeID, j int, nextBase NodeID, nextK int, g geometry) {
	mid := nextBase + NodeID(j+nextK)
	a.nodes[id].NextMid = mid
	if j+1 > nextK || j-1 < -nextK {
		a.collapseToMonomial(id)
		return
	}
	a.nodes[id].NextUp = mid + 1
	a.nodes[id].NextDown = mid - 1
	a.computeTransitionProbabilities(id, g, a.nodes[mid].Price)
}
