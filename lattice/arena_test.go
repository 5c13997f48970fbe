package lattice

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/trinomial/models"
)

func TestArena_ReleaseFrontShiftsAndClears(t *testing.T) {
	var a arena
	base := layColumn(&a, 100, 1, 1.1) // ids 0..2
	next := layColumn(&a, 101, 2, 1.1) // ids 3..7
	require.Equal(t, NodeID(0), base)
	require.Equal(t, NodeID(3), next)

	a.nodes[5].Prev = 1
	a.nodes[5].NextMid = 6
	a.nodes[1].NextMid = 5

	a.releaseFront(3)
	require.Equal(t, 5, a.len())

	// former id 5 is now 2; links into the released range are gone
	n := a.nodes[2]
	assert.InDelta(t, 101.0, n.Price, 1e-12)
	assert.Equal(t, NoNode, n.Prev)
	assert.Equal(t, NodeID(3), n.NextMid)
	assert.Equal(t, NodeID(1), n.Down)
	assert.Equal(t, NodeID(3), n.Up)
	assert.Equal(t, NoNode, a.nodes[0].Down)

	// the backing array past the live range holds zero nodes
	tail := a.nodes[:cap(a.nodes)][a.len():]
	for _, stale := range tail {
		assert.Equal(t, Node{}, stale)
	}
}

func TestArena_PayoffWrittenOnce(t *testing.T) {
	var a arena
	id := a.alloc(100)
	a.setPayoff(id, 3)
	a.setPayoff(id, 7)
	v, ok := a.nodes[id].Payoff()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	a.backwardPayoff(id, 0, models.NewAmerican(models.Put, 200, 1, time.Now()), map[int]struct{}{0: {}}, 0.9)
	v, _ = a.nodes[id].Payoff()
	assert.Equal(t, 3.0, v)
}

func TestArena_BackwardPayoffSkipsAbsentChildren(t *testing.T) {
	var a arena
	parent := a.alloc(100)
	mid := a.alloc(101)
	a.setPayoff(mid, 10)
	a.nodes[parent].NextMid = mid
	a.collapseToMonomial(parent)

	a.backwardPayoff(parent, 3, models.NewEuropean(models.Call, 90, 1, time.Now()), nil, 0.5)
	v, ok := a.nodes[parent].Payoff()
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
	assert.True(t, a.nodes[parent].Monomial())
}

func TestArena_TransitionProbabilitiesAfterDeepDividend(t *testing.T) {
	market := models.NewMarket(100, 0.5, 0.05)
	g := newGeometry(market, 0.005)

	// a 32 node paying 30 leaves a forward far below the variance it needs
	for _, ratio := range []float64{1.02, 1, 0.98} {
		var a arena
		parent := a.alloc(32)
		expectation := a.nodes[parent].Forward(market.Rate, g.timeDelta, 30, true)
		mid := a.alloc(expectation / ratio)
		up := a.ensureUp(mid, g.alpha)
		down := a.ensureDown(mid, g.alpha)
		n := &a.nodes[parent]
		n.NextMid, n.NextUp, n.NextDown = mid, up, down

		a.computeTransitionProbabilities(parent, g, expectation)
		n = &a.nodes[parent]
		for _, p := range []float64{n.PUp, n.PMid, n.PDown} {
			assert.GreaterOrEqual(t, p, 0.0, "ratio %v", ratio)
			assert.LessOrEqual(t, p, 1.0, "ratio %v", ratio)
		}
		assert.InDelta(t, 1.0, n.PUp+n.PMid+n.PDown, 1e-15)
		mean := n.PUp*a.nodes[up].Price + n.PMid*a.nodes[mid].Price + n.PDown*a.nodes[down].Price
		assert.InEpsilon(t, expectation, mean, 1e-12, "ratio %v", ratio)
	}
}

func TestArena_TransitionProbabilitiesMatchVariance(t *testing.T) {
	g := newGeometry(models.NewMarket(100, 0.2, 0.05), 0.01)
	var a arena
	parent := a.alloc(100)
	mid := a.alloc(100 * g.growth)
	up := a.ensureUp(mid, g.alpha)
	down := a.ensureDown(mid, g.alpha)
	n := &a.nodes[parent]
	n.NextMid, n.NextUp, n.NextDown = mid, up, down

	a.computeTransitionProbabilities(parent, g, a.nodes[mid].Price)
	n = &a.nodes[parent]
	m := a.nodes[mid].Price
	mean := n.PUp*a.nodes[up].Price + n.PMid*m + n.PDown*a.nodes[down].Price
	second := n.PUp*math.Pow(a.nodes[up].Price, 2) + n.PMid*m*m + n.PDown*math.Pow(a.nodes[down].Price, 2)
	assert.InEpsilon(t, m, mean, 1e-12)
	assert.InEpsilon(t, 100*100*g.varianceFactor, second-mean*mean, 1e-6)
	assert.Greater(t, n.PDown, 0.0)
	assert.Greater(t, n.PUp, 0.0)
}

func TestWindow(t *testing.T) {
	assert.Equal(t, 0, window(0))
	assert.Equal(t, 1, window(1))
	assert.Equal(t, 12, window(12))
	assert.Equal(t, 35, window(100))
	assert.Equal(t, 110, window(1000))
	for i := 1; i < 5000; i++ {
		require.GreaterOrEqual(t, window(i), window(i-1))
	}
}

func TestPriceBounded_ResidentNodesStayWithinTwoColumns(t *testing.T) {
	market := models.NewMarket(100, 0.2, 0.05)
	call := models.NewEuropean(models.Call, 100, 1, time.Now())

	for _, steps := range []int{10, 100, 1000, 5000} {
		_, run, err := priceBounded(market, call, steps, 1e-10)
		require.NoError(t, err)
		assert.Equal(t, steps, run.columns)
		assert.LessOrEqual(t, run.peakNodes, 2*(2*window(steps)+1), "steps %d", steps)
	}

	// the full lattice keeps every column
	l, err := BuildLattice(market, call, 1000, 1e-10)
	require.NoError(t, err)
	_, run, err := priceBounded(market, call, 1000, 1e-10)
	require.NoError(t, err)
	assert.Less(t, run.peakNodes*50, l.Stats().Nodes)
}
