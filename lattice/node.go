package lattice

import (
	"math"

	"github.com/bcdannyboy/trinomial/models"
)

// NodeID addresses a node inside its lattice's arena.
type NodeID int32

// NoNode marks an absent relation.
const NoNode NodeID = -1

// Node is one (step, price level) state of the lattice. Relations are arena
// indices: NextUp, NextMid and NextDown are the children one step ahead, Up and
// Down the neighbours in the same column, Prev the previous trunk node.
type Node struct {
	Price     float64
	Existence float64

	PUp, PMid, PDown float64

	NextUp, NextMid, NextDown NodeID
	Up, Down                  NodeID
	Prev                      NodeID

	payoff    float64
	payoffSet bool
	branched  bool
}

func newNode(price float64) Node {
	return Node{
		Price:    price,
		NextUp:   NoNode,
		NextMid:  NoNode,
		NextDown: NoNode,
		Up:       NoNode,
		Down:     NoNode,
		Prev:     NoNode,
	}
}

// Forward returns the value the node's price grows to over one step, less the
// dividend when it goes ex on this step.
func (n Node) Forward(rate, timeDelta, dividend float64, dividendDue bool) float64 {
	f := n.Price * math.Exp(rate*timeDelta)
	if dividendDue {
		f -= dividend
	}
	return f
}

// Payoff reports the node's value and whether it has been set.
func (n Node) Payoff() (float64, bool) {
	return n.payoff, n.payoffSet
}

// Branched reports whether transition probabilities have been assigned.
func (n Node) Branched() bool { return n.branched }

// Monomial reports whether the node was collapsed onto its mid child.
func (n Node) Monomial() bool {
	return n.branched && n.NextUp == NoNode && n.NextDown == NoNode && n.PMid == 1
}

// geometry holds the per-lattice constants derived once from the inputs.
type geometry struct {
	alpha          float64 // price ratio between adjacent levels
	timeDelta      float64
	growth         float64 // exp(r dt)
	discount       float64 // exp(-r dt)
	varianceFactor float64 // exp(2 r dt) (exp(sigma^2 dt) - 1)
	denominator    float64 // (1 - alpha) (alpha^-2 - 1)
}

func newGeometry(market models.Market, timeDelta float64) geometry {
	alpha := math.Exp(market.Volatility * math.Sqrt(3*timeDelta))
	return geometry{
		alpha:          alpha,
		timeDelta:      timeDelta,
		growth:         math.Exp(market.Rate * timeDelta),
		discount:       math.Exp(-market.Rate * timeDelta),
		varianceFactor: math.Exp(2*market.Rate*timeDelta) * (math.Exp(market.Volatility*market.Volatility*timeDelta) - 1),
		denominator:    (1 - alpha) * (math.Pow(alpha, -2) - 1),
	}
}

// arena owns every node of a lattice; relations between nodes are indices into it.
type arena struct {
	nodes []Node
}

func (a *arena) alloc(price float64) NodeID {
	a.nodes = append(a.nodes, newNode(price))
	return NodeID(len(a.nodes) - 1)
}

// at returns a pointer that stays valid only until the next alloc.
func (a *arena) at(id NodeID) *Node {
	return &a.nodes[id]
}

func (a *arena) len() int { return len(a.nodes) }

func (a *arena) reset(capacity int) {
	if cap(a.nodes) < capacity {
		a.nodes = make([]Node, 0, capacity)
		return
	}
	clear(a.nodes)
	a.nodes = a.nodes[:0]
}

// ensureUp returns the level above id, synthesizing it at price*alpha when id is the top of its column.
func (a *arena) ensureUp(id NodeID, alpha float64) NodeID {
	if up := a.nodes[id].Up; up != NoNode {
		return up
	}
	up := a.alloc(a.nodes[id].Price * alpha)
	a.nodes[id].Up = up
	a.nodes[up].Down = id
	return up
}

// ensureDown is the mirror of ensureUp.
func (a *arena) ensureDown(id NodeID, alpha float64) NodeID {
	if down := a.nodes[id].Down; down != NoNode {
		return down
	}
	down := a.alloc(a.nodes[id].Price / alpha)
	a.nodes[id].Down = down
	a.nodes[down].Up = id
	return down
}

// branchTriplet links a trunk node's three fresh children into a column and
// records the trunk predecessor on the mid child.
func (a *arena) branchTriplet(id NodeID) {
	n := &a.nodes[id]
	mid, up, down := &a.nodes[n.NextMid], &a.nodes[n.NextUp], &a.nodes[n.NextDown]
	mid.Up = n.NextUp
	mid.Down = n.NextDown
	up.Down = n.NextMid
	down.Up = n.NextMid
	mid.Prev = id
}

// computeTransitionProbabilities matches the first two moments of the one-step
// risk-neutral distribution. expectation is the model forward of the node; it
// differs from the mid child's price only on the ex-dividend step.
//
// When the variance cannot be reached with one level of spread (a dividend
// close to the node's price) the moment match leaves [0, 1]. The node then
// matches the forward alone, splitting its mass between the mid child and the
// neighbour on the forward's side.
func (a *arena) computeTransitionProbabilities(id NodeID, g geometry, expectation float64) {
	n := &a.nodes[id]
	mid := a.nodes[n.NextMid].Price
	variance := n.Price * n.Price * g.varianceFactor
	ratio := expectation / mid

	n.PDown = (math.Pow(mid, -2)*(variance+expectation*expectation) - 1 - (g.alpha+1)*(ratio-1)) / g.denominator
	n.PUp = (ratio - 1 - (1/g.alpha-1)*n.PDown) / (g.alpha - 1)
	n.PMid = 1 - n.PDown - n.PUp
	n.branched = true

	if validProbability(n.PUp) && validProbability(n.PMid) && validProbability(n.PDown) {
		return
	}
	n.PUp, n.PDown = 0, 0
	if expectation >= mid {
		n.PUp = (ratio - 1) / (g.alpha - 1)
	} else {
		n.PDown = (1 - ratio) / (1 - 1/g.alpha)
	}
	n.PMid = 1 - n.PUp - n.PDown
}

func validProbability(p float64) bool {
	return p >= 0 && p <= 1
}

// updateChildExistence adds this node's mass to its children. Children shared with
// a neighbour already hold that neighbour's share.
func (a *arena) updateChildExistence(id NodeID) {
	n := &a.nodes[id]
	a.nodes[n.NextUp].Existence += n.Existence * n.PUp
	a.nodes[n.NextMid].Existence += n.Existence * n.PMid
	a.nodes[n.NextDown].Existence += n.Existence * n.PDown
}

// collapseToMonomial sends all of the node's mass to NextMid and drops the outer children.
func (a *arena) collapseToMonomial(id NodeID) {
	n := &a.nodes[id]
	n.NextUp = NoNode
	n.NextDown = NoNode
	n.PUp, n.PMid, n.PDown = 0, 1, 0
	n.branched = true
	a.nodes[n.NextMid].Existence += n.Existence
}

func (a *arena) setPayoff(id NodeID, v float64) {
	n := &a.nodes[id]
	if n.payoffSet {
		return
	}
	n.payoff = v
	n.payoffSet = true
}

func (a *arena) childValue(child NodeID, p float64) float64 {
	if child == NoNode {
		return 0
	}
	return a.nodes[child].payoff * p
}

// backwardPayoff discounts the children's values and applies early exercise on
// exercise steps. A node whose payoff is already set is left untouched.
func (a *arena) backwardPayoff(id NodeID, step int, option models.Option, exercise map[int]struct{}, discount float64) {
	n := &a.nodes[id]
	if n.payoffSet {
		return
	}
	retro := discount * (a.childValue(n.NextUp, n.PUp) + a.childValue(n.NextMid, n.PMid) + a.childValue(n.NextDown, n.PDown))
	if _, ok := exercise[step]; ok {
		retro = math.Max(retro, option.Payoff(n.Price))
	}
	n.payoff = retro
	n.payoffSet = true
}

// releaseFront drops the first count nodes, shifts the rest to the front and
// rewrites their relations. Relations into the released range are cleared.
func (a *arena) releaseFront(count int) {
	if count <= 0 {
		return
	}
	if count > len(a.nodes) {
		count = len(a.nodes)
	}
	clear(a.nodes[:count])
	kept := copy(a.nodes, a.nodes[count:])
	shift := func(id NodeID) NodeID {
		if id == NoNode || int(id) < count {
			return NoNode
		}
		return id - NodeID(count)
	}
	for i := 0; i < kept; i++ {
		n := &a.nodes[i]
		n.NextUp, n.NextMid, n.NextDown = shift(n.NextUp), shift(n.NextMid), shift(n.NextDown)
		n.Up, n.Down, n.Prev = shift(n.Up), shift(n.Down), shift(n.Prev)
	}
	clear(a.nodes[kept:])
	a.nodes = a.nodes[:kept]
}
