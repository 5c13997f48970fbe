package lattice

import (
	"fmt"
	"math"
)

// Build allocates and links every column of the lattice, root first. Calling it
// again discards the previous lattice and builds a fresh one.
func (l *Lattice) Build() error {
	l.arena.reset(l.capacityHint())
	l.trunk = make([]NodeID, 0, l.steps+1)
	l.state = Empty
	l.stats = Stats{
		DivStep:    l.divStep,
		Exercise:   len(l.exercise),
		TimeDelta:  l.geo.timeDelta,
		Multiplier: l.geo.alpha,
	}

	root := l.arena.alloc(l.market.Spot)
	l.arena.at(root).Existence = 1
	l.trunk = append(l.trunk, root)

	mid := root
	for step := 0; step < l.steps; step++ {
		next, err := l.buildColumn(mid, step == l.divStep)
		if err != nil {
			l.arena.reset(0)
			l.trunk = l.trunk[:0]
			return fmt.Errorf("column %d: %w", step+1, err)
		}
		l.trunk = append(l.trunk, next)
		mid = next
	}

	l.stats.Nodes = l.arena.len()
	l.stats.Columns = len(l.trunk)
	for i := range l.trunk {
		if w := l.width(i); w > l.stats.MaxWidth {
			l.stats.MaxWidth = w
		}
	}
	l.state = Built
	return nil
}

// capacityHint sizes the arena for an unpruned column growth bounded by the
// six standard deviation band, so large lattices rarely reallocate.
func (l *Lattice) capacityHint() int {
	columns := l.steps + 1
	band := 2*window(l.steps) + 3
	if full := columns * columns; full < columns*band {
		return full
	}
	return columns * band
}

func (l *Lattice) width(i int) int {
	t := l.trunk[i]
	w := 1
	for id := l.arena.nodes[t].Up; id != NoNode; id = l.arena.nodes[id].Up {
		w++
	}
	for id := l.arena.nodes[t].Down; id != NoNode; id = l.arena.nodes[id].Down {
		w++
	}
	return w
}

// buildColumn branches the trunk node mid, expands its column outward in both
// directions and returns the trunk node of the next column.
func (l *Lattice) buildColumn(mid NodeID, dividendDue bool) (NodeID, error) {
	if err := l.buildTriplet(mid, dividendDue); err != nil {
		return NoNode, err
	}
	for id := l.arena.nodes[mid].Up; id != NoNode; {
		id = l.expandUp(id, dividendDue)
	}
	for id := l.arena.nodes[mid].Down; id != NoNode; {
		id = l.expandDown(id, dividendDue)
	}
	return l.arena.nodes[mid].NextMid, nil
}

func (l *Lattice) buildTriplet(id NodeID, dividendDue bool) error {
	a := &l.arena
	fwd := a.at(id).Forward(l.market.Rate, l.geo.timeDelta, l.market.Dividend, dividendDue)
	if !(fwd > 0) || math.IsInf(fwd, 0) {
		return fmt.Errorf("%w: trunk forward %v is not a positive price", ErrNumericalDegeneracy, fwd)
	}

	mid := a.alloc(fwd)
	up := a.alloc(fwd * l.geo.alpha)
	down := a.alloc(fwd / l.geo.alpha)

	n := a.at(id)
	n.NextMid, n.NextUp, n.NextDown = mid, up, down
	a.branchTriplet(id)
	a.computeTransitionProbabilities(id, l.geo, fwd)
	a.updateChildExistence(id)
	return nil
}

// expandUp branches a node above the trunk. Its mid child is the up child of
// the node below; only the new top of the next column is allocated. It returns
// the next node to expand, or NoNode when the walk stops.
func (l *Lattice) expandUp(id NodeID, dividendDue bool) NodeID {
	a := &l.arena
	below := a.nodes[id].Down
	cand := a.nodes[below].NextUp
	if cand == NoNode {
		cand = a.ensureUp(a.nodes[below].NextMid, l.geo.alpha)
	}

	if a.nodes[id].Existence < l.threshold {
		if l.massBeyond(id, upward) {
			l.collapse(id, cand)
			return a.nodes[id].Up
		}
		l.prune(id, cand, upward)
		return NoNode
	}

	next, nextDown := cand, a.nodes[below].NextMid
	expectation := a.nodes[cand].Price
	if dividendDue {
		expectation = a.at(id).Forward(l.market.Rate, l.geo.timeDelta, l.market.Dividend, true)
		if !(expectation > 0) {
			l.prune(id, cand, upward)
			return NoNode
		}
		next = l.locateLevel(cand, expectation)
		nextDown = a.ensureDown(next, l.geo.alpha)
	}
	nextUp := a.ensureUp(next, l.geo.alpha)

	n := a.at(id)
	n.NextMid, n.NextUp, n.NextDown = next, nextUp, nextDown
	a.computeTransitionProbabilities(id, l.geo, expectation)
	a.updateChildExistence(id)
	return n.Up
}

// expandDown is the mirror of expandUp for nodes below the trunk.
func (l *Lattice) expandDown(id NodeID, dividendDue bool) NodeID {
	a := &l.arena
	above := a.nodes[id].Up
	cand := a.nodes[above].NextDown
	if cand == NoNode {
		cand = a.ensureDown(a.nodes[above].NextMid, l.geo.alpha)
	}

	if a.nodes[id].Existence < l.threshold {
		if l.massBeyond(id, downward) {
			l.collapse(id, cand)
			return a.nodes[id].Down
		}
		l.prune(id, cand, downward)
		return NoNode
	}

	next, nextUp := cand, a.nodes[above].NextMid
	expectation := a.nodes[cand].Price
	if dividendDue {
		expectation = a.at(id).Forward(l.market.Rate, l.geo.timeDelta, l.market.Dividend, true)
		if !(expectation > 0) {
			l.prune(id, cand, downward)
			return NoNode
		}
		next = l.locateLevel(cand, expectation)
		nextUp = a.ensureUp(next, l.geo.alpha)
	}
	nextDown := a.ensureDown(next, l.geo.alpha)

	n := a.at(id)
	n.NextMid, n.NextUp, n.NextDown = next, nextUp, nextDown
	a.computeTransitionProbabilities(id, l.geo, expectation)
	a.updateChildExistence(id)
	return n.Down
}

func upward(n *Node) NodeID   { return n.Up }
func downward(n *Node) NodeID { return n.Down }

// massBeyond reports whether id or any node past it in the walk direction
// holds at least the pruning threshold. After an ex-dividend step a column
// can carry empty levels between levels that still hold mass.
func (l *Lattice) massBeyond(id NodeID, beyond func(*Node) NodeID) bool {
	a := &l.arena
	for ; id != NoNode; id = beyond(&a.nodes[id]) {
		if a.nodes[id].Existence >= l.threshold {
			return true
		}
	}
	return false
}

// collapse sends a single node's mass to cand and lets the walk continue past it.
func (l *Lattice) collapse(id, cand NodeID) {
	l.arena.nodes[id].NextMid = cand
	l.arena.collapseToMonomial(id)
	l.stats.Pruned++
}

// prune collapses id and every node beyond it in the walk direction onto cand.
// The column stops growing at that level and no mass leaves the lattice.
func (l *Lattice) prune(id, cand NodeID, beyond func(*Node) NodeID) {
	a := &l.arena
	for ; id != NoNode; id = beyond(&a.nodes[id]) {
		l.collapse(id, cand)
	}
}

// locateLevel returns the level of the next column nearest to fwd, starting
// from cand and synthesizing levels in the search direction as needed. A level
// c is kept while fwd lies between the midpoints to its neighbours.
func (l *Lattice) locateLevel(cand NodeID, fwd float64) NodeID {
	a := &l.arena
	alpha := l.geo.alpha
	for {
		c := a.nodes[cand].Price
		switch {
		case fwd >= (c+c*alpha)/2:
			cand = a.ensureUp(cand, alpha)
		case fwd < (c+c/alpha)/2:
			cand = a.ensureDown(cand, alpha)
		default:
			return cand
		}
	}
}
