package lattice

import (
	"fmt"
	"math"
)

// Price runs backward induction from the terminal column to the root and
// returns the root value. A priced lattice returns its cached value.
func (l *Lattice) Price() (float64, error) {
	switch l.state {
	case Empty:
		return 0, ErrNotBuilt
	case Priced:
		v, _ := l.arena.nodes[l.Root()].Payoff()
		return v, nil
	}

	last := l.trunk[len(l.trunk)-1]
	l.terminalPayoffs(last)

	step := l.steps - 1
	for id := l.arena.nodes[last].Prev; id != NoNode; id = l.arena.nodes[id].Prev {
		l.sweepColumn(id, step)
		step--
	}

	v, _ := l.arena.nodes[l.Root()].Payoff()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: root value %v", ErrNumericalDegeneracy, v)
	}
	l.state = Priced
	return v, nil
}

func (l *Lattice) terminalPayoffs(trunk NodeID) {
	a := &l.arena
	for id := trunk; id != NoNode; id = a.nodes[id].Up {
		a.setPayoff(id, l.option.Payoff(a.nodes[id].Price))
	}
	for id := a.nodes[trunk].Down; id != NoNode; id = a.nodes[id].Down {
		a.setPayoff(id, l.option.Payoff(a.nodes[id].Price))
	}
}

func (l *Lattice) sweepColumn(trunk NodeID, step int) {
	a := &l.arena
	for id := trunk; id != NoNode; id = a.nodes[id].Up {
		a.backwardPayoff(id, step, l.option, l.exercise, l.geo.discount)
	}
	for id := a.nodes[trunk].Down; id != NoNode; id = a.nodes[id].Down {
		a.backwardPayoff(id, step, l.option, l.exercise, l.geo.discount)
	}
}
