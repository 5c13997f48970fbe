package lattice

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/trinomial/models"
)

// State is the lifecycle stage of a Lattice.
type State int

const (
	Empty State = iota
	Built
	Priced
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Priced:
		return "priced"
	default:
		return "empty"
	}
}

// Stats summarises the shape of a built lattice.
type Stats struct {
	Nodes      int // nodes allocated
	Pruned     int // nodes collapsed to a monomial branch
	MaxWidth   int // widest column
	Columns    int
	Exercise   int // early exercise steps
	DivStep    int // -1 when no dividend falls inside the lattice
	TimeDelta  float64
	Multiplier float64
}

// Lattice is a recombining trinomial tree for one market and one option. It is
// built once, priced once and discarded; it is not safe for concurrent use.
type Lattice struct {
	market    models.Market
	option    models.Option
	steps     int
	threshold float64

	geo      geometry
	divStep  int
	exercise map[int]struct{}

	arena arena
	trunk []NodeID // trunk node of every column, root first
	state State
	stats Stats
}

// New validates the inputs and derives the lattice geometry. No node is allocated.
func New(market models.Market, option models.Option, steps int, threshold float64) (*Lattice, error) {
	if option == nil {
		return nil, fmt.Errorf("%w: nil option", ErrInvalidParameter)
	}
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be at least 1, got %d", ErrInvalidParameter, steps)
	}
	if !(threshold > 0 && threshold < 1) {
		return nil, fmt.Errorf("%w: pruning threshold must lie in (0,1), got %v", ErrInvalidParameter, threshold)
	}
	if err := market.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if err := option.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	timeDelta := option.TimeToMaturity() / float64(steps)
	if !(timeDelta > 0) {
		return nil, fmt.Errorf("%w: time step %v is not positive", ErrNumericalDegeneracy, timeDelta)
	}
	geo := newGeometry(market, timeDelta)
	if !(geo.alpha > 1) || math.IsInf(geo.alpha, 0) || geo.denominator == 0 {
		return nil, fmt.Errorf("%w: step multiplier %v (volatility %v, dt %v)", ErrNumericalDegeneracy, geo.alpha, market.Volatility, timeDelta)
	}

	l := &Lattice{
		market:    market,
		option:    option,
		steps:     steps,
		threshold: threshold,
		geo:       geo,
		divStep:   -1,
		exercise:  option.ExerciseSteps(steps),
	}
	if market.HasDividend() {
		if s := models.StepOf(option.StartDate(), market.DividendDate, timeDelta); s >= 0 && s < steps {
			l.divStep = s
		}
	}
	return l, nil
}

// BuildLattice returns a fully linked lattice ready for pricing.
func BuildLattice(market models.Market, option models.Option, steps int, threshold float64) (*Lattice, error) {
	l, err := New(market, option, steps, threshold)
	if err != nil {
		return nil, err
	}
	if err := l.Build(); err != nil {
		return nil, err
	}
	return l, nil
}

// Price prices a built lattice.
func Price(l *Lattice) (float64, error) {
	if l == nil {
		return 0, ErrNotBuilt
	}
	return l.Price()
}

func (l *Lattice) Steps() int            { return l.steps }
func (l *Lattice) Threshold() float64    { return l.threshold }
func (l *Lattice) Alpha() float64        { return l.geo.alpha }
func (l *Lattice) TimeDelta() float64    { return l.geo.timeDelta }
func (l *Lattice) DividendStep() int     { return l.divStep }
func (l *Lattice) State() State          { return l.state }
func (l *Lattice) Market() models.Market { return l.market }
func (l *Lattice) Option() models.Option { return l.option }

// ExerciseSteps returns a copy of the resolved early exercise set.
func (l *Lattice) ExerciseSteps() map[int]struct{} {
	out := make(map[int]struct{}, len(l.exercise))
	for k := range l.exercise {
		out[k] = struct{}{}
	}
	return out
}

func (l *Lattice) Stats() Stats { return l.stats }

// Root returns the root node id, or NoNode before Build.
func (l *Lattice) Root() NodeID {
	if len(l.trunk) == 0 {
		return NoNode
	}
	return l.trunk[0]
}

// Trunk returns the central node of column i.
func (l *Lattice) Trunk(i int) NodeID {
	if i < 0 || i >= len(l.trunk) {
		return NoNode
	}
	return l.trunk[i]
}

// Node returns a copy of the node with the given id. An id outside the arena,
// NoNode included, yields an unlinked zero-price node.
func (l *Lattice) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(l.arena.nodes) {
		return newNode(0)
	}
	return l.arena.nodes[id]
}

// Column returns the ids of column i in ascending price order.
func (l *Lattice) Column(i int) []NodeID {
	t := l.Trunk(i)
	if t == NoNode {
		return nil
	}
	bottom := t
	for l.arena.nodes[bottom].Down != NoNode {
		bottom = l.arena.nodes[bottom].Down
	}
	var ids []NodeID
	for id := bottom; id != NoNode; id = l.arena.nodes[id].Up {
		ids = append(ids, id)
	}
	return ids
}
