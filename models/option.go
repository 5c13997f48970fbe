package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidOption is returned by option validation.
var ErrInvalidOption = errors.New("models: invalid option")

// Option is the capability a lattice needs from a contract: its payoff at a
// price and the steps on which it may be exercised early.
type Option interface {
	Payoff(price float64) float64
	ExerciseSteps(steps int) map[int]struct{}
	TimeToMaturity() float64
	StartDate() time.Time
	Validate() error
}

type Kind int

const (
	Call Kind = iota
	Put
)

func (k Kind) String() string {
	if k == Put {
		return "put"
	}
	return "call"
}

// ParseKind accepts "call" or "put" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return Call, fmt.Errorf("%w: unknown option kind %q", ErrInvalidOption, s)
}

type ExerciseStyle int

const (
	European ExerciseStyle = iota
	American
	Bermudan
)

func (s ExerciseStyle) String() string {
	switch s {
	case American:
		return "american"
	case Bermudan:
		return "bermudan"
	default:
		return "european"
	}
}

func ParseExerciseStyle(s string) (ExerciseStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "european", "eu":
		return European, nil
	case "american", "us":
		return American, nil
	case "bermudan", "bermudean":
		return Bermudan, nil
	}
	return European, fmt.Errorf("%w: unknown exercise style %q", ErrInvalidOption, s)
}

// Schedule carries the timing shared by every contract.
type Schedule struct {
	Style         ExerciseStyle
	Maturity      float64 // years
	Start         time.Time
	ExerciseDates []time.Time // Bermudan only
}

func (s Schedule) TimeToMaturity() float64 { return s.Maturity }

func (s Schedule) StartDate() time.Time { return s.Start }

// ExerciseSteps resolves the early exercise set for a lattice of the given number of steps.
// European contracts have none, American contracts every step before maturity, Bermudan
// contracts the steps their dates map onto.
func (s Schedule) ExerciseSteps(steps int) map[int]struct{} {
	set := make(map[int]struct{})
	switch s.Style {
	case American:
		for i := 0; i < steps; i++ {
			set[i] = struct{}{}
		}
	case Bermudan:
		timeDelta := s.Maturity / float64(steps)
		for _, d := range s.ExerciseDates {
			step := StepOf(s.Start, d, timeDelta)
			if step >= 0 && step < steps {
				set[step] = struct{}{}
			}
		}
	}
	return set
}

func (s Schedule) validate() error {
	if !(s.Maturity > 0) || math.IsInf(s.Maturity, 0) {
		return fmt.Errorf("%w: maturity must be positive, got %v", ErrInvalidOption, s.Maturity)
	}
	if s.Style == Bermudan && len(s.ExerciseDates) == 0 {
		return fmt.Errorf("%w: bermudan option without exercise dates", ErrInvalidOption)
	}
	return nil
}

// Vanilla is a plain call or put.
type Vanilla struct {
	Schedule
	Kind   Kind
	Strike float64
}

func NewEuropean(kind Kind, strike, maturity float64, start time.Time) *Vanilla {
	return &Vanilla{Schedule: Schedule{Style: European, Maturity: maturity, Start: start}, Kind: kind, Strike: strike}
}

func NewAmerican(kind Kind, strike, maturity float64, start time.Time) *Vanilla {
	return &Vanilla{Schedule: Schedule{Style: American, Maturity: maturity, Start: start}, Kind: kind, Strike: strike}
}

func NewBermudan(kind Kind, strike, maturity float64, start time.Time, exerciseDates []time.Time) *Vanilla {
	return &Vanilla{
		Schedule: Schedule{Style: Bermudan, Maturity: maturity, Start: start, ExerciseDates: exerciseDates},
		Kind:     kind,
		Strike:   strike,
	}
}

func (v *Vanilla) Payoff(price float64) float64 {
	if v.Kind == Put {
		return math.Max(0, v.Strike-price)
	}
	return math.Max(0, price-v.Strike)
}

// WithMaturity returns a copy of v expiring at maturity.
func (v *Vanilla) WithMaturity(maturity float64) Option {
	c := *v
	c.Maturity = maturity
	return &c
}

func (v *Vanilla) Validate() error {
	if !(v.Strike > 0) || math.IsInf(v.Strike, 0) {
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidOption, v.Strike)
	}
	return v.Schedule.validate()
}

func (v *Vanilla) String() string {
	return fmt.Sprintf("%s %s K=%.4g T=%.4g", v.Style, v.Kind, v.Strike, v.Maturity)
}

// Digital is a cash-or-nothing contract paying Payout when in the money.
type Digital struct {
	Schedule
	Kind   Kind
	Strike float64
	Payout float64
}

func NewDigital(kind Kind, style ExerciseStyle, strike, payout, maturity float64, start time.Time) *Digital {
	return &Digital{Schedule: Schedule{Style: style, Maturity: maturity, Start: start}, Kind: kind, Strike: strike, Payout: payout}
}

func (d *Digital) Payoff(price float64) float64 {
	if (d.Kind == Call && price > d.Strike) || (d.Kind == Put && price < d.Strike) {
		return d.Payout
	}
	return 0
}

func (d *Digital) WithMaturity(maturity float64) Option {
	c := *d
	c.Maturity = maturity
	return &c
}

func (d *Digital) Validate() error {
	if !(d.Strike > 0) {
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidOption, d.Strike)
	}
	if !(d.Payout > 0) {
		return fmt.Errorf("%w: payout must be positive, got %v", ErrInvalidOption, d.Payout)
	}
	return d.Schedule.validate()
}

func (d *Digital) String() string {
	return fmt.Sprintf("%s digital %s K=%.4g T=%.4g", d.Style, d.Kind, d.Strike, d.Maturity)
}
