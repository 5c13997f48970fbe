package models

import (
	"math"
	"time"
)

// DaysPerYear is the day count used to turn calendar dates into lattice steps.
const DaysPerYear = 365.0

// DaysBetween returns the whole number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours() / 24))
}

// StepOf maps date onto the lattice step that first reaches it, for a lattice
// starting at start with steps of timeDelta years. Dates before start give a
// negative step.
func StepOf(start, date time.Time, timeDelta float64) int {
	days := DaysBetween(start, date)
	if days < 0 {
		return -1
	}
	return int(math.Ceil(float64(days) / (timeDelta * DaysPerYear)))
}

// YearFraction converts a calendar interval into years.
func YearFraction(start, end time.Time) float64 {
	return float64(DaysBetween(start, end)) / DaysPerYear
}
