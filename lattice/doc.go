// Package lattice prices options on a recombining trinomial tree.
//
// A Lattice is built column by column from the spot price. Adjacent price levels
// in a column differ by the constant factor
//
//	alpha = exp(sigma * sqrt(3 * dt)),   dt = maturity / steps
//
// and every branched node moves to one of three levels of the next column with
// probabilities matched to the mean and variance of the risk-neutral lognormal
// step. The trunk node of each column sits at the forward of the previous trunk;
// nodes above and below it share their children with their neighbours, so a
// column only grows by its two outer levels.
//
// Pruning: a node away from the trunk whose existence probability (the mass of
// paths reaching it) falls below the caller's threshold is collapsed onto its
// mid child with probabilities {0, 1, 0}, and the outward walk of that column
// stops there. This caps the width of long lattices at a few standard deviations.
//
// Dividends: on the step the ex-dividend date maps to (days rounded up to whole
// steps on a 365-day year) the forward drops by the dividend amount and the
// usual recombination no longer lines up. Each branched node then searches the
// next column for the level nearest its own post-dividend forward, adding levels
// as needed.
//
// Pricing walks the trunk backward from the terminal column. Terminal nodes take
// the option payoff; earlier nodes take the discounted expectation of their
// children, raised to the exercise value on the option's exercise steps. Payoffs
// are written once.
//
// Storage: nodes live in an arena and refer to each other by NodeID. PriceBounded
// keeps only the trunk prices and two columns at a time, releasing each column
// once the column before it has been priced.
//
// Basic use:
//
//	l, err := lattice.BuildLattice(market, option, 500, 1e-10)
//	if err != nil {
//		return err
//	}
//	price, err := l.Price()
//
// A Lattice is single use and not safe for concurrent use. Independent lattices
// may be built and priced in parallel.
package lattice
