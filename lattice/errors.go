package lattice

import "errors"

var (
	// ErrInvalidParameter indicates a non-positive volatility, maturity or step count,
	// a pruning threshold outside (0,1), or an invalid market or option descriptor.
	ErrInvalidParameter = errors.New("lattice: invalid parameter")
	// ErrUnsupportedConfiguration indicates the bounded-memory pricer was asked to
	// price a market carrying a dividend.
	ErrUnsupportedConfiguration = errors.New("lattice: unsupported configuration")
	// ErrNumericalDegeneracy indicates the step multiplier is not above 1, i.e. the
	// inputs leave no effective variance per step.
	ErrNumericalDegeneracy = errors.New("lattice: numerical degeneracy")
	// ErrNotBuilt indicates Price was called on a lattice that has not been built.
	ErrNotBuilt = errors.New("lattice: lattice not built")
)
