package domain

import "errors"

// Business-rule violations surfaced to callers. These never abort the
// processing of other markets.
var (
	ErrAlreadyOpen   = errors.New("investment already open for symbol")
	ErrNotOpen       = errors.New("no open investment for symbol")
	ErrOutsideLimits = errors.New("amount outside market limits")
	ErrNoPrice       = errors.New("no current price available")
)
