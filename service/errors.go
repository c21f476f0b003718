package service

import "errors"

// Caller-visible failure taxonomy. Handlers match these with errors.Is to
// render precise client errors; repositories return them directly where the
// failure is detected by a conditional write.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrMarketNotFound         = errors.New("market not found")
	ErrMarketNotOpen          = errors.New("market is not open")
	ErrMarketNotDue           = errors.New("market deadline has not passed")
	ErrMarketAlreadyResolving = errors.New("market is already being resolved")
	ErrMarketAlreadyResolved  = errors.New("market is already resolved")
	ErrUntrustedSource        = errors.New("market data source is not trusted")

	ErrWagerNotFound     = errors.New("wager not found")
	ErrInvalidDirection  = errors.New("direction must be up or down")
	ErrDuplicatePosition = errors.New("account already has a pending wager on this market")
	ErrBelowMinimum      = errors.New("wager amount is below the minimum")
	ErrAboveMaximum      = errors.New("wager amount is above the maximum")
	ErrNotAWinner        = errors.New("wager is not a winning wager")
	ErrAlreadyClaimed    = errors.New("payout has already been claimed")

	ErrAccountNotFound = errors.New("account not found")
)
