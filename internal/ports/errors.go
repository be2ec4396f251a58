package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so the signal
// processor can classify failures with errors.Is.
var (
	// General
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger / store
	ErrDuplicateSymbol = errors.New("open position already recorded for symbol")
	ErrCorruptRecord   = errors.New("stored record does not match the expected format")

	// Sizing
	ErrZeroQuantity = errors.New("computed order quantity is zero at the allowed precision")

	// Exchange
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderPlacementFailed = errors.New("failed to place order")
)
