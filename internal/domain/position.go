package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents an open position held by the executor.
// A position is created by a successful BUY and destroyed by a successful
// SELL; it is never mutated in place. At most one position exists per symbol.
type Position struct {
	ID         string          // Opaque unique identifier, assigned at open time
	Symbol     string          // Trading pair (e.g., "BTC-USD")
	Quantity   decimal.Decimal // Exact amount of base currency acquired
	EntryPrice decimal.Decimal // Price at time of purchase
	OpenedAt   time.Time       // Timestamp of order placement
}
